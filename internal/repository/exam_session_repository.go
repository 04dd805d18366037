package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-session/internal/model"
)

const sessionColumns = `se.id, se.student_id, se.exam_id, se.started_at, se.submitted_at,
	se.time_spent, se.last_activity_at`

func scanSession(row pgx.Row) (*model.Session, error) {
	s := &model.Session{}
	if err := row.Scan(&s.ID, &s.StudentID, &s.ExamID, &s.StartedAt, &s.SubmittedAt,
		&s.TimeSpent, &s.LastActivityAt); err != nil {
		return nil, mapErr(err)
	}
	return s, nil
}

// GetSession retrieves a session by id.
func (r *pgTx) GetSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return scanSession(r.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM student_exams se WHERE se.id = $1`, id))
}

// LockSession retrieves a session and locks its row for the rest of the transaction.
func (r *pgTx) LockSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return scanSession(r.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM student_exams se WHERE se.id = $1 FOR UPDATE`, id))
}

// FindSessionByStudentExam retrieves the (single) session of a student for an exam.
func (r *pgTx) FindSessionByStudentExam(ctx context.Context, studentID int, examID uuid.UUID) (*model.Session, error) {
	return scanSession(r.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM student_exams se
		 WHERE se.student_id = $1 AND se.exam_id = $2`, studentID, examID))
}

// FindActiveSessionByStudent retrieves the most recently started unsubmitted session of a student.
func (r *pgTx) FindActiveSessionByStudent(ctx context.Context, studentID int) (*model.Session, error) {
	return scanSession(r.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM student_exams se
		 WHERE se.student_id = $1 AND se.submitted_at IS NULL
		 ORDER BY se.started_at DESC
		 LIMIT 1`, studentID))
}

// CreateSession inserts a new session. The (student_id, exam_id) unique
// constraint turns a lost start race into ErrDuplicate.
func (r *pgTx) CreateSession(ctx context.Context, s *model.Session) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO student_exams (id, student_id, exam_id, started_at, last_activity_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.StudentID, s.ExamID, s.StartedAt, s.LastActivityAt)
	return mapErr(err)
}

// TouchSession bumps last_activity_at.
func (r *pgTx) TouchSession(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.execOne(ctx,
		`UPDATE student_exams SET last_activity_at = $1 WHERE id = $2`, at, id)
}

// MarkSessionSubmitted moves a session to its terminal state.
func (r *pgTx) MarkSessionSubmitted(ctx context.Context, id uuid.UUID, submittedAt time.Time, timeSpent int) error {
	return r.execOne(ctx,
		`UPDATE student_exams
		 SET submitted_at = $1, time_spent = $2, last_activity_at = $1
		 WHERE id = $3 AND submitted_at IS NULL`,
		submittedAt, timeSpent, id)
}

// DeleteSession removes a session row.
func (r *pgTx) DeleteSession(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, `DELETE FROM student_exams WHERE id = $1`, id)
}

// ListOpenSessions returns every unsubmitted session of an active exam with
// its answered-question count. Sessions of deactivated exams are left out.
func (r *pgTx) ListOpenSessions(ctx context.Context) ([]model.OpenSession, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+sessionColumns+`, `+examColumns+`,
		        (SELECT COUNT(*) FROM answers a WHERE a.student_exam_id = se.id) AS answered
		 FROM student_exams se
		 JOIN exams e ON e.id = se.exam_id
		 WHERE e.is_active AND se.submitted_at IS NULL
		 ORDER BY se.started_at, se.id`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var open []model.OpenSession
	for rows.Next() {
		var o model.OpenSession
		s, e := &o.Session, &o.Exam
		if err := rows.Scan(&s.ID, &s.StudentID, &s.ExamID, &s.StartedAt, &s.SubmittedAt,
			&s.TimeSpent, &s.LastActivityAt,
			&e.ID, &e.Title, &e.DurationMinutes, &e.AvailableFrom, &e.AvailableUntil,
			&e.TotalQuestions, &e.PassingScore, &e.IsActive,
			&o.AnsweredCount); err != nil {
			return nil, err
		}
		open = append(open, o)
	}
	return open, rows.Err()
}

// execOne runs a statement that must affect exactly one row.
func (r *pgTx) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
