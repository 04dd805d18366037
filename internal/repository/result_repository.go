package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-session/internal/model"
)

const resultColumns = `id, student_exam_id, exam_id, student_id, score, correct_answers,
	total_questions, rank, time_spent, submitted_at`

// GetResultBySession retrieves the result of a session.
func (r *pgTx) GetResultBySession(ctx context.Context, sessionID uuid.UUID) (*model.Result, error) {
	res := &model.Result{}
	err := r.db.QueryRow(ctx,
		`SELECT `+resultColumns+` FROM results WHERE student_exam_id = $1`, sessionID,
	).Scan(&res.ID, &res.SessionID, &res.ExamID, &res.StudentID, &res.Score, &res.CorrectAnswers,
		&res.TotalQuestions, &res.Rank, &res.TimeSpent, &res.SubmittedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return res, nil
}

// CreateResult inserts the first result of a session.
func (r *pgTx) CreateResult(ctx context.Context, res *model.Result) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO results (`+resultColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		res.ID, res.SessionID, res.ExamID, res.StudentID, res.Score, res.CorrectAnswers,
		res.TotalQuestions, res.Rank, res.TimeSpent, res.SubmittedAt)
	return mapErr(err)
}

// UpdateResultScore rewrites the scored fields of an existing result.
func (r *pgTx) UpdateResultScore(ctx context.Context, res *model.Result) error {
	return r.execOne(ctx,
		`UPDATE results
		 SET score = $1, correct_answers = $2, total_questions = $3, time_spent = $4, submitted_at = $5
		 WHERE id = $6`,
		res.Score, res.CorrectAnswers, res.TotalQuestions, res.TimeSpent, res.SubmittedAt, res.ID)
}

// TouchResult refreshes only the submission timestamp.
func (r *pgTx) TouchResult(ctx context.Context, id uuid.UUID, submittedAt time.Time) error {
	return r.execOne(ctx, `UPDATE results SET submitted_at = $1 WHERE id = $2`, submittedAt, id)
}

// LockExamRanking takes a transaction-scoped advisory lock for an exam's
// ranking, so recomputations of the same exam never interleave.
func (r *pgTx) LockExamRanking(ctx context.Context, examID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, examID.String())
	return mapErr(err)
}

// ListResultsByExam retrieves all results of an exam in ranking order.
func (r *pgTx) ListResultsByExam(ctx context.Context, examID uuid.UUID) ([]model.Result, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+resultColumns+` FROM results
		 WHERE exam_id = $1
		 ORDER BY score DESC, time_spent ASC, submitted_at ASC, student_exam_id ASC`, examID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var results []model.Result
	for rows.Next() {
		var res model.Result
		if err := rows.Scan(&res.ID, &res.SessionID, &res.ExamID, &res.StudentID, &res.Score, &res.CorrectAnswers,
			&res.TotalQuestions, &res.Rank, &res.TimeSpent, &res.SubmittedAt); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// UpdateResultRank writes a recomputed rank.
func (r *pgTx) UpdateResultRank(ctx context.Context, id uuid.UUID, rank int) error {
	return r.execOne(ctx, `UPDATE results SET rank = $1 WHERE id = $2`, rank, id)
}
