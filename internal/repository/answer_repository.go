package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-session/internal/model"
)

// ListAnswers retrieves all answers of a session.
func (r *pgTx) ListAnswers(ctx context.Context, sessionID uuid.UUID) ([]model.Answer, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, student_exam_id, question_id, chosen_answer, is_correct, updated_at
		 FROM answers WHERE student_exam_id = $1
		 ORDER BY updated_at, id`, sessionID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.ID, &a.SessionID, &a.QuestionID, &a.ChosenAnswer, &a.IsCorrect, &a.UpdatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// CountAnswers returns how many questions the session has answered.
func (r *pgTx) CountAnswers(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM answers WHERE student_exam_id = $1`, sessionID).Scan(&n)
	return n, mapErr(err)
}

// UpsertAnswer stores the chosen option, replacing any earlier choice for the
// same question. Correctness is cleared until the session is scored.
func (r *pgTx) UpsertAnswer(ctx context.Context, a *model.Answer) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now()
	}
	a.IsCorrect = nil
	err := r.db.QueryRow(ctx,
		`INSERT INTO answers (id, student_exam_id, question_id, chosen_answer, is_correct, updated_at)
		 VALUES ($1, $2, $3, $4, NULL, $5)
		 ON CONFLICT (student_exam_id, question_id) DO UPDATE
		 SET chosen_answer = EXCLUDED.chosen_answer, is_correct = NULL, updated_at = EXCLUDED.updated_at
		 RETURNING id`,
		a.ID, a.SessionID, a.QuestionID, a.ChosenAnswer, a.UpdatedAt,
	).Scan(&a.ID)
	return mapErr(err)
}

// MarkAnswers writes scored correctness onto answers.
func (r *pgTx) MarkAnswers(ctx context.Context, marks []model.AnswerMark) error {
	if len(marks) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(marks))
	correct := make([]bool, len(marks))
	for i, m := range marks {
		ids[i] = m.AnswerID
		correct[i] = m.IsCorrect
	}
	_, err := r.db.Exec(ctx,
		`UPDATE answers AS a
		 SET is_correct = t.is_correct
		 FROM UNNEST($1::uuid[], $2::bool[]) AS t (id, is_correct)
		 WHERE a.id = t.id`,
		ids, correct)
	return mapErr(err)
}

// DeleteAnswers removes every answer of a session.
func (r *pgTx) DeleteAnswers(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM answers WHERE student_exam_id = $1`, sessionID)
	if err != nil {
		return 0, mapErr(err)
	}
	return tag.RowsAffected(), nil
}
