package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-session/internal/model"
)

const examColumns = `e.id, e.title, e.duration_minutes, e.available_from, e.available_until,
	e.total_questions, e.passing_score, e.is_active`

// GetExam retrieves an exam by its UUID.
func (r *pgTx) GetExam(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.db.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams e WHERE e.id = $1`, id,
	).Scan(&e.ID, &e.Title, &e.DurationMinutes, &e.AvailableFrom, &e.AvailableUntil,
		&e.TotalQuestions, &e.PassingScore, &e.IsActive)
	if err != nil {
		return nil, mapErr(err)
	}
	return e, nil
}

// ListQuestionsByExam retrieves all questions for a given exam, ordered by order_num.
func (r *pgTx) ListQuestionsByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, exam_id, question_text, option_a, option_b, option_c, option_d, correct_option, order_num
		 FROM questions WHERE exam_id = $1
		 ORDER BY order_num, id`, examID,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.QuestionText, &q.OptionA, &q.OptionB,
			&q.OptionC, &q.OptionD, &q.CorrectOption, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
