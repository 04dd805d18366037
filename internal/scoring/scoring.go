// Package scoring grades a session's answers against the exam's answer key.
package scoring

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stemsi/exstem-session/internal/model"
)

// Outcome is the graded form of one session.
type Outcome struct {
	Score          float64
	CorrectAnswers int
	TotalQuestions int
	Marks          []model.AnswerMark
}

// Score grades answers against key (question id -> correct letter).
// The denominator is the exam's declared question count, not the number of
// answers present, so an incomplete attempt is scored against the full exam.
func Score(totalQuestions int, answers []model.Answer, key map[uuid.UUID]string) Outcome {
	out := Outcome{
		TotalQuestions: totalQuestions,
		Marks:          make([]model.AnswerMark, 0, len(answers)),
	}

	for _, a := range answers {
		correct, ok := key[a.QuestionID]
		isCorrect := ok && a.ChosenAnswer == correct
		if isCorrect {
			out.CorrectAnswers++
		}
		out.Marks = append(out.Marks, model.AnswerMark{AnswerID: a.ID, IsCorrect: isCorrect})
	}

	out.Score = Percentage(out.CorrectAnswers, totalQuestions)
	return out
}

// Percentage returns correct/total*100 rounded half away from zero to two decimals.
// A non-positive total yields 0.
func Percentage(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	pct := decimal.NewFromInt(int64(correct)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(2)
	return pct.InexactFloat64()
}

// KeyOf builds the answer key of a question set.
func KeyOf(questions []model.Question) map[uuid.UUID]string {
	key := make(map[uuid.UUID]string, len(questions))
	for _, q := range questions {
		key[q.ID] = q.CorrectOption
	}
	return key
}

// SameAs reports whether two outcomes would persist identically.
func (o Outcome) SameAs(r *model.Result) bool {
	return r != nil &&
		r.Score == o.Score &&
		r.CorrectAnswers == o.CorrectAnswers &&
		r.TotalQuestions == o.TotalQuestions
}
