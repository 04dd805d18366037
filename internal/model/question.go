package model

import (
	"strings"

	"github.com/google/uuid"
)

// Answer option letters.
const (
	OptionA = "A"
	OptionB = "B"
	OptionC = "C"
	OptionD = "D"
)

// NormalizeOption trims and upper-cases a chosen letter.
// The second return value is false when the letter is not one of A-D.
func NormalizeOption(letter string) (string, bool) {
	l := strings.ToUpper(strings.TrimSpace(letter))
	switch l {
	case OptionA, OptionB, OptionC, OptionD:
		return l, true
	}
	return "", false
}

// Question is a four-option multiple choice question of one exam.
type Question struct {
	ID            uuid.UUID `json:"id"`
	ExamID        uuid.UUID `json:"exam_id"`
	QuestionText  string    `json:"question_text"`
	OptionA       string    `json:"option_a"`
	OptionB       string    `json:"option_b"`
	OptionC       string    `json:"option_c"`
	OptionD       string    `json:"option_d"`
	CorrectOption string    `json:"correct_option"`
	OrderNum      int       `json:"order_num"`
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID           uuid.UUID `json:"id"`
	QuestionText string    `json:"question_text"`
	OptionA      string    `json:"option_a"`
	OptionB      string    `json:"option_b"`
	OptionC      string    `json:"option_c"`
	OptionD      string    `json:"option_d"`
	OrderNum     int       `json:"order_num"`
}

// ForStudent strips the correct answer.
func (q *Question) ForStudent() QuestionForStudent {
	return QuestionForStudent{
		ID:           q.ID,
		QuestionText: q.QuestionText,
		OptionA:      q.OptionA,
		OptionB:      q.OptionB,
		OptionC:      q.OptionC,
		OptionD:      q.OptionD,
		OrderNum:     q.OrderNum,
	}
}
