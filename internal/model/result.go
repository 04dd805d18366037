package model

import (
	"time"

	"github.com/google/uuid"
)

// Result is the scored outcome of a submitted session.
type Result struct {
	ID             uuid.UUID `json:"id"`
	SessionID      uuid.UUID `json:"session_id"`
	ExamID         uuid.UUID `json:"exam_id"`
	StudentID      int       `json:"student_id"`
	Score          float64   `json:"score"`
	CorrectAnswers int       `json:"correct_answers"`
	TotalQuestions int       `json:"total_questions"`
	Rank           int       `json:"rank"`
	TimeSpent      int       `json:"time_spent"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// Passed reports whether the score reaches the exam's passing score.
func (r *Result) Passed(passingScore float64) bool {
	return r.Score >= passingScore
}
