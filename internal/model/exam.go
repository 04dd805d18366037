package model

import (
	"time"

	"github.com/google/uuid"
)

// Exam is the read-only exam definition owned by the authoring side.
type Exam struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	DurationMinutes int       `json:"duration_minutes"`
	AvailableFrom   time.Time `json:"available_from"`
	AvailableUntil  time.Time `json:"available_until"`
	TotalQuestions  int       `json:"total_questions"`
	PassingScore    float64   `json:"passing_score"`
	IsActive        bool      `json:"is_active"`
}

// Duration returns the allotted session length.
func (e *Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// IsOpenAt reports whether now falls inside [AvailableFrom, AvailableUntil).
func (e *Exam) IsOpenAt(now time.Time) bool {
	return !now.Before(e.AvailableFrom) && now.Before(e.AvailableUntil)
}

// ExamSummary is the exam header shown to a student during a session.
type ExamSummary struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	DurationMinutes int       `json:"duration_minutes"`
	AvailableUntil  time.Time `json:"available_until"`
	TotalQuestions  int       `json:"total_questions"`
	PassingScore    float64   `json:"passing_score"`
}

// Summary projects the exam into its student-facing header.
func (e *Exam) Summary() ExamSummary {
	return ExamSummary{
		ID:              e.ID,
		Title:           e.Title,
		DurationMinutes: e.DurationMinutes,
		AvailableUntil:  e.AvailableUntil,
		TotalQuestions:  e.TotalQuestions,
		PassingScore:    e.PassingScore,
	}
}
