package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionState is the lifecycle state of a student exam session.
type SessionState string

const (
	SessionStateActive    SessionState = "ACTIVE"
	SessionStateSubmitted SessionState = "SUBMITTED"
)

// Session is one student's single attempt at one exam (a StudentExam row).
type Session struct {
	ID             uuid.UUID  `json:"id"`
	StudentID      int        `json:"student_id"`
	ExamID         uuid.UUID  `json:"exam_id"`
	StartedAt      time.Time  `json:"started_at"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty"`
	TimeSpent      *int       `json:"time_spent,omitempty"`
	LastActivityAt time.Time  `json:"last_activity_at"`
}

// IsSubmitted reports whether the session reached its terminal state.
func (s *Session) IsSubmitted() bool {
	return s.SubmittedAt != nil
}

// State derives the lifecycle state from the submission timestamp.
func (s *Session) State() SessionState {
	if s.IsSubmitted() {
		return SessionStateSubmitted
	}
	return SessionStateActive
}

// OpenSession is an unsubmitted session paired with its exam and answer count,
// as seen by the sweeper.
type OpenSession struct {
	Session       Session
	Exam          Exam
	AnsweredCount int
}

// StartExamRequest is the payload for starting or resuming a session.
type StartExamRequest struct {
	ExamID string `json:"exam_id" binding:"required,uuid"`
}
