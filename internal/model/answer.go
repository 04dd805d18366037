package model

import (
	"time"

	"github.com/google/uuid"
)

// Answer is the option a student chose for one question of a session.
// IsCorrect stays nil until the session is scored.
type Answer struct {
	ID           uuid.UUID `json:"id"`
	SessionID    uuid.UUID `json:"session_id"`
	QuestionID   uuid.UUID `json:"question_id"`
	ChosenAnswer string    `json:"chosen_answer"`
	IsCorrect    *bool     `json:"is_correct,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AnswerMark is the scored correctness of one answer.
type AnswerMark struct {
	AnswerID  uuid.UUID `json:"answer_id"`
	IsCorrect bool      `json:"is_correct"`
}

// AnswerInput is one answer submitted by the client.
type AnswerInput struct {
	QuestionID   string `json:"question_id" binding:"required,uuid"`
	ChosenAnswer string `json:"chosen_answer" binding:"required,answer_option"`
}

// SaveAnswerRequest is the payload for saving a single answer.
type SaveAnswerRequest struct {
	QuestionID   string `json:"question_id" binding:"required,uuid"`
	ChosenAnswer string `json:"chosen_answer" binding:"required,answer_option"`
	IsAutosave   bool   `json:"is_autosave"`
}

// SaveAnswersRequest is the payload for saving a batch of answers.
type SaveAnswersRequest struct {
	Answers []AnswerInput `json:"answers" binding:"required,min=1,max=100,dive"`
}

// SubmitRequest optionally carries answers picked right before submitting.
type SubmitRequest struct {
	Answers []AnswerInput `json:"answers" binding:"omitempty,max=100,dive"`
}
