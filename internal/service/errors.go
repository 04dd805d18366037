package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-session/internal/model"
)

// Kind classifies domain failures.
type Kind string

const (
	KindNotFound     Kind = "NOT_FOUND"
	KindInvalidState Kind = "INVALID_STATE"
	KindExpired      Kind = "EXPIRED"
	KindConflict     Kind = "CONFLICT"
	KindValidation   Kind = "VALIDATION"
)

// Error is a domain failure with a stable reason code.
type Error struct {
	Kind Kind
	Code string
	msg  string
}

func (e *Error) Error() string { return e.msg }

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, msg: msg}
}

// Domain Errors
var (
	ErrExamNotFound      = newError(KindNotFound, "EXAM_NOT_FOUND", "exam not found")
	ErrSessionNotFound   = newError(KindNotFound, "SESSION_NOT_FOUND", "exam session not found")
	ErrNoActiveSession   = newError(KindNotFound, "NO_ACTIVE_SESSION", "no active exam session")
	ErrResultNotFound    = newError(KindNotFound, "RESULT_NOT_FOUND", "result not found")
	ErrExamUnavailable   = newError(KindInvalidState, "EXAM_NOT_AVAILABLE", "exam is not available")
	ErrAlreadyCompleted  = newError(KindInvalidState, "EXAM_ALREADY_COMPLETED", "exam already completed by student")
	ErrAlreadySubmitted  = newError(KindInvalidState, "SESSION_ALREADY_SUBMITTED", "exam session already submitted")
	ErrNotSubmitted      = newError(KindInvalidState, "SESSION_NOT_SUBMITTED", "exam session not submitted yet")
	ErrCancelWindow      = newError(KindInvalidState, "CANCEL_WINDOW_CLOSED", "cancel grace window has passed")
	ErrTimeExpired       = newError(KindExpired, "TIME_EXPIRED", "exam time has expired")
	ErrStartConflict     = newError(KindConflict, "START_CONFLICT", "concurrent start could not be resolved")
	ErrInvalidAnswer     = newError(KindValidation, "INVALID_ANSWER", "chosen answer must be one of A, B, C, D")
	ErrQuestionNotInExam = newError(KindValidation, "INVALID_QUESTION", "question does not belong to this exam")
	ErrTooManyAnswers    = newError(KindValidation, "TOO_MANY_ANSWERS", "too many answers in one batch")
	ErrNoAnswers         = newError(KindValidation, "NO_ANSWERS", "at least one answer is required")
)

// ExpiredError reports a write that arrived after the effective deadline.
// The session has already been closed through the auto-submission path;
// AutoSubmitted tells whether it was scored (true) or discarded as empty.
type ExpiredError struct {
	SessionID     uuid.UUID
	ExamID        uuid.UUID
	AutoSubmitted bool
	Result        *model.Result
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("exam time has expired for session %s", e.SessionID)
}

func (e *ExpiredError) Unwrap() error { return ErrTimeExpired }

// KindOf returns the Kind of a domain error, or "" for anything else.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
