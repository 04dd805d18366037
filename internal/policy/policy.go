// Package policy holds the pure timing rules of an exam session.
// Every function takes now explicitly so a caller can pin one timestamp
// across a whole batch.
package policy

import (
	"time"

	"github.com/stemsi/exstem-session/internal/model"
)

const (
	// InactivityLimit is how long a session may go without activity
	// before it is closed by the sweeper.
	InactivityLimit = 24 * time.Hour

	// CancelGrace is how long after starting a student may cancel.
	CancelGrace = 15 * time.Minute
)

// Remaining describes how much time a session has left.
type Remaining struct {
	MillisLeft        int64     `json:"millis_left"`
	HasExpired        bool      `json:"has_expired"`
	EffectiveDeadline time.Time `json:"effective_deadline"`
}

// DueReason tells which bound made a session due for auto-submission.
type DueReason string

const (
	DueNone       DueReason = ""
	DueDuration   DueReason = "DURATION_ELAPSED"
	DueWindow     DueReason = "WINDOW_CLOSED"
	DueInactivity DueReason = "INACTIVE"
)

// EffectiveDeadline is the earlier of startedAt+duration and availableUntil.
func EffectiveDeadline(startedAt time.Time, durationMinutes int, availableUntil time.Time) time.Time {
	end := startedAt.Add(time.Duration(durationMinutes) * time.Minute)
	if availableUntil.Before(end) {
		return availableUntil
	}
	return end
}

// RemainingTime computes the time left before the effective deadline.
// At now == deadline the session counts as expired.
func RemainingTime(startedAt time.Time, durationMinutes int, availableUntil, now time.Time) Remaining {
	deadline := EffectiveDeadline(startedAt, durationMinutes, availableUntil)
	if !deadline.After(now) {
		return Remaining{HasExpired: true, EffectiveDeadline: deadline}
	}
	return Remaining{
		MillisLeft:        deadline.Sub(now).Milliseconds(),
		EffectiveDeadline: deadline,
	}
}

// SessionRemaining is RemainingTime for a session of the given exam.
func SessionRemaining(s *model.Session, e *model.Exam, now time.Time) Remaining {
	return RemainingTime(s.StartedAt, e.DurationMinutes, e.AvailableUntil, now)
}

// AutoSubmitReason returns the first bound the session has crossed, or DueNone.
// Submitted sessions are never due.
func AutoSubmitReason(s *model.Session, e *model.Exam, now time.Time) DueReason {
	if s.IsSubmitted() {
		return DueNone
	}
	switch {
	case !now.Before(s.StartedAt.Add(e.Duration())):
		return DueDuration
	case !now.Before(e.AvailableUntil):
		return DueWindow
	case now.Sub(s.LastActivityAt) >= InactivityLimit:
		return DueInactivity
	}
	return DueNone
}

// IsAutoSubmitDue reports whether the session must be closed without the student.
func IsAutoSubmitDue(s *model.Session, e *model.Exam, now time.Time) bool {
	return AutoSubmitReason(s, e, now) != DueNone
}

// CanCancel reports whether now is still inside the cancel grace window.
func CanCancel(startedAt, now time.Time) bool {
	return now.Sub(startedAt) <= CancelGrace
}

// TimeSpentMinutes is the whole number of minutes between startedAt and end.
func TimeSpentMinutes(startedAt, end time.Time) int {
	d := end.Sub(startedAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}

// ClosingTime is the moment an auto-closed session is considered finished:
// now, capped at the effective deadline so a student is never credited with
// more time than the exam allowed.
func ClosingTime(s *model.Session, e *model.Exam, now time.Time) time.Time {
	deadline := EffectiveDeadline(s.StartedAt, e.DurationMinutes, e.AvailableUntil)
	if now.After(deadline) {
		return deadline
	}
	return now
}
