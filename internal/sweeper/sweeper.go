// Package sweeper closes sessions nobody explicitly submitted or cancelled.
//
// RunSweep is a single pass with a pinned "now". It never loops; the
// periodic trigger lives in the worker package and in cmd/sweep.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/policy"
	"github.com/stemsi/exstem-session/internal/repository"
	"github.com/stemsi/exstem-session/internal/service"
)

// SessionCloser is the submit-or-delete primitive of the lifecycle manager.
type SessionCloser interface {
	CloseIfDue(ctx context.Context, sessionID uuid.UUID, now time.Time) (*service.CloseReport, error)
}

// RankRecomputer rewrites an exam's ranks.
type RankRecomputer interface {
	RecomputeRanks(ctx context.Context, examID uuid.UUID) ([]model.Result, error)
}

// Locker guards a sweep against concurrent runs. ok is false when another
// holder owns the lock.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, ok bool, err error)
}

// Options tune a Sweeper. Locker may be nil for single-process deployments.
type Options struct {
	Locker  Locker
	LockKey string
	LockTTL time.Duration
}

// OptionsFrom builds the Options the deployed binaries run with.
func OptionsFrom(cfg *config.Config, locker Locker) Options {
	return Options{
		Locker:  locker,
		LockKey: config.CacheKey.SweepLockKey(),
		LockTTL: cfg.SweepLockTTL,
	}
}

// Failure is one session (or exam recompute) that could not be processed.
type Failure struct {
	SessionID uuid.UUID `json:"session_id,omitempty"`
	ExamID    uuid.UUID `json:"exam_id"`
	Error     string    `json:"error"`
}

// Report summarizes one sweep.
type Report struct {
	RanAt           time.Time   `json:"ran_at"`
	Skipped         bool        `json:"skipped"`
	Checked         int         `json:"checked"`
	Due             int         `json:"due"`
	Submitted       int         `json:"submitted"`
	Deleted         int         `json:"deleted"`
	Failed          []Failure   `json:"failed"`
	RecomputedExams []uuid.UUID `json:"recomputed_exams"`
}

// Sweeper scans open sessions of active exams and closes those past a deadline.
type Sweeper struct {
	store    repository.Store
	sessions SessionCloser
	ranks    RankRecomputer
	opts     Options
	log      zerolog.Logger
}

// New creates a Sweeper.
func New(store repository.Store, sessions SessionCloser, ranks RankRecomputer, opts Options, log zerolog.Logger) *Sweeper {
	if opts.LockKey == "" {
		opts.LockKey = config.CacheKey.SweepLockKey()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 2 * time.Minute
	}
	return &Sweeper{
		store:    store,
		sessions: sessions,
		ranks:    ranks,
		opts:     opts,
		log:      log.With().Str("component", "auto_submit_sweeper").Logger(),
	}
}

// RunSweep performs one pass at now. Per-session failures are collected in
// the report; only failing to take the lock or to list candidates returns
// an error.
func (s *Sweeper) RunSweep(ctx context.Context, now time.Time) (*Report, error) {
	report := &Report{RanAt: now, Failed: []Failure{}, RecomputedExams: []uuid.UUID{}}

	if s.opts.Locker != nil {
		unlock, ok, err := s.opts.Locker.TryLock(ctx, s.opts.LockKey, s.opts.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !ok {
			s.log.Debug().Msg("Sweep lock held elsewhere, skipping")
			report.Skipped = true
			return report, nil
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				s.log.Warn().Err(err).Msg("Failed to release sweep lock")
			}
		}()
	}

	var open []model.OpenSession
	err := s.store.WithinReadTx(ctx, func(tx repository.Tx) error {
		var err error
		open, err = tx.ListOpenSessions(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list open sessions: %w", err)
	}

	dirty := map[uuid.UUID]struct{}{}
	var dirtyOrder []uuid.UUID

	for i := range open {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := &open[i]
		report.Checked++
		if !policy.IsAutoSubmitDue(&c.Session, &c.Exam, now) {
			continue
		}
		report.Due++

		closed, err := s.sessions.CloseIfDue(ctx, c.Session.ID, now)
		if err != nil {
			s.log.Error().Err(err).
				Str("session_id", c.Session.ID.String()).
				Str("exam_id", c.Exam.ID.String()).
				Msg("Failed to close session")
			report.Failed = append(report.Failed, Failure{SessionID: c.Session.ID, ExamID: c.Exam.ID, Error: err.Error()})
			continue
		}

		switch closed.Outcome {
		case service.CloseSubmitted:
			report.Submitted++
			s.log.Info().
				Str("session_id", c.Session.ID.String()).
				Str("exam_id", c.Exam.ID.String()).
				Int("student_id", c.Session.StudentID).
				Str("reason", string(policy.AutoSubmitReason(&c.Session, &c.Exam, now))).
				Msg("Session auto-submitted")
		case service.CloseDeleted:
			report.Deleted++
			if _, seen := dirty[c.Exam.ID]; !seen {
				dirty[c.Exam.ID] = struct{}{}
				dirtyOrder = append(dirtyOrder, c.Exam.ID)
			}
			s.log.Info().
				Str("session_id", c.Session.ID.String()).
				Str("exam_id", c.Exam.ID.String()).
				Msg("Empty session deleted")
		}
	}

	for _, examID := range dirtyOrder {
		if _, err := s.ranks.RecomputeRanks(ctx, examID); err != nil {
			s.log.Error().Err(err).Str("exam_id", examID.String()).Msg("Failed to recompute ranking")
			report.Failed = append(report.Failed, Failure{ExamID: examID, Error: err.Error()})
			continue
		}
		report.RecomputedExams = append(report.RecomputedExams, examID)
	}

	s.log.Info().
		Int("checked", report.Checked).
		Int("due", report.Due).
		Int("submitted", report.Submitted).
		Int("deleted", report.Deleted).
		Int("failed", len(report.Failed)).
		Msg("Sweep finished")
	return report, nil
}
