package worker

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/sweeper"
)

// Sweeper is the single-pass entry point the worker schedules.
type Sweeper interface {
	RunSweep(ctx context.Context, now time.Time) (*sweeper.Report, error)
}

// SweepWorker triggers an auto-submission sweep on a fixed interval.
type SweepWorker struct {
	sweeper  Sweeper
	interval time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// NewSweepWorker creates a new SweepWorker.
func NewSweepWorker(s Sweeper, interval time.Duration, log zerolog.Logger) *SweepWorker {
	return &SweepWorker{
		sweeper:  s,
		interval: interval,
		now:      time.Now,
		log:      log.With().Str("component", "sweep_worker").Logger(),
	}
}

// Start schedules the sweep and blocks until ctx is cancelled. Call in a goroutine.
func (w *SweepWorker) Start(ctx context.Context) {
	s := gocron.NewScheduler(time.UTC)

	// A slow sweep must not overlap with the next tick.
	if _, err := s.Every(w.interval).SingletonMode().Do(w.tick, ctx); err != nil {
		w.log.Error().Err(err).Msg("Failed to schedule sweep")
		return
	}

	s.StartAsync()
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	<-ctx.Done()
	w.log.Info().Msg("Worker stopping...")
	s.Stop()
	w.log.Info().Msg("Worker stopped")
}

func (w *SweepWorker) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report, err := w.sweeper.RunSweep(ctx, w.now().UTC())
	if err != nil {
		w.log.Error().Err(err).Msg("Sweep failed")
		return
	}
	if report.Skipped {
		w.log.Debug().Msg("Sweep skipped, lock held by another instance")
	}
}
