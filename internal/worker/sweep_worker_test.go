package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/sweeper"
)

type countingSweeper struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
	ran   chan struct{}
}

func (s *countingSweeper) RunSweep(_ context.Context, now time.Time) (*sweeper.Report, error) {
	s.mu.Lock()
	s.calls = append(s.calls, now)
	s.mu.Unlock()
	if s.ran != nil {
		select {
		case s.ran <- struct{}{}:
		default:
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &sweeper.Report{RanAt: now}, nil
}

func TestSweepWorker_TickPinsNow(t *testing.T) {
	fixed := time.Date(2026, 3, 2, 9, 0, 0, 0, time.FixedZone("WITA", 8*3600))
	sw := &countingSweeper{}
	w := NewSweepWorker(sw, time.Minute, zerolog.Nop())
	w.now = func() time.Time { return fixed }

	w.tick(context.Background())

	if len(sw.calls) != 1 {
		t.Fatalf("expected one sweep, got %d", len(sw.calls))
	}
	if !sw.calls[0].Equal(fixed) || sw.calls[0].Location() != time.UTC {
		t.Fatalf("expected sweep at %v in UTC, got %v", fixed.UTC(), sw.calls[0])
	}
}

func TestSweepWorker_TickSurvivesErrors(t *testing.T) {
	sw := &countingSweeper{err: errors.New("db down")}
	w := NewSweepWorker(sw, time.Minute, zerolog.Nop())

	w.tick(context.Background())
	w.tick(context.Background())

	if len(sw.calls) != 2 {
		t.Fatalf("expected both ticks to sweep, got %d", len(sw.calls))
	}
}

func TestSweepWorker_TickSkipsAfterCancel(t *testing.T) {
	sw := &countingSweeper{}
	w := NewSweepWorker(sw, time.Minute, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.tick(ctx)

	if len(sw.calls) != 0 {
		t.Fatalf("expected no sweep after cancel, got %d", len(sw.calls))
	}
}

func TestSweepWorker_StartRunsAndStops(t *testing.T) {
	sw := &countingSweeper{ran: make(chan struct{}, 1)}
	w := NewSweepWorker(sw, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	select {
	case <-sw.ran:
	case <-time.After(5 * time.Second):
		t.Fatal("sweep did not run on start")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
