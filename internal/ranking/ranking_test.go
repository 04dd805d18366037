package ranking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-session/internal/model"
)

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func result(score float64, spent int, offset time.Duration) model.Result {
	return model.Result{
		ID:          uuid.New(),
		SessionID:   uuid.New(),
		Score:       score,
		TimeSpent:   spent,
		SubmittedAt: base.Add(offset),
	}
}

type fakeStore struct {
	results  []model.Result
	locked   bool
	updates  map[uuid.UUID]int
	failList bool
}

func (f *fakeStore) LockExamRanking(context.Context, uuid.UUID) error {
	f.locked = true
	return nil
}

func (f *fakeStore) ListResultsByExam(context.Context, uuid.UUID) ([]model.Result, error) {
	if f.failList {
		return nil, errors.New("boom")
	}
	out := make([]model.Result, len(f.results))
	copy(out, f.results)
	return out, nil
}

func (f *fakeStore) UpdateResultRank(_ context.Context, id uuid.UUID, rank int) error {
	if f.updates == nil {
		f.updates = map[uuid.UUID]int{}
	}
	f.updates[id] = rank
	for i := range f.results {
		if f.results[i].ID == id {
			f.results[i].Rank = rank
		}
	}
	return nil
}

func TestAssign_DenseAndTieBreak(t *testing.T) {
	slow := result(80, 40, 0)
	fast := result(80, 25, time.Minute)
	top := result(95, 55, 2*time.Minute)
	low := result(10, 5, 3*time.Minute)
	results := []model.Result{slow, low, fast, top}

	Assign(results)

	want := []uuid.UUID{top.ID, fast.ID, slow.ID, low.ID}
	for i, r := range results {
		if r.ID != want[i] {
			t.Fatalf("position %d: got %s, want %s", i, r.ID, want[i])
		}
		if r.Rank != i+1 {
			t.Fatalf("position %d has rank %d", i, r.Rank)
		}
	}
}

func TestAssign_FullTieUsesSubmissionTime(t *testing.T) {
	later := result(50, 30, time.Minute)
	earlier := result(50, 30, 0)
	results := []model.Result{later, earlier}

	Assign(results)

	if results[0].ID != earlier.ID || results[0].Rank != 1 || results[1].Rank != 2 {
		t.Fatalf("unexpected order: %+v", results)
	}
}

func TestAssign_ReportsOnlyChanged(t *testing.T) {
	a := result(90, 10, 0)
	a.Rank = 1
	b := result(80, 10, 0)
	b.Rank = 5
	results := []model.Result{a, b}

	changed := Assign(results)
	if len(changed) != 1 || results[changed[0]].ID != b.ID {
		t.Fatalf("expected only b to change, got %v", changed)
	}
}

func TestPosition(t *testing.T) {
	a := result(70, 10, 0)
	b := result(90, 10, 0)
	results := []model.Result{a, b}

	if got := Position(results, a.SessionID); got != 2 {
		t.Fatalf("got %d, want 2", got)
	}
	if got := Position(results, uuid.New()); got != 3 {
		t.Fatalf("absent session: got %d, want N+1=3", got)
	}
	if results[0].ID != a.ID {
		t.Fatal("Position must not reorder its input")
	}
}

func TestEngine_RecomputeAll(t *testing.T) {
	st := &fakeStore{results: []model.Result{result(10, 1, 0), result(30, 1, 0), result(20, 1, 0)}}
	e := NewEngine()

	ranked, err := e.RecomputeAll(context.Background(), st, uuid.New())
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if !st.locked {
		t.Fatal("ranking lock was not taken")
	}
	seen := map[int]bool{}
	for _, r := range st.results {
		if r.Rank < 1 || r.Rank > 3 || seen[r.Rank] {
			t.Fatalf("ranks are not a dense permutation: %+v", st.results)
		}
		seen[r.Rank] = true
	}
	if ranked[0].Score != 30 {
		t.Fatalf("first ranked score %v", ranked[0].Score)
	}

	rank, err := e.RankOf(context.Background(), st, uuid.New(), ranked[2].SessionID)
	if err != nil || rank != 3 {
		t.Fatalf("RankOf: got %d, %v", rank, err)
	}
}

func TestEngine_RecomputeAllPropagatesErrors(t *testing.T) {
	st := &fakeStore{failList: true}
	if _, err := NewEngine().RecomputeAll(context.Background(), st, uuid.New()); err == nil {
		t.Fatal("expected error")
	}
}
