// Package ranking derives the per-exam total order over results.
//
// Ranks are never patched incrementally: any change to the result set of an
// exam is followed by RecomputeAll, which rewrites every rank from the full
// order while holding the exam's ranking lock.
package ranking

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-session/internal/model"
)

// Store is the storage surface the ranking engine needs. It is satisfied by
// a repository transaction.
type Store interface {
	LockExamRanking(ctx context.Context, examID uuid.UUID) error
	ListResultsByExam(ctx context.Context, examID uuid.UUID) ([]model.Result, error)
	UpdateResultRank(ctx context.Context, resultID uuid.UUID, rank int) error
}

// Less orders by score desc, time spent asc, then submission time and
// session id so that no two results ever share a position.
func Less(a, b *model.Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.TimeSpent != b.TimeSpent {
		return a.TimeSpent < b.TimeSpent
	}
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.Before(b.SubmittedAt)
	}
	return a.SessionID.String() < b.SessionID.String()
}

// Sort orders results in place.
func Sort(results []model.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return Less(&results[i], &results[j])
	})
}

// Assign sorts results and writes dense ranks 1..N into them.
// It returns the indexes whose rank changed.
func Assign(results []model.Result) []int {
	Sort(results)
	var changed []int
	for i := range results {
		if results[i].Rank != i+1 {
			results[i].Rank = i + 1
			changed = append(changed, i)
		}
	}
	return changed
}

// Position is the 1-based place of sessionID in results, or len+1 if absent.
func Position(results []model.Result, sessionID uuid.UUID) int {
	ordered := make([]model.Result, len(results))
	copy(ordered, results)
	Sort(ordered)
	for i := range ordered {
		if ordered[i].SessionID == sessionID {
			return i + 1
		}
	}
	return len(ordered) + 1
}

// Engine computes and persists rankings through a Store.
type Engine struct{}

// NewEngine creates a ranking Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// RankOf re-derives the rank of one session from the full order of its exam.
func (e *Engine) RankOf(ctx context.Context, st Store, examID, sessionID uuid.UUID) (int, error) {
	results, err := st.ListResultsByExam(ctx, examID)
	if err != nil {
		return 0, fmt.Errorf("list results: %w", err)
	}
	return Position(results, sessionID), nil
}

// RecomputeAll rewrites every rank of the exam. Call it inside the
// transaction that changed the result set.
func (e *Engine) RecomputeAll(ctx context.Context, st Store, examID uuid.UUID) ([]model.Result, error) {
	if err := st.LockExamRanking(ctx, examID); err != nil {
		return nil, fmt.Errorf("lock ranking: %w", err)
	}

	results, err := st.ListResultsByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	for _, i := range Assign(results) {
		if err := st.UpdateResultRank(ctx, results[i].ID, results[i].Rank); err != nil {
			return nil, fmt.Errorf("update rank: %w", err)
		}
	}
	return results, nil
}
