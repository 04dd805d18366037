package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/ranking"
	"github.com/stemsi/exstem-session/internal/repository"
)

// RankingService exposes an exam's leaderboard to administrators.
type RankingService struct {
	store  repository.Store
	ranker *ranking.Engine
	log    zerolog.Logger
}

// NewRankingService creates a new RankingService.
func NewRankingService(store repository.Store, ranker *ranking.Engine, log zerolog.Logger) *RankingService {
	return &RankingService{
		store:  store,
		ranker: ranker,
		log:    log.With().Str("component", "ranking_service").Logger(),
	}
}

// ExamRanking lists an exam's results in rank order. Ranks are derived from
// the current order rather than trusted from storage.
func (s *RankingService) ExamRanking(ctx context.Context, examID uuid.UUID) ([]model.Result, error) {
	var results []model.Result
	err := s.store.WithinReadTx(ctx, func(tx repository.Tx) error {
		if err := examExists(ctx, tx, examID); err != nil {
			return err
		}
		var err error
		results, err = tx.ListResultsByExam(ctx, examID)
		if err != nil {
			return fmt.Errorf("list results: %w", err)
		}
		ranking.Assign(results)
		return nil
	})
	return results, err
}

// RecomputeRanks rewrites every stored rank of an exam.
func (s *RankingService) RecomputeRanks(ctx context.Context, examID uuid.UUID) ([]model.Result, error) {
	var results []model.Result
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		if err := examExists(ctx, tx, examID); err != nil {
			return err
		}
		var err error
		results, err = s.ranker.RecomputeAll(ctx, tx, examID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("exam_id", examID.String()).
		Int("results", len(results)).
		Msg("Exam ranking recomputed")
	return results, nil
}

func examExists(ctx context.Context, tx repository.Tx, examID uuid.UUID) error {
	_, err := tx.GetExam(ctx, examID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrExamNotFound
	}
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}
	return nil
}
