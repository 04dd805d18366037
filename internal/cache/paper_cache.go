// Package cache holds the redis-backed pieces of the session service:
// the per-exam question paper cache and the sweep lock.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/model"
)

// PaperCache stores the student-facing question list of each exam.
type PaperCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPaperCache creates a PaperCache whose entries expire after ttl.
func NewPaperCache(rdb *redis.Client, ttl time.Duration) *PaperCache {
	return &PaperCache{rdb: rdb, ttl: ttl}
}

// GetPaper returns the cached paper. ok is false on a miss.
func (c *PaperCache) GetPaper(ctx context.Context, examID uuid.UUID) ([]model.QuestionForStudent, bool, error) {
	data, err := c.rdb.Get(ctx, config.CacheKey.ExamPaperKey(examID.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get paper: %w", err)
	}

	var paper []model.QuestionForStudent
	if err := json.Unmarshal(data, &paper); err != nil {
		return nil, false, fmt.Errorf("unmarshal paper: %w", err)
	}
	return paper, true, nil
}

// SetPaper caches paper for the configured ttl.
func (c *PaperCache) SetPaper(ctx context.Context, examID uuid.UUID, paper []model.QuestionForStudent) error {
	data, err := json.Marshal(paper)
	if err != nil {
		return fmt.Errorf("marshal paper: %w", err)
	}
	if err := c.rdb.Set(ctx, config.CacheKey.ExamPaperKey(examID.String()), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set paper: %w", err)
	}
	return nil
}

// InvalidatePaper drops the cached paper of an exam.
func (c *PaperCache) InvalidatePaper(ctx context.Context, examID uuid.UUID) error {
	return c.rdb.Del(ctx, config.CacheKey.ExamPaperKey(examID.String())).Err()
}
