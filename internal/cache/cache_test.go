package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-session/internal/model"
)

// These tests need a disposable redis: EXSTEM_TEST_REDIS_URL=redis://localhost:6379/15
func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("EXSTEM_TEST_REDIS_URL")
	if url == "" {
		t.Skip("EXSTEM_TEST_REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("ping redis: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestPaperCache_RoundTrip(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	c := NewPaperCache(rdb, time.Minute)
	examID := uuid.New()
	t.Cleanup(func() { _ = c.InvalidatePaper(ctx, examID) })

	if _, ok, err := c.GetPaper(ctx, examID); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	paper := []model.QuestionForStudent{
		{ID: uuid.New(), QuestionText: "2+2", OptionA: "3", OptionB: "4", OptionC: "5", OptionD: "6", OrderNum: 1},
	}
	if err := c.SetPaper(ctx, examID, paper); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := c.GetPaper(ctx, examID)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if len(got) != 1 || got[0] != paper[0] {
		t.Fatalf("unexpected paper %+v", got)
	}

	if err := c.InvalidatePaper(ctx, examID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := c.GetPaper(ctx, examID); ok {
		t.Fatalf("expected miss after invalidate")
	}
}

func TestLocker_Exclusive(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	l := NewLocker(rdb)
	key := "lock:test:" + uuid.NewString()
	t.Cleanup(func() { _ = rdb.Del(ctx, key).Err() })

	unlock, ok, err := l.TryLock(ctx, key, time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first lock, got ok=%v err=%v", ok, err)
	}
	if _, ok, err := l.TryLock(ctx, key, time.Minute); err != nil || ok {
		t.Fatalf("expected second lock refused, got ok=%v err=%v", ok, err)
	}
	if err := unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, ok, err := l.TryLock(ctx, key, time.Minute); err != nil || !ok {
		t.Fatalf("expected lock free after unlock, got ok=%v err=%v", ok, err)
	}
}

func TestLocker_UnlockLeavesForeignHolder(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	l := NewLocker(rdb)
	key := "lock:test:" + uuid.NewString()
	t.Cleanup(func() { _ = rdb.Del(ctx, key).Err() })

	unlock, ok, err := l.TryLock(ctx, key, time.Minute)
	if err != nil || !ok {
		t.Fatalf("lock: ok=%v err=%v", ok, err)
	}
	// Simulate expiry followed by another holder.
	if err := rdb.Set(ctx, key, "someone-else", time.Minute).Err(); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if v, _ := rdb.Get(ctx, key).Result(); v != "someone-else" {
		t.Fatalf("foreign lock was released, value %q", v)
	}
}
