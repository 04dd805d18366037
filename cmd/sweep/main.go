// Command sweep runs a single auto-submission pass and prints its report.
// It is meant for OS cron or an orchestrator job when the in-process
// scheduler is disabled with SWEEP_ENABLED=false.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/cache"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/database"
	"github.com/stemsi/exstem-session/internal/logger"
	"github.com/stemsi/exstem-session/internal/ranking"
	"github.com/stemsi/exstem-session/internal/repository"
	"github.com/stemsi/exstem-session/internal/service"
	"github.com/stemsi/exstem-session/internal/sweeper"
)

func main() {
	var (
		at      string
		timeout time.Duration
	)
	flag.StringVar(&at, "at", "", "Sweep as of this RFC3339 time instead of now")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "Abort the sweep after this long")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	now := time.Now().UTC()
	if at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			log.Fatal().Err(err).Str("at", at).Msg("Invalid -at time")
		}
		now = parsed.UTC()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	store := repository.NewPostgresStore(pool)
	ranker := ranking.NewEngine()
	sessions := service.NewExamSessionService(store, ranker, cache.NewPaperCache(rdb, cfg.PaperCacheTTL), log)
	rankings := service.NewRankingService(store, ranker, log)

	report, err := sweeper.New(store, sessions, rankings, sweeper.OptionsFrom(cfg, cache.NewLocker(rdb)), log).RunSweep(ctx, now)
	if err != nil {
		log.Fatal().Err(err).Msg("Sweep failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Fatal().Err(err).Msg("Failed to write report")
	}
	if len(report.Failed) > 0 {
		os.Exit(2)
	}
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
