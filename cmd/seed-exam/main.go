package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/database"
	"github.com/stemsi/exstem-session/internal/logger"
	"github.com/stemsi/exstem-session/internal/model"
)

func main() {
	var (
		title     string
		questions int
		duration  int
		window    time.Duration
		passing   float64
	)
	flag.StringVar(&title, "title", "Try Out Matematika", "Exam title")
	flag.IntVar(&questions, "questions", 20, "Number of questions")
	flag.IntVar(&duration, "duration", 60, "Duration in minutes")
	flag.DurationVar(&window, "window", 3*time.Hour, "How long the exam stays open from now")
	flag.Float64Var(&passing, "passing", 70, "Passing score")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if questions <= 0 || duration <= 0 {
		log.Fatal().Int("questions", questions).Int("duration", duration).Msg("questions and duration must be positive")
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	now := time.Now().UTC()
	exam := model.Exam{
		ID:              uuid.New(),
		Title:           title,
		DurationMinutes: duration,
		AvailableFrom:   now,
		AvailableUntil:  now.Add(window),
		TotalQuestions:  questions,
		PassingScore:    passing,
		IsActive:        true,
	}

	fmt.Printf("=== Seeding exam %q with %d questions ===\n", title, questions)

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO exams (id, title, duration_minutes, available_from, available_until,
			                   total_questions, passing_score, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			exam.ID, exam.Title, exam.DurationMinutes, exam.AvailableFrom, exam.AvailableUntil,
			exam.TotalQuestions, exam.PassingScore, exam.IsActive,
		); err != nil {
			return fmt.Errorf("insert exam: %w", err)
		}

		letters := []string{model.OptionA, model.OptionB, model.OptionC, model.OptionD}
		batch := &pgx.Batch{}
		for i := 0; i < questions; i++ {
			n := i + 1
			// Rotate the correct letter so answer keys are not all "A".
			correct := i % len(letters)
			options := [4]string{fmt.Sprint(2*n + 1), fmt.Sprint(2*n - 1), fmt.Sprint(2*n + 10), fmt.Sprint(2*n + 2)}
			options[correct] = fmt.Sprint(2 * n)

			batch.Queue(`
				INSERT INTO questions (id, exam_id, question_text, option_a, option_b, option_c, option_d,
				                       correct_option, order_num)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				uuid.New(), exam.ID,
				fmt.Sprintf("Berapakah %d + %d?", n, n),
				options[0], options[1], options[2], options[3],
				letters[correct], n,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed exam")
	}

	fmt.Printf("\nSeed completed! Exam ID: %s (open until %s)\n", exam.ID, exam.AvailableUntil.Format(time.RFC3339))
}
