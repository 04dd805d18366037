package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/policy"
	"github.com/stemsi/exstem-session/internal/repository"
	"github.com/stemsi/exstem-session/internal/scoring"
)

// CloseOutcome is what happened to a session handed to CloseIfDue.
type CloseOutcome string

const (
	CloseNotDue    CloseOutcome = "NOT_DUE"
	CloseGone      CloseOutcome = "GONE"
	CloseSubmitted CloseOutcome = "SUBMITTED"
	CloseDeleted   CloseOutcome = "DELETED"
)

// CloseReport describes a single CloseIfDue call.
type CloseReport struct {
	Outcome   CloseOutcome
	SessionID uuid.UUID
	ExamID    uuid.UUID
	Result    *model.Result
}

// ResultView is a submitted session's result with its rank re-derived.
type ResultView struct {
	Result  model.Result      `json:"result"`
	Session model.Session     `json:"session"`
	Exam    model.ExamSummary `json:"exam"`
	Passed  bool              `json:"passed"`
}

// ─── Submit ──────────────────────────────────────────────────────────

// Submit finalizes a session. It is idempotent: a second call returns the
// stored Result without scoring again. Last-minute answers overwrite stored
// ones only when the letter differs. A session past its deadline is closed
// through the auto-submission path and its last-minute answers are ignored.
func (s *ExamSessionService) Submit(ctx context.Context, sessionID uuid.UUID, studentID int, lastMinute []AnswerChoice, now time.Time) (*SubmitResult, error) {
	if len(lastMinute) > MaxBatchAnswers {
		return nil, ErrTooManyAnswers
	}
	normalized, err := normalizeChoices(lastMinute)
	if err != nil {
		return nil, err
	}

	var (
		res     *SubmitResult
		expired *ExpiredError
	)
	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		sess, exam, err := s.lockOwnedSession(ctx, tx, sessionID, studentID)
		if err != nil {
			return err
		}

		if sess.IsSubmitted() {
			result, err := tx.GetResultBySession(ctx, sess.ID)
			if errors.Is(err, repository.ErrNotFound) {
				result, err = s.scoreAndRank(ctx, tx, sess, exam)
			}
			if err != nil {
				return err
			}
			res = newSubmitResult(ActionAlreadySubmitted, result, sess, exam)
			return nil
		}

		if policy.SessionRemaining(sess, exam, now).HasExpired {
			closed, err := s.closeInTx(ctx, tx, sess, exam, now)
			if err != nil {
				return err
			}
			if closed.Outcome == CloseDeleted {
				expired = &ExpiredError{SessionID: sess.ID, ExamID: exam.ID}
				return nil
			}
			res = newSubmitResult(ActionAutoSubmitted, closed.Result, sess, exam)
			return nil
		}

		if err := s.validateQuestions(ctx, tx, exam.ID, normalized); err != nil {
			return err
		}
		if err := s.mergeLastMinute(ctx, tx, sess.ID, normalized, now); err != nil {
			return err
		}

		result, err := s.finalize(ctx, tx, sess, exam, now, policy.TimeSpentMinutes(sess.StartedAt, now))
		if err != nil {
			return err
		}
		res = newSubmitResult(ActionSubmitted, result, sess, exam)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired != nil {
		return nil, expired
	}

	s.log.Info().
		Str("session_id", sessionID.String()).
		Int("student_id", studentID).
		Str("action", string(res.Action)).
		Float64("score", res.Result.Score).
		Int("rank", res.Result.Rank).
		Msg("Exam session submitted")
	return res, nil
}

func newSubmitResult(action SubmitAction, result *model.Result, sess *model.Session, exam *model.Exam) *SubmitResult {
	return &SubmitResult{
		Action:  action,
		Result:  *result,
		Session: *sess,
		Exam:    exam.Summary(),
		Passed:  result.Passed(exam.PassingScore),
	}
}

// mergeLastMinute upserts only those answers whose letter differs from what
// is already stored.
func (s *ExamSessionService) mergeLastMinute(ctx context.Context, tx repository.Tx, sessionID uuid.UUID, choices []AnswerChoice, now time.Time) error {
	if len(choices) == 0 {
		return nil
	}
	existing, err := tx.ListAnswers(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list answers: %w", err)
	}
	stored := make(map[uuid.UUID]string, len(existing))
	for _, a := range existing {
		stored[a.QuestionID] = a.ChosenAnswer
	}

	for _, c := range choices {
		if prev, ok := stored[c.QuestionID]; ok && prev == c.Letter {
			continue
		}
		a := &model.Answer{
			SessionID:    sessionID,
			QuestionID:   c.QuestionID,
			ChosenAnswer: c.Letter,
			UpdatedAt:    now,
		}
		if err := tx.UpsertAnswer(ctx, a); err != nil {
			return fmt.Errorf("upsert answer: %w", err)
		}
		stored[c.QuestionID] = c.Letter
	}
	return nil
}

// finalize marks the session submitted, then scores and ranks it.
func (s *ExamSessionService) finalize(ctx context.Context, tx repository.Tx, sess *model.Session, exam *model.Exam, submittedAt time.Time, timeSpent int) (*model.Result, error) {
	if err := tx.MarkSessionSubmitted(ctx, sess.ID, submittedAt, timeSpent); err != nil {
		return nil, fmt.Errorf("mark submitted: %w", err)
	}
	sess.SubmittedAt = &submittedAt
	sess.TimeSpent = &timeSpent
	sess.LastActivityAt = submittedAt
	return s.scoreAndRank(ctx, tx, sess, exam)
}

// scoreAndRank grades a submitted session, writes answer correctness,
// persists the Result and recomputes the exam's ranking.
func (s *ExamSessionService) scoreAndRank(ctx context.Context, tx repository.Tx, sess *model.Session, exam *model.Exam) (*model.Result, error) {
	answers, err := tx.ListAnswers(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	questions, err := tx.ListQuestionsByExam(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	outcome := scoring.Score(exam.TotalQuestions, answers, scoring.KeyOf(questions))
	if err := tx.MarkAnswers(ctx, outcome.Marks); err != nil {
		return nil, fmt.Errorf("mark answers: %w", err)
	}

	submittedAt := *sess.SubmittedAt
	timeSpent := 0
	if sess.TimeSpent != nil {
		timeSpent = *sess.TimeSpent
	}

	result, err := tx.GetResultBySession(ctx, sess.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		result = &model.Result{
			ID:             uuid.New(),
			SessionID:      sess.ID,
			ExamID:         exam.ID,
			StudentID:      sess.StudentID,
			Score:          outcome.Score,
			CorrectAnswers: outcome.CorrectAnswers,
			TotalQuestions: outcome.TotalQuestions,
			TimeSpent:      timeSpent,
			SubmittedAt:    submittedAt,
		}
		if err := tx.CreateResult(ctx, result); err != nil {
			return nil, fmt.Errorf("create result: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("get result: %w", err)
	case outcome.SameAs(result):
		if err := tx.TouchResult(ctx, result.ID, submittedAt); err != nil {
			return nil, fmt.Errorf("touch result: %w", err)
		}
		result.SubmittedAt = submittedAt
	default:
		result.Score = outcome.Score
		result.CorrectAnswers = outcome.CorrectAnswers
		result.TotalQuestions = outcome.TotalQuestions
		result.TimeSpent = timeSpent
		result.SubmittedAt = submittedAt
		if err := tx.UpdateResultScore(ctx, result); err != nil {
			return nil, fmt.Errorf("update result: %w", err)
		}
	}

	ranked, err := s.ranker.RecomputeAll(ctx, tx, exam.ID)
	if err != nil {
		return nil, err
	}
	for _, r := range ranked {
		if r.ID == result.ID {
			result.Rank = r.Rank
			break
		}
	}
	return result, nil
}

// ─── Closing path shared with the sweeper ────────────────────────────

// closeInTx closes an unsubmitted session whose deadline has been crossed.
// Sessions with answers are scored, with time spent capped at the effective
// deadline. Empty sessions are deleted.
func (s *ExamSessionService) closeInTx(ctx context.Context, tx repository.Tx, sess *model.Session, exam *model.Exam, now time.Time) (*CloseReport, error) {
	count, err := tx.CountAnswers(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("count answers: %w", err)
	}

	report := &CloseReport{SessionID: sess.ID, ExamID: exam.ID}
	if count == 0 {
		if err := s.discard(ctx, tx, sess.ID); err != nil {
			return nil, err
		}
		report.Outcome = CloseDeleted
		return report, nil
	}

	closing := policy.ClosingTime(sess, exam, now)
	result, err := s.finalize(ctx, tx, sess, exam, now, policy.TimeSpentMinutes(sess.StartedAt, closing))
	if err != nil {
		return nil, err
	}
	report.Outcome = CloseSubmitted
	report.Result = result
	return report, nil
}

// closeExpired runs the closing path for an interactive call and returns
// the ExpiredError the caller should surface once the transaction commits.
func (s *ExamSessionService) closeExpired(ctx context.Context, tx repository.Tx, sess *model.Session, exam *model.Exam, now time.Time) (*ExpiredError, error) {
	closed, err := s.closeInTx(ctx, tx, sess, exam, now)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Str("outcome", string(closed.Outcome)).
		Msg("Write after deadline closed session")
	return &ExpiredError{
		SessionID:     sess.ID,
		ExamID:        exam.ID,
		AutoSubmitted: closed.Outcome == CloseSubmitted,
		Result:        closed.Result,
	}, nil
}

// CloseIfDue re-checks a session under its row lock and closes it if it is
// due for auto-submission at now. The sweeper calls it once per candidate.
func (s *ExamSessionService) CloseIfDue(ctx context.Context, sessionID uuid.UUID, now time.Time) (*CloseReport, error) {
	var report *CloseReport
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		sess, err := tx.LockSession(ctx, sessionID)
		if errors.Is(err, repository.ErrNotFound) {
			report = &CloseReport{Outcome: CloseGone, SessionID: sessionID}
			return nil
		}
		if err != nil {
			return fmt.Errorf("lock session: %w", err)
		}
		if sess.IsSubmitted() {
			report = &CloseReport{Outcome: CloseGone, SessionID: sessionID, ExamID: sess.ExamID}
			return nil
		}

		exam, err := tx.GetExam(ctx, sess.ExamID)
		if err != nil {
			return fmt.Errorf("get exam: %w", err)
		}
		if !policy.IsAutoSubmitDue(sess, exam, now) {
			report = &CloseReport{Outcome: CloseNotDue, SessionID: sessionID, ExamID: exam.ID}
			return nil
		}

		report, err = s.closeInTx(ctx, tx, sess, exam, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ─── Result ──────────────────────────────────────────────────────────

// Result returns the stored result of a submitted session owned by studentID.
func (s *ExamSessionService) Result(ctx context.Context, sessionID uuid.UUID, studentID int) (*ResultView, error) {
	var view *ResultView
	err := s.store.WithinReadTx(ctx, func(tx repository.Tx) error {
		sess, err := tx.GetSession(ctx, sessionID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		if sess.StudentID != studentID {
			return ErrSessionNotFound
		}
		if !sess.IsSubmitted() {
			return ErrNotSubmitted
		}
		exam, err := tx.GetExam(ctx, sess.ExamID)
		if err != nil {
			return fmt.Errorf("get exam: %w", err)
		}
		result, err := tx.GetResultBySession(ctx, sess.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResultNotFound
		}
		if err != nil {
			return fmt.Errorf("get result: %w", err)
		}
		rank, err := s.ranker.RankOf(ctx, tx, exam.ID, sess.ID)
		if err != nil {
			return err
		}
		result.Rank = rank

		view = &ResultView{
			Result:  *result,
			Session: *sess,
			Exam:    exam.Summary(),
			Passed:  result.Passed(exam.PassingScore),
		}
		return nil
	})
	return view, err
}
