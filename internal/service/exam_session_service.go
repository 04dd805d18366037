package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/policy"
	"github.com/stemsi/exstem-session/internal/ranking"
	"github.com/stemsi/exstem-session/internal/repository"
)

// MaxBatchAnswers caps how many answers one batch save may carry.
const MaxBatchAnswers = 100

// PaperCache caches the student view of an exam's questions.
type PaperCache interface {
	GetPaper(ctx context.Context, examID uuid.UUID) ([]model.QuestionForStudent, bool, error)
	SetPaper(ctx context.Context, examID uuid.UUID, paper []model.QuestionForStudent) error
}

// ExamSessionService owns the session state machine:
// NONE -> ACTIVE -> SUBMITTED, with ACTIVE -> CANCELLED inside the grace window.
type ExamSessionService struct {
	store  repository.Store
	ranker *ranking.Engine
	papers PaperCache
	log    zerolog.Logger
}

// NewExamSessionService creates a new ExamSessionService. papers may be nil.
func NewExamSessionService(
	store repository.Store,
	ranker *ranking.Engine,
	papers PaperCache,
	log zerolog.Logger,
) *ExamSessionService {
	return &ExamSessionService{
		store:  store,
		ranker: ranker,
		papers: papers,
		log:    log.With().Str("component", "exam_session_service").Logger(),
	}
}

// StartStatus tells whether Start created a new session or resumed one.
type StartStatus string

const (
	StartCreated StartStatus = "CREATED"
	StartResumed StartStatus = "RESUMED"
)

// SavedAnswer is a stored choice as shown back to the student.
type SavedAnswer struct {
	QuestionID   uuid.UUID `json:"question_id"`
	ChosenAnswer string    `json:"chosen_answer"`
}

// SessionView is everything a client needs to render an active session.
type SessionView struct {
	Session       model.Session              `json:"session"`
	Exam          model.ExamSummary          `json:"exam"`
	Questions     []model.QuestionForStudent `json:"questions"`
	Answers       []SavedAnswer              `json:"answers"`
	RemainingTime policy.Remaining           `json:"remaining_time"`
}

// StartResult is the outcome of Start.
type StartResult struct {
	Status StartStatus `json:"status"`
	SessionView
}

// AnswerChoice is one (question, letter) pair coming from a client.
type AnswerChoice struct {
	QuestionID uuid.UUID
	Letter     string
}

// SaveResult is the outcome of a successful answer save.
type SaveResult struct {
	SessionID     uuid.UUID        `json:"session_id"`
	Saved         int              `json:"saved"`
	AnsweredCount int              `json:"answered_count"`
	RemainingTime policy.Remaining `json:"remaining_time"`
}

// SubmitAction tells the client how a submit call was resolved.
type SubmitAction string

const (
	ActionSubmitted        SubmitAction = "SUBMITTED"
	ActionAlreadySubmitted SubmitAction = "ALREADY_SUBMITTED"
	ActionAutoSubmitted    SubmitAction = "AUTO_SUBMITTED"
)

// SubmitResult is the outcome of Submit.
type SubmitResult struct {
	Action  SubmitAction      `json:"action"`
	Result  model.Result      `json:"result"`
	Session model.Session     `json:"session"`
	Exam    model.ExamSummary `json:"exam"`
	Passed  bool              `json:"passed"`
}

// StatusView is the polling projection of a session.
type StatusView struct {
	SessionID       uuid.UUID          `json:"session_id"`
	ExamID          uuid.UUID          `json:"exam_id"`
	State           model.SessionState `json:"state"`
	RemainingTime   policy.Remaining   `json:"remaining_time"`
	NeedsAutoSubmit bool               `json:"needs_auto_submit"`
	AnsweredCount   int                `json:"answered_count"`
	TotalQuestions  int                `json:"total_questions"`
}

// ─── Start / Resume ──────────────────────────────────────────────────

// Start creates a session for (studentID, examID) or resumes the active one.
// Find-then-insert runs in one transaction; a unique violation from a
// concurrent start is resolved by re-fetching the winning row.
func (s *ExamSessionService) Start(ctx context.Context, studentID int, examID uuid.UUID, now time.Time) (*StartResult, error) {
	res, err := s.startTx(ctx, studentID, examID, now)
	if errors.Is(err, repository.ErrDuplicate) {
		s.log.Warn().
			Int("student_id", studentID).
			Str("exam_id", examID.String()).
			Msg("Concurrent start detected, resuming existing session")
		res, err = s.resumeAfterConflict(ctx, studentID, examID, now)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("session_id", res.Session.ID.String()).
		Str("exam_id", examID.String()).
		Int("student_id", studentID).
		Str("status", string(res.Status)).
		Msg("Exam session started")
	return res, nil
}

func (s *ExamSessionService) startTx(ctx context.Context, studentID int, examID uuid.UUID, now time.Time) (*StartResult, error) {
	var (
		res     *StartResult
		expired *ExpiredError
	)
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		exam, err := s.openExam(ctx, tx, examID, now)
		if err != nil {
			return err
		}

		status := StartResumed
		sess, err := tx.FindSessionByStudentExam(ctx, studentID, examID)
		if err == nil && !sess.IsSubmitted() {
			// Re-read under the row lock: a sweep or submit may have closed
			// or deleted it since the lookup.
			sess, err = tx.LockSession(ctx, sess.ID)
		}
		switch {
		case errors.Is(err, repository.ErrNotFound):
			status = StartCreated
			sess = &model.Session{
				ID:             uuid.New(),
				StudentID:      studentID,
				ExamID:         examID,
				StartedAt:      now,
				LastActivityAt: now,
			}
			if err := tx.CreateSession(ctx, sess); err != nil {
				return err
			}
		case err != nil:
			return fmt.Errorf("find session: %w", err)
		case sess.IsSubmitted():
			return ErrAlreadyCompleted
		case policy.SessionRemaining(sess, exam, now).HasExpired:
			expired, err = s.closeExpired(ctx, tx, sess, exam, now)
			return err
		}

		view, err := s.buildView(ctx, tx, sess, exam, now)
		if err != nil {
			return err
		}
		res = &StartResult{Status: status, SessionView: *view}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired != nil {
		return nil, expired
	}
	return res, nil
}

func (s *ExamSessionService) resumeAfterConflict(ctx context.Context, studentID int, examID uuid.UUID, now time.Time) (*StartResult, error) {
	var res *StartResult
	err := s.store.WithinReadTx(ctx, func(tx repository.Tx) error {
		exam, err := s.openExam(ctx, tx, examID, now)
		if err != nil {
			return err
		}
		sess, err := tx.FindSessionByStudentExam(ctx, studentID, examID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrStartConflict
		}
		if err != nil {
			return fmt.Errorf("refetch session: %w", err)
		}
		if sess.IsSubmitted() {
			return ErrAlreadyCompleted
		}
		view, err := s.buildView(ctx, tx, sess, exam, now)
		if err != nil {
			return err
		}
		res = &StartResult{Status: StartResumed, SessionView: *view}
		return nil
	})
	return res, err
}

// openExam loads an exam that is active and inside its availability window.
func (s *ExamSessionService) openExam(ctx context.Context, tx repository.Tx, examID uuid.UUID, now time.Time) (*model.Exam, error) {
	exam, err := tx.GetExam(ctx, examID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrExamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if !exam.IsActive || !exam.IsOpenAt(now) {
		return nil, ErrExamUnavailable
	}
	return exam, nil
}

// ─── Active session ──────────────────────────────────────────────────

// Active returns the student's most recent unsubmitted session.
func (s *ExamSessionService) Active(ctx context.Context, studentID int, now time.Time) (*SessionView, error) {
	var view *SessionView
	err := s.store.WithinReadTx(ctx, func(tx repository.Tx) error {
		sess, err := tx.FindActiveSessionByStudent(ctx, studentID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNoActiveSession
		}
		if err != nil {
			return fmt.Errorf("find active session: %w", err)
		}
		exam, err := tx.GetExam(ctx, sess.ExamID)
		if err != nil {
			return fmt.Errorf("get exam: %w", err)
		}
		view, err = s.buildView(ctx, tx, sess, exam, now)
		return err
	})
	return view, err
}

func (s *ExamSessionService) buildView(ctx context.Context, tx repository.Tx, sess *model.Session, exam *model.Exam, now time.Time) (*SessionView, error) {
	paper, err := s.studentPaper(ctx, tx, exam.ID)
	if err != nil {
		return nil, err
	}
	answers, err := tx.ListAnswers(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	saved := make([]SavedAnswer, 0, len(answers))
	for _, a := range answers {
		saved = append(saved, SavedAnswer{QuestionID: a.QuestionID, ChosenAnswer: a.ChosenAnswer})
	}
	return &SessionView{
		Session:       *sess,
		Exam:          exam.Summary(),
		Questions:     paper,
		Answers:       saved,
		RemainingTime: policy.SessionRemaining(sess, exam, now),
	}, nil
}

// studentPaper returns the exam's questions without correct answers,
// preferring the cache. Cache failures only cost a store read.
func (s *ExamSessionService) studentPaper(ctx context.Context, tx repository.Tx, examID uuid.UUID) ([]model.QuestionForStudent, error) {
	if s.papers != nil {
		paper, ok, err := s.papers.GetPaper(ctx, examID)
		if err != nil {
			s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Paper cache read failed")
		}
		if ok {
			return paper, nil
		}
	}

	questions, err := tx.ListQuestionsByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	paper := make([]model.QuestionForStudent, 0, len(questions))
	for i := range questions {
		paper = append(paper, questions[i].ForStudent())
	}

	if s.papers != nil {
		if err := s.papers.SetPaper(ctx, examID, paper); err != nil {
			s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Paper cache write failed")
		}
	}
	return paper, nil
}

// ─── Answers ─────────────────────────────────────────────────────────

// SaveAnswer stores one answer. See SaveAnswers for the deadline policy.
func (s *ExamSessionService) SaveAnswer(ctx context.Context, sessionID uuid.UUID, studentID int, choice AnswerChoice, now time.Time) (*SaveResult, error) {
	return s.SaveAnswers(ctx, sessionID, studentID, []AnswerChoice{choice}, now)
}

// SaveAnswers upserts a batch of answers. Every question is validated
// against the exam before anything is written. If the effective deadline
// has passed the session is closed through the auto-submission path and an
// *ExpiredError is returned instead of accepting the write.
func (s *ExamSessionService) SaveAnswers(ctx context.Context, sessionID uuid.UUID, studentID int, choices []AnswerChoice, now time.Time) (*SaveResult, error) {
	if len(choices) == 0 {
		return nil, ErrNoAnswers
	}
	if len(choices) > MaxBatchAnswers {
		return nil, ErrTooManyAnswers
	}
	normalized, err := normalizeChoices(choices)
	if err != nil {
		return nil, err
	}

	var (
		res     *SaveResult
		expired *ExpiredError
	)
	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		sess, exam, err := s.lockOwnedSession(ctx, tx, sessionID, studentID)
		if err != nil {
			return err
		}
		if sess.IsSubmitted() {
			return ErrAlreadySubmitted
		}

		remaining := policy.SessionRemaining(sess, exam, now)
		if remaining.HasExpired {
			expired, err = s.closeExpired(ctx, tx, sess, exam, now)
			return err
		}

		if err := s.validateQuestions(ctx, tx, exam.ID, normalized); err != nil {
			return err
		}
		for _, c := range normalized {
			a := &model.Answer{
				SessionID:    sess.ID,
				QuestionID:   c.QuestionID,
				ChosenAnswer: c.Letter,
				UpdatedAt:    now,
			}
			if err := tx.UpsertAnswer(ctx, a); err != nil {
				return fmt.Errorf("upsert answer: %w", err)
			}
		}
		if err := tx.TouchSession(ctx, sess.ID, now); err != nil {
			return fmt.Errorf("touch session: %w", err)
		}
		count, err := tx.CountAnswers(ctx, sess.ID)
		if err != nil {
			return fmt.Errorf("count answers: %w", err)
		}

		res = &SaveResult{
			SessionID:     sess.ID,
			Saved:         len(normalized),
			AnsweredCount: count,
			RemainingTime: remaining,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired != nil {
		return nil, expired
	}
	return res, nil
}

func normalizeChoices(choices []AnswerChoice) ([]AnswerChoice, error) {
	out := make([]AnswerChoice, 0, len(choices))
	for _, c := range choices {
		letter, ok := model.NormalizeOption(c.Letter)
		if !ok {
			return nil, ErrInvalidAnswer
		}
		out = append(out, AnswerChoice{QuestionID: c.QuestionID, Letter: letter})
	}
	return out, nil
}

func (s *ExamSessionService) validateQuestions(ctx context.Context, tx repository.Tx, examID uuid.UUID, choices []AnswerChoice) error {
	if len(choices) == 0 {
		return nil
	}
	questions, err := tx.ListQuestionsByExam(ctx, examID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	known := make(map[uuid.UUID]struct{}, len(questions))
	for _, q := range questions {
		known[q.ID] = struct{}{}
	}
	for _, c := range choices {
		if _, ok := known[c.QuestionID]; !ok {
			return ErrQuestionNotInExam
		}
	}
	return nil
}

// lockOwnedSession locks the session row and loads its exam. Sessions owned
// by another student are reported as not found.
func (s *ExamSessionService) lockOwnedSession(ctx context.Context, tx repository.Tx, sessionID uuid.UUID, studentID int) (*model.Session, *model.Exam, error) {
	sess, err := tx.LockSession(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("lock session: %w", err)
	}
	if sess.StudentID != studentID {
		return nil, nil, ErrSessionNotFound
	}
	exam, err := tx.GetExam(ctx, sess.ExamID)
	if err != nil {
		return nil, nil, fmt.Errorf("get exam: %w", err)
	}
	return sess, exam, nil
}

// ─── Cancel ──────────────────────────────────────────────────────────

// Cancel deletes an active session and its answers while still inside the
// grace window.
func (s *ExamSessionService) Cancel(ctx context.Context, sessionID uuid.UUID, studentID int, now time.Time) error {
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		sess, _, err := s.lockOwnedSession(ctx, tx, sessionID, studentID)
		if err != nil {
			return err
		}
		if sess.IsSubmitted() {
			return ErrAlreadySubmitted
		}
		if !policy.CanCancel(sess.StartedAt, now) {
			return ErrCancelWindow
		}
		return s.discard(ctx, tx, sess.ID)
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("session_id", sessionID.String()).
		Int("student_id", studentID).
		Msg("Exam session cancelled")
	return nil
}

func (s *ExamSessionService) discard(ctx context.Context, tx repository.Tx, sessionID uuid.UUID) error {
	if _, err := tx.DeleteAnswers(ctx, sessionID); err != nil {
		return fmt.Errorf("delete answers: %w", err)
	}
	if err := tx.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ─── Status ──────────────────────────────────────────────────────────

// Status is a read-only projection used by polling clients.
func (s *ExamSessionService) Status(ctx context.Context, sessionID uuid.UUID, studentID int, now time.Time) (*StatusView, error) {
	var view *StatusView
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
		exam, err := tx.GetExam(ctx, sess.ExamID)
		if err != nil {
			return fmt.Errorf("get exam: %w", err)
		}
		count, err := tx.CountAnswers(ctx, sess.ID)
		if err != nil {
			return fmt.Errorf("count answers: %w", err)
		}

		remaining := policy.SessionRemaining(sess, exam, now)
		if sess.IsSubmitted() {
			remaining = policy.Remaining{HasExpired: true, EffectiveDeadline: remaining.EffectiveDeadline}
		}
		view = &StatusView{
			SessionID:       sess.ID,
			ExamID:          sess.ExamID,
			State:           sess.State(),
			RemainingTime:   remaining,
			NeedsAutoSubmit: policy.IsAutoSubmitDue(sess, exam, now),
			AnsweredCount:   count,
			TotalQuestions:  exam.TotalQuestions,
		}
		return nil
	})
	return view, err
}
