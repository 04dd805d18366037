package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-session/internal/model"
)

// Storage errors shared by every Store implementation.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Tx is one unit of work against the exam session store. All reads and
// writes issued through the same Tx commit or roll back together.
type Tx interface {
	GetExam(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	ListQuestionsByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error)

	GetSession(ctx context.Context, id uuid.UUID) (*model.Session, error)
	// LockSession reads the session and holds a row lock until the Tx ends.
	LockSession(ctx context.Context, id uuid.UUID) (*model.Session, error)
	FindSessionByStudentExam(ctx context.Context, studentID int, examID uuid.UUID) (*model.Session, error)
	FindActiveSessionByStudent(ctx context.Context, studentID int) (*model.Session, error)
	// CreateSession returns ErrDuplicate when (student, exam) already has a row.
	CreateSession(ctx context.Context, s *model.Session) error
	TouchSession(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkSessionSubmitted(ctx context.Context, id uuid.UUID, submittedAt time.Time, timeSpent int) error
	DeleteSession(ctx context.Context, id uuid.UUID) error
	// ListOpenSessions returns unsubmitted sessions of active exams only.
	ListOpenSessions(ctx context.Context) ([]model.OpenSession, error)

	ListAnswers(ctx context.Context, sessionID uuid.UUID) ([]model.Answer, error)
	CountAnswers(ctx context.Context, sessionID uuid.UUID) (int, error)
	UpsertAnswer(ctx context.Context, a *model.Answer) error
	MarkAnswers(ctx context.Context, marks []model.AnswerMark) error
	DeleteAnswers(ctx context.Context, sessionID uuid.UUID) (int64, error)

	GetResultBySession(ctx context.Context, sessionID uuid.UUID) (*model.Result, error)
	CreateResult(ctx context.Context, r *model.Result) error
	UpdateResultScore(ctx context.Context, r *model.Result) error
	TouchResult(ctx context.Context, id uuid.UUID, submittedAt time.Time) error
	LockExamRanking(ctx context.Context, examID uuid.UUID) error
	ListResultsByExam(ctx context.Context, examID uuid.UUID) ([]model.Result, error)
	UpdateResultRank(ctx context.Context, id uuid.UUID, rank int) error
}

// Store runs units of work.
type Store interface {
	// WithinTx runs fn in a read-write transaction. The transaction commits
	// when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	// WithinReadTx runs fn in a read-only transaction.
	WithinReadTx(ctx context.Context, fn func(tx Tx) error) error
}
