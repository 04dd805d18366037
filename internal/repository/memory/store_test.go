package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/repository"
)

func seed(t *testing.T) (*Store, model.Exam) {
	t.Helper()
	st := NewStore()
	exam := model.Exam{
		ID:              uuid.New(),
		Title:           "Memory",
		DurationMinutes: 30,
		AvailableFrom:   time.Now().Add(-time.Hour),
		AvailableUntil:  time.Now().Add(time.Hour),
		TotalQuestions:  1,
		IsActive:        true,
	}
	st.PutExam(exam, model.Question{QuestionText: "1+1", CorrectOption: "B"})
	return st, exam
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	st, exam := seed(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := st.WithinTx(ctx, func(tx repository.Tx) error {
		if err := tx.CreateSession(ctx, &model.Session{StudentID: 7, ExamID: exam.ID, StartedAt: time.Now()}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	err = st.WithinReadTx(ctx, func(tx repository.Tx) error {
		_, err := tx.FindSessionByStudentExam(ctx, 7, exam.ID)
		return err
	})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("rolled back session is visible: %v", err)
	}
}

func TestCreateSession_UniquePerStudentExam(t *testing.T) {
	st, exam := seed(t)
	ctx := context.Background()

	create := func() error {
		return st.WithinTx(ctx, func(tx repository.Tx) error {
			return tx.CreateSession(ctx, &model.Session{StudentID: 7, ExamID: exam.ID, StartedAt: time.Now()})
		})
	}
	if err := create(); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := create(); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("second create: expected ErrDuplicate, got %v", err)
	}
}

func TestWithinReadTx_RejectsWrites(t *testing.T) {
	st, exam := seed(t)
	ctx := context.Background()
	err := st.WithinReadTx(ctx, func(tx repository.Tx) error {
		return tx.CreateSession(ctx, &model.Session{StudentID: 1, ExamID: exam.ID})
	})
	if !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func TestUpsertAnswer_UpdatesInPlace(t *testing.T) {
	st, exam := seed(t)
	ctx := context.Background()
	var qs []model.Question
	sess := &model.Session{StudentID: 3, ExamID: exam.ID, StartedAt: time.Now()}

	err := st.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		if qs, err = tx.ListQuestionsByExam(ctx, exam.ID); err != nil {
			return err
		}
		if err := tx.CreateSession(ctx, sess); err != nil {
			return err
		}
		if err := tx.UpsertAnswer(ctx, &model.Answer{SessionID: sess.ID, QuestionID: qs[0].ID, ChosenAnswer: "A"}); err != nil {
			return err
		}
		return tx.UpsertAnswer(ctx, &model.Answer{SessionID: sess.ID, QuestionID: qs[0].ID, ChosenAnswer: "C"})
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	_ = st.WithinReadTx(ctx, func(tx repository.Tx) error {
		answers, _ := tx.ListAnswers(ctx, sess.ID)
		if len(answers) != 1 || answers[0].ChosenAnswer != "C" {
			t.Fatalf("expected one answer C, got %+v", answers)
		}
		return nil
	})
}

func TestListOpenSessions_SkipsInactiveExams(t *testing.T) {
	st, exam := seed(t)
	ctx := context.Background()
	_ = st.WithinTx(ctx, func(tx repository.Tx) error {
		return tx.CreateSession(ctx, &model.Session{StudentID: 9, ExamID: exam.ID, StartedAt: time.Now()})
	})

	count := func() int {
		var n int
		_ = st.WithinReadTx(ctx, func(tx repository.Tx) error {
			open, err := tx.ListOpenSessions(ctx)
			n = len(open)
			return err
		})
		return n
	}

	if got := count(); got != 1 {
		t.Fatalf("expected 1 open session, got %d", got)
	}
	st.SetExamActive(exam.ID, false)
	if got := count(); got != 0 {
		t.Fatalf("inactive exam sessions must be skipped, got %d", got)
	}
}
