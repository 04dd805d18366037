// Package memory is an in-process repository.Store. Transactions are fully
// serialized and applied copy-on-commit, so it honours the same atomicity and
// uniqueness contract as the PostgreSQL store.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/repository"
)

// ErrReadOnly is returned by writes issued inside WithinReadTx.
var ErrReadOnly = errors.New("write in read-only transaction")

type dataset struct {
	exams     map[uuid.UUID]model.Exam
	questions map[uuid.UUID]model.Question
	sessions  map[uuid.UUID]model.Session
	answers   map[uuid.UUID]model.Answer
	results   map[uuid.UUID]model.Result
}

func newDataset() *dataset {
	return &dataset{
		exams:     map[uuid.UUID]model.Exam{},
		questions: map[uuid.UUID]model.Question{},
		sessions:  map[uuid.UUID]model.Session{},
		answers:   map[uuid.UUID]model.Answer{},
		results:   map[uuid.UUID]model.Result{},
	}
}

func cloneMap[V any](m map[uuid.UUID]V) map[uuid.UUID]V {
	out := make(map[uuid.UUID]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *dataset) clone() *dataset {
	return &dataset{
		exams:     cloneMap(d.exams),
		questions: cloneMap(d.questions),
		sessions:  cloneMap(d.sessions),
		answers:   cloneMap(d.answers),
		results:   cloneMap(d.results),
	}
}

// Store is a mutex-guarded in-memory repository.Store.
type Store struct {
	mu   sync.Mutex
	data *dataset
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{data: newDataset()}
}

// PutExam inserts or replaces an exam together with its questions.
func (s *Store) PutExam(e model.Exam, questions ...model.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.exams[e.ID] = e
	for _, q := range questions {
		q.ExamID = e.ID
		if q.ID == uuid.Nil {
			q.ID = uuid.New()
		}
		s.data.questions[q.ID] = q
	}
}

// SetExamActive flips an exam's active flag.
func (s *Store) SetExamActive(examID uuid.UUID, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.data.exams[examID]; ok {
		e.IsActive = active
		s.data.exams[examID] = e
	}
}

// WithinTx runs fn against a private copy that replaces the live data only
// when fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&memTx{d: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

// WithinReadTx runs fn against the live data; writes fail with ErrReadOnly.
func (s *Store) WithinReadTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memTx{d: s.data, readOnly: true})
}

type memTx struct {
	d        *dataset
	readOnly bool
}

func (t *memTx) writable() error {
	if t.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (t *memTx) GetExam(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	e, ok := t.d.exams[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (t *memTx) ListQuestionsByExam(_ context.Context, examID uuid.UUID) ([]model.Question, error) {
	var out []model.Question
	for _, q := range t.d.questions {
		if q.ExamID == examID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderNum != out[j].OrderNum {
			return out[i].OrderNum < out[j].OrderNum
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (t *memTx) GetSession(_ context.Context, id uuid.UUID) (*model.Session, error) {
	s, ok := t.d.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

// LockSession needs no extra locking: the whole transaction is serialized.
func (t *memTx) LockSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return t.GetSession(ctx, id)
}

func (t *memTx) FindSessionByStudentExam(_ context.Context, studentID int, examID uuid.UUID) (*model.Session, error) {
	for _, s := range t.d.sessions {
		if s.StudentID == studentID && s.ExamID == examID {
			return &s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (t *memTx) FindActiveSessionByStudent(_ context.Context, studentID int) (*model.Session, error) {
	var found *model.Session
	for _, s := range t.d.sessions {
		if s.StudentID != studentID || s.IsSubmitted() {
			continue
		}
		if found == nil || s.StartedAt.After(found.StartedAt) {
			found = &s
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return found, nil
}

func (t *memTx) CreateSession(_ context.Context, s *model.Session) error {
	if err := t.writable(); err != nil {
		return err
	}
	for _, existing := range t.d.sessions {
		if existing.StudentID == s.StudentID && existing.ExamID == s.ExamID {
			return repository.ErrDuplicate
		}
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	t.d.sessions[s.ID] = *s
	return nil
}

func (t *memTx) TouchSession(_ context.Context, id uuid.UUID, at time.Time) error {
	if err := t.writable(); err != nil {
		return err
	}
	s, ok := t.d.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.LastActivityAt = at
	t.d.sessions[id] = s
	return nil
}

func (t *memTx) MarkSessionSubmitted(_ context.Context, id uuid.UUID, submittedAt time.Time, timeSpent int) error {
	if err := t.writable(); err != nil {
		return err
	}
	s, ok := t.d.sessions[id]
	if !ok || s.IsSubmitted() {
		return repository.ErrNotFound
	}
	at, spent := submittedAt, timeSpent
	s.SubmittedAt = &at
	s.TimeSpent = &spent
	s.LastActivityAt = submittedAt
	t.d.sessions[id] = s
	return nil
}

func (t *memTx) DeleteSession(_ context.Context, id uuid.UUID) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.d.sessions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(t.d.sessions, id)
	for rid, r := range t.d.results {
		if r.SessionID == id {
			delete(t.d.results, rid)
		}
	}
	return nil
}

func (t *memTx) ListOpenSessions(_ context.Context) ([]model.OpenSession, error) {
	counts := map[uuid.UUID]int{}
	for _, a := range t.d.answers {
		counts[a.SessionID]++
	}
	var out []model.OpenSession
	for _, s := range t.d.sessions {
		if s.IsSubmitted() {
			continue
		}
		e, ok := t.d.exams[s.ExamID]
		if !ok || !e.IsActive {
			continue
		}
		out = append(out, model.OpenSession{Session: s, Exam: e, AnsweredCount: counts[s.ID]})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Session.StartedAt.Equal(out[j].Session.StartedAt) {
			return out[i].Session.StartedAt.Before(out[j].Session.StartedAt)
		}
		return out[i].Session.ID.String() < out[j].Session.ID.String()
	})
	return out, nil
}

func (t *memTx) ListAnswers(_ context.Context, sessionID uuid.UUID) ([]model.Answer, error) {
	var out []model.Answer
	for _, a := range t.d.answers {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (t *memTx) CountAnswers(_ context.Context, sessionID uuid.UUID) (int, error) {
	n := 0
	for _, a := range t.d.answers {
		if a.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) UpsertAnswer(_ context.Context, a *model.Answer) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.d.sessions[a.SessionID]; !ok {
		return repository.ErrNotFound
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now()
	}
	a.IsCorrect = nil
	for id, existing := range t.d.answers {
		if existing.SessionID == a.SessionID && existing.QuestionID == a.QuestionID {
			a.ID = id
			t.d.answers[id] = *a
			return nil
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	t.d.answers[a.ID] = *a
	return nil
}

func (t *memTx) MarkAnswers(_ context.Context, marks []model.AnswerMark) error {
	if err := t.writable(); err != nil {
		return err
	}
	for _, m := range marks {
		a, ok := t.d.answers[m.AnswerID]
		if !ok {
			continue
		}
		correct := m.IsCorrect
		a.IsCorrect = &correct
		t.d.answers[m.AnswerID] = a
	}
	return nil
}

func (t *memTx) DeleteAnswers(_ context.Context, sessionID uuid.UUID) (int64, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	var n int64
	for id, a := range t.d.answers {
		if a.SessionID == sessionID {
			delete(t.d.answers, id)
			n++
		}
	}
	return n, nil
}

func (t *memTx) GetResultBySession(_ context.Context, sessionID uuid.UUID) (*model.Result, error) {
	for _, r := range t.d.results {
		if r.SessionID == sessionID {
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (t *memTx) CreateResult(_ context.Context, r *model.Result) error {
	if err := t.writable(); err != nil {
		return err
	}
	for _, existing := range t.d.results {
		if existing.SessionID == r.SessionID {
			return repository.ErrDuplicate
		}
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	t.d.results[r.ID] = *r
	return nil
}

func (t *memTx) UpdateResultScore(_ context.Context, r *model.Result) error {
	if err := t.writable(); err != nil {
		return err
	}
	existing, ok := t.d.results[r.ID]
	if !ok {
		return repository.ErrNotFound
	}
	existing.Score = r.Score
	existing.CorrectAnswers = r.CorrectAnswers
	existing.TotalQuestions = r.TotalQuestions
	existing.TimeSpent = r.TimeSpent
	existing.SubmittedAt = r.SubmittedAt
	t.d.results[r.ID] = existing
	return nil
}

func (t *memTx) TouchResult(_ context.Context, id uuid.UUID, submittedAt time.Time) error {
	if err := t.writable(); err != nil {
		return err
	}
	r, ok := t.d.results[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.SubmittedAt = submittedAt
	t.d.results[id] = r
	return nil
}

func (t *memTx) LockExamRanking(context.Context, uuid.UUID) error {
	return t.writable()
}

func (t *memTx) ListResultsByExam(_ context.Context, examID uuid.UUID) ([]model.Result, error) {
	var out []model.Result
	for _, r := range t.d.results {
		if r.ExamID == examID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *memTx) UpdateResultRank(_ context.Context, id uuid.UUID, rank int) error {
	if err := t.writable(); err != nil {
		return err
	}
	r, ok := t.d.results[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.Rank = rank
	t.d.results[id] = r
	return nil
}
