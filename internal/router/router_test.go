package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/handler"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/ranking"
	"github.com/stemsi/exstem-session/internal/repository/memory"
	"github.com/stemsi/exstem-session/internal/service"
	"github.com/stemsi/exstem-session/internal/sweeper"
	"github.com/stemsi/exstem-session/internal/validator"
)

type testServer struct {
	r    *gin.Engine
	auth *service.AuthService
	exam model.Exam
}

func newTestServer(t *testing.T, checks map[string]handler.CheckFunc) *testServer {
	t.Helper()
	validator.Setup()

	cfg := &config.Config{
		GinMode:   gin.TestMode,
		JWTSecret: "router-secret",
		JWTExpiry: time.Hour,
	}
	log := zerolog.Nop()

	st := memory.NewStore()
	now := time.Now().UTC()
	exam := model.Exam{
		ID:              uuid.New(),
		Title:           "Kimia",
		DurationMinutes: 90,
		AvailableFrom:   now.Add(-time.Hour),
		AvailableUntil:  now.Add(time.Hour),
		TotalQuestions:  1,
		PassingScore:    60,
		IsActive:        true,
	}
	st.PutExam(exam, model.Question{
		ID: uuid.New(), ExamID: exam.ID, QuestionText: "H2O?",
		OptionA: "air", OptionB: "api", OptionC: "tanah", OptionD: "udara",
		CorrectOption: model.OptionA, OrderNum: 1,
	})

	auth := service.NewAuthService(cfg, nil)
	ranker := ranking.NewEngine()
	sessions := service.NewExamSessionService(st, ranker, nil, log)
	rankings := service.NewRankingService(st, ranker, log)
	sw := sweeper.New(st, sessions, rankings, sweeper.Options{}, log)

	r := SetupRouter(auth, &Handlers{
		ExamSession: handler.NewExamSessionHandler(sessions, log),
		Submission:  handler.NewSubmissionHandler(sw, rankings, log),
		Health:      handler.NewHealthHandler(checks, log),
	}, cfg, log)

	return &testServer{r: r, auth: auth, exam: exam}
}

func (s *testServer) token(t *testing.T, tt service.TokenType, userID int, perms ...model.Permission) string {
	t.Helper()
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}
	tok, err := s.auth.IssueToken(tt, userID, names...)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (s *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	ok := newTestServer(t, map[string]handler.CheckFunc{
		"postgres": func(context.Context) error { return nil },
	})
	if w := ok.do(http.MethodGet, "/health", "", ""); w.Code != http.StatusOK {
		t.Fatalf("healthy status = %d", w.Code)
	}

	down := newTestServer(t, map[string]handler.CheckFunc{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})
	w := down.do(http.MethodGet, "/health", "", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"redis":"down"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestStudentRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	student := s.token(t, service.TokenTypeStudent, 42)
	admin := s.token(t, service.TokenTypeAdmin, 1, model.PermissionSubmissionsSweep)
	body := `{"exam_id":"` + s.exam.ID.String() + `"}`

	if w := s.do(http.MethodPost, "/api/v1/exam-session/start", "", body); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d", w.Code)
	}
	if w := s.do(http.MethodPost, "/api/v1/exam-session/start", admin, body); w.Code != http.StatusForbidden {
		t.Fatalf("admin token status = %d", w.Code)
	}

	w := s.do(http.MethodPost, "/api/v1/exam-session/start", student, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("start status = %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	if w := s.do(http.MethodGet, "/api/v1/exam-session/active", student, ""); w.Code != http.StatusOK {
		t.Fatalf("active status = %d", w.Code)
	}
}

func TestSubmissionRoutes_Permissions(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name   string
		token  string
		method string
		path   string
		want   int
	}{
		{
			name:   "sweep with permission",
			token:  s.token(t, service.TokenTypeAdmin, 1, model.PermissionSubmissionsSweep),
			method: http.MethodPost, path: "/api/v1/submission/auto-check",
			want: http.StatusOK,
		},
		{
			name:   "sweep without permission",
			token:  s.token(t, service.TokenTypeAdmin, 2, model.PermissionExamsRead),
			method: http.MethodPost, path: "/api/v1/submission/auto-check",
			want: http.StatusForbidden,
		},
		{
			name:   "student token",
			token:  s.token(t, service.TokenTypeStudent, 42),
			method: http.MethodPost, path: "/api/v1/submission/auto-check",
			want: http.StatusForbidden,
		},
		{
			name:   "ranking with read permission",
			token:  s.token(t, service.TokenTypeAdmin, 2, model.PermissionExamsRead),
			method: http.MethodGet, path: "/api/v1/submission/exams/" + s.exam.ID.String() + "/ranking",
			want: http.StatusOK,
		},
		{
			name:   "recompute needs results permission",
			token:  s.token(t, service.TokenTypeAdmin, 2, model.PermissionExamsRead),
			method: http.MethodPost, path: "/api/v1/submission/exams/" + s.exam.ID.String() + "/recompute-ranks",
			want: http.StatusForbidden,
		},
		{
			name:   "recompute with results permission",
			token:  s.token(t, service.TokenTypeAdmin, 3, model.PermissionResultsManage),
			method: http.MethodPost, path: "/api/v1/submission/exams/" + s.exam.ID.String() + "/recompute-ranks",
			want: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(tt.method, tt.path, tt.token, "")
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}
