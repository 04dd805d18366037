package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/response"
	"github.com/stemsi/exstem-session/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testAuth() *service.AuthService {
	return service.NewAuthService(&config.Config{JWTSecret: "middleware-secret", JWTExpiry: time.Hour}, nil)
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) response.ErrCode {
	t.Helper()
	var body response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	if body.Error == nil {
		return ""
	}
	return body.Error.Code
}

func TestRequireStudentJWT(t *testing.T) {
	auth := testAuth()
	student, _ := auth.IssueToken(service.TokenTypeStudent, 7)
	admin, _ := auth.IssueToken(service.TokenTypeAdmin, 1)

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantErr  response.ErrCode
	}{
		{"missing header", "", http.StatusUnauthorized, response.ErrTokenRequired},
		{"not bearer", "Basic abc", http.StatusUnauthorized, response.ErrTokenRequired},
		{"garbage token", "Bearer nope", http.StatusUnauthorized, response.ErrTokenInvalid},
		{"admin token", "Bearer " + admin, http.StatusForbidden, response.ErrStudentAccessOnly},
		{"student token", "Bearer " + student, http.StatusOK, ""},
		{"lowercase scheme", "bearer " + student, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/", RequireStudentJWT(auth), func(c *gin.Context) {
				claims := GetClaims(c)
				response.Success(c, http.StatusOK, gin.H{"user_id": claims.UserID})
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantCode, w.Body.String())
			}
			if got := errorCode(t, w); got != tt.wantErr {
				t.Errorf("error code = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestRequirePermission(t *testing.T) {
	auth := testAuth()
	sweeper, _ := auth.IssueToken(service.TokenTypeAdmin, 1, string(model.PermissionSubmissionsSweep))
	reader, _ := auth.IssueToken(service.TokenTypeAdmin, 2, string(model.PermissionExamsRead))

	r := gin.New()
	r.POST("/sweep",
		RequireAdminJWT(auth),
		RequirePermission(model.PermissionSubmissionsSweep),
		func(c *gin.Context) { response.Success(c, http.StatusOK, nil) },
	)

	tests := []struct {
		name     string
		token    string
		wantCode int
	}{
		{"has permission", sweeper, http.StatusOK},
		{"lacks permission", reader, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/sweep", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestRequirePermission_NoClaims(t *testing.T) {
	r := gin.New()
	r.GET("/", RequirePermission(model.PermissionExamsRead), func(c *gin.Context) {
		response.Success(c, http.StatusOK, nil)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(3, time.Minute)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.allow("student:1") {
			t.Fatalf("request %d rejected", i+1)
		}
	}
	if rl.allow("student:1") {
		t.Fatal("fourth request within the interval allowed")
	}
	if !rl.allow("student:2") {
		t.Fatal("other caller should have its own bucket")
	}

	now = now.Add(time.Minute)
	if !rl.allow("student:1") {
		t.Fatal("bucket not refilled after one interval")
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	r := gin.New()
	r.GET("/", rl.Middleware(), func(c *gin.Context) { response.Success(c, http.StatusOK, nil) })

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))

	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d", first.Code)
	}
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", second.Code)
	}
	if got := errorCode(t, second); got != response.ErrRateLimitExceeded {
		t.Errorf("error code = %q", got)
	}
}

func TestNoStore(t *testing.T) {
	r := gin.New()
	r.GET("/", NoStore(), func(c *gin.Context) { response.Success(c, http.StatusOK, nil) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := w.Header().Get("Cache-Control"); !strings.Contains(got, "no-store") {
		t.Errorf("Cache-Control = %q", got)
	}
}

func TestBrotli(t *testing.T) {
	big := strings.Repeat("soal ujian ", 200)

	r := gin.New()
	r.Use(Brotli())
	r.GET("/big", func(c *gin.Context) { c.String(http.StatusOK, big) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	t.Run("large body compressed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/big", nil)
		req.Header.Set("Accept-Encoding", "gzip, br;q=0.9")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if got := w.Header().Get("Content-Encoding"); got != "br" {
			t.Fatalf("Content-Encoding = %q, want br", got)
		}
		plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if string(plain) != big {
			t.Error("decoded body differs")
		}
	})

	t.Run("small body passes through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/small", nil)
		req.Header.Set("Accept-Encoding", "br")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if got := w.Header().Get("Content-Encoding"); got != "" {
			t.Errorf("Content-Encoding = %q, want none", got)
		}
		if w.Body.String() != "ok" {
			t.Errorf("body = %q", w.Body.String())
		}
	})

	t.Run("client without br", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/big", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if got := w.Header().Get("Content-Encoding"); got != "" {
			t.Errorf("Content-Encoding = %q, want none", got)
		}
		if w.Body.String() != big {
			t.Error("body altered")
		}
	})
}
