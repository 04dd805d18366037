package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		wantKept bool
	}{
		{"client id kept", "trace-123", true},
		{"empty generated", "", false},
		{"too long generated", strings.Repeat("x", 65), false},
		{"control chars generated", "bad\nid", false},
		{"spaces generated", "has space", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RequestIDMiddleware())
			r.GET("/", func(c *gin.Context) { Success(c, http.StatusOK, nil) })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get("X-Request-ID")
			if got == "" {
				t.Fatal("expected X-Request-ID header")
			}
			if kept := got == tt.header; kept != tt.wantKept {
				t.Errorf("header %q -> %q, kept=%v want %v", tt.header, got, kept, tt.wantKept)
			}

			var body Response
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Metadata.RequestID != got {
				t.Errorf("metadata request_id = %q, want %q", body.Metadata.RequestID, got)
			}
		})
	}
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		page, perPage, total int
		wantPages            int
	}{
		{1, 10, 0, 0},
		{1, 10, 10, 1},
		{2, 10, 11, 2},
		{1, 0, 5, 0},
	}
	for _, tt := range tests {
		p := NewPagination(tt.page, tt.perPage, tt.total)
		if p.TotalPages != tt.wantPages {
			t.Errorf("NewPagination(%d,%d,%d).TotalPages = %d, want %d",
				tt.page, tt.perPage, tt.total, p.TotalPages, tt.wantPages)
		}
	}
}

func TestFailWithDetails(t *testing.T) {
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		FailWithDetails(c, http.StatusBadRequest, ErrTimeExpired, map[string]bool{"time_expired": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Data  interface{} `json:"data"`
		Error struct {
			Code    ErrCode         `json:"code"`
			Message string          `json:"message"`
			Details map[string]bool `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data != nil {
		t.Errorf("data = %v, want null", body.Data)
	}
	if body.Error.Code != ErrTimeExpired || body.Error.Message != GetMessage(ErrTimeExpired) {
		t.Errorf("error = %+v", body.Error)
	}
	if !body.Error.Details["time_expired"] {
		t.Errorf("details = %v", body.Error.Details)
	}
}
