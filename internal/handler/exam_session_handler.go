package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/middleware"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/response"
	"github.com/stemsi/exstem-session/internal/service"
	"github.com/stemsi/exstem-session/internal/validator"
)

// ExamSessionHandler handles the student-facing session lifecycle.
type ExamSessionHandler struct {
	sessions *service.ExamSessionService
	now      func() time.Time
	log      zerolog.Logger
}

// NewExamSessionHandler creates a new ExamSessionHandler.
func NewExamSessionHandler(sessions *service.ExamSessionService, log zerolog.Logger) *ExamSessionHandler {
	return &ExamSessionHandler{
		sessions: sessions,
		now:      time.Now,
		log:      log.With().Str("component", "exam_session_handler").Logger(),
	}
}

func (h *ExamSessionHandler) clock() time.Time {
	return h.now().UTC()
}

// Start godoc
// POST /api/v1/exam-session/start
// Creates a session (201) or resumes the active one (200).
func (h *ExamSessionHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StartExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	examID, err := uuid.Parse(req.ExamID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	res, err := h.sessions.Start(c.Request.Context(), claims.UserID, examID, h.clock())
	if err != nil {
		failService(c, h.log, err)
		return
	}

	status := http.StatusOK
	if res.Status == service.StartCreated {
		status = http.StatusCreated
	}
	response.Success(c, status, res)
}

// Active godoc
// GET /api/v1/exam-session/active
// Returns the student's in-progress session, used to restore state after a reload.
func (h *ExamSessionHandler) Active(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	view, err := h.sessions.Active(c.Request.Context(), claims.UserID, h.clock())
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// SaveAnswer godoc
// POST /api/v1/exam-session/:id/answers
func (h *ExamSessionHandler) SaveAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	res, err := h.sessions.SaveAnswer(c.Request.Context(), sessionID, claims.UserID,
		service.AnswerChoice{QuestionID: questionID, Letter: req.ChosenAnswer}, h.clock())
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"session_id":     res.SessionID,
		"saved":          res.Saved,
		"answered_count": res.AnsweredCount,
		"remaining_time": res.RemainingTime,
		"is_autosave":    req.IsAutosave,
	})
}

// SaveAnswers godoc
// POST /api/v1/exam-session/:id/answers/batch
// Saves up to 100 answers atomically; one bad entry rejects the whole batch.
func (h *ExamSessionHandler) SaveAnswers(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req model.SaveAnswersRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	choices, ok := toChoices(c, req.Answers)
	if !ok {
		return
	}

	res, err := h.sessions.SaveAnswers(c.Request.Context(), sessionID, claims.UserID, choices, h.clock())
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// Submit godoc
// POST /api/v1/exam-session/:id/submit
// The body is optional; when present its answers are merged before scoring.
func (h *ExamSessionHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req model.SubmitRequest
	if fields := validator.BindOptional(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	choices, ok := toChoices(c, req.Answers)
	if !ok {
		return
	}

	res, err := h.sessions.Submit(c.Request.Context(), sessionID, claims.UserID, choices, h.clock())
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// Cancel godoc
// DELETE /api/v1/exam-session/:id
// Discards the session and its answers within the first 15 minutes.
func (h *ExamSessionHandler) Cancel(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.sessions.Cancel(c.Request.Context(), sessionID, claims.UserID, h.clock()); err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session_id": sessionID, "cancelled": true})
}

// Status godoc
// GET /api/v1/exam-session/:id/status
func (h *ExamSessionHandler) Status(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, ok := parseID(c, "id")
	if !ok {
		return
	}

	view, err := h.sessions.Status(c.Request.Context(), sessionID, claims.UserID, h.clock())
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// Result godoc
// GET /api/v1/exam-session/:id/result
func (h *ExamSessionHandler) Result(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, ok := parseID(c, "id")
	if !ok {
		return
	}

	view, err := h.sessions.Result(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

func toChoices(c *gin.Context, in []model.AnswerInput) ([]service.AnswerChoice, bool) {
	choices := make([]service.AnswerChoice, 0, len(in))
	for _, a := range in {
		qid, err := uuid.Parse(a.QuestionID)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return nil, false
		}
		choices = append(choices, service.AnswerChoice{QuestionID: qid, Letter: a.ChosenAnswer})
	}
	return choices, true
}
