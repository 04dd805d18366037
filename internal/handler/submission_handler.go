package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stemsi/exstem-session/internal/response"
	"github.com/stemsi/exstem-session/internal/service"
	"github.com/stemsi/exstem-session/internal/sweeper"
)

// Sweeper runs one auto-submission pass.
type Sweeper interface {
	RunSweep(ctx context.Context, now time.Time) (*sweeper.Report, error)
}

// SubmissionHandler handles admin endpoints for auto-submission and ranking.
type SubmissionHandler struct {
	sweeper  Sweeper
	rankings *service.RankingService
	now      func() time.Time
	log      zerolog.Logger
}

// NewSubmissionHandler creates a new SubmissionHandler.
func NewSubmissionHandler(s Sweeper, rankings *service.RankingService, log zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		sweeper:  s,
		rankings: rankings,
		now:      time.Now,
		log:      log.With().Str("component", "submission_handler").Logger(),
	}
}

// AutoCheck godoc
// POST /api/v1/submission/auto-check
// Runs one sweep immediately and returns its report.
func (h *SubmissionHandler) AutoCheck(c *gin.Context) {
	report, err := h.sweeper.RunSweep(c.Request.Context(), h.now().UTC())
	if err != nil {
		h.log.Error().Err(err).Msg("Manual sweep failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, report)
}

// ExamRanking godoc
// GET /api/v1/submission/exams/:exam_id/ranking?page=1&per_page=50
func (h *SubmissionHandler) ExamRanking(c *gin.Context) {
	examID, ok := parseID(c, "exam_id")
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	results, err := h.rankings.ExamRanking(c.Request.Context(), examID)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	if results == nil {
		results = []model.Result{}
	}

	start := min((page-1)*perPage, len(results))
	end := min(start+perPage, len(results))

	response.SuccessWithPagination(c, http.StatusOK,
		gin.H{"exam_id": examID, "results": results[start:end]},
		response.NewPagination(page, perPage, len(results)))
}

// RecomputeRanks godoc
// POST /api/v1/submission/exams/:exam_id/recompute-ranks
func (h *SubmissionHandler) RecomputeRanks(c *gin.Context) {
	examID, ok := parseID(c, "exam_id")
	if !ok {
		return
	}

	results, err := h.rankings.RecomputeRanks(c.Request.Context(), examID)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	if results == nil {
		results = []model.Result{}
	}

	response.Success(c, http.StatusOK, gin.H{"exam_id": examID, "results": results})
}
