package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/response"
	"github.com/stemsi/exstem-session/internal/service"
)

// expiredDetails lets the client redirect to the result page instead of
// treating a late write as a generic failure.
type expiredDetails struct {
	TimeExpired   bool      `json:"time_expired"`
	SessionID     uuid.UUID `json:"session_id"`
	ExamID        uuid.UUID `json:"exam_id"`
	AutoSubmitted bool      `json:"auto_submitted"`
}

// failService writes the response for an error returned by the service layer.
func failService(c *gin.Context, log zerolog.Logger, err error) {
	var expired *service.ExpiredError
	if errors.As(err, &expired) {
		response.FailWithDetails(c, http.StatusBadRequest, response.ErrTimeExpired, expiredDetails{
			TimeExpired:   true,
			SessionID:     expired.SessionID,
			ExamID:        expired.ExamID,
			AutoSubmitted: expired.AutoSubmitted,
		})
		return
	}

	var de *service.Error
	if errors.As(err, &de) {
		response.Fail(c, statusFor(de), response.ErrCode(de.Code))
		return
	}

	log.Error().Err(err).
		Str("method", c.Request.Method).
		Str("path", c.FullPath()).
		Msg("Request failed")
	response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
}

func statusFor(de *service.Error) int {
	// An exam outside its window is reported like a missing one.
	if de == service.ErrExamUnavailable {
		return http.StatusNotFound
	}
	switch de.Kind {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindInvalidState, service.KindExpired, service.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// parseID reads a UUID path parameter, writing a 400 when it is malformed.
func parseID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
