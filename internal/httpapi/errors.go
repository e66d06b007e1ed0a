package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"attentrack/internal/attendance"
)

var errNotFound = errors.New("not found")

type errorResponse struct {
	Error  string                  `json:"error"`
	Fields []attendance.FieldError `json:"fields,omitempty"`
}

// writeError maps store errors onto status codes.
func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *attendance.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, errorResponse{Error: attendance.ErrValidation.Error(), Fields: verr.Fields})
	case errors.Is(err, attendance.ErrConstraintViolation):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, errNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, attendance.ErrOperationFailed):
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("store unavailable")
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "storage unavailable"})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}
