package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"spectra-bot-backend/internal/common/errors"
	"spectra-bot-backend/internal/common/logger"
)

// ErrorHandler recovers panics and renders them as internal errors.
func ErrorHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		requestID := GetRequestID(c)

		logger.Error().
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Interface("panic", recovered).
			Str("stack", string(debug.Stack())).
			Msg("Panic recovered")

		appErr := errors.New(errors.ErrCodeInternal, "Internal server error").
			WithRequestID(requestID).
			WithDetail("panic", fmt.Sprintf("%v", recovered))

		SendError(c, appErr)
	})
}

// RequestID attaches an id to every request, honoring an inbound header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

func GetRequestID(c *gin.Context) string {
	if id, ok := c.Get("request_id"); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

// ErrorResponse is the JSON envelope for failed requests.
type ErrorResponse struct {
	Success   bool             `json:"success"`
	Error     *errors.AppError `json:"error"`
	Timestamp time.Time        `json:"timestamp"`
	RequestID string           `json:"request_id"`
}

// SendError renders an error with the status implied by its code.
func SendError(c *gin.Context, err error) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.Wrap(err, errors.ErrCodeInternal, "Internal server error")
	}
	appErr.WithRequestID(GetRequestID(c))

	c.AbortWithStatusJSON(httpStatus(appErr), ErrorResponse{
		Success:   false,
		Error:     appErr,
		Timestamp: time.Now().UTC(),
		RequestID: appErr.RequestID,
	})
}

func httpStatus(err *errors.AppError) int {
	switch {
	case err.IsValidation():
		return http.StatusBadRequest
	case err.IsNotFound():
		return http.StatusNotFound
	case err.IsConflict():
		return http.StatusConflict
	case err.Code == errors.ErrCodeAlreadyCompleted:
		return http.StatusConflict
	case err.Code == errors.ErrCodeLicenseExpired:
		return http.StatusBadRequest
	case err.Code == errors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case err.Code == errors.ErrCodeRateLimit:
		return http.StatusTooManyRequests
	case err.IsDegradedWrite():
		// The operation took effect; the caller just needs to know
		// persistence lagged.
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}
