package util

import (
	"errors"
	"lesson_bundle_backend/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response is the common response envelope.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse wraps one page of a list.
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

// RespondError maps the service error taxonomy to a status code and a
// user-facing message. Provider and database text never reaches the client.
func RespondError(c *gin.Context, err error) {
	status, message := ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	Error(c, status, message)
}

func ErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrGenerationFailed), errors.Is(err, ErrPersistenceFailed):
		return http.StatusBadGateway, "generation failed, please retry"
	case errors.Is(err, ErrDeletionFailed):
		return http.StatusInternalServerError, "could not delete, nothing was removed"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "Resource not found"
	case errors.Is(err, ErrMalformedSubmission):
		return http.StatusBadRequest, "answers reference questions outside this quiz"
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrManualQuestionsLocked):
		return http.StatusConflict, "submit the auto-graded section first"
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, ErrLockTimeout):
		return http.StatusServiceUnavailable, "another submission is in progress, please retry"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
