package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dealflow/internal/apperr"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// Fail maps a service error onto the taxonomy's HTTP status. Retryable
// conflicts are flagged in meta so clients know to re-fetch and retry.
func Fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	message := "internal error"
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Code != apperr.CodeInternal {
		message = appErr.Message
	}
	var meta map[string]any
	if apperr.Retryable(err) {
		meta = map[string]any{"retryable": true}
	}
	Error(c, status, message, meta)
}
