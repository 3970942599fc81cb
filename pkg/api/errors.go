package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rajat1299/memoire/pkg/services"
)

// errorBody is the uniform error payload.
type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// abortWithError writes the taxonomy payload and stops the handler chain.
func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

// mapServiceError translates service-layer errors into taxonomy responses.
// fallbackCode names the 503 bucket for unexpected failures on this route
// (recall_unavailable, extraction_unavailable) or internal_error.
func mapServiceError(c *gin.Context, err error, fallbackCode string) {
	var validErr *services.ValidationError
	switch {
	case errors.As(err, &validErr):
		abortWithError(c, http.StatusBadRequest, "validation_error", validErr.Error())
	case errors.Is(err, services.ErrUnauthorized):
		abortWithError(c, http.StatusUnauthorized, "unauthorized", "Missing API key")
	case errors.Is(err, services.ErrForbidden):
		abortWithError(c, http.StatusForbidden, "forbidden", "Invalid API key")
	case errors.Is(err, services.ErrNotFound):
		abortWithError(c, http.StatusNotFound, "not_found", "Resource not found")
	case errors.Is(err, services.ErrRateLimited):
		abortWithError(c, http.StatusTooManyRequests, "rate_limit_exceeded", "Rate limit exceeded")
	default:
		slog.Error("Unexpected service error", "path", c.FullPath(), "error", err)
		status := http.StatusInternalServerError
		if fallbackCode != "internal_error" {
			status = http.StatusServiceUnavailable
		}
		abortWithError(c, status, fallbackCode, "Unexpected error")
	}
}
