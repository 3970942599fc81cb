package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// createUserHandler handles POST /v1/users. Open endpoint: this is signup.
func (s *Server) createUserHandler(c *gin.Context) {
	user, plainKey, err := s.users.CreateUser(c.Request.Context())
	if err != nil {
		mapServiceError(c, err, "internal_error")
		return
	}
	c.JSON(http.StatusCreated, createUserResponse{ID: user.ID, APIKey: plainKey})
}

// rotateAPIKeyHandler handles POST /v1/users/:id/api-key/rotate. The current
// key authorizes its own replacement.
func (s *Server) rotateAPIKeyHandler(c *gin.Context) {
	userID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if _, err := s.auth.EnsureAuthorized(c.Request.Context(), userID, apiKey(c)); err != nil {
		mapServiceError(c, err, "internal_error")
		return
	}

	newKey, err := s.users.RotateAPIKey(c.Request.Context(), userID)
	if err != nil {
		mapServiceError(c, err, "internal_error")
		return
	}
	c.JSON(http.StatusOK, rotateAPIKeyResponse{APIKey: newKey})
}

// revokeAPIKeyHandler handles DELETE /v1/users/:id/api-key.
func (s *Server) revokeAPIKeyHandler(c *gin.Context) {
	userID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if _, err := s.auth.EnsureAuthorized(c.Request.Context(), userID, apiKey(c)); err != nil {
		mapServiceError(c, err, "internal_error")
		return
	}

	if err := s.users.RevokeAPIKey(c.Request.Context(), userID); err != nil {
		mapServiceError(c, err, "internal_error")
		return
	}
	c.Status(http.StatusNoContent)
}

// consolidateHandler handles POST /v1/users/:id/consolidate.
func (s *Server) consolidateHandler(c *gin.Context) {
	userID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if _, err := s.auth.EnsureAuthorized(c.Request.Context(), userID, apiKey(c)); err != nil {
		mapServiceError(c, err, "internal_error")
		return
	}

	jobID, err := s.facts.TriggerConsolidation(c.Request.Context(), userID)
	if err != nil {
		mapServiceError(c, err, "internal_error")
		return
	}
	c.JSON(http.StatusAccepted, consolidateResponse{
		Status:  "queued",
		Message: "Consolidation scheduled",
		JobID:   jobID,
	})
}

// pathUUID parses a path parameter as a UUID, writing the error response on
// failure.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "validation_error", "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
