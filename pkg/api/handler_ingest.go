package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// defaultHistoryLimit applies when GET /history omits ?limit.
const defaultHistoryLimit = 50

// createSessionHandler handles POST /v1/sessions.
func (s *Server) createSessionHandler(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if _, err := s.auth.EnsureAuthorized(c.Request.Context(), req.UserID, apiKey(c)); err != nil {
		mapServiceError(c, err, "internal_error")
		return
	}

	session, err := s.sessions.CreateSession(c.Request.Context(), req.UserID)
	if err != nil {
		mapServiceError(c, err, "internal_error")
		return
	}
	c.JSON(http.StatusCreated, sessionResponse{
		ID:        session.ID,
		UserID:    session.UserID,
		CreatedAt: session.CreatedAt,
	})
}

// ingestHandler handles POST /v1/ingest: the fast path is write + enqueue.
func (s *Server) ingestHandler(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if _, err := s.auth.EnsureAuthorized(c.Request.Context(), req.UserID, apiKey(c)); err != nil {
		mapServiceError(c, err, "internal_error")
		return
	}

	result, err := s.ingestion.Ingest(c.Request.Context(), req.UserID, req.SessionID, req.Role, req.Content)
	if err != nil {
		mapServiceError(c, err, "extraction_unavailable")
		return
	}
	c.JSON(http.StatusAccepted, ingestResponse{
		Status:    result.Status,
		JobID:     result.JobID,
		ChatLogID: result.ChatLogID,
	})
}

// historyHandler handles GET /v1/history/:session_id.
func (s *Server) historyHandler(c *gin.Context) {
	sessionID, ok := pathUUID(c, "session_id")
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "validation_error", "invalid limit")
			return
		}
		limit = parsed
	}

	// The session resolves the owning user; the key must match that user.
	session, err := s.sessions.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		mapServiceError(c, err, "internal_error")
		return
	}
	if _, err := s.auth.EnsureAuthorized(c.Request.Context(), session.UserID, apiKey(c)); err != nil {
		mapServiceError(c, err, "internal_error")
		return
	}

	logs, err := s.sessions.History(c.Request.Context(), session.UserID, sessionID, limit)
	if err != nil {
		mapServiceError(c, err, "internal_error")
		return
	}
	c.JSON(http.StatusOK, historyResponse{Messages: toMessageDTOs(logs)})
}
