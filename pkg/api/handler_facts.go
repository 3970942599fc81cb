package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rajat1299/memoire/pkg/models"
)

// Listing defaults.
const (
	defaultFactsLimit    = 100
	defaultConsciousMax  = 20
)

// consciousHandler handles GET /v1/conscious/:user_id — the essential slate.
func (s *Server) consciousHandler(c *gin.Context) {
	userID, ok := pathUUID(c, "user_id")
	if !ok {
		return
	}
	if _, err := s.auth.EnsureAuthorized(c.Request.Context(), userID, apiKey(c)); err != nil {
		mapServiceError(c, err, "internal_error")
		return
	}

	maxFacts, ok := queryInt(c, "max_facts", defaultConsciousMax)
	if !ok {
		return
	}
	facts, err := s.facts.EssentialFacts(c.Request.Context(), userID, maxFacts)
	if err != nil {
		mapServiceError(c, err, "internal_error")
		return
	}
	c.JSON(http.StatusOK, consciousResponse{EssentialFacts: toFactDTOs(facts)})
}

// listFactsHandler handles GET /v1/facts/:id where :id is a user ID.
func (s *Server) listFactsHandler(c *gin.Context) {
	userID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if _, err := s.auth.EnsureAuthorized(c.Request.Context(), userID, apiKey(c)); err != nil {
		mapServiceError(c, err, "internal_error")
		return
	}

	limit, ok := queryInt(c, "limit", defaultFactsLimit)
	if !ok {
		return
	}
	var category *models.FactCategory
	if raw := c.Query("category"); raw != "" {
		parsed := models.FactCategory(raw)
		category = &parsed
	}

	facts, err := s.facts.ListFacts(c.Request.Context(), userID, category, limit)
	if err != nil {
		mapServiceError(c, err, "internal_error")
		return
	}
	c.JSON(http.StatusOK, factsResponse{Facts: toFactDTOs(facts)})
}

// deleteFactHandler handles DELETE /v1/facts/:id where :id is a fact ID.
// Soft delete: the row expires, queries treat it as absent.
func (s *Server) deleteFactHandler(c *gin.Context) {
	factID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	// The fact resolves the owning user; the key must match that user.
	fact, err := s.facts.GetFact(c.Request.Context(), factID)
	if err != nil {
		mapServiceError(c, err, "internal_error")
		return
	}
	if _, err := s.auth.EnsureAuthorized(c.Request.Context(), fact.UserID, apiKey(c)); err != nil {
		mapServiceError(c, err, "internal_error")
		return
	}

	if err := s.facts.DeleteFact(c.Request.Context(), fact.UserID, factID); err != nil {
		mapServiceError(c, err, "internal_error")
		return
	}
	c.Status(http.StatusNoContent)
}

// factSourceHandler handles GET /v1/facts/:id/source — fact provenance.
func (s *Server) factSourceHandler(c *gin.Context) {
	factID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	fact, err := s.facts.GetFact(c.Request.Context(), factID)
	if err != nil {
		mapServiceError(c, err, "internal_error")
		return
	}
	if _, err := s.auth.EnsureAuthorized(c.Request.Context(), fact.UserID, apiKey(c)); err != nil {
		mapServiceError(c, err, "internal_error")
		return
	}

	source, err := s.facts.Source(c.Request.Context(), fact.UserID, factID)
	if err != nil {
		mapServiceError(c, err, "internal_error")
		return
	}
	c.JSON(http.StatusOK, factSourceResponse{
		FactID:          source.FactID,
		SourceMessageID: source.SourceMessageID,
		SessionID:       source.SessionID,
		Role:            source.Role,
		Content:         source.Content,
		ContentPreview:  source.ContentPreview,
		Timestamp:       source.Timestamp,
	})
}

// queryInt parses an integer query parameter with a default, writing the
// error response on failure.
func queryInt(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "validation_error", "invalid "+name)
		return 0, false
	}
	return parsed, true
}
