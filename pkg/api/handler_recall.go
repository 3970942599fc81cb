package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rajat1299/memoire/pkg/metrics"
	"github.com/rajat1299/memoire/pkg/recall"
	"github.com/rajat1299/memoire/pkg/services"
)

// recallHandler handles POST /v1/recall.
func (s *Server) recallHandler(c *gin.Context) {
	var req recallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if _, err := s.auth.EnsureAuthorized(c.Request.Context(), req.UserID, apiKey(c)); err != nil {
		mapServiceError(c, err, "internal_error")
		return
	}

	categories, err := services.Categories(req.Categories)
	if err != nil {
		mapServiceError(c, err, "recall_unavailable")
		return
	}

	engineReq := recall.Request{
		UserID:            req.UserID,
		Query:             req.Query,
		Limit:             services.DefaultRecallLimit,
		Categories:        categories,
		IncludeHistorical: req.IncludeHistorical,
		CurrentViewOnly:   true,
		MaxAgeDays:        req.MaxAgeDays,
	}
	if req.Limit != nil {
		engineReq.Limit = *req.Limit
	}
	if req.CurrentViewOnly != nil {
		engineReq.CurrentViewOnly = *req.CurrentViewOnly
	}

	timer := prometheus.NewTimer(metrics.RecallLatency.WithLabelValues("recall"))
	facts, err := s.recall.Recall(c.Request.Context(), engineReq)
	timer.ObserveDuration()
	if err != nil {
		mapServiceError(c, err, "recall_unavailable")
		return
	}
	c.JSON(http.StatusOK, recallResponse{RelevantFacts: facts})
}
