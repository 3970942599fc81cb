package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rajat1299/memoire/pkg/config"
	"github.com/rajat1299/memoire/pkg/models"
	"github.com/rajat1299/memoire/pkg/recall"
)

// DefaultRecallLimit applies when the request omits a limit.
const DefaultRecallLimit = 5

// RecallService validates recall requests and delegates to the engine.
type RecallService struct {
	engine *recall.Engine
	cfg    *config.RecallConfig
}

// NewRecallService creates a RecallService.
func NewRecallService(engine *recall.Engine, cfg *config.RecallConfig) *RecallService {
	return &RecallService{engine: engine, cfg: cfg}
}

// Recall validates the request and runs the retrieval pipeline.
func (s *RecallService) Recall(ctx context.Context, req recall.Request) ([]recall.RecalledFact, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, NewValidationError("query", "must not be empty")
	}
	if req.Limit < 1 || req.Limit > s.cfg.MaxLimit {
		return nil, NewValidationError("limit", fmt.Sprintf("must be between 1 and %d", s.cfg.MaxLimit))
	}
	for _, c := range req.Categories {
		if !c.Valid() {
			return nil, NewValidationError("categories", fmt.Sprintf("unknown category %q", c))
		}
	}
	if req.MaxAgeDays != nil && *req.MaxAgeDays < 1 {
		return nil, NewValidationError("max_age_days", "must be at least 1")
	}

	facts, err := s.engine.Recall(ctx, req)
	if err != nil {
		return nil, err
	}
	if facts == nil {
		facts = []recall.RecalledFact{}
	}
	return facts, nil
}

// Categories parses category names into the typed enum.
func Categories(names []string) ([]models.FactCategory, error) {
	out := make([]models.FactCategory, 0, len(names))
	for _, name := range names {
		c := models.FactCategory(name)
		if !c.Valid() {
			return nil, NewValidationError("categories", fmt.Sprintf("unknown category %q", name))
		}
		out = append(out, c)
	}
	return out, nil
}
