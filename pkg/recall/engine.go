// Package recall is the online read path: it answers "what do we know about
// this user that matters for this query" with hybrid vector + lexical
// retrieval and a balanced fallback for generic self-description prompts.
package recall

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rajat1299/memoire/pkg/config"
	"github.com/rajat1299/memoire/pkg/fuzzy"
	"github.com/rajat1299/memoire/pkg/llm"
	"github.com/rajat1299/memoire/pkg/models"
	"github.com/rajat1299/memoire/pkg/store"
)

// highConfidenceFallback is the confidence floor for the generic top-up.
const highConfidenceFallback = 0.7

// Store is the persistence surface the engine reads from.
type Store interface {
	VectorSearch(ctx context.Context, f store.FactFilters, embedding []float32, maxDistance float64, limit int) ([]models.Fact, error)
	LexicalCandidates(ctx context.Context, f store.FactFilters, limit int) ([]models.Fact, error)
	BalancedFacts(ctx context.Context, f store.FactFilters, perCategory int) ([]models.Fact, error)
	HighConfidenceFacts(ctx context.Context, f store.FactFilters, minConfidence float64, limit int) ([]models.Fact, error)
}

// Request is one recall invocation, already validated by the service layer.
type Request struct {
	UserID            uuid.UUID
	Query             string
	Limit             int
	Categories        []models.FactCategory
	IncludeHistorical bool
	CurrentViewOnly   bool
	MaxAgeDays        *int
}

// RecalledFact is one scored result in final order.
type RecalledFact struct {
	Category      models.FactCategory  `json:"category"`
	Content       string               `json:"content"`
	Confidence    float64              `json:"confidence"`
	TemporalState models.TemporalState `json:"temporal_state"`
}

// Engine runs the retrieval pipeline.
type Engine struct {
	store   Store
	gateway llm.Gateway
	cfg     *config.RecallConfig
	now     func() time.Time
}

// NewEngine creates a recall engine. now is injectable for tests; nil means
// time.Now.
func NewEngine(st Store, gateway llm.Gateway, cfg *config.RecallConfig, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{store: st, gateway: gateway, cfg: cfg, now: now}
}

// Recall returns the facts most relevant to the query, best first.
func (e *Engine) Recall(ctx context.Context, req Request) ([]RecalledFact, error) {
	// 1-2. Intent hints and generic detection.
	hinted := hintCategories(req.Query)
	generic := isGenericQuery(req.Query)

	// 3. Category filter: explicit beats hinted; generic ignores hints.
	var catFilter []models.FactCategory
	switch {
	case len(req.Categories) > 0:
		catFilter = req.Categories
	case len(hinted) > 0 && !generic:
		for _, c := range models.AllCategories {
			if hinted[c] {
				catFilter = append(catFilter, c)
			}
		}
	}

	// 4-6. Shared row filters.
	filters := store.FactFilters{
		UserID:            req.UserID,
		Categories:        catFilter,
		IncludeHistorical: req.IncludeHistorical,
		CurrentViewOnly:   req.CurrentViewOnly,
	}
	if req.MaxAgeDays != nil {
		cutoff := e.now().AddDate(0, 0, -*req.MaxAgeDays)
		filters.CreatedAfter = &cutoff
	}

	// 7-8. Vector stage; embedding failure degrades to lexical silently.
	var results []models.Fact
	if embedding := e.embedQuery(ctx, req.Query); embedding != nil {
		vectorHits, err := e.store.VectorSearch(ctx, filters, embedding, e.cfg.VectorDistanceMax, req.Limit)
		if err != nil {
			return nil, fmt.Errorf("vector search: %w", err)
		}
		results = vectorHits
	}

	// 9. Lexical fill.
	if len(results) < req.Limit {
		filled, err := e.lexicalFill(ctx, req, filters, hinted, results)
		if err != nil {
			return nil, err
		}
		results = filled
	}

	// 10. Generic fallback: balanced slate, then high-confidence top-up.
	if generic && len(results) < req.Limit {
		topped, err := e.genericFallback(ctx, req, filters, results)
		if err != nil {
			return nil, err
		}
		results = topped
	}

	// 11. DTO mapping preserves ordering.
	out := make([]RecalledFact, 0, len(results))
	for _, f := range results {
		state := f.TemporalState
		if state == "" {
			state = models.TemporalCurrent
		}
		out = append(out, RecalledFact{
			Category:      f.Category,
			Content:       f.Content,
			Confidence:    f.Confidence,
			TemporalState: state,
		})
	}
	return out, nil
}

// embedQuery returns the query embedding or nil when embedding fails.
func (e *Engine) embedQuery(ctx context.Context, query string) []float32 {
	vectors, err := e.gateway.Embed(ctx, []string{query})
	if err != nil || len(vectors) != 1 {
		slog.Warn("Query embedding failed; falling back to lexical recall", "error", err)
		return nil
	}
	return vectors[0]
}

// lexicalFill ranks a recent-fact candidate pool by blended token-set
// similarity and confidence, topping results up to the limit.
func (e *Engine) lexicalFill(ctx context.Context, req Request, filters store.FactFilters, hinted map[models.FactCategory]bool, results []models.Fact) ([]models.Fact, error) {
	poolSize := min(max(10*req.Limit, 50), 500)
	candidates, err := e.store.LexicalCandidates(ctx, filters, poolSize)
	if err != nil {
		return nil, fmt.Errorf("lexical candidates: %w", err)
	}

	seen := make(map[uuid.UUID]bool, len(results))
	for _, f := range results {
		seen[f.ID] = true
	}

	type ranked struct {
		fact      models.Fact
		composite float64
	}
	var pool []ranked
	for _, f := range candidates {
		if seen[f.ID] {
			continue
		}
		// Hints gate the pool even when the SQL filter was category-free.
		if len(hinted) > 0 && !hinted[f.Category] {
			continue
		}
		sim := fuzzy.TokenSetRatio(req.Query, f.Content)
		if sim < e.cfg.LexicalSimilarityMin {
			continue
		}
		pool = append(pool, ranked{fact: f, composite: 0.7*sim + 30*f.Confidence})
	}
	sort.SliceStable(pool, func(a, b int) bool { return pool[a].composite > pool[b].composite })

	for _, r := range pool {
		if len(results) == req.Limit {
			break
		}
		results = append(results, r.fact)
	}
	return results, nil
}

// genericFallback tops results up with a balanced per-category slate, then
// with top-confidence facts.
func (e *Engine) genericFallback(ctx context.Context, req Request, filters store.FactFilters, results []models.Fact) ([]models.Fact, error) {
	seen := make(map[uuid.UUID]bool, len(results))
	for _, f := range results {
		seen[f.ID] = true
	}

	// The balanced slate ignores any category filter: the point is breadth.
	balancedFilters := filters
	balancedFilters.Categories = nil
	perCategory := max(1, (req.Limit+len(models.AllCategories)-1)/len(models.AllCategories))
	balanced, err := e.store.BalancedFacts(ctx, balancedFilters, perCategory)
	if err != nil {
		return nil, fmt.Errorf("balanced facts: %w", err)
	}
	for _, f := range balanced {
		if len(results) == req.Limit {
			return results, nil
		}
		if !seen[f.ID] {
			results = append(results, f)
			seen[f.ID] = true
		}
	}

	if len(results) < req.Limit {
		highConf, err := e.store.HighConfidenceFacts(ctx, balancedFilters, highConfidenceFallback, req.Limit-len(results))
		if err != nil {
			return nil, fmt.Errorf("high-confidence facts: %w", err)
		}
		for _, f := range highConf {
			if len(results) == req.Limit {
				break
			}
			if !seen[f.ID] {
				results = append(results, f)
				seen[f.ID] = true
			}
		}
	}
	return results, nil
}
