// Package consolidate runs the periodic fact maintenance passes: semantic
// cluster merging, promotion to essential, profile summary synthesis,
// confidence decay, and LLM-guided optimization.
package consolidate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rajat1299/memoire/pkg/config"
	"github.com/rajat1299/memoire/pkg/llm"
	"github.com/rajat1299/memoire/pkg/models"
	"github.com/rajat1299/memoire/pkg/queue"
	"github.com/rajat1299/memoire/pkg/store"
)

// Consolidation thresholds.
const (
	transientRetryDefer = 60 * time.Second
	promotionAge        = 7 * 24 * time.Hour
	promotionConfidence = 0.7
	summaryFactLimit    = 30
	summaryConfidence   = 0.75
)

// Store is the persistence surface the consolidation passes need.
type Store interface {
	ActiveFactsByUser(ctx context.Context, userID uuid.UUID) ([]models.Fact, error)
	CommitConsolidation(ctx context.Context, userID uuid.UUID, commit store.ConsolidationCommit) error
	ApplyDecay(ctx context.Context, staleBefore time.Time, factor, minimum float64) (int64, error)
	TopNonEssentialFacts(ctx context.Context, userID uuid.UUID, limit int) ([]models.Fact, error)
	MarkEssential(ctx context.Context, ids []uuid.UUID) error
}

// Consolidator merges, promotes, and summarizes one user's facts.
type Consolidator struct {
	store   Store
	gateway llm.Gateway
	cfg     *config.FactConfig
	now     func() time.Time
}

// NewConsolidator creates a consolidator. now is injectable for tests; nil
// means time.Now.
func NewConsolidator(st Store, gateway llm.Gateway, cfg *config.FactConfig, now func() time.Time) *Consolidator {
	if now == nil {
		now = time.Now
	}
	return &Consolidator{store: st, gateway: gateway, cfg: cfg, now: now}
}

// profileSummary is the schema-conforming summary reply.
type profileSummary struct {
	Summary   string   `json:"summary"`
	KeyTraits []string `json:"key_traits"`
}

var summarySchema = llm.Schema{
	Name: "profile_summary",
	Schema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"summary": {"type": "string"},
			"key_traits": {"type": "array", "items": {"type": "string"}}
		},
		"required": ["summary", "key_traits"]
	}`),
}

// HandleJob adapts Run to the queue contract.
func (c *Consolidator) HandleJob(ctx context.Context, job *models.Job) error {
	var args models.UserJobArgs
	if err := json.Unmarshal(job.Args, &args); err != nil {
		return fmt.Errorf("invalid consolidate_user args: %w", err)
	}
	if err := c.Run(ctx, args.UserID); err != nil {
		if llm.IsTransient(err) {
			return queue.Retry(transientRetryDefer, err)
		}
		slog.Error("Consolidation failed", "user_id", args.UserID, "error", err)
		return nil
	}
	return nil
}

// Run executes one consolidation pass for the user.
func (c *Consolidator) Run(ctx context.Context, userID uuid.UUID) error {
	facts, err := c.store.ActiveFactsByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading active facts: %w", err)
	}
	if len(facts) == 0 {
		return nil
	}

	commit := store.ConsolidationCommit{
		Supersessions: clusterFacts(facts, c.cfg.SemanticThreshold),
	}

	// Facts losing their cluster are out of the running for promotion and
	// the summary.
	displaced := make(map[uuid.UUID]bool, len(commit.Supersessions))
	for _, sup := range commit.Supersessions {
		displaced[sup.ExistingID] = true
	}

	now := c.now()
	for _, f := range facts {
		if displaced[f.ID] || f.IsEssential {
			continue
		}
		if f.LastRefreshedAt.Sub(f.CreatedAt) >= promotionAge && f.Confidence >= promotionConfidence {
			commit.PromoteIDs = append(commit.PromoteIDs, f.ID)
		}
	}

	summary, err := c.synthesizeSummary(ctx, userID, facts, displaced)
	if err != nil {
		if llm.IsTransient(err) {
			return err
		}
		// Summary is best-effort: the rest of the pass still commits.
		slog.Warn("Profile summary skipped", "user_id", userID, "error", err)
	} else {
		commit.ProfileSummary = summary
	}

	if err := c.store.CommitConsolidation(ctx, userID, commit); err != nil {
		return fmt.Errorf("committing consolidation: %w", err)
	}
	slog.Info("Consolidation finished", "user_id", userID,
		"merged", len(commit.Supersessions), "promoted", len(commit.PromoteIDs),
		"summary", commit.ProfileSummary != nil, "at", now)
	return nil
}

// synthesizeSummary asks the LLM for a third-person profile summary over the
// user's strongest facts.
func (c *Consolidator) synthesizeSummary(ctx context.Context, userID uuid.UUID, facts []models.Fact, displaced map[uuid.UUID]bool) (*models.Fact, error) {
	var selected []models.Fact
	for _, f := range facts {
		if displaced[f.ID] {
			continue
		}
		if f.SlotHint != nil && *f.SlotHint == models.ProfileSummarySlot {
			continue
		}
		if f.IsEssential || f.Confidence >= summaryConfidence {
			selected = append(selected, f)
		}
		if len(selected) == summaryFactLimit {
			break
		}
	}
	if len(selected) == 0 {
		return nil, &llm.Error{Provider: "none", Message: "no facts eligible for summary"}
	}

	var listing strings.Builder
	for _, f := range selected {
		fmt.Fprintf(&listing, "- [%s] %s\n", f.Category, f.Content)
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "You summarize user memory profiles. Write a 2-3 sentence third-person summary of the user from the facts given, plus a short list of key traits."},
		{Role: llm.RoleUser, Content: "Facts about the user:\n" + listing.String()},
	}

	var reply profileSummary
	if err := c.gateway.ChatStructured(ctx, messages, summarySchema, &reply); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reply.Summary) == "" {
		return nil, &llm.Error{Provider: "none", Message: "empty summary"}
	}

	slot := models.ProfileSummarySlot
	fact := &models.Fact{
		ID:            uuid.New(),
		UserID:        userID,
		Category:      models.CategoryBiographical,
		Content:       strings.TrimSpace(reply.Summary),
		Confidence:    1.0,
		SlotHint:      &slot,
		TemporalState: models.TemporalCurrent,
		IsEssential:   true,
	}
	if vectors, err := c.gateway.Embed(ctx, []string{fact.Content}); err == nil && len(vectors) == 1 {
		fact.Embedding = vectors[0]
	}
	return fact, nil
}
