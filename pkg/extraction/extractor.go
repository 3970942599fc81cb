// Package extraction turns conversation windows into deduplicated,
// slot-superseded memory facts. It is the write side of the fact lifecycle.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rajat1299/memoire/pkg/config"
	"github.com/rajat1299/memoire/pkg/fuzzy"
	"github.com/rajat1299/memoire/pkg/llm"
	"github.com/rajat1299/memoire/pkg/models"
	"github.com/rajat1299/memoire/pkg/queue"
	"github.com/rajat1299/memoire/pkg/store"
)

// transientRetryDefer is how long a transient LLM failure defers the job.
const transientRetryDefer = 30 * time.Second

// Store is the persistence surface the worker needs. Narrow by design so
// tests can fake it.
type Store interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	RecentMessages(ctx context.Context, sessionID uuid.UUID, n int) ([]models.ChatLog, error)
	LiveFactsByUser(ctx context.Context, userID uuid.UUID) ([]models.Fact, error)
	CommitExtraction(ctx context.Context, inserts []*models.Fact, refreshes []store.FactRefresh, supersessions []store.FactSupersession) error
}

// Result summarizes one extraction run.
type Result struct {
	Status     string `json:"status"`
	Extracted  int    `json:"extracted"`
	Saved      int    `json:"saved"`
	Refreshed  int    `json:"refreshed"`
	Superseded int    `json:"superseded"`
}

// Worker is the extraction worker.
type Worker struct {
	store   Store
	gateway llm.Gateway
	cfg     *config.FactConfig
}

// NewWorker creates an extraction worker.
func NewWorker(st Store, gateway llm.Gateway, cfg *config.FactConfig) *Worker {
	return &Worker{store: st, gateway: gateway, cfg: cfg}
}

// HandleJob adapts Run to the queue contract: transient LLM failures defer
// the job for retry; anything else consumes it (the next ingest enqueues a
// fresh extraction over the same window).
func (w *Worker) HandleJob(ctx context.Context, job *models.Job) error {
	var args models.ExtractFactsArgs
	if err := json.Unmarshal(job.Args, &args); err != nil {
		return fmt.Errorf("invalid extract_facts args: %w", err)
	}

	result, err := w.Run(ctx, args.SessionID)
	if err != nil {
		if llm.IsTransient(err) {
			return queue.Retry(transientRetryDefer, err)
		}
		slog.Error("Extraction failed", "session_id", args.SessionID, "error", err)
		return nil
	}
	slog.Info("Extraction finished", "session_id", args.SessionID,
		"status", result.Status, "extracted", result.Extracted,
		"saved", result.Saved, "refreshed", result.Refreshed,
		"superseded", result.Superseded)
	return nil
}

// Run executes one extraction pass over the session's trailing window.
func (w *Worker) Run(ctx context.Context, sessionID uuid.UUID) (*Result, error) {
	// 1. Window.
	messages, err := w.store.RecentMessages(ctx, sessionID, w.cfg.WindowSize)
	if err != nil {
		return nil, fmt.Errorf("reading window: %w", err)
	}
	if len(messages) == 0 {
		return &Result{Status: "no_messages"}, nil
	}
	session, err := w.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("resolving session: %w", err)
	}

	// 2. Structured extraction.
	var response extractionResponse
	if err := w.gateway.ChatStructured(ctx, buildPrompt(messages), extractionSchema, &response); err != nil {
		return nil, err
	}

	// 3-4. Validate and normalize candidates.
	candidates := make([]extractedFact, 0, len(response.Facts))
	for _, raw := range response.Facts {
		candidate, ok := validateCandidate(raw, w.cfg.MinConfidence)
		if !ok {
			continue
		}
		candidate.Content = normalizeContent(candidate.Category, candidate.Content)
		candidates = append(candidates, candidate)
	}

	// 5. Load the user's live facts.
	existing, err := w.store.LiveFactsByUser(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("loading facts: %w", err)
	}

	sourceID := messages[len(messages)-1].ID
	plan := w.plan(session.UserID, sourceID, candidates, existing)

	// 8. Embed staged contents; on failure keep going without vectors.
	if len(plan.inserts) > 0 {
		texts := make([]string, len(plan.inserts))
		for i, f := range plan.inserts {
			texts[i] = f.Content
		}
		vectors, err := w.gateway.Embed(ctx, texts)
		if err != nil {
			slog.Warn("Embedding failed; storing facts without vectors",
				"user_id", session.UserID, "error", err)
		} else {
			for i := range plan.inserts {
				plan.inserts[i].Embedding = vectors[i]
			}
		}
	}

	// 9. Single-transaction commit.
	if err := w.store.CommitExtraction(ctx, plan.inserts, plan.refreshes, plan.supersessions); err != nil {
		return nil, fmt.Errorf("committing extraction: %w", err)
	}

	return &Result{
		Status:     "success",
		Extracted:  len(response.Facts),
		Saved:      len(plan.inserts),
		Refreshed:  len(plan.refreshes),
		Superseded: len(plan.supersessions),
	}, nil
}

// writePlan is the staged outcome of dedup and slot resolution.
type writePlan struct {
	inserts       []*models.Fact
	refreshes     []store.FactRefresh
	supersessions []store.FactSupersession
}

// plan runs steps 6-7: dedup candidates against live facts (and each other),
// stage the survivors, and queue slot supersessions.
func (w *Worker) plan(userID, sourceID uuid.UUID, candidates []extractedFact, existing []models.Fact) writePlan {
	var plan writePlan

	type slotKey struct {
		category models.FactCategory
		slot     string // "" represents NULL
	}

	for _, candidate := range candidates {
		// 6. Dedup against live facts first, then against already staged
		// inserts so one run cannot write two paraphrases.
		if dup := bestDuplicate(candidate.Content, existing, w.cfg.DupThreshold); dup != nil {
			plan.refreshes = append(plan.refreshes, store.FactRefresh{
				ID:         dup.ID,
				Confidence: candidate.Confidence,
			})
			continue
		}
		if stagedDuplicate(candidate.Content, plan.inserts, w.cfg.DupThreshold) {
			continue
		}

		// 7. Stage the new fact.
		fact := &models.Fact{
			ID:              uuid.New(),
			UserID:          userID,
			Category:        candidate.Category,
			Content:         candidate.Content,
			Confidence:      candidate.Confidence,
			SlotHint:        candidate.SlotHint,
			TemporalState:   candidate.TemporalState,
			SourceMessageID: &sourceID,
		}

		// Past facts record history; they never claim a slot.
		if fact.Category.Supersedable() && fact.TemporalState != models.TemporalPast {
			for i := range existing {
				old := &existing[i]
				if old.ExpiresAt != nil || old.Category != fact.Category {
					continue
				}
				if old.TemporalState == models.TemporalPast {
					continue
				}
				if !models.SameSlot(old.SlotHint, fact.SlotHint) {
					continue
				}
				if fact.Confidence >= old.Confidence-0.15 || old.SupersededBy != nil {
					plan.supersessions = append(plan.supersessions, store.FactSupersession{
						ExistingID: old.ID,
						NewID:      fact.ID,
					})
				}
			}
			// An earlier staged fact in the same slot yields to this one.
			key := slotKey{category: fact.Category, slot: slotString(fact.SlotHint)}
			for _, staged := range plan.inserts {
				if staged.Category != fact.Category || staged.TemporalState == models.TemporalPast {
					continue
				}
				stagedKey := slotKey{category: staged.Category, slot: slotString(staged.SlotHint)}
				if stagedKey == key && fact.Confidence >= staged.Confidence-0.15 {
					plan.supersessions = append(plan.supersessions, store.FactSupersession{
						ExistingID: staged.ID,
						NewID:      fact.ID,
					})
				}
			}
		}

		plan.inserts = append(plan.inserts, fact)
	}

	// Redirect earlier supersessions in a slot at the newest staged fact so
	// every chain ends at the slot winner.
	plan.supersessions = redirectToNewest(plan.supersessions, plan.inserts)
	return plan
}

// bestDuplicate returns the live fact most similar to content at or above
// the threshold, or nil.
func bestDuplicate(content string, existing []models.Fact, threshold float64) *models.Fact {
	var best *models.Fact
	bestScore := threshold
	for i := range existing {
		score := fuzzy.TokenSetRatio(content, existing[i].Content)
		if score >= bestScore {
			best = &existing[i]
			bestScore = score
		}
	}
	return best
}

func stagedDuplicate(content string, staged []*models.Fact, threshold float64) bool {
	for _, f := range staged {
		if fuzzy.TokenSetRatio(content, f.Content) >= threshold {
			return true
		}
	}
	return false
}

// redirectToNewest rewrites supersession targets so that when several staged
// facts landed in one slot, every displaced fact points at the last (newest)
// of them.
func redirectToNewest(supersessions []store.FactSupersession, inserts []*models.Fact) []store.FactSupersession {
	// Map each staged fact to its slot's newest member.
	type slotKey struct {
		category models.FactCategory
		slot     string
	}
	newest := make(map[slotKey]uuid.UUID)
	slotOf := make(map[uuid.UUID]slotKey)
	for _, f := range inserts {
		if !f.Category.Supersedable() || f.TemporalState == models.TemporalPast {
			continue
		}
		key := slotKey{category: f.Category, slot: slotString(f.SlotHint)}
		newest[key] = f.ID // later inserts overwrite: last one wins
		slotOf[f.ID] = key
	}
	for i, sup := range supersessions {
		if key, ok := slotOf[sup.NewID]; ok {
			if winner := newest[key]; winner != sup.NewID {
				supersessions[i].NewID = winner
			}
		}
	}
	// A slot winner must not point at itself.
	filtered := supersessions[:0]
	for _, sup := range supersessions {
		if sup.ExistingID != sup.NewID {
			filtered = append(filtered, sup)
		}
	}
	return filtered
}

func slotString(hint *string) string {
	if hint == nil {
		return ""
	}
	return *hint
}
