package consolidate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/rajat1299/memoire/pkg/llm"
	"github.com/rajat1299/memoire/pkg/models"
	"github.com/rajat1299/memoire/pkg/queue"
)

// optimizeSampleLimit caps how many facts one optimization pass shows the
// model.
const optimizeSampleLimit = 200

// Optimizer asks the LLM which of a user's facts are identity-defining and
// flags them essential.
type Optimizer struct {
	store   Store
	gateway llm.Gateway
}

// NewOptimizer creates an optimizer.
func NewOptimizer(st Store, gateway llm.Gateway) *Optimizer {
	return &Optimizer{store: st, gateway: gateway}
}

type essentialIndices struct {
	Indices []int `json:"indices"`
}

var essentialSchema = llm.Schema{
	Name: "essential_indices",
	Schema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"indices": {"type": "array", "items": {"type": "integer"}}
		},
		"required": ["indices"]
	}`),
}

// HandleJob adapts Run to the queue contract.
func (o *Optimizer) HandleJob(ctx context.Context, job *models.Job) error {
	var args models.UserJobArgs
	if err := json.Unmarshal(job.Args, &args); err != nil {
		return fmt.Errorf("invalid optimize_user args: %w", err)
	}
	if err := o.Run(ctx, args.UserID); err != nil {
		if llm.IsTransient(err) {
			return queue.Retry(transientRetryDefer, err)
		}
		slog.Error("Optimization failed", "user_id", args.UserID, "error", err)
		return nil
	}
	return nil
}

// Run executes one optimization pass for the user.
func (o *Optimizer) Run(ctx context.Context, userID uuid.UUID) error {
	facts, err := o.store.TopNonEssentialFacts(ctx, userID, optimizeSampleLimit)
	if err != nil {
		return fmt.Errorf("loading optimization sample: %w", err)
	}
	if len(facts) == 0 {
		return nil
	}

	var listing strings.Builder
	for i, f := range facts {
		fmt.Fprintf(&listing, "%d. [%s] %s\n", i, f.Category, f.Content)
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "You curate user memory. From the numbered facts, return the indices of the ones that are identity-defining — facts that should be present in every conversation with this user. Return few; most facts are not identity-defining."},
		{Role: llm.RoleUser, Content: listing.String()},
	}

	var reply essentialIndices
	if err := o.gateway.ChatStructured(ctx, messages, essentialSchema, &reply); err != nil {
		return err
	}

	var ids []uuid.UUID
	for _, idx := range reply.Indices {
		if idx >= 0 && idx < len(facts) {
			ids = append(ids, facts[idx].ID)
		}
	}
	if err := o.store.MarkEssential(ctx, ids); err != nil {
		return fmt.Errorf("marking essentials: %w", err)
	}
	slog.Info("Optimization finished", "user_id", userID, "marked_essential", len(ids))
	return nil
}
