package consolidate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rajat1299/memoire/pkg/models"
)

// Decay tunables.
const (
	decayStaleAfter = 30 * 24 * time.Hour
	decayFactor     = 0.9
	decayFloor      = 0.1
)

// DecayWorker applies confidence decay to facts nobody has refreshed lately.
type DecayWorker struct {
	store Store
	now   func() time.Time
}

// NewDecayWorker creates a decay worker. now is injectable for tests; nil
// means time.Now.
func NewDecayWorker(st Store, now func() time.Time) *DecayWorker {
	if now == nil {
		now = time.Now
	}
	return &DecayWorker{store: st, now: now}
}

// HandleJob runs one decay pass across all users.
func (w *DecayWorker) HandleJob(ctx context.Context, _ *models.Job) error {
	cutoff := w.now().Add(-decayStaleAfter)
	touched, err := w.store.ApplyDecay(ctx, cutoff, decayFactor, decayFloor)
	if err != nil {
		return fmt.Errorf("applying decay: %w", err)
	}
	slog.Info("Decay pass finished", "facts_decayed", touched)
	return nil
}
