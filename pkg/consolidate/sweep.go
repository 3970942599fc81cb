package consolidate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rajat1299/memoire/pkg/models"
	"github.com/rajat1299/memoire/pkg/queue"
)

// consolidateActivityWindow selects which users the weekly sweep touches.
const consolidateActivityWindow = 7 * 24 * time.Hour

// UserLister finds the users a sweep should fan out over.
type UserLister interface {
	UsersActiveSince(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
	UsersWithFacts(ctx context.Context) ([]uuid.UUID, error)
}

// Sweeper expands the cron driver jobs into one per-user job each.
type Sweeper struct {
	users UserLister
	queue *queue.Queue
	now   func() time.Time
}

// NewSweeper creates a sweeper. now is injectable for tests; nil means
// time.Now.
func NewSweeper(users UserLister, q *queue.Queue, now func() time.Time) *Sweeper {
	if now == nil {
		now = time.Now
	}
	return &Sweeper{users: users, queue: q, now: now}
}

// HandleConsolidateSweep enqueues consolidate_user for every user active in
// the last week.
func (s *Sweeper) HandleConsolidateSweep(ctx context.Context, _ *models.Job) error {
	ids, err := s.users.UsersActiveSince(ctx, s.now().Add(-consolidateActivityWindow))
	if err != nil {
		return fmt.Errorf("listing active users: %w", err)
	}
	return s.fanOut(ctx, models.JobConsolidateUser, ids)
}

// HandleOptimizeSweep enqueues optimize_user for every user with facts.
func (s *Sweeper) HandleOptimizeSweep(ctx context.Context, _ *models.Job) error {
	ids, err := s.users.UsersWithFacts(ctx)
	if err != nil {
		return fmt.Errorf("listing users with facts: %w", err)
	}
	return s.fanOut(ctx, models.JobOptimizeUser, ids)
}

func (s *Sweeper) fanOut(ctx context.Context, kind models.JobKind, ids []uuid.UUID) error {
	for _, id := range ids {
		if _, err := s.queue.Enqueue(ctx, kind, models.UserJobArgs{UserID: id}); err != nil {
			return fmt.Errorf("enqueueing %s for %s: %w", kind, id, err)
		}
	}
	slog.Info("Sweep fan-out finished", "kind", kind, "users", len(ids))
	return nil
}
