package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/rajat1299/memoire/pkg/models"
)

// CronEntry binds a cron expression to a job kind the scheduler enqueues.
type CronEntry struct {
	Expr string
	Kind models.JobKind
}

// DefaultSchedule is the production cron plan: optimization four times a
// day, decay nightly, consolidation weekly on Sunday.
var DefaultSchedule = []CronEntry{
	{Expr: "0 0,6,12,18 * * *", Kind: models.JobOptimizeSweep},
	{Expr: "0 3 * * *", Kind: models.JobDecayStale},
	{Expr: "0 2 * * 0", Kind: models.JobConsolidateSweep},
}

// Scheduler evaluates cron entries once a minute and enqueues the matching
// fan-out jobs. Duplicate fires across restarts are harmless: every driven
// job is idempotent.
type Scheduler struct {
	queue    *Queue
	entries  []CronEntry
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler over the given entries.
func NewScheduler(queue *Queue, entries []CronEntry) *Scheduler {
	return &Scheduler{
		queue:   queue,
		entries: entries,
		stopCh:  make(chan struct{}),
	}
}

// Start begins the minute tick loop in a goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop halts the tick loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()
	slog.Info("Scheduler started", "entries", len(s.entries))

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			slog.Info("Scheduler stopped")
			return
		case <-ctx.Done():
			slog.Info("Context cancelled, scheduler stopped")
			return
		case now := <-ticker.C:
			s.tick(ctx, now.UTC().Truncate(time.Minute))
		}
	}
}

// tick enqueues one job per entry whose expression matches the current
// minute.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	gron := gronx.New()
	for _, entry := range s.entries {
		due, err := gron.IsDue(entry.Expr, now)
		if err != nil {
			slog.Error("Invalid cron expression", "expr", entry.Expr, "error", err)
			continue
		}
		if !due {
			continue
		}
		job, err := s.queue.Enqueue(ctx, entry.Kind, map[string]any{})
		if err != nil {
			slog.Error("Failed to enqueue scheduled job", "kind", entry.Kind, "error", err)
			continue
		}
		slog.Info("Scheduled job enqueued", "kind", entry.Kind, "job_id", job.ID)
	}
}
