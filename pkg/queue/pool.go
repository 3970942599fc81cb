package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rajat1299/memoire/pkg/config"
	"github.com/rajat1299/memoire/pkg/models"
)

// WorkerPool manages a pool of queue workers plus the orphan-recovery sweep.
type WorkerPool struct {
	queue    *Queue
	cfg      *config.QueueConfig
	handlers map[models.JobKind]HandlerFunc
	workers  []*Worker
	limiter  *capacityLimiter
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool
}

// NewWorkerPool creates a worker pool dispatching jobs to handlers by kind.
func NewWorkerPool(queue *Queue, cfg *config.QueueConfig, handlers map[models.JobKind]HandlerFunc) *WorkerPool {
	return &WorkerPool{
		queue:    queue,
		cfg:      cfg,
		handlers: handlers,
		workers:  make([]*Worker, 0, cfg.WorkerCount),
		limiter:  newCapacityLimiter(cfg.MaxConcurrentJobs),
		stopCh:   make(chan struct{}),
	}
}

// Start spawns worker goroutines and the orphan sweep. Safe to call more
// than once; subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) {
	if p.started {
		slog.Warn("Worker pool already started, ignoring duplicate Start call")
		return
	}
	p.started = true

	slog.Info("Starting worker pool", "worker_count", p.cfg.WorkerCount,
		"max_concurrent", p.cfg.MaxConcurrentJobs)

	for i := 0; i < p.cfg.WorkerCount; i++ {
		worker := NewWorker(fmt.Sprintf("worker-%d", i), p.queue, p.cfg, p.handlers, p.limiter)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runOrphanSweep(ctx)
	}()

	slog.Info("Worker pool started")
}

// Stop signals all workers to stop and waits for in-flight jobs to finish.
func (p *WorkerPool) Stop() {
	slog.Info("Stopping worker pool gracefully")
	for _, worker := range p.workers {
		worker.Stop()
	}
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
	slog.Info("Worker pool stopped")
}

// runOrphanSweep periodically requeues jobs whose worker stopped
// heartbeating.
func (p *WorkerPool) runOrphanSweep(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.OrphanScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			recovered, err := p.queue.RecoverOrphans(ctx, p.cfg.OrphanThreshold)
			if err != nil {
				slog.Error("Orphan sweep failed", "error", err)
				continue
			}
			if recovered > 0 {
				slog.Warn("Recovered orphaned jobs", "count", recovered)
			}
		}
	}
}

// Health returns the current health status of the pool.
func (p *WorkerPool) Health(ctx context.Context) *PoolHealth {
	depth, err := p.queue.Depth(ctx)
	health := &PoolHealth{
		DBReachable: err == nil,
		QueueDepth:  depth,
		Workers:     make([]WorkerHealth, len(p.workers)),
	}
	if err != nil {
		health.DBError = err.Error()
	}
	for i, worker := range p.workers {
		health.Workers[i] = worker.Health()
	}
	health.IsHealthy = health.DBReachable && len(p.workers) > 0
	return health
}
