package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rajat1299/memoire/pkg/config"
	"github.com/rajat1299/memoire/pkg/models"
)

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// Worker is a single queue worker that polls for and processes jobs.
type Worker struct {
	id       string
	queue    *Queue
	cfg      *config.QueueConfig
	handlers map[models.JobKind]HandlerFunc
	limiter  *capacityLimiter
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Health tracking.
	mu            sync.RWMutex
	status        WorkerStatus
	currentJobID  string
	jobsProcessed int
	lastActivity  time.Time
}

// NewWorker creates a queue worker dispatching to the given handler registry.
func NewWorker(id string, queue *Queue, cfg *config.QueueConfig, handlers map[models.JobKind]HandlerFunc, limiter *capacityLimiter) *Worker {
	return &Worker{
		id:           id,
		queue:        queue,
		cfg:          cfg,
		handlers:     handlers,
		limiter:      limiter,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish its current job.
// Safe to call multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:            w.id,
		Status:        string(w.status),
		CurrentJobID:  w.currentJobID,
		JobsProcessed: w.jobsProcessed,
		LastActivity:  w.lastActivity,
	}
}

// run is the main worker loop.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id)
	log.Info("Worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("Worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoJobsAvailable) || errors.Is(err, ErrAtCapacity) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("Error processing job", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

// sleep waits for the given duration or until stop is signalled.
func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess acquires a capacity slot, claims a job, and runs it to
// completion under its timeout.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	if !w.limiter.tryAcquire() {
		return ErrAtCapacity
	}
	defer w.limiter.release()

	job, err := w.queue.ClaimNext(ctx, w.id)
	if err != nil {
		return err
	}

	log := slog.With("job_id", job.ID, "kind", job.Kind, "worker_id", w.id)
	log.Info("Job claimed", "attempt", job.Attempts)

	w.setStatus(WorkerStatusWorking, job.ID.String())
	defer w.setStatus(WorkerStatusIdle, "")

	jobCtx, cancel := context.WithTimeout(ctx, w.timeoutFor(job.Kind))
	defer cancel()

	heartbeatCtx, stopHeartbeat := context.WithCancel(jobCtx)
	go w.runHeartbeat(heartbeatCtx, job)
	defer stopHeartbeat()

	handler, ok := w.handlers[job.Kind]
	if !ok {
		err := fmt.Errorf("no handler registered for job kind %q", job.Kind)
		log.Error("Dropping job", "error", err)
		return w.queue.Fail(context.Background(), job.ID, err)
	}

	result := handler(jobCtx, job)
	stopHeartbeat()

	// A handler cut short by the job timeout gets rescheduled like any other
	// transient failure.
	if result == nil && jobCtx.Err() != nil {
		result = Retry(w.pollInterval(), jobCtx.Err())
	}

	// Terminal updates use a background context — the job context may
	// already be cancelled.
	switch {
	case result == nil:
		log.Info("Job completed")
		return w.markProcessed(w.queue.Complete(context.Background(), job.ID))
	default:
		var retryErr *RetryError
		if errors.As(result, &retryErr) || errors.Is(result, context.DeadlineExceeded) {
			deferBy := 30 * time.Second
			if retryErr != nil {
				deferBy = retryErr.Defer
			}
			if job.Attempts >= job.MaxAttempts {
				log.Warn("Retry budget exhausted", "attempts", job.Attempts, "error", result)
				return w.markProcessed(w.queue.Fail(context.Background(), job.ID, result))
			}
			log.Warn("Job deferred for retry", "defer", deferBy, "error", result)
			return w.markProcessed(w.queue.Reschedule(context.Background(), job.ID, deferBy, result))
		}
		log.Error("Job failed", "error", result)
		return w.markProcessed(w.queue.Fail(context.Background(), job.ID, result))
	}
}

func (w *Worker) markProcessed(err error) error {
	w.mu.Lock()
	w.jobsProcessed++
	w.mu.Unlock()
	return err
}

// runHeartbeat periodically refreshes the job's liveness marker so the
// orphan sweep leaves it alone.
func (w *Worker) runHeartbeat(ctx context.Context, job *models.Job) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.queue.Heartbeat(ctx, job.ID); err != nil && ctx.Err() == nil {
				slog.Warn("Heartbeat update failed", "job_id", job.ID, "error", err)
			}
		}
	}
}

// timeoutFor returns the per-kind job timeout.
func (w *Worker) timeoutFor(kind models.JobKind) time.Duration {
	if kind == models.JobConsolidateUser {
		return w.cfg.ConsolidateTimeout
	}
	return w.cfg.JobTimeout
}

// pollInterval returns the poll duration with jitter.
func (w *Worker) pollInterval() time.Duration {
	base := w.cfg.PollInterval
	jitter := w.cfg.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status WorkerStatus, jobID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentJobID = jobID
	w.lastActivity = time.Now()
}

// capacityLimiter bounds concurrently running jobs across the pool.
type capacityLimiter struct {
	slots chan struct{}
}

func newCapacityLimiter(n int) *capacityLimiter {
	return &capacityLimiter{slots: make(chan struct{}, n)}
}

func (l *capacityLimiter) tryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

func (l *capacityLimiter) release() {
	<-l.slots
}
