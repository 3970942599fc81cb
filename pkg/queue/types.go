// Package queue provides the background job fabric: a Postgres-backed FIFO
// queue with delayed retry, a bounded worker pool, and cron scheduling.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rajat1299/memoire/pkg/models"
)

// Sentinel errors for queue operations.
var (
	// ErrNoJobsAvailable indicates no runnable jobs are in the queue.
	ErrNoJobsAvailable = errors.New("no jobs available")

	// ErrAtCapacity indicates the concurrent job limit has been reached.
	ErrAtCapacity = errors.New("at capacity")
)

// RetryError asks the queue to re-run the job after a deferral. Raised by
// handlers on transient failures (typically LLM rate limits); the job goes
// back to pending with run_at pushed out, until its attempt budget runs dry.
type RetryError struct {
	Defer time.Duration
	Cause error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("retry in %s: %v", e.Defer, e.Cause)
}

func (e *RetryError) Unwrap() error { return e.Cause }

// Retry wraps cause into a RetryError with the given deferral.
func Retry(deferBy time.Duration, cause error) error {
	return &RetryError{Defer: deferBy, Cause: cause}
}

// HandlerFunc processes one job. A nil return completes the job; a
// *RetryError or an error wrapping context.DeadlineExceeded reschedules it;
// any other error fails it permanently.
type HandlerFunc func(ctx context.Context, job *models.Job) error

// PoolHealth contains health information for the worker pool.
type PoolHealth struct {
	IsHealthy   bool           `json:"is_healthy"`
	DBReachable bool           `json:"db_reachable"`
	DBError     string         `json:"db_error,omitempty"`
	QueueDepth  int            `json:"queue_depth"`
	Workers     []WorkerHealth `json:"workers"`
}

// WorkerHealth contains health information for a single worker.
type WorkerHealth struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"` // "idle" or "working"
	CurrentJobID  string    `json:"current_job_id,omitempty"`
	JobsProcessed int       `json:"jobs_processed"`
	LastActivity  time.Time `json:"last_activity"`
}
