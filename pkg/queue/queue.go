package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rajat1299/memoire/pkg/models"
)

// DefaultMaxAttempts is the retry budget applied when Enqueue callers do not
// override it.
const DefaultMaxAttempts = 5

// Queue is the persistent job store.
type Queue struct {
	pool *pgxpool.Pool
}

// New creates a Queue over an existing pool. The caller owns the pool.
func New(pool *pgxpool.Pool) *Queue {
	return &Queue{pool: pool}
}

// Enqueue adds a job runnable immediately.
func (q *Queue) Enqueue(ctx context.Context, kind models.JobKind, args any) (*models.Job, error) {
	return q.EnqueueAt(ctx, kind, args, time.Now())
}

// EnqueueAt adds a job that becomes runnable at runAt.
func (q *Queue) EnqueueAt(ctx context.Context, kind models.JobKind, args any, runAt time.Time) (*models.Job, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job args: %w", err)
	}
	job := &models.Job{
		ID:          uuid.New(),
		Kind:        kind,
		Args:        payload,
		Status:      models.JobPending,
		MaxAttempts: DefaultMaxAttempts,
		RunAt:       runAt,
	}
	err = q.pool.QueryRow(ctx,
		`INSERT INTO jobs (id, kind, args, status, max_attempts, run_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		job.ID, job.Kind, job.Args, job.Status, job.MaxAttempts, job.RunAt).
		Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job, nil
}

// ClaimNext atomically claims the oldest runnable job using
// FOR UPDATE SKIP LOCKED, so concurrent workers never double-claim.
func (q *Queue) ClaimNext(ctx context.Context, workerID string) (*models.Job, error) {
	var job *models.Job
	err := pgx.BeginFunc(ctx, q.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT id, kind, args, status, attempts, max_attempts, run_at, created_at, updated_at
			 FROM jobs
			 WHERE status = $1 AND run_at <= now()
			 ORDER BY run_at, created_at
			 LIMIT 1
			 FOR UPDATE SKIP LOCKED`, models.JobPending)

		claimed := &models.Job{}
		err := row.Scan(&claimed.ID, &claimed.Kind, &claimed.Args, &claimed.Status,
			&claimed.Attempts, &claimed.MaxAttempts, &claimed.RunAt,
			&claimed.CreatedAt, &claimed.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNoJobsAvailable
		}
		if err != nil {
			return fmt.Errorf("failed to query pending job: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE jobs
			 SET status = $2, claimed_by = $3, attempts = attempts + 1,
			     heartbeat_at = now(), updated_at = now()
			 WHERE id = $1`,
			claimed.ID, models.JobRunning, workerID); err != nil {
			return fmt.Errorf("failed to claim job: %w", err)
		}
		claimed.Status = models.JobRunning
		claimed.Attempts++
		claimed.ClaimedBy = &workerID
		job = claimed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Complete marks a job done.
func (q *Queue) Complete(ctx context.Context, jobID uuid.UUID) error {
	_, err := q.pool.Exec(ctx,
		`UPDATE jobs SET status = $2, updated_at = now() WHERE id = $1`,
		jobID, models.JobCompleted)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}

// Fail marks a job permanently failed with its final error.
func (q *Queue) Fail(ctx context.Context, jobID uuid.UUID, cause error) error {
	msg := cause.Error()
	_, err := q.pool.Exec(ctx,
		`UPDATE jobs SET status = $2, last_error = $3, updated_at = now() WHERE id = $1`,
		jobID, models.JobFailed, msg)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}
	return nil
}

// Reschedule returns a job to pending with a deferred run_at.
func (q *Queue) Reschedule(ctx context.Context, jobID uuid.UUID, deferBy time.Duration, cause error) error {
	msg := cause.Error()
	_, err := q.pool.Exec(ctx,
		`UPDATE jobs
		 SET status = $2, run_at = $3, claimed_by = NULL,
		     heartbeat_at = NULL, last_error = $4, updated_at = now()
		 WHERE id = $1`,
		jobID, models.JobPending, time.Now().Add(deferBy), msg)
	if err != nil {
		return fmt.Errorf("failed to reschedule job: %w", err)
	}
	return nil
}

// Heartbeat refreshes a running job's liveness marker.
func (q *Queue) Heartbeat(ctx context.Context, jobID uuid.UUID) error {
	_, err := q.pool.Exec(ctx,
		`UPDATE jobs SET heartbeat_at = now() WHERE id = $1 AND status = $2`,
		jobID, models.JobRunning)
	return err
}

// Depth counts runnable and scheduled pending jobs.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	var depth int
	err := q.pool.QueryRow(ctx,
		`SELECT count(*) FROM jobs WHERE status = $1`, models.JobPending).Scan(&depth)
	if err != nil {
		return 0, fmt.Errorf("failed to query queue depth: %w", err)
	}
	return depth, nil
}

// RecoverOrphans requeues running jobs whose heartbeat went stale — the
// worker died or lost its claim. Jobs over their attempt budget fail instead.
func (q *Queue) RecoverOrphans(ctx context.Context, threshold time.Duration) (int, error) {
	tag, err := q.pool.Exec(ctx,
		`UPDATE jobs
		 SET status = CASE WHEN attempts >= max_attempts THEN $3 ELSE $2 END,
		     claimed_by = NULL, heartbeat_at = NULL,
		     last_error = COALESCE(last_error, 'orphaned: worker heartbeat lost'),
		     updated_at = now()
		 WHERE status = $4 AND heartbeat_at < $1`,
		time.Now().Add(-threshold), models.JobPending, models.JobFailed, models.JobRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to recover orphans: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
