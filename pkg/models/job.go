package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobKind identifies the work a queued job carries. Workers dispatch by kind.
type JobKind string

// Job kinds.
const (
	JobExtractFacts     JobKind = "extract_facts"     // args: {"session_id": ...}
	JobConsolidateUser  JobKind = "consolidate_user"  // args: {"user_id": ...}
	JobOptimizeUser     JobKind = "optimize_user"     // args: {"user_id": ...}
	JobDecayStale       JobKind = "decay_stale"       // args: {}
	JobConsolidateSweep JobKind = "consolidate_sweep" // cron fan-out driver
	JobOptimizeSweep    JobKind = "optimize_sweep"    // cron fan-out driver
)

// JobStatus is the lifecycle state of a queued job.
type JobStatus string

// Job statuses.
const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is a unit of background work persisted in the jobs table. Jobs are
// claimed FIFO by run_at, retried with a deferral on transient failures, and
// consumed (at most once per retry budget) on permanent ones.
type Job struct {
	ID          uuid.UUID
	Kind        JobKind
	Args        json.RawMessage
	Status      JobStatus
	Attempts    int
	MaxAttempts int
	RunAt       time.Time
	ClaimedBy   *string
	HeartbeatAt *time.Time
	LastError   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ExtractFactsArgs is the payload of an extract_facts job.
type ExtractFactsArgs struct {
	SessionID uuid.UUID `json:"session_id"`
}

// UserJobArgs is the payload of the per-user consolidate/optimize jobs.
type UserJobArgs struct {
	UserID uuid.UUID `json:"user_id"`
}
