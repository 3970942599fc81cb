package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// HealthStatus reports database reachability for the health endpoint.
type HealthStatus struct {
	Reachable bool   `json:"reachable"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// Health pings the database and measures round-trip latency.
func Health(ctx context.Context, pool *pgxpool.Pool) HealthStatus {
	start := time.Now()
	err := pool.Ping(ctx)
	status := HealthStatus{
		Reachable: err == nil,
		LatencyMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status
}
