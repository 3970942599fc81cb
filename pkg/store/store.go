// Package store owns all persistent state: users, sessions, chat logs, and
// memory facts. Everything is plain SQL over a pgx pool; pgvector powers the
// similarity queries. Workers hold short transactional borrows via the
// Commit* methods; nothing outside this package writes SQL.
package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store implements all persistence against PostgreSQL + pgvector.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store using an existing pool. The caller owns the pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}
