package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajat1299/memoire/pkg/models"
)

// CreateUser inserts a new user with the given API key hash.
func (s *Store) CreateUser(ctx context.Context, keyHash string) (*models.User, error) {
	user := &models.User{ID: uuid.New(), APIKeyHash: &keyHash}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, api_key_hash) VALUES ($1, $2) RETURNING created_at`,
		user.ID, keyHash).Scan(&user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUser fetches a user by ID.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, api_key_hash, created_at FROM users WHERE id = $1`, id).
		Scan(&user.ID, &user.APIKeyHash, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// SetAPIKeyHash rotates (non-nil) or revokes (nil) a user's API key hash.
func (s *Store) SetAPIKeyHash(ctx context.Context, id uuid.UUID, keyHash *string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET api_key_hash = $2 WHERE id = $1`, id, keyHash)
	if err != nil {
		return fmt.Errorf("failed to update api key hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UsersWithFacts returns IDs of users that have at least one fact. Used by
// the optimize fan-out driver.
func (s *Store) UsersWithFacts(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT user_id FROM memory_facts`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users with facts: %w", err)
	}
	defer rows.Close()
	return scanUUIDs(rows)
}

// UsersActiveSince returns IDs of users with any ingested message after
// cutoff. Used by the weekly consolidation fan-out driver.
func (s *Store) UsersActiveSince(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT s.user_id
		 FROM sessions s
		 JOIN chat_logs c ON c.session_id = s.id
		 WHERE c.timestamp >= $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	defer rows.Close()
	return scanUUIDs(rows)
}

func scanUUIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
