package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajat1299/memoire/pkg/models"
)

// CreateSession inserts a new session for the user.
func (s *Store) CreateSession(ctx context.Context, userID uuid.UUID) (*models.Session, error) {
	sess := &models.Session{ID: uuid.New(), UserID: userID}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO sessions (id, user_id) VALUES ($1, $2) RETURNING created_at`,
		sess.ID, userID).Scan(&sess.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// GetSession fetches a session by ID.
func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	sess := &models.Session{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, created_at FROM sessions WHERE id = $1`, id).
		Scan(&sess.ID, &sess.UserID, &sess.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return sess, nil
}
