package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rajat1299/memoire/pkg/models"
	"github.com/rajat1299/memoire/pkg/store"
)

// SessionStore is the persistence surface session management needs.
type SessionStore interface {
	CreateSession(ctx context.Context, userID uuid.UUID) (*models.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	SessionHistory(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.ChatLog, error)
}

// SessionService manages conversation sessions.
type SessionService struct {
	store SessionStore
	users UserStore
}

// NewSessionService creates a SessionService.
func NewSessionService(st SessionStore, users UserStore) *SessionService {
	return &SessionService{store: st, users: users}
}

// CreateSession opens a new session for an existing user.
func (s *SessionService) CreateSession(ctx context.Context, userID uuid.UUID) (*models.Session, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}
	return s.store.CreateSession(ctx, userID)
}

// GetSession fetches a session, mapping missing rows onto the service
// taxonomy.
func (s *SessionService) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return session, nil
}

// History returns up to limit messages of a session the user owns, in
// chronological order.
func (s *SessionService) History(ctx context.Context, userID, sessionID uuid.UUID, limit int) ([]models.ChatLog, error) {
	if limit < 1 {
		return nil, NewValidationError("limit", "must be at least 1")
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if session.UserID != userID {
		return nil, ErrForbidden
	}
	return s.store.SessionHistory(ctx, sessionID, limit)
}
