// Package services holds the validation and orchestration layer between the
// HTTP surface and the store, queue, and recall engine.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rajat1299/memoire/pkg/models"
	"github.com/rajat1299/memoire/pkg/store"
)

// UserStore is the persistence surface user management needs.
type UserStore interface {
	CreateUser(ctx context.Context, keyHash string) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetAPIKeyHash(ctx context.Context, id uuid.UUID, keyHash *string) error
}

// UserService manages signup and API key lifecycle.
type UserService struct {
	store UserStore
}

// NewUserService creates a UserService.
func NewUserService(st UserStore) *UserService {
	return &UserService{store: st}
}

// CreateUser signs up a new user and returns the user plus the plaintext API
// key. The key is shown exactly once.
func (s *UserService) CreateUser(ctx context.Context) (*models.User, string, error) {
	apiKey, err := GenerateAPIKey()
	if err != nil {
		return nil, "", err
	}
	user, err := s.store.CreateUser(ctx, HashAPIKey(apiKey))
	if err != nil {
		return nil, "", err
	}
	return user, apiKey, nil
}

// RotateAPIKey replaces the user's key and returns the new plaintext key.
func (s *UserService) RotateAPIKey(ctx context.Context, userID uuid.UUID) (string, error) {
	apiKey, err := GenerateAPIKey()
	if err != nil {
		return "", err
	}
	hash := HashAPIKey(apiKey)
	if err := s.store.SetAPIKeyHash(ctx, userID, &hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("rotating api key: %w", err)
	}
	return apiKey, nil
}

// RevokeAPIKey nulls the user's key hash; the user can no longer call the
// API until a new key is issued.
func (s *UserService) RevokeAPIKey(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.SetAPIKeyHash(ctx, userID, nil); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("revoking api key: %w", err)
	}
	return nil
}
