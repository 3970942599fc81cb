package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rajat1299/memoire/pkg/models"
	"github.com/rajat1299/memoire/pkg/ratelimit"
	"github.com/rajat1299/memoire/pkg/store"
)

// apiKeyPrefix brands issued keys so leaked ones are recognizable.
const apiKeyPrefix = "memori_"

// HashAPIKey returns the SHA-256 hex digest stored in place of the key.
func HashAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

// GenerateAPIKey mints a fresh API key. The key is returned to the caller
// exactly once; only its hash persists.
func GenerateAPIKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return apiKeyPrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

// AuthStore is the persistence surface authorization needs.
type AuthStore interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Authorizer verifies API keys against stored hashes and applies the
// fixed-window rate limit per key hash.
type Authorizer struct {
	store   AuthStore
	limiter *ratelimit.Limiter
}

// NewAuthorizer creates an authorizer.
func NewAuthorizer(st AuthStore, limiter *ratelimit.Limiter) *Authorizer {
	return &Authorizer{store: st, limiter: limiter}
}

// EnsureAuthorized checks that apiKey belongs to the user and that the key's
// request budget allows the call. Returns the user on success.
func (a *Authorizer) EnsureAuthorized(ctx context.Context, userID uuid.UUID, apiKey string) (*models.User, error) {
	if apiKey == "" {
		return nil, ErrUnauthorized
	}

	hashed := HashAPIKey(apiKey)
	user, err := a.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Unknown user and wrong key are indistinguishable on purpose.
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if user.APIKeyHash == nil ||
		subtle.ConstantTimeCompare([]byte(*user.APIKeyHash), []byte(hashed)) != 1 {
		return nil, ErrForbidden
	}

	if !a.limiter.Allow(hashed) {
		return nil, ErrRateLimited
	}
	return user, nil
}
