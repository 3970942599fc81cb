package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajat1299/memoire/pkg/models"
	"github.com/rajat1299/memoire/pkg/ratelimit"
	"github.com/rajat1299/memoire/pkg/store"
)

type fakeUserStore struct {
	users map[uuid.UUID]*models.User
}

func (s *fakeUserStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func TestHashAPIKeyIsStable(t *testing.T) {
	assert.Equal(t, HashAPIKey("memori_abc"), HashAPIKey("memori_abc"))
	assert.NotEqual(t, HashAPIKey("memori_abc"), HashAPIKey("memori_abd"))
	assert.Len(t, HashAPIKey("anything"), 64) // sha-256 hex
}

func TestGenerateAPIKeyFormat(t *testing.T) {
	key, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "memori_"))

	other, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func authFixture(t *testing.T, limit int) (*Authorizer, uuid.UUID, string) {
	t.Helper()
	key, err := GenerateAPIKey()
	require.NoError(t, err)
	hash := HashAPIKey(key)
	userID := uuid.New()
	st := &fakeUserStore{users: map[uuid.UUID]*models.User{
		userID: {ID: userID, APIKeyHash: &hash},
	}}
	return NewAuthorizer(st, ratelimit.New(limit, nil)), userID, key
}

func TestEnsureAuthorized(t *testing.T) {
	auth, userID, key := authFixture(t, 0)

	user, err := auth.EnsureAuthorized(context.Background(), userID, key)
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
}

func TestEnsureAuthorizedMissingKey(t *testing.T) {
	auth, userID, _ := authFixture(t, 0)

	_, err := auth.EnsureAuthorized(context.Background(), userID, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestEnsureAuthorizedWrongKey(t *testing.T) {
	auth, userID, _ := authFixture(t, 0)

	_, err := auth.EnsureAuthorized(context.Background(), userID, "memori_wrong")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestEnsureAuthorizedUnknownUser(t *testing.T) {
	auth, _, key := authFixture(t, 0)

	_, err := auth.EnsureAuthorized(context.Background(), uuid.New(), key)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestEnsureAuthorizedRevokedKey(t *testing.T) {
	userID := uuid.New()
	st := &fakeUserStore{users: map[uuid.UUID]*models.User{
		userID: {ID: userID, APIKeyHash: nil},
	}}
	auth := NewAuthorizer(st, ratelimit.New(0, nil))

	_, err := auth.EnsureAuthorized(context.Background(), userID, "memori_anything")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestEnsureAuthorizedRateLimit(t *testing.T) {
	auth, userID, key := authFixture(t, 2)

	for i := 0; i < 2; i++ {
		_, err := auth.EnsureAuthorized(context.Background(), userID, key)
		require.NoError(t, err)
	}
	_, err := auth.EnsureAuthorized(context.Background(), userID, key)
	assert.ErrorIs(t, err, ErrRateLimited)
}
