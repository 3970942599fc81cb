// Package models defines the persistent entities of the memory engine.
//
// Entities carry forward foreign keys only; inverse traversals (a user's
// sessions, a session's messages) are derived by query in pkg/store.
package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an end-user of the memory engine. The API key is never stored;
// only its SHA-256 hex digest. A nil hash means the key has been revoked.
type User struct {
	ID         uuid.UUID
	APIKeyHash *string
	CreatedAt  time.Time
}

// Session groups the messages of one conversation. Immutable after creation.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CreatedAt time.Time
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ValidRole reports whether role is one of the accepted message roles.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant
}

// ChatLog is the raw record of a single message sent or received. Immutable.
type ChatLog struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	Role      string
	Content   string
	Timestamp time.Time
}
