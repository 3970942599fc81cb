package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rajat1299/memoire/pkg/models"
	"github.com/rajat1299/memoire/pkg/store"
)

// IngestionStore is the persistence surface ingestion needs.
type IngestionStore interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	InsertChatLog(ctx context.Context, sessionID uuid.UUID, role, content string) (*models.ChatLog, error)
}

// Enqueuer is the queue surface services need; satisfied by *queue.Queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind models.JobKind, args any) (*models.Job, error)
}

// IngestResult is what the ingest endpoint returns.
type IngestResult struct {
	ChatLogID uuid.UUID
	JobID     uuid.UUID
	Status    string
}

// IngestionService persists messages and enqueues extraction. The write +
// enqueue fast path never waits on workers: the queue is the buffer.
type IngestionService struct {
	store IngestionStore
	queue Enqueuer
}

// NewIngestionService creates an IngestionService.
func NewIngestionService(st IngestionStore, q Enqueuer) *IngestionService {
	return &IngestionService{store: st, queue: q}
}

// Ingest validates and persists one message for an authorized user, then
// enqueues fact extraction for its session.
func (s *IngestionService) Ingest(ctx context.Context, userID, sessionID uuid.UUID, role, content string) (*IngestResult, error) {
	if !models.ValidRole(role) {
		return nil, NewValidationError("role", fmt.Sprintf("must be %q or %q", models.RoleUser, models.RoleAssistant))
	}
	if strings.TrimSpace(content) == "" {
		return nil, NewValidationError("content", "must not be empty")
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

	chatLog, err := s.store.InsertChatLog(ctx, sessionID, role, content)
	if err != nil {
		return nil, fmt.Errorf("persisting message: %w", err)
	}

	job, err := s.queue.Enqueue(ctx, models.JobExtractFacts, models.ExtractFactsArgs{SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("enqueueing extraction: %w", err)
	}

	return &IngestResult{ChatLogID: chatLog.ID, JobID: job.ID, Status: "queued"}, nil
}
