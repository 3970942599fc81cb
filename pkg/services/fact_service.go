package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rajat1299/memoire/pkg/models"
	"github.com/rajat1299/memoire/pkg/store"
)

// FactStore is the persistence surface fact management needs.
type FactStore interface {
	FactByID(ctx context.Context, id uuid.UUID) (*models.Fact, error)
	ListFacts(ctx context.Context, userID uuid.UUID, category *models.FactCategory, limit int) ([]models.Fact, error)
	EssentialFacts(ctx context.Context, userID uuid.UUID, limit int) ([]models.Fact, error)
	SoftDeleteFact(ctx context.Context, id uuid.UUID) error
	GetChatLog(ctx context.Context, id uuid.UUID) (*models.ChatLog, error)
}

// FactSource is the provenance of a fact: the message it was extracted from.
type FactSource struct {
	FactID          uuid.UUID
	SourceMessageID uuid.UUID
	SessionID       uuid.UUID
	Role            string
	Content         string
	ContentPreview  string
	Timestamp       string
}

// sourcePreviewLen caps the preview excerpt of the source message.
const sourcePreviewLen = 120

// FactService serves fact listings, deletion, provenance, and manual
// consolidation triggers.
type FactService struct {
	store FactStore
	queue Enqueuer
}

// NewFactService creates a FactService.
func NewFactService(st FactStore, q Enqueuer) *FactService {
	return &FactService{store: st, queue: q}
}

// GetFact fetches a fact, mapping missing rows onto the service taxonomy.
func (s *FactService) GetFact(ctx context.Context, id uuid.UUID) (*models.Fact, error) {
	fact, err := s.store.FactByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading fact: %w", err)
	}
	return fact, nil
}

// ListFacts returns the user's active facts, optionally by category.
func (s *FactService) ListFacts(ctx context.Context, userID uuid.UUID, category *models.FactCategory, limit int) ([]models.Fact, error) {
	if limit < 1 {
		return nil, NewValidationError("limit", "must be at least 1")
	}
	if category != nil && !category.Valid() {
		return nil, NewValidationError("category", fmt.Sprintf("unknown category %q", *category))
	}
	return s.store.ListFacts(ctx, userID, category, limit)
}

// EssentialFacts returns the user's always-in-context slate.
func (s *FactService) EssentialFacts(ctx context.Context, userID uuid.UUID, maxFacts int) ([]models.Fact, error) {
	if maxFacts < 1 {
		return nil, NewValidationError("max_facts", "must be at least 1")
	}
	return s.store.EssentialFacts(ctx, userID, maxFacts)
}

// DeleteFact soft-deletes a fact the user owns.
func (s *FactService) DeleteFact(ctx context.Context, userID, factID uuid.UUID) error {
	fact, err := s.GetFact(ctx, factID)
	if err != nil {
		return err
	}
	if fact.UserID != userID {
		return ErrForbidden
	}
	if err := s.store.SoftDeleteFact(ctx, factID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("deleting fact: %w", err)
	}
	return nil
}

// Source returns the message a fact was extracted from.
func (s *FactService) Source(ctx context.Context, userID, factID uuid.UUID) (*FactSource, error) {
	fact, err := s.GetFact(ctx, factID)
	if err != nil {
		return nil, err
	}
	if fact.UserID != userID {
		return nil, ErrForbidden
	}
	if fact.SourceMessageID == nil {
		return nil, ErrNotFound
	}

	message, err := s.store.GetChatLog(ctx, *fact.SourceMessageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading source message: %w", err)
	}

	preview := message.Content
	if len(preview) > sourcePreviewLen {
		preview = preview[:sourcePreviewLen] + "…"
	}
	return &FactSource{
		FactID:          fact.ID,
		SourceMessageID: message.ID,
		SessionID:       message.SessionID,
		Role:            message.Role,
		Content:         message.Content,
		ContentPreview:  preview,
		Timestamp:       message.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}, nil
}

// TriggerConsolidation enqueues an immediate consolidation run for the user.
func (s *FactService) TriggerConsolidation(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	job, err := s.queue.Enqueue(ctx, models.JobConsolidateUser, models.UserJobArgs{UserID: userID})
	if err != nil {
		return uuid.Nil, fmt.Errorf("enqueueing consolidation: %w", err)
	}
	return job.ID, nil
}
