package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/rajat1299/memoire/pkg/models"
	"github.com/rajat1299/memoire/pkg/recall"
)

// createUserResponse returns the new user's ID and its API key — the only
// time the key is ever visible.
type createUserResponse struct {
	ID     uuid.UUID `json:"id"`
	APIKey string    `json:"api_key"`
}

type rotateAPIKeyResponse struct {
	APIKey string `json:"api_key"`
}

type sessionResponse struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type ingestResponse struct {
	Status    string    `json:"status"`
	JobID     uuid.UUID `json:"job_id"`
	ChatLogID uuid.UUID `json:"chat_log_id"`
}

type messageDTO struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type historyResponse struct {
	Messages []messageDTO `json:"messages"`
}

type recallResponse struct {
	RelevantFacts []recall.RecalledFact `json:"relevant_facts"`
}

// factDTO is the full fact representation for listing endpoints.
type factDTO struct {
	ID            uuid.UUID            `json:"id"`
	Category      models.FactCategory  `json:"category"`
	Content       string               `json:"content"`
	Confidence    float64              `json:"confidence"`
	SlotHint      *string              `json:"slot_hint,omitempty"`
	TemporalState models.TemporalState `json:"temporal_state"`
	IsEssential   bool                 `json:"is_essential"`
	CreatedAt     time.Time            `json:"created_at"`
}

type factsResponse struct {
	Facts []factDTO `json:"facts"`
}

type consciousResponse struct {
	EssentialFacts []factDTO `json:"essential_facts"`
}

type factSourceResponse struct {
	FactID          uuid.UUID `json:"fact_id"`
	SourceMessageID uuid.UUID `json:"source_message_id"`
	SessionID       uuid.UUID `json:"session_id"`
	Role            string    `json:"role"`
	Content         string    `json:"content"`
	ContentPreview  string    `json:"content_preview"`
	Timestamp       string    `json:"timestamp"`
}

type consolidateResponse struct {
	Status  string    `json:"status"`
	Message string    `json:"message"`
	JobID   uuid.UUID `json:"job_id"`
}

func toFactDTOs(facts []models.Fact) []factDTO {
	out := make([]factDTO, len(facts))
	for i, f := range facts {
		out[i] = factDTO{
			ID:            f.ID,
			Category:      f.Category,
			Content:       f.Content,
			Confidence:    f.Confidence,
			SlotHint:      f.SlotHint,
			TemporalState: f.TemporalState,
			IsEssential:   f.IsEssential,
			CreatedAt:     f.CreatedAt,
		}
	}
	return out
}

func toMessageDTOs(logs []models.ChatLog) []messageDTO {
	out := make([]messageDTO, len(logs))
	for i, m := range logs {
		out[i] = messageDTO{
			ID:        m.ID,
			SessionID: m.SessionID,
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.Timestamp,
		}
	}
	return out
}
