package api

import "github.com/google/uuid"

// createSessionRequest is the body of POST /v1/sessions.
type createSessionRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

// ingestRequest is the body of POST /v1/ingest.
type ingestRequest struct {
	UserID    uuid.UUID `json:"user_id" binding:"required"`
	SessionID uuid.UUID `json:"session_id" binding:"required"`
	Role      string    `json:"role" binding:"required"`
	Content   string    `json:"content" binding:"required"`
}

// recallRequest is the body of POST /v1/recall. Limit and CurrentViewOnly
// are pointers so omitted fields take their documented defaults (5, true).
type recallRequest struct {
	UserID            uuid.UUID `json:"user_id" binding:"required"`
	Query             string    `json:"query"`
	Limit             *int      `json:"limit"`
	Categories        []string  `json:"categories"`
	IncludeHistorical bool      `json:"include_historical"`
	CurrentViewOnly   *bool     `json:"current_view_only"`
	MaxAgeDays        *int      `json:"max_age_days"`
}
