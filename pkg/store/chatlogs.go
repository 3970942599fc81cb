package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajat1299/memoire/pkg/models"
)

// InsertChatLog persists a single message.
func (s *Store) InsertChatLog(ctx context.Context, sessionID uuid.UUID, role, content string) (*models.ChatLog, error) {
	log := &models.ChatLog{ID: uuid.New(), SessionID: sessionID, Role: role, Content: content}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO chat_logs (id, session_id, role, content) VALUES ($1, $2, $3, $4)
		 RETURNING timestamp`,
		log.ID, sessionID, role, content).Scan(&log.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to insert chat log: %w", err)
	}
	return log, nil
}

// GetChatLog fetches a single message by ID.
func (s *Store) GetChatLog(ctx context.Context, id uuid.UUID) (*models.ChatLog, error) {
	log := &models.ChatLog{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, session_id, role, content, timestamp FROM chat_logs WHERE id = $1`, id).
		Scan(&log.ID, &log.SessionID, &log.Role, &log.Content, &log.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat log: %w", err)
	}
	return log, nil
}

// RecentMessages returns the last n messages of a session in chronological
// order — the extraction window.
func (s *Store) RecentMessages(ctx context.Context, sessionID uuid.UUID, n int) ([]models.ChatLog, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, role, content, timestamp FROM (
			SELECT id, session_id, role, content, timestamp
			FROM chat_logs WHERE session_id = $1
			ORDER BY timestamp DESC LIMIT $2
		 ) latest ORDER BY timestamp ASC`,
		sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to read recent messages: %w", err)
	}
	defer rows.Close()
	return scanChatLogs(rows)
}

// SessionHistory returns up to limit messages of a session in chronological
// order from the beginning.
func (s *Store) SessionHistory(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.ChatLog, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, role, content, timestamp
		 FROM chat_logs WHERE session_id = $1
		 ORDER BY timestamp ASC LIMIT $2`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read session history: %w", err)
	}
	defer rows.Close()
	return scanChatLogs(rows)
}

func scanChatLogs(rows pgx.Rows) ([]models.ChatLog, error) {
	var logs []models.ChatLog
	for rows.Next() {
		var log models.ChatLog
		if err := rows.Scan(&log.ID, &log.SessionID, &log.Role, &log.Content, &log.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan chat log: %w", err)
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
