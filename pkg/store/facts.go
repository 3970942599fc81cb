package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajat1299/memoire/pkg/models"
)

const factColumns = `id, user_id, category, content, confidence_score, slot_hint,
	temporal_state, is_essential, source_message_id, superseded_by,
	expires_at, last_refreshed_at, created_at, embedding::text`

func scanFact(row pgx.Row) (*models.Fact, error) {
	f := &models.Fact{}
	var embedding *string
	err := row.Scan(&f.ID, &f.UserID, &f.Category, &f.Content, &f.Confidence,
		&f.SlotHint, &f.TemporalState, &f.IsEssential, &f.SourceMessageID,
		&f.SupersededBy, &f.ExpiresAt, &f.LastRefreshedAt, &f.CreatedAt, &embedding)
	if err != nil {
		return nil, err
	}
	if embedding != nil {
		vec, err := parseEmbedding(*embedding)
		if err != nil {
			return nil, err
		}
		f.Embedding = vec
	}
	return f, nil
}

func scanFacts(rows pgx.Rows) ([]models.Fact, error) {
	var facts []models.Fact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fact: %w", err)
		}
		facts = append(facts, *f)
	}
	return facts, rows.Err()
}

// FactByID fetches a single fact.
func (s *Store) FactByID(ctx context.Context, id uuid.UUID) (*models.Fact, error) {
	f, err := scanFact(s.pool.QueryRow(ctx,
		`SELECT `+factColumns+` FROM memory_facts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fact: %w", err)
	}
	return f, nil
}

// LiveFactsByUser returns every non-expired fact of a user, superseded rows
// included. The extraction worker dedups against this full set so that a
// paraphrase of a superseded fact does not resurface as a new row.
func (s *Store) LiveFactsByUser(ctx context.Context, userID uuid.UUID) ([]models.Fact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+factColumns+` FROM memory_facts
		 WHERE user_id = $1 AND expires_at IS NULL
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load facts: %w", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

// ActiveFactsByUser returns the user's current view: neither superseded nor
// expired, newest first.
func (s *Store) ActiveFactsByUser(ctx context.Context, userID uuid.UUID) ([]models.Fact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+factColumns+` FROM memory_facts
		 WHERE user_id = $1 AND expires_at IS NULL AND superseded_by IS NULL
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active facts: %w", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

// ListFacts returns active facts, optionally restricted to a category.
func (s *Store) ListFacts(ctx context.Context, userID uuid.UUID, category *models.FactCategory, limit int) ([]models.Fact, error) {
	query := `SELECT ` + factColumns + ` FROM memory_facts
		 WHERE user_id = $1 AND expires_at IS NULL AND superseded_by IS NULL`
	args := []any{userID}
	if category != nil {
		args = append(args, *category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list facts: %w", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

// EssentialFacts returns the user's essential slate, strongest first.
func (s *Store) EssentialFacts(ctx context.Context, userID uuid.UUID, limit int) ([]models.Fact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+factColumns+` FROM memory_facts
		 WHERE user_id = $1 AND expires_at IS NULL AND superseded_by IS NULL
		   AND is_essential
		 ORDER BY confidence_score DESC, created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list essential facts: %w", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

// SoftDeleteFact marks a fact expired. Queries treat it as absent afterwards.
func (s *Store) SoftDeleteFact(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE memory_facts SET expires_at = now() WHERE id = $1 AND expires_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to delete fact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either unknown or already expired; distinguish for the API.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM memory_facts WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check fact existence: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

// FactFilters are the shared recall-path row filters.
type FactFilters struct {
	UserID            uuid.UUID
	Categories        []models.FactCategory // empty = all categories
	IncludeHistorical bool                  // false excludes temporal_state = 'past'
	CurrentViewOnly   bool                  // true requires superseded_by IS NULL
	CreatedAfter      *time.Time            // max_age_days cutoff
}

// where renders the filters as SQL starting from the supplied arg offset.
func (f FactFilters) where(args *[]any) string {
	*args = append(*args, f.UserID)
	var b strings.Builder
	fmt.Fprintf(&b, "user_id = $%d AND expires_at IS NULL", len(*args))
	if f.CurrentViewOnly {
		b.WriteString(" AND superseded_by IS NULL")
	}
	if !f.IncludeHistorical {
		*args = append(*args, models.TemporalPast)
		fmt.Fprintf(&b, " AND temporal_state <> $%d", len(*args))
	}
	if len(f.Categories) > 0 {
		cats := make([]string, len(f.Categories))
		for i, c := range f.Categories {
			cats[i] = string(c)
		}
		*args = append(*args, cats)
		fmt.Fprintf(&b, " AND category = ANY($%d)", len(*args))
	}
	if f.CreatedAfter != nil {
		*args = append(*args, *f.CreatedAfter)
		fmt.Fprintf(&b, " AND created_at >= $%d", len(*args))
	}
	return b.String()
}

// VectorSearch returns facts within maxDistance of the query embedding,
// nearest first, with all filters applied at the SQL level.
func (s *Store) VectorSearch(ctx context.Context, f FactFilters, embedding []float32, maxDistance float64, limit int) ([]models.Fact, error) {
	var args []any
	where := f.where(&args)
	args = append(args, serializeEmbedding(embedding))
	vecArg := len(args)
	args = append(args, maxDistance)
	distArg := len(args)
	args = append(args, limit)
	limitArg := len(args)

	query := fmt.Sprintf(
		`SELECT `+factColumns+` FROM memory_facts
		 WHERE %s AND embedding IS NOT NULL
		   AND (embedding <=> $%d::vector) < $%d
		 ORDER BY embedding <=> $%d::vector
		 LIMIT $%d`, where, vecArg, distArg, vecArg, limitArg)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed vector search: %w", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

// LexicalCandidates returns the most recent facts passing the filters, as
// the in-memory rerank pool for fuzzy recall.
func (s *Store) LexicalCandidates(ctx context.Context, f FactFilters, limit int) ([]models.Fact, error) {
	var args []any
	where := f.where(&args)
	args = append(args, limit)

	query := fmt.Sprintf(
		`SELECT `+factColumns+` FROM memory_facts
		 WHERE %s ORDER BY created_at DESC LIMIT $%d`, where, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load lexical candidates: %w", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

// BalancedFacts returns up to perCategory facts for each category, preferring
// essential, then confident, then recent rows. Used by the generic-query
// fallback.
func (s *Store) BalancedFacts(ctx context.Context, f FactFilters, perCategory int) ([]models.Fact, error) {
	var collected []models.Fact
	for _, category := range models.AllCategories {
		scoped := f
		scoped.Categories = []models.FactCategory{category}
		var args []any
		where := scoped.where(&args)
		args = append(args, perCategory)

		query := fmt.Sprintf(
			`SELECT `+factColumns+` FROM memory_facts
			 WHERE %s
			 ORDER BY is_essential DESC, confidence_score DESC, created_at DESC
			 LIMIT $%d`, where, len(args))

		rows, err := s.pool.Query(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to load balanced facts: %w", err)
		}
		facts, err := scanFacts(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		collected = append(collected, facts...)
	}
	return collected, nil
}

// HighConfidenceFacts returns top facts at or above minConfidence regardless
// of category.
func (s *Store) HighConfidenceFacts(ctx context.Context, f FactFilters, minConfidence float64, limit int) ([]models.Fact, error) {
	var args []any
	where := f.where(&args)
	args = append(args, minConfidence)
	confArg := len(args)
	args = append(args, limit)

	query := fmt.Sprintf(
		`SELECT `+factColumns+` FROM memory_facts
		 WHERE %s AND confidence_score >= $%d
		 ORDER BY is_essential DESC, confidence_score DESC, created_at DESC
		 LIMIT $%d`, where, confArg, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load high-confidence facts: %w", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}
