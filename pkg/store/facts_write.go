package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajat1299/memoire/pkg/models"
)

// FactRefresh records a dedup hit: the existing row's last_refreshed_at
// advances and its confidence is raised to the incoming value if higher.
type FactRefresh struct {
	ID         uuid.UUID
	Confidence float64
}

// FactSupersession points an obsolete fact at its replacement.
type FactSupersession struct {
	ExistingID uuid.UUID
	NewID      uuid.UUID
}

// CommitExtraction applies one extraction run in a single transaction:
// inserts (with embeddings already attached or nil), duplicate refreshes,
// and slot supersessions.
func (s *Store) CommitExtraction(ctx context.Context, inserts []*models.Fact, refreshes []FactRefresh, supersessions []FactSupersession) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, f := range inserts {
			if err := insertFact(ctx, tx, f); err != nil {
				return err
			}
		}
		for _, r := range refreshes {
			if _, err := tx.Exec(ctx,
				`UPDATE memory_facts
				 SET last_refreshed_at = now(),
				     confidence_score = GREATEST(confidence_score, $2)
				 WHERE id = $1`, r.ID, r.Confidence); err != nil {
				return fmt.Errorf("failed to refresh fact %s: %w", r.ID, err)
			}
		}
		return applySupersessions(ctx, tx, supersessions)
	})
}

// ConsolidationCommit is the write set of one consolidation run.
type ConsolidationCommit struct {
	Supersessions []FactSupersession
	PromoteIDs    []uuid.UUID
	// ProfileSummary, when non-nil, upserts the single
	// (biographical, "profile_summary") fact.
	ProfileSummary *models.Fact
}

// CommitConsolidation applies cluster supersessions, essential promotions,
// and the profile summary upsert in one transaction.
func (s *Store) CommitConsolidation(ctx context.Context, userID uuid.UUID, commit ConsolidationCommit) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := applySupersessions(ctx, tx, commit.Supersessions); err != nil {
			return err
		}
		if len(commit.PromoteIDs) > 0 {
			if _, err := tx.Exec(ctx,
				`UPDATE memory_facts SET is_essential = TRUE WHERE id = ANY($1)`,
				commit.PromoteIDs); err != nil {
				return fmt.Errorf("failed to promote facts: %w", err)
			}
		}
		if commit.ProfileSummary != nil {
			if err := upsertProfileSummary(ctx, tx, userID, commit.ProfileSummary); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertFact(ctx context.Context, tx pgx.Tx, f *models.Fact) error {
	var embedding *string
	if f.Embedding != nil {
		serialized := serializeEmbedding(f.Embedding)
		embedding = &serialized
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO memory_facts
		 (id, user_id, category, content, confidence_score, slot_hint,
		  temporal_state, is_essential, source_message_id, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::vector)`,
		f.ID, f.UserID, f.Category, f.Content, f.Confidence, f.SlotHint,
		f.TemporalState, f.IsEssential, f.SourceMessageID, embedding)
	if err != nil {
		return fmt.Errorf("failed to insert fact: %w", err)
	}
	return nil
}

func applySupersessions(ctx context.Context, tx pgx.Tx, supersessions []FactSupersession) error {
	for _, sup := range supersessions {
		if sup.ExistingID == sup.NewID {
			continue
		}
		if _, err := tx.Exec(ctx,
			`UPDATE memory_facts SET superseded_by = $2 WHERE id = $1`,
			sup.ExistingID, sup.NewID); err != nil {
			return fmt.Errorf("failed to supersede fact %s: %w", sup.ExistingID, err)
		}
	}
	return nil
}

// upsertProfileSummary replaces the content of the user's profile-summary
// fact, or inserts it on first consolidation.
func upsertProfileSummary(ctx context.Context, tx pgx.Tx, userID uuid.UUID, summary *models.Fact) error {
	var embedding *string
	if summary.Embedding != nil {
		serialized := serializeEmbedding(summary.Embedding)
		embedding = &serialized
	}
	tag, err := tx.Exec(ctx,
		`UPDATE memory_facts
		 SET content = $2, confidence_score = 1.0, is_essential = TRUE,
		     temporal_state = $3, embedding = $4::vector, last_refreshed_at = now()
		 WHERE user_id = $1 AND category = $5 AND slot_hint = $6
		   AND expires_at IS NULL AND superseded_by IS NULL`,
		userID, summary.Content, models.TemporalCurrent, embedding,
		models.CategoryBiographical, models.ProfileSummarySlot)
	if err != nil {
		return fmt.Errorf("failed to update profile summary: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	return insertFact(ctx, tx, summary)
}

// ApplyDecay multiplies the confidence of stale active facts by factor,
// flooring at minimum. Returns the number of rows touched.
func (s *Store) ApplyDecay(ctx context.Context, staleBefore time.Time, factor, minimum float64) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE memory_facts
		 SET confidence_score = GREATEST($3, confidence_score * $2)
		 WHERE expires_at IS NULL AND superseded_by IS NULL
		   AND last_refreshed_at < $1`,
		staleBefore, factor, minimum)
	if err != nil {
		return 0, fmt.Errorf("failed to apply decay: %w", err)
	}
	return tag.RowsAffected(), nil
}

// TopNonEssentialFacts returns the user's highest-confidence active facts
// that are not yet essential — the optimization sample.
func (s *Store) TopNonEssentialFacts(ctx context.Context, userID uuid.UUID, limit int) ([]models.Fact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+factColumns+` FROM memory_facts
		 WHERE user_id = $1 AND expires_at IS NULL AND superseded_by IS NULL
		   AND NOT is_essential
		 ORDER BY confidence_score DESC, created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load optimization sample: %w", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

// MarkEssential flags the given facts as identity-defining.
func (s *Store) MarkEssential(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx,
		`UPDATE memory_facts SET is_essential = TRUE WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("failed to mark facts essential: %w", err)
	}
	return nil
}
