package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/rajat1299/memoire/pkg/models"
)

func TestFactFiltersWhereMinimal(t *testing.T) {
	f := FactFilters{UserID: uuid.New(), IncludeHistorical: true}
	var args []any
	clause := f.where(&args)

	assert.Equal(t, "user_id = $1 AND expires_at IS NULL", clause)
	assert.Equal(t, []any{f.UserID}, args)
}

func TestFactFiltersWhereFull(t *testing.T) {
	cutoff := time.Now()
	f := FactFilters{
		UserID:          uuid.New(),
		Categories:      []models.FactCategory{models.CategoryBiographical, models.CategoryWorkContext},
		CurrentViewOnly: true,
		CreatedAfter:    &cutoff,
	}
	var args []any
	clause := f.where(&args)

	assert.Contains(t, clause, "superseded_by IS NULL")
	assert.Contains(t, clause, "temporal_state <> $2")
	assert.Contains(t, clause, "category = ANY($3)")
	assert.Contains(t, clause, "created_at >= $4")
	assert.Len(t, args, 4)
	assert.Equal(t, models.TemporalPast, args[1])
}

func TestFactFiltersWhereArgOffsets(t *testing.T) {
	// Placeholders must track the arg slice even when filters are sparse.
	f := FactFilters{UserID: uuid.New(), CurrentViewOnly: true}
	var args []any
	clause := f.where(&args)

	assert.Equal(t,
		"user_id = $1 AND expires_at IS NULL AND superseded_by IS NULL AND temporal_state <> $2",
		clause)
	assert.Len(t, args, 2)
}

func TestSameSlot(t *testing.T) {
	employer := "employer"
	role := "role"

	assert.True(t, models.SameSlot(nil, &employer))   // legacy row matches anything
	assert.True(t, models.SameSlot(&employer, nil))   // nil incoming replaces whole category
	assert.True(t, models.SameSlot(&employer, &employer))
	assert.False(t, models.SameSlot(&employer, &role))
}
