package models

import (
	"time"

	"github.com/google/uuid"
)

// FactCategory classifies what kind of statement a fact makes about a user.
type FactCategory string

// Fact categories.
const (
	CategoryUserPreference FactCategory = "user_preference" // e.g. "Likes dark mode"
	CategoryBiographical   FactCategory = "biographical"    // e.g. "Lives in Dallas"
	CategoryWorkContext    FactCategory = "work_context"    // e.g. "Works at Google"
	CategoryRelationship   FactCategory = "relationship"    // e.g. "Manager is Sarah"
	CategoryLearning       FactCategory = "learning"        // e.g. "Studying Spanish"
)

// AllCategories lists every valid fact category in a stable order.
var AllCategories = []FactCategory{
	CategoryUserPreference,
	CategoryBiographical,
	CategoryWorkContext,
	CategoryRelationship,
	CategoryLearning,
}

// Valid reports whether c is a known category.
func (c FactCategory) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Supersedable reports whether facts in this category occupy exclusive slots.
// A new fact in a supersedable category displaces the previous fact in the
// same (category, slot_hint) slot.
func (c FactCategory) Supersedable() bool {
	switch c {
	case CategoryBiographical, CategoryWorkContext, CategoryRelationship:
		return true
	}
	return false
}

// TemporalState indicates whether a fact describes the user's current, past,
// future, or recurring condition. Used to distinguish "Lives in Austin"
// (current) from "Previously lived in Dallas" (past).
type TemporalState string

// Temporal states.
const (
	TemporalCurrent   TemporalState = "current"
	TemporalPast      TemporalState = "past"
	TemporalFuture    TemporalState = "future"
	TemporalRecurring TemporalState = "recurring"
)

// Valid reports whether t is a known temporal state.
func (t TemporalState) Valid() bool {
	switch t {
	case TemporalCurrent, TemporalPast, TemporalFuture, TemporalRecurring:
		return true
	}
	return false
}

// ProfileSummarySlot is the reserved slot_hint for the consolidated profile
// summary fact maintained by the consolidation worker.
const ProfileSummarySlot = "profile_summary"

// Fact is an atomic, typed statement about a user extracted from conversation.
// Facts are created by the extraction and consolidation workers; the API only
// soft-deletes them.
type Fact struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Category        FactCategory
	Content         string
	Confidence      float64
	SlotHint        *string
	TemporalState   TemporalState
	IsEssential     bool
	SourceMessageID *uuid.UUID
	SupersededBy    *uuid.UUID
	ExpiresAt       *time.Time
	LastRefreshedAt time.Time
	CreatedAt       time.Time
	Embedding       []float32 // nil when embedding generation failed or is pending
}

// Active reports whether the fact is part of the user's current view:
// neither superseded nor soft-deleted.
func (f *Fact) Active() bool {
	return f.SupersededBy == nil && f.ExpiresAt == nil
}

// SameSlot reports whether an existing fact occupies the slot a new fact in
// the same category is about to claim. A NULL slot_hint on the existing fact
// (legacy row) or on the incoming fact (whole-category replacement) matches
// anything; otherwise the hints must be equal.
func SameSlot(existing, incoming *string) bool {
	if existing == nil || incoming == nil {
		return true
	}
	return *existing == *incoming
}
