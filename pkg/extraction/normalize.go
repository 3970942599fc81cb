package extraction

import (
	"strings"
	"unicode"

	"github.com/rajat1299/memoire/pkg/models"
)

// temporalMarkers are content prefixes that already encode a temporal frame;
// normalization leaves such content untouched.
var temporalMarkers = []string{
	"previously",
	"used to",
	"formerly",
	"no longer",
	"planning to",
	"plans to",
	"will ",
	"usually",
	"often",
	"every ",
}

// biographicalPrefixes mark biographical content that already reads as a
// well-formed statement.
var biographicalPrefixes = []string{
	"lives in", "born in", "from ", "age ", "lived in",
}

// workPrefixes mark work_context content that already reads as a well-formed
// statement.
var workPrefixes = []string{
	"works", "is a", "is an", "employed", "worked",
}

// hasTemporalMarker reports whether content opens with a temporal frame.
func hasTemporalMarker(content string) bool {
	lower := strings.ToLower(strings.TrimSpace(content))
	for _, marker := range temporalMarkers {
		if strings.HasPrefix(lower, marker) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(content string, prefixes []string) bool {
	lower := strings.ToLower(strings.TrimSpace(content))
	for _, prefix := range prefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// normalizeContent rewrites bare fragments into canonical statements so slot
// contents stay comparable across extractions: a bare "Austin" becomes
// "Lives in Austin", a bare "Google" becomes "Works at Google". Content that
// opens with a temporal marker is left as the model phrased it.
func normalizeContent(category models.FactCategory, content string) string {
	content = strings.TrimSpace(content)
	if content == "" || hasTemporalMarker(content) {
		return content
	}

	switch category {
	case models.CategoryBiographical:
		if !hasAnyPrefix(content, biographicalPrefixes) {
			return "Lives in " + content
		}
	case models.CategoryWorkContext:
		if !hasAnyPrefix(content, workPrefixes) {
			// A capitalized fragment names an employer; a lowercased one
			// names a role.
			if startsUpper(content) {
				return "Works at " + content
			}
			return "Is a " + content
		}
	}
	return content
}

func startsUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}

// validateCandidate applies the client-side acceptance rules to one
// extracted fact. Returns the cleaned candidate and whether it survives.
func validateCandidate(f extractedFact, minConfidence float64) (extractedFact, bool) {
	f.Content = strings.TrimSpace(f.Content)
	if len(strings.Fields(f.Content)) < 2 {
		return f, false
	}
	if strings.HasSuffix(f.Content, "?") {
		return f, false
	}
	if f.Confidence < minConfidence {
		return f, false
	}
	if !f.Category.Valid() {
		return f, false
	}
	if !f.TemporalState.Valid() {
		f.TemporalState = models.TemporalCurrent
	}
	if f.SlotHint != nil {
		trimmed := strings.TrimSpace(strings.ToLower(*f.SlotHint))
		if trimmed == "" {
			f.SlotHint = nil
		} else {
			f.SlotHint = &trimmed
		}
	}
	return f, true
}
