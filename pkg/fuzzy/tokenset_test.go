package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"where", "do", "i", "live"}, Tokenize("Where do I live?"))
	assert.Equal(t, []string{"works", "at", "openai"}, Tokenize("Works at OpenAI."))
	assert.Empty(t, Tokenize("?!,"))
}

func TestTokenSetRatioIdentical(t *testing.T) {
	assert.InDelta(t, 100, TokenSetRatio("Lives in Austin", "lives in austin"), 1e-9)
}

func TestTokenSetRatioWordOrderInsensitive(t *testing.T) {
	assert.InDelta(t, 100, TokenSetRatio("Austin lives in", "lives in Austin"), 1e-9)
}

func TestTokenSetRatioSubset(t *testing.T) {
	// One string's tokens contained in the other's scores 100 via the
	// intersection comparison.
	assert.InDelta(t, 100, TokenSetRatio("Lives in Austin", "Lives in Austin, Texas"), 1e-9)
}

func TestTokenSetRatioParaphraseAboveDupThreshold(t *testing.T) {
	score := TokenSetRatio("Works at Google as an engineer", "Works at Google as a software engineer")
	assert.Greater(t, score, 75.0)
}

func TestTokenSetRatioUnrelatedLow(t *testing.T) {
	score := TokenSetRatio("Lives in Austin", "Prefers dark chocolate")
	assert.Less(t, score, 50.0)
}

func TestTokenSetRatioEmpty(t *testing.T) {
	assert.Zero(t, TokenSetRatio("", "Lives in Austin"))
	assert.Zero(t, TokenSetRatio("", ""))
}
