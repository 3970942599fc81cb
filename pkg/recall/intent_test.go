package recall

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rajat1299/memoire/pkg/models"
)

func TestHintCategories(t *testing.T) {
	tests := []struct {
		query string
		want  []models.FactCategory
	}{
		{"Where do I live?", []models.FactCategory{models.CategoryBiographical}},
		{"what is my job", []models.FactCategory{models.CategoryWorkContext}},
		{"girlfriend?", []models.FactCategory{models.CategoryRelationship}},
		{"what am I studying", []models.FactCategory{models.CategoryLearning, models.CategoryUserPreference}},
		{"random question", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			hinted := hintCategories(tt.query)
			assert.Len(t, hinted, len(tt.want))
			for _, c := range tt.want {
				assert.True(t, hinted[c], "expected hint %s", c)
			}
		})
	}
}

func TestIsGenericQuery(t *testing.T) {
	generic := []string{
		"Tell me about myself.",
		"tell me about me",
		"Who am I?",
		"What do you know about me?",
		"Please summarize my profile",
		"What should you remember about me?",
		"Tell me everything about me!",
		"Can you describe me?",
		"Show me my details",
	}
	for _, q := range generic {
		assert.True(t, isGenericQuery(q), "expected generic: %q", q)
	}

	specific := []string{
		"Where do I live?",
		"What is my job?",
		"What does my girlfriend do?",
		"Tell me about Austin",
	}
	for _, q := range specific {
		assert.False(t, isGenericQuery(q), "expected specific: %q", q)
	}
}
