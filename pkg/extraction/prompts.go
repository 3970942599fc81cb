package extraction

import (
	"encoding/json"
	"strings"

	"github.com/rajat1299/memoire/pkg/llm"
	"github.com/rajat1299/memoire/pkg/models"
)

// extractionSystemPrompt instructs the model to produce atomic, slot-tagged,
// temporally-marked facts.
const extractionSystemPrompt = `You are a memory extraction assistant. Extract persistent facts about the user from conversations.

Rules:
- Only extract clear, factual information about the USER (never the assistant)
- Ignore casual chat, greetings, or temporary states
- Each fact must be atomic (one piece of information)
- Be concise but specific
- Assign confidence 0.7-1.0 for explicitly stated facts, 0.4-0.6 for inferred ones
- slot_hint names the single profile position the fact fills (e.g. "employer", "role", "location", "partner"); omit it when no single-value position applies
- temporal_state marks when the fact holds: "current" (true now), "past" (no longer true; prefix the content with "Previously"), "future" (planned), "recurring" (habitual)

Categories:
- user_preference: likes, dislikes, preferences (e.g. "Prefers dark mode")
- biographical: personal info (e.g. "Lives in Dallas")
- work_context: job, employer, projects (e.g. "Works at Google")
- relationship: people in the user's life (e.g. "Manager is Sarah")
- learning: skills or topics being studied (e.g. "Learning Spanish")`

// extractionSchema is the JSON Schema the gateway enforces on extraction
// replies.
var extractionSchema = llm.Schema{
	Name: "extracted_facts",
	Schema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"facts": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"category": {"type": "string", "enum": ["user_preference", "biographical", "work_context", "relationship", "learning"]},
						"content": {"type": "string"},
						"confidence": {"type": "number"},
						"slot_hint": {"type": "string"},
						"temporal_state": {"type": "string", "enum": ["current", "past", "future", "recurring"]}
					},
					"required": ["category", "content", "confidence"]
				}
			}
		},
		"required": ["facts"]
	}`),
}

// extractedFact is one candidate from the model, before validation.
type extractedFact struct {
	Category      models.FactCategory  `json:"category"`
	Content       string               `json:"content"`
	Confidence    float64              `json:"confidence"`
	SlotHint      *string              `json:"slot_hint,omitempty"`
	TemporalState models.TemporalState `json:"temporal_state,omitempty"`
}

// extractionResponse is the schema-conforming reply shape.
type extractionResponse struct {
	Facts []extractedFact `json:"facts"`
}

// buildPrompt renders the message window as a transcript prompt.
func buildPrompt(messages []models.ChatLog) []llm.Message {
	var transcript strings.Builder
	for _, msg := range messages {
		transcript.WriteString(msg.Role)
		transcript.WriteString(": ")
		transcript.WriteString(msg.Content)
		transcript.WriteByte('\n')
	}
	return []llm.Message{
		{Role: llm.RoleSystem, Content: extractionSystemPrompt},
		{Role: llm.RoleUser, Content: "Extract facts from this conversation:\n\n" + transcript.String()},
	}
}
