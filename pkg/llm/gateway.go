// Package llm is the provider-agnostic gateway to chat and embedding models.
//
// The gateway exposes exactly two operations: batched text embedding and
// structured chat. Structured chat is schema-first: callers hand over a JSON
// schema and a destination value, and the gateway refuses to return anything
// that does not decode into it. Providers are selected once at process start.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn of a chat prompt.
type Message struct {
	Role    string
	Content string
}

// Schema tells the provider to enforce structured JSON output. Schema is a
// raw JSON Schema document; Name labels it for providers that require one.
type Schema struct {
	Name   string
	Schema json.RawMessage
}

// Gateway is the capability every worker and the recall engine depend on.
type Gateway interface {
	// Embed returns one vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// ChatStructured sends the prompt and decodes the model's JSON reply
	// into out, which must be a pointer. A reply that does not conform is
	// rejected with a non-transient *Error.
	ChatStructured(ctx context.Context, messages []Message, schema Schema, out any) error
}

// Error is the typed LLM failure surfaced by all providers. Transient errors
// (rate limits, connection problems, 5xx, timeouts) are retryable; anything
// else is permanent for the current attempt.
type Error struct {
	Provider  string
	Status    int // HTTP status when applicable, 0 otherwise
	Message   string
	Transient bool
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("llm %s: status %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("llm %s: %s", e.Provider, e.Message)
}

// IsTransient reports whether err is a retryable LLM failure.
func IsTransient(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Transient
}

// transientStatus classifies HTTP statuses that warrant a retry.
func transientStatus(status int) bool {
	return status == 429 || status == 408 || status >= 500
}

// decodeStructured parses a model reply into out. Models occasionally wrap
// JSON in markdown fences or prose; the text from the first '{' or '[' to the
// last matching closer is extracted before decoding.
func decodeStructured(provider, reply string, out any) error {
	payload := extractJSON(reply)
	if payload == "" {
		return &Error{Provider: provider, Message: "no JSON value in model reply"}
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return &Error{Provider: provider, Message: fmt.Sprintf("reply does not conform to schema: %v", err)}
	}
	return nil
}

// extractJSON returns the outermost JSON object or array embedded in s.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	objStart := strings.Index(s, "{")
	arrStart := strings.Index(s, "[")
	start := objStart
	closer := "}"
	if start < 0 || (arrStart >= 0 && arrStart < start) {
		start = arrStart
		closer = "]"
	}
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(s, closer)
	if end <= start {
		return ""
	}
	return s[start : end+1]
}
