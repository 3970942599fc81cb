package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic implements the gateway's chat operation with the Anthropic
// Messages API. Anthropic exposes no embedding endpoint, so Embed delegates
// to a configured fallback provider (usually the OpenAI-compatible one).
type Anthropic struct {
	client    anthropic.Client
	chatModel string
	embedder  Gateway // nil when no fallback is configured
}

// NewAnthropic creates the Anthropic provider. embedder may be nil; Embed
// then fails with a non-transient error and callers degrade to lexical-only
// behavior.
func NewAnthropic(apiKey, chatModel string, embedder Gateway) *Anthropic {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Anthropic{client: client, chatModel: chatModel, embedder: embedder}
}

// Embed implements Gateway via the fallback embedder.
func (p *Anthropic) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if p.embedder == nil {
		return nil, &Error{Provider: "anthropic", Message: "no embedding fallback configured"}
	}
	return p.embedder.Embed(ctx, texts)
}

// ChatStructured implements Gateway. The schema is embedded in the system
// prompt and enforced by decoding the reply; Anthropic has no native
// response_format equivalent.
func (p *Anthropic) ChatStructured(ctx context.Context, messages []Message, schema Schema, out any) error {
	var system []anthropic.TextBlockParam
	var turns []anthropic.MessageParam

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case RoleAssistant:
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	system = append(system, anthropic.TextBlockParam{
		Text: fmt.Sprintf("Respond with a single JSON value conforming to this JSON Schema named %q, with no surrounding prose:\n%s",
			schema.Name, string(schema.Schema)),
	})

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.chatModel),
		System:    system,
		Messages:  turns,
		MaxTokens: 4096,
	})
	if err != nil {
		return wrapAnthropicErr(err)
	}

	var reply string
	for _, block := range resp.Content {
		if block.Type == "text" {
			reply += block.Text
		}
	}
	return decodeStructured("anthropic", reply, out)
}

// wrapAnthropicErr maps SDK errors onto the gateway taxonomy.
func wrapAnthropicErr(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &Error{
			Provider:  "anthropic",
			Status:    apiErr.StatusCode,
			Message:   apiErr.Error(),
			Transient: transientStatus(apiErr.StatusCode),
		}
	}
	return wrapTransportErr("anthropic", err)
}

var _ Gateway = (*Anthropic)(nil)
