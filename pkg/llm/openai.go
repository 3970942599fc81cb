package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"
)

// Default API bases for the OpenAI-compatible providers.
const (
	openAIBaseURL     = "https://api.openai.com/v1"
	openRouterBaseURL = "https://openrouter.ai/api/v1"
)

// OpenAICompat speaks the OpenAI chat-completions and embeddings API. It
// covers OpenAI itself, OpenRouter, and any other endpoint implementing the
// same surface.
type OpenAICompat struct {
	name           string
	apiKey         string
	baseURL        string
	chatModel      string
	embeddingModel string
	embeddingDim   int
	client         *http.Client
}

// NewOpenAI creates the OpenAI provider.
func NewOpenAI(apiKey, chatModel, embeddingModel string, embeddingDim int) *OpenAICompat {
	return newCompat("openai", apiKey, openAIBaseURL, chatModel, embeddingModel, embeddingDim)
}

// NewOpenRouter creates the OpenRouter provider. OpenRouter has no embedding
// endpoint of its own model namespace worth pinning, but it accepts the same
// request shape, so the configured embedding model is passed through.
func NewOpenRouter(apiKey, chatModel, embeddingModel string, embeddingDim int) *OpenAICompat {
	return newCompat("openrouter", apiKey, openRouterBaseURL, chatModel, embeddingModel, embeddingDim)
}

func newCompat(name, apiKey, baseURL, chatModel, embeddingModel string, embeddingDim int) *OpenAICompat {
	return &OpenAICompat{
		name:           name,
		apiKey:         apiKey,
		baseURL:        baseURL,
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		embeddingDim:   embeddingDim,
		client:         &http.Client{Timeout: 60 * time.Second},
	}
}

type chatCompletionRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	ResponseFormat *responseFormat     `json:"response_format,omitempty"`
	Temperature    float64             `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string          `json:"type"` // "json_schema"
	JSONSchema *jsonSchemaSpec `json:"json_schema,omitempty"`
}

type jsonSchemaSpec struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed implements Gateway.
func (p *OpenAICompat) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body := embeddingRequest{Model: p.embeddingModel, Input: texts, Dimensions: p.embeddingDim}
	var parsed embeddingResponse
	if err := p.post(ctx, "/embeddings", body, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Data) != len(texts) {
		return nil, &Error{Provider: p.name, Message: fmt.Sprintf("embedding count mismatch: want %d, got %d", len(texts), len(parsed.Data))}
	}
	vectors := make([][]float32, len(texts))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, &Error{Provider: p.name, Message: fmt.Sprintf("embedding index %d out of range", item.Index)}
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

// ChatStructured implements Gateway.
func (p *OpenAICompat) ChatStructured(ctx context.Context, messages []Message, schema Schema, out any) error {
	body := chatCompletionRequest{
		Model:       p.chatModel,
		Messages:    make([]chatMessage, len(messages)),
		Temperature: 0,
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchemaSpec{
				Name:   schema.Name,
				Strict: true,
				Schema: schema.Schema,
			},
		},
	}
	for i, m := range messages {
		body.Messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}

	var parsed chatCompletionResponse
	if err := p.post(ctx, "/chat/completions", body, &parsed); err != nil {
		return err
	}
	if len(parsed.Choices) == 0 {
		return &Error{Provider: p.name, Message: "empty choices in response"}
	}
	return decodeStructured(p.name, parsed.Choices[0].Message.Content, out)
}

// post marshals body, sends it, and decodes the 200 response into dest.
func (p *OpenAICompat) post(ctx context.Context, path string, body, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &Error{Provider: p.name, Message: fmt.Sprintf("marshal request: %v", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &Error{Provider: p.name, Message: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return wrapTransportErr(p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &Error{
			Provider:  p.name,
			Status:    resp.StatusCode,
			Message:   string(raw),
			Transient: transientStatus(resp.StatusCode),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return &Error{Provider: p.name, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}

// wrapTransportErr classifies network-level failures as transient.
func wrapTransportErr(provider string, err error) error {
	transient := true
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		transient = false
	case errors.As(err, &netErr), errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		transient = true
	}
	return &Error{Provider: provider, Message: err.Error(), Transient: transient}
}

var _ Gateway = (*OpenAICompat)(nil)
