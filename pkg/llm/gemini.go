package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Gemini speaks the Generative Language REST API: generateContent for
// structured chat and embedContent for embeddings.
type Gemini struct {
	apiKey         string
	chatModel      string
	embeddingModel string
	embeddingDim   int
	client         *http.Client
}

// NewGemini creates the Gemini provider.
func NewGemini(apiKey, chatModel, embeddingModel string, embeddingDim int) *Gemini {
	return &Gemini{
		apiKey:         apiKey,
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		embeddingDim:   embeddingDim,
		client:         &http.Client{Timeout: 60 * time.Second},
	}
}

// Embed implements Gateway. Texts are embedded one request at a time; the
// batch endpoint is an asynchronous job API and not worth the round trips at
// extraction batch sizes.
func (p *Gemini) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	url := fmt.Sprintf("%s/models/%s:embedContent?key=%s", geminiBaseURL, p.embeddingModel, p.apiKey)
	for _, text := range texts {
		body := map[string]any{
			"content":              map[string]any{"parts": []map[string]any{{"text": text}}},
			"outputDimensionality": p.embeddingDim,
		}
		var parsed struct {
			Embedding *struct {
				Values []float32 `json:"values"`
			} `json:"embedding"`
		}
		if err := p.post(ctx, url, body, &parsed); err != nil {
			return nil, err
		}
		if parsed.Embedding == nil {
			return nil, &Error{Provider: "gemini", Message: "missing embedding in response"}
		}
		vectors = append(vectors, parsed.Embedding.Values)
	}
	return vectors, nil
}

// ChatStructured implements Gateway using responseMimeType/responseSchema in
// the generation config.
func (p *Gemini) ChatStructured(ctx context.Context, messages []Message, schema Schema, out any) error {
	var systemParts []map[string]any
	var contents []map[string]any
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			systemParts = append(systemParts, map[string]any{"text": msg.Content})
		case RoleAssistant:
			contents = append(contents, map[string]any{
				"role":  "model",
				"parts": []map[string]any{{"text": msg.Content}},
			})
		default:
			contents = append(contents, map[string]any{
				"role":  "user",
				"parts": []map[string]any{{"text": msg.Content}},
			})
		}
	}

	var schemaValue any
	if err := json.Unmarshal(schema.Schema, &schemaValue); err != nil {
		return &Error{Provider: "gemini", Message: fmt.Sprintf("invalid schema %q: %v", schema.Name, err)}
	}

	body := map[string]any{
		"contents": contents,
		"generationConfig": map[string]any{
			"responseMimeType": "application/json",
			"responseSchema":   schemaValue,
			"temperature":      0,
		},
	}
	if len(systemParts) > 0 {
		body["systemInstruction"] = map[string]any{"parts": systemParts}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", geminiBaseURL, p.chatModel, p.apiKey)
	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := p.post(ctx, url, body, &parsed); err != nil {
		return err
	}
	if len(parsed.Candidates) == 0 {
		return &Error{Provider: "gemini", Message: "empty candidates in response"}
	}
	var reply string
	for _, part := range parsed.Candidates[0].Content.Parts {
		reply += part.Text
	}
	return decodeStructured("gemini", reply, out)
}

func (p *Gemini) post(ctx context.Context, url string, body, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &Error{Provider: "gemini", Message: fmt.Sprintf("marshal request: %v", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &Error{Provider: "gemini", Message: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return wrapTransportErr("gemini", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &Error{
			Provider:  "gemini",
			Status:    resp.StatusCode,
			Message:   string(raw),
			Transient: transientStatus(resp.StatusCode),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return &Error{Provider: "gemini", Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}

var _ Gateway = (*Gemini)(nil)
