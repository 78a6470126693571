// Package llm is a minimal client for the OpenAI REST API, covering the
// two calls the answering flow needs: chat completions and embeddings.
// It is compatible with any service that implements the OpenAI wire
// format (OpenAI, Azure OpenAI, vLLM, Ollama).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/boovboyz/azurerag/internal/config"
)

// Client talks to an OpenAI-compatible API.
type Client struct {
	apiKey         string
	baseURL        string
	chatModel      string
	embeddingModel string
	temperature    float64
	httpClient     *http.Client
}

// Option customises Client construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (tests).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a client from the OpenAI section of the config.
func NewClient(cfg config.OpenAIConfig, opts ...Option) *Client {
	c := &Client{
		apiKey:         cfg.APIKey,
		baseURL:        cfg.BaseURL,
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		temperature:    cfg.Temperature,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends a system plus user message pair and returns the text of
// the first choice.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	request := chatRequest{
		Model:       c.chatModel,
		Temperature: c.temperature,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	var response chatResponse
	if err := c.post(ctx, "/v1/chat/completions", request, &response); err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("llm: completion returned no choices")
	}
	return response.Choices[0].Message.Content, nil
}

// Embed returns the embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in one request, preserving input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := embeddingRequest{
		Model: c.embeddingModel,
		Input: texts,
	}

	var response embeddingResponse
	if err := c.post(ctx, "/v1/embeddings", request, &response); err != nil {
		return nil, err
	}
	if len(response.Data) != len(texts) {
		return nil, fmt.Errorf("llm: embedded %d texts, got %d vectors", len(texts), len(response.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range response.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("llm: embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("llm: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("llm: call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("llm: %s responded %d: %s", path, resp.StatusCode, detail)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("llm: decode response: %w", err)
	}
	return nil
}

// --- wire types ---
//
// These map directly to the OpenAI JSON format. They are separate from
// the public surface because the wire format uses its own field names.

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}
