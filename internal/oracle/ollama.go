package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "llama3.1:8b"
	defaultOllamaTimeout = 120 * time.Second

	maxResponseBytes = 4 * 1024 * 1024 // 4 MB
)

// OllamaClient talks to a local Ollama server. It satisfies Oracle; Embed
// reports absence when no embedding model is configured so callers can fall
// back to the LLM dedup path.
type OllamaClient struct {
	BaseURL    string
	Model      string
	EmbedModel string
	HTTPClient *http.Client
}

// OllamaConfig carries the connection settings for NewOllamaClient. Zero
// values fall back to defaults.
type OllamaConfig struct {
	BaseURL        string
	Model          string
	EmbedModel     string
	TimeoutSeconds int
}

// NewOllamaClient builds a client from cfg, filling unset fields from the
// OLLAMA_* environment variables and then package defaults.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	baseURL := firstNonEmpty(cfg.BaseURL, os.Getenv("OLLAMA_BASE_URL"), defaultOllamaBaseURL)
	model := firstNonEmpty(cfg.Model, os.Getenv("OLLAMA_MODEL"), defaultOllamaModel)
	embedModel := firstNonEmpty(cfg.EmbedModel, os.Getenv("OLLAMA_EMBED_MODEL"))

	timeout := defaultOllamaTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	} else if raw := os.Getenv("OLLAMA_TIMEOUT_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}

	return &OllamaClient{
		BaseURL:    baseURL,
		Model:      model,
		EmbedModel: embedModel,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Complete sends prompt to /api/generate and returns the raw model output.
func (c *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := c.post(ctx, "/api/generate", generateRequest{
		Model:  c.Model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", err
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode generate response: %w (%w)", err, ErrUnavailable)
	}
	return resp.Response, nil
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed returns one vector per input text via /api/embeddings. With no
// embedding model configured it returns (nil, nil) to signal the capability
// is absent rather than failed.
func (c *OllamaClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if c.EmbedModel == "" {
		return nil, nil
	}

	vectors := make([][]float64, 0, len(texts))
	for _, text := range texts {
		body, err := c.post(ctx, "/api/embeddings", embedRequest{
			Model:  c.EmbedModel,
			Prompt: text,
		})
		if err != nil {
			return nil, err
		}
		var resp embedResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode embeddings response: %w (%w)", err, ErrUnavailable)
		}
		if len(resp.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding for text: %w", ErrUnavailable)
		}
		vectors = append(vectors, resp.Embedding)
	}
	return vectors, nil
}

func (c *OllamaClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w (%w)", path, err, ErrUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w (%w)", path, err, ErrUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d: %w", path, resp.StatusCode, ErrUnavailable)
	}
	return body, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
