package oracle

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultCompressBaseURL = "https://api.scaledown.xyz"
	defaultCompressTimeout = 30 * time.Second
)

// Compressor shrinks a prompt before it is sent to the model. It never
// generates answers.
type Compressor interface {
	Compress(ctx context.Context, prompt string) (string, error)
}

// ScaleDownClient compresses prompts through the ScaleDown raw endpoint.
// It is a plain text-in text-out call authenticated with an API key.
type ScaleDownClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewScaleDownClient reads SCALEDOWN_API_KEY, SCALEDOWN_BASE_URL and
// SCALEDOWN_TIMEOUT_SECONDS. A missing key is an error so callers can decide
// to run without compression.
func NewScaleDownClient() (*ScaleDownClient, error) {
	apiKey := os.Getenv("SCALEDOWN_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("missing env var SCALEDOWN_API_KEY")
	}

	timeout := defaultCompressTimeout
	if raw := os.Getenv("SCALEDOWN_TIMEOUT_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}

	return &ScaleDownClient{
		BaseURL:    firstNonEmpty(os.Getenv("SCALEDOWN_BASE_URL"), defaultCompressBaseURL),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
	}, nil
}

// Compress posts the prompt body and returns the compressed text. An empty
// reply is an error; callers fall back to the uncompressed prompt.
func (c *ScaleDownClient) Compress(ctx context.Context, prompt string) (string, error) {
	url := strings.TrimRight(c.BaseURL, "/") + "/compress/raw/"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(prompt))
	if err != nil {
		return "", fmt.Errorf("build compress request: %w", err)
	}
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Accept", "text/plain")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call compression service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read compression response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("compression service returned status %d", resp.StatusCode)
	}

	compressed := strings.TrimSpace(string(body))
	if compressed == "" {
		return "", fmt.Errorf("empty response from compression service")
	}
	return compressed, nil
}
