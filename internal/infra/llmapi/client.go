// Package llmapi implements HTTP clients for the model gateway: embedding,
// generation, keyword extraction, classification and the context checks.
package llmapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/atenda/kb-rag/internal/platform/config"
)

// Client is the shared transport for all gateway endpoints. The heavyweight
// endpoints (embedding, generation) sit behind circuit breakers so a degraded
// gateway fails fast instead of stacking up timed-out requests.
type Client struct {
	httpClient *http.Client
	cfg        config.LLMConfig
	logger     *slog.Logger

	embedBreaker    *gobreaker.CircuitBreaker
	generateBreaker *gobreaker.CircuitBreaker
}

// NewClient creates a gateway client.
func NewClient(cfg config.LLMConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient:      &http.Client{Timeout: cfg.Timeout},
		cfg:             cfg,
		logger:          logger,
		embedBreaker:    gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "llm-embed"}),
		generateBreaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "llm-generate"}),
	}
}

// doPost sends a JSON request body and decodes the JSON response into out.
func (c *Client) doPost(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("request to %s returned status %d: %s", path, resp.StatusCode, snippet)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
