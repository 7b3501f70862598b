// Package retrieval queries the knowledge-base service backing the model's
// single declarable tool.
package retrieval

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"voicebridge/core"
)

// Config holds the retrieval endpoint configuration.
type Config struct {
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:9621",
		Timeout: 10 * time.Second,
	}
}

// Client implements convo.Retriever over the rag_text HTTP endpoint.
type Client struct {
	cfg    Config
	client *http.Client
	logger *core.Logger
}

func NewClient(cfg Config, logger *core.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("retrieval: base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(map[string]interface{}{"service": "retrieval"}),
	}, nil
}

type queryRequest struct {
	Text string `json:"text"`
}

type queryResponse struct {
	Message       string `json:"message"`
	ProcessedText string `json:"processed_text"`
}

// Query runs one knowledge lookup and returns the processed text, which the
// turn worker feeds back to the model as the tool result.
func (c *Client) Query(ctx context.Context, query string) (string, error) {
	payload, err := sonic.Marshal(queryRequest{Text: query})
	if err != nil {
		return "", fmt.Errorf("retrieval: marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/rag_text", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("retrieval: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("retrieval: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("retrieval: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("retrieval: status %d: %s", resp.StatusCode, string(body))
	}

	var out queryResponse
	if err := sonic.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("retrieval: decode response: %w", err)
	}
	c.logger.Debugf("query %q resolved to %d bytes", query, len(out.ProcessedText))
	return out.ProcessedText, nil
}
