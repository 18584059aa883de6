// Package llm proxies marketplace help questions to an OpenAI-compatible
// chat completions API with a fixed system prompt.
package llm

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

//go:embed sitedata.txt
var siteData string

// SystemPrompt is prepended to every conversation.
var SystemPrompt = "You are a helpful assistant for our service marketplace. " +
	"Use the following information to answer all questions:\n" + siteData

const maxResponseBytes = 1 << 20

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Config struct {
	URL         string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Client forwards chat requests upstream.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

var ErrNoMessages = errors.New("llm: at least one message is required")

// Complete sends messages after the system prompt and returns the upstream
// JSON body unchanged.
func (c *Client) Complete(ctx context.Context, messages []Message) (json.RawMessage, error) {
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}
	if c.cfg.APIKey == "" {
		return nil, errors.New("llm: api key not configured")
	}

	all := make([]Message, 0, len(messages)+1)
	all = append(all, Message{Role: "system", Content: SystemPrompt})
	all = append(all, messages...)

	body, err := json.Marshal(completionRequest{
		Model:       c.cfg.Model,
		Messages:    all,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("llm: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("llm: upstream status %d: %s", resp.StatusCode, truncate(raw, 200))
	}
	if !json.Valid(raw) {
		return nil, errors.New("llm: upstream returned invalid json")
	}
	return raw, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
