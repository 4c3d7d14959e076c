// Package moderation provides the content-safety collaborator consumed
// by the middleware pipeline. The default implementation calls an
// external moderation HTTP API; the pipeline fails open when it errors.
package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Result is a moderation verdict.
type Result struct {
	Safe       bool     `json:"safe"`
	Categories []string `json:"categories"`
	Score      float64  `json:"score"`
}

// Scope carries the identifiers the moderation backend uses for
// context-sensitive scoring.
type Scope struct {
	UserID  string `json:"userId"`
	GroupID string `json:"groupId,omitempty"`
}

// Moderator submits text for a content-safety check.
type Moderator interface {
	Moderate(ctx context.Context, text string, scope Scope) (Result, error)
}

// Client calls a moderation HTTP endpoint. Requests carry a bounded
// timeout so a hung moderation backend cannot stall event processing.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewClient creates a moderation client for the given endpoint.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

type moderateRequest struct {
	Content string `json:"content"`
	Scope   Scope  `json:"scope"`
}

// Moderate submits text and returns the backend's verdict. Empty text is
// trivially safe without a network call.
func (c *Client) Moderate(ctx context.Context, text string, scope Scope) (Result, error) {
	if text == "" {
		return Result{Safe: true}, nil
	}

	body, err := json.Marshal(moderateRequest{Content: text, Scope: scope})
	if err != nil {
		return Result{}, fmt.Errorf("marshal moderation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build moderation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("moderation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("moderation endpoint returned %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("decode moderation response: %w", err)
	}
	return result, nil
}
