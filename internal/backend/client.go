// Package backend is the HTTP client for the control plane's internal
// completion endpoint.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"veridex/internal/evidence"
)

// CompletionPayload is the body POSTed to
// /api/internal/runs/{run_id}/complete.
type CompletionPayload struct {
	Success         bool              `json:"success"`
	Metrics         evidence.Metrics  `json:"metrics"`
	ArtifactURLs    map[string]string `json:"artifact_urls"`
	DurationSeconds float64           `json:"duration_seconds"`
}

// Client posts run completions to the control plane. Callbacks are
// best-effort: the caller logs failures, the status store remains the
// reconciliation source.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient builds a callback client. rateLimit is requests/second;
// zero or negative disables limiting.
func NewClient(baseURL, apiKey string, timeout time.Duration, rateLimit float64) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if rateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(rateLimit), 1)
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
}

// NotifyCompletion sends the completion callback for one run. Non-2xx
// responses are errors; there is no automatic retry.
func (c *Client) NotifyCompletion(ctx context.Context, runID string, payload CompletionPayload) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("callback rate limiter: %w", err)
		}
	}

	if payload.Metrics == nil {
		payload.Metrics = evidence.Metrics{}
	}
	if payload.ArtifactURLs == nil {
		payload.ArtifactURLs = map[string]string{}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode completion payload: %w", err)
	}

	url := fmt.Sprintf("%s/api/internal/runs/%s/complete", c.baseURL, runID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("completion callback for %s: %w", runID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("completion callback for %s returned %d: %s", runID, resp.StatusCode, string(snippet))
	}
	return nil
}
