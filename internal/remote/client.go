// Package remote is the JSON-over-HTTP plumbing shared by the score service
// and token validator clients.
//
// Requests carry the player's session token as a bearer credential. Network
// failures and 5xx/429 responses are retried with exponential backoff; any
// other status is returned as an *HTTPError straight away.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// Config holds configuration for a service client.
type Config struct {
	// BaseURL is the service root, e.g. "https://api.example.com". Required.
	BaseURL string

	// MaxRetries is the number of retries after the first attempt.
	// Defaults to 2 if zero; a negative value disables retries.
	MaxRetries int

	// BaseRetryDelay is the initial backoff delay. Defaults to 200ms.
	BaseRetryDelay time.Duration

	// HTTPClient allows injecting a custom HTTP client (useful for testing).
	// Defaults to a client with a 10s timeout.
	HTTPClient *http.Client
}

// Client sends JSON requests to one service.
type Client struct {
	config Config
	http   *http.Client
}

// NewClient creates a client, filling in defaults.
func NewClient(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseRetryDelay == 0 {
		cfg.BaseRetryDelay = 200 * time.Millisecond
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{config: cfg, http: httpClient}
}

// BaseURL returns the configured service root.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Do sends a request and decodes the JSON response into out (when non-nil).
// A nil body sends no payload.
func (c *Client) Do(ctx context.Context, method, path, token string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("remote: marshal request: %w", err)
		}
		payload = b
	}

	backoff := retry.WithMaxRetries(uint64(c.config.MaxRetries), retry.NewExponential(c.config.BaseRetryDelay))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		return c.do(ctx, method, path, token, payload, out)
	})
}

func (c *Client) do(ctx context.Context, method, path, token string, payload []byte, out any) error {
	url := c.config.BaseURL + "/" + strings.TrimPrefix(path, "/")

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("remote: create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("remote: http request: %w", err)
		}
		return retry.RetryableError(fmt.Errorf("remote: http request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("remote: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
		if httpErr.IsRetryable() {
			return retry.RetryableError(httpErr)
		}
		return httpErr
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("remote: invalid response JSON: %w", err)
	}
	return nil
}
