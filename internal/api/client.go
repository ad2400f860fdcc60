// Package api talks to the static web host that serves campaign data.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxDocumentSize caps a fetched data document.
const maxDocumentSize = 32 << 20

// Client fetches data documents from a web host.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client. apiKey, when set, is sent as a bearer token.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// BaseURL returns the host prefix without trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Healthcheck checks if the host is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	resp, err := c.get(ctx, "/healthcheck")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// Fetch downloads the document at path, relative to the base URL.
func (c *Client) Fetch(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.get(ctx, "/"+strings.TrimLeft(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to load %s: status %d", path, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return c.httpClient.Do(req)
}
