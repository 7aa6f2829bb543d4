// Package client talks to a running favmirror server over its HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iconidentify/favmirror/internal/api/handler"
	"github.com/iconidentify/favmirror/internal/domain"
)

// Client wraps the favmirror API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ready returns the server's readiness report. A 503 still yields the
// decoded report alongside an error.
func (c *Client) Ready(ctx context.Context) (*handler.HealthResponse, error) {
	var resp handler.HealthResponse
	status, err := c.do(ctx, http.MethodGet, "/ready", nil, &resp)
	if err != nil && status != http.StatusServiceUnavailable {
		return nil, err
	}
	return &resp, err
}

// Pending returns the ids of posts without a download, newest first.
func (c *Client) Pending(ctx context.Context) ([]domain.ExternalID, error) {
	var resp handler.PostIDs
	if _, err := c.do(ctx, http.MethodGet, "/api/posts/pending", nil, &resp); err != nil {
		return nil, err
	}
	return resp.PostIDs, nil
}

// Submit sends ids to the intake gate and returns the ones that were new.
func (c *Client) Submit(ctx context.Context, ids []domain.ExternalID) ([]domain.ExternalID, error) {
	var resp handler.PostIDs
	if _, err := c.do(ctx, http.MethodPost, "/api/posts", handler.PostIDs{PostIDs: ids}, &resp); err != nil {
		return nil, err
	}
	return resp.PostIDs, nil
}

// Search runs a tag query.
func (c *Client) Search(ctx context.Context, term string) ([]domain.ExternalID, error) {
	var resp handler.PostIDs
	path := "/api/search?" + url.Values{"term": {term}}.Encode()
	if _, err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.PostIDs, nil
}

// Autocomplete returns tag suggestions for term.
func (c *Client) Autocomplete(ctx context.Context, term string) ([]domain.TagUsage, error) {
	var resp handler.AutocompleteResponse
	path := "/api/autocomplete?" + url.Values{"term": {term}}.Encode()
	if _, err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Suggestions, nil
}

// ImageURL returns the address of a post's file.
func (c *Client) ImageURL(id domain.ExternalID) string {
	return c.baseURL + "/image/" + id.String()
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) (int, error) {
	var body io.Reader
	if payload != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			return 0, fmt.Errorf("encode payload: %w", err)
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "favmirror-tui")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}

	if out != nil && len(raw) > 0 {
		if jerr := json.Unmarshal(raw, out); jerr != nil && resp.StatusCode < 300 {
			return resp.StatusCode, fmt.Errorf("decode %s: %w", path, jerr)
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("favmirror api (%d): %s", resp.StatusCode, apiError(raw))
	}
	return resp.StatusCode, nil
}

func apiError(raw []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(raw))
}
