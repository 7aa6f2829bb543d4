// Package booru fetches post metadata from the board's DAPI endpoint.
package booru

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/iconidentify/favmirror/internal/config"
	"github.com/iconidentify/favmirror/internal/domain"
)

// Client fetches remote post metadata.
type Client interface {
	// FetchPost returns the metadata of a single post. A missing post
	// yields domain.ErrRemotePostNotFound.
	FetchPost(ctx context.Context, id domain.ExternalID) (*domain.RemotePost, error)
}

// HTTPClient implements Client against the XML post index.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	userID     string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a new board API client.
func NewClient(cfg config.SourceConfig) *HTTPClient {
	return &HTTPClient{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		userID:    cfg.UserID,
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type postsResponse struct {
	XMLName xml.Name   `xml:"posts"`
	Count   int        `xml:"count,attr"`
	Posts   []postNode `xml:"post"`
}

type postNode struct {
	ID      int64  `xml:"id,attr"`
	FileURL string `xml:"file_url,attr"`
	Tags    string `xml:"tags,attr"`
	MD5     string `xml:"md5,attr"`
	Rating  string `xml:"rating,attr"`
}

// FetchPost implements Client.
func (c *HTTPClient) FetchPost(ctx context.Context, id domain.ExternalID) (*domain.RemotePost, error) {
	reqURL, err := c.postURL(id)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch post: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, domain.ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed postsResponse
	if err := xml.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(parsed.Posts) == 0 {
		return nil, domain.ErrRemotePostNotFound
	}

	p := parsed.Posts[0]
	if p.FileURL == "" {
		return nil, domain.ErrNoContentURL
	}

	postID := domain.ExternalID(p.ID)
	if postID == 0 {
		postID = id
	}

	return &domain.RemotePost{
		ID:      postID,
		FileURL: p.FileURL,
		Tags:    strings.Fields(p.Tags),
		MD5:     p.MD5,
		Rating:  p.Rating,
	}, nil
}

func (c *HTTPClient) postURL(id domain.ExternalID) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}

	q := u.Query()
	q.Set("page", "dapi")
	q.Set("s", "post")
	q.Set("q", "index")
	q.Set("id", id.String())
	if c.apiKey != "" && c.userID != "" {
		q.Set("api_key", c.apiKey)
		q.Set("user_id", c.userID)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
