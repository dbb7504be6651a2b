// Package scraper provides a client for the readability scraping
// service that turns a saved URL into article content, a title, a lead
// image and a publication date.
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the scraping operations.
type Client interface {
	// Scrape fetches and extracts readable content for a URL. It makes
	// exactly one attempt; callers own any retry policy.
	Scrape(ctx context.Context, targetURL string) (*Result, error)
}

// Result is the extracted page content.
type Result struct {
	Content     string     `json:"content"`
	Title       string     `json:"title"`
	ImageURL    string     `json:"image_url"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

type scrapeRequest struct {
	URL string `json:"url"`
}

// Option configures the scraper client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a scraper client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://scrape.cardstash.app",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		// The scrape service throttles aggressively above ~5 rps.
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	if targetURL == "" {
		return nil, eris.New("scraper: url required")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "scraper: rate limit wait")
	}

	payload, err := json.Marshal(scrapeRequest{URL: targetURL})
	if err != nil {
		return nil, eris.Wrap(err, "scraper: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/scrape", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "scraper: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "scraper: request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "scraper: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("scraper: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "scraper: unmarshal response")
	}
	return &result, nil
}
