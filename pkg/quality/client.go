// Package quality provides a client for the content quality service,
// which classifies card content, analyzes images and normalizes tag
// suggestions against a user's existing vocabulary.
package quality

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

// Client defines the content quality operations. Every call makes
// exactly one attempt; callers own the retry policy.
type Client interface {
	// Classify determines the card type, a title, a summary, a platform
	// label and suggested tags from the card's URL and content.
	Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResponse, error)
	// AnalyzeImage extracts dominant colors, detected objects and OCR
	// text from an image.
	AnalyzeImage(ctx context.Context, imageURL string) (*ImageAnalysisResponse, error)
	// NormalizeTags folds suggested tags onto the user's existing
	// vocabulary, collapsing near-duplicates.
	NormalizeTags(ctx context.Context, suggested, vocabulary []string) ([]string, error)
}

// ClassifyRequest carries the content to classify.
type ClassifyRequest struct {
	URL        string `json:"url,omitempty"`
	Content    string `json:"content,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
	ImageCount int    `json:"image_count,omitempty"`
}

// ClassifyResponse is the classification verdict.
type ClassifyResponse struct {
	Type     string   `json:"type"`
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Platform string   `json:"platform"`
	Tags     []string `json:"tags"`
}

// ImageAnalysisResponse is the image enrichment result.
type ImageAnalysisResponse struct {
	Colors  []string `json:"colors"`
	Objects []string `json:"objects"`
	OCRText string   `json:"ocr_text"`
}

type normalizeRequest struct {
	Suggested  []string `json:"suggested"`
	Vocabulary []string `json:"vocabulary"`
}

type normalizeResponse struct {
	Tags []string `json:"tags"`
}

// Option configures the quality client.
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

// NewClient creates a content quality client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://quality.cardstash.app",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(10), 10),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResponse, error) {
	// Image-only cards classify from the image alone.
	if req.URL == "" && req.Content == "" && req.ImageURL == "" {
		return nil, eris.New("quality: url, content or image url required")
	}
	var result ClassifyResponse
	if err := c.post(ctx, "/classify", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *httpClient) AnalyzeImage(ctx context.Context, imageURL string) (*ImageAnalysisResponse, error) {
	if imageURL == "" {
		return nil, eris.New("quality: image url required")
	}
	var result ImageAnalysisResponse
	payload := map[string]string{"image_url": imageURL}
	if err := c.post(ctx, "/analyze/image", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *httpClient) NormalizeTags(ctx context.Context, suggested, vocabulary []string) ([]string, error) {
	if len(suggested) == 0 {
		return nil, nil
	}
	var result normalizeResponse
	if err := c.post(ctx, "/normalize/tags", normalizeRequest{Suggested: suggested, Vocabulary: vocabulary}, &result); err != nil {
		return nil, err
	}
	return result.Tags, nil
}

func (c *httpClient) post(ctx context.Context, path string, payload, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "quality: rate limit wait")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "quality: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "quality: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "quality: %s request failed", path)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "quality: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("quality: %s unexpected status %d: %s", path, resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrapf(err, "quality: unmarshal %s response", path)
	}
	return nil
}
