// Package vector provides a client for the vector index service that
// backs semantic card search. Writes are best-effort from the caller's
// point of view, so the client retries transient failures itself.
package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cardstash/cardstash/internal/resilience"
)

// Client defines the vector index operations.
type Client interface {
	// Upsert indexes (or reindexes) the text representation of a card.
	Upsert(ctx context.Context, req UpsertRequest) error
	// Delete removes a card from the index.
	Delete(ctx context.Context, id string) error
}

// UpsertRequest carries one document for indexing.
type UpsertRequest struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Option configures the vector client.
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

// WithIndex sets the target index name.
func WithIndex(index string) Option {
	return func(c *httpClient) {
		c.index = index
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	index   string
	http    *http.Client
}

// NewClient creates a vector index client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://vector.cardstash.app",
		index:   "cards",
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryDo executes a request with exponential backoff retries on
// transient failures. The request body is re-created per attempt.
func (c *httpClient) retryDo(ctx context.Context, method, url string, payload []byte) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 500 * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return nil, 0, eris.Wrap(err, "vector: create request")
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "vector: read response body")
		}

		if resilience.IsTransientHTTPStatus(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("vector: status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

func (c *httpClient) Upsert(ctx context.Context, req UpsertRequest) error {
	if req.ID == "" {
		return eris.New("vector: document id required")
	}
	if req.Text == "" {
		return eris.New("vector: document text required")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return eris.Wrap(err, "vector: marshal request")
	}

	body, status, err := c.retryDo(ctx, http.MethodPut, c.baseURL+"/indexes/"+c.index+"/documents/"+req.ID, payload)
	if err != nil {
		return eris.Wrap(err, "vector: upsert failed")
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return eris.Errorf("vector: upsert unexpected status %d: %s", status, string(body))
	}
	return nil
}

func (c *httpClient) Delete(ctx context.Context, id string) error {
	if id == "" {
		return eris.New("vector: document id required")
	}

	body, status, err := c.retryDo(ctx, http.MethodDelete, c.baseURL+"/indexes/"+c.index+"/documents/"+id, nil)
	if err != nil {
		return eris.Wrap(err, "vector: delete failed")
	}
	// A document that was never indexed is fine to delete.
	if status != http.StatusOK && status != http.StatusNoContent && status != http.StatusNotFound {
		return eris.Errorf("vector: delete unexpected status %d: %s", status, string(body))
	}
	return nil
}
