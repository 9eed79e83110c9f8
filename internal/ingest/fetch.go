// Package ingest implements the native data-movement core: a throttled fetch
// client, payload normalization, the three pagination strategies, and the
// typed ingestion plan that the runner executes.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// requestTimeout bounds each page fetch.
	requestTimeout = 30 * time.Second
	// pageInterval is the fixed pause between successive page fetches.
	pageInterval = 100 * time.Millisecond
)

// Fetcher is a throttled JSON GET client for one source API. The rate
// limiter admits the first call immediately and spaces later calls by
// pageInterval, which is the fixed inter-page delay of the pipeline.
type Fetcher struct {
	baseURL    string
	headers    http.Header
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewFetcher creates a fetcher for the given base URL and auth headers.
func NewFetcher(baseURL string, headers http.Header) *Fetcher {
	return &Fetcher{
		baseURL:    baseURL,
		headers:    headers,
		httpClient: &http.Client{Timeout: requestTimeout},
		limiter:    rate.NewLimiter(rate.Every(pageInterval), 1),
	}
}

// FetchPage performs one GET against baseURL+endpoint and decodes the JSON
// payload. The payload keeps its dynamic shape; Normalize flattens it.
func (f *Fetcher) FetchPage(ctx context.Context, endpoint string, query url.Values) (any, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	fullURL := strings.TrimSuffix(f.baseURL, "/") + "/" + strings.TrimPrefix(endpoint, "/")
	if len(query) > 0 {
		// Endpoint paths may carry their own query string (documented
		// endpoints like /v1/users?limit=100), so pagination parameters
		// append rather than open a second query.
		sep := "?"
		if strings.Contains(fullURL, "?") {
			sep = "&"
		}
		fullURL += sep + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for name, values := range f.headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}
