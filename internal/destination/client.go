// Package destination is the client for the destination data platform:
// resource endpoints, streaming table writes, and ontology schema export.
package destination

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openintegrate/ingest-core/internal/ingest"
)

const (
	// DefaultBaseURL is the hosted destination platform.
	DefaultBaseURL = "https://api.acho.io"

	// schemaTimeout bounds the ontology schema export call.
	schemaTimeout = 60 * time.Second
)

// Client talks to the destination platform with one API token.
type Client struct {
	baseURL string
	token   string

	// httpClient handles request/response calls.
	httpClient *http.Client
	// streamClient handles long-lived write streams; it carries no client
	// timeout and relies on the caller's context instead.
	streamClient *http.Client
}

// NewClient creates a destination client. An empty baseURL selects the
// hosted platform.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		token:        token,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		streamClient: &http.Client{},
	}
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
}

// CreateResourceEndpoint registers a new resource endpoint and returns its id.
func (c *Client) CreateResourceEndpoint(ctx context.Context, name string) (string, error) {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/resource-endpoints", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create resource endpoint: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create resource endpoint: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed struct {
		ResID string `json:"resId"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.ResID == "" {
		return "", fmt.Errorf("create resource endpoint: response carried no resId")
	}
	return parsed.ResID, nil
}

// OpenWriteStream opens a streaming NDJSON write channel into one table.
// Records are written one JSON line at a time; Close ends the stream and
// blocks until the platform acknowledges with HTTP 200.
func (c *Client) OpenWriteStream(ctx context.Context, resID, table string) (ingest.RecordWriter, error) {
	pr, pw := io.Pipe()

	url := fmt.Sprintf("%s/resource-endpoints/%s/tables/%s/write-stream", c.baseURL, resID, table)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		pw.Close()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	c.authorize(req)

	ws := &writeStream{pw: pw, done: make(chan error, 1)}
	go func() {
		resp, err := c.streamClient.Do(req)
		if err != nil {
			pr.CloseWithError(err)
			ws.done <- fmt.Errorf("write stream: %w", err)
			return
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		if resp.StatusCode != http.StatusOK {
			ws.done <- fmt.Errorf("write stream: HTTP %d", resp.StatusCode)
			return
		}
		ws.done <- nil
	}()

	return ws, nil
}

type writeStream struct {
	pw   *io.PipeWriter
	done chan error
}

// Write sends one record as a newline-delimited JSON line.
func (w *writeStream) Write(rec ingest.Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	line = append(line, '\n')
	if _, err := w.pw.Write(line); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Close signals end-of-stream and waits for the terminal acknowledgment.
func (w *writeStream) Close() error {
	w.pw.Close()
	return <-w.done
}

// OntologySchema is the destination's fixed table layout that source data is
// mapped onto.
type OntologySchema struct {
	Tables []Table `json:"tables"`
}

// Table is one ontology table with its field names.
type Table struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
}

// ExportSchema fetches the destination's ontology schema. The call is bounded
// by its own 60-second timeout.
func (c *Client) ExportSchema(ctx context.Context) (*OntologySchema, error) {
	ctx, cancel := context.WithTimeout(ctx, schemaTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ontology/schema", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("export schema: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("export schema: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var schema OntologySchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return &schema, nil
}
