// Package docparse fetches API documentation pages and extracts structured
// specifications from them with an LLM.
package docparse

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/openintegrate/ingest-core/internal/llm"
)

const (
	fetchTimeout = 10 * time.Second
	browserUA    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	// Content above this size goes to the large-context model when one is
	// configured.
	largeContentThreshold = 10000
)

// Result is the outcome of parsing one documentation URL. Failures are
// reported in-band through Status and Error rather than as transport errors.
type Result struct {
	URL               string         `json:"url"`
	Title             string         `json:"title,omitempty"`
	APISpecifications map[string]any `json:"api_specifications,omitempty"`
	Status            string         `json:"status"`
	Error             string         `json:"error,omitempty"`
}

// Parser reads API documentation pages and summarizes their specifications.
type Parser struct {
	httpClient *http.Client
	primary    llm.Provider
	largeCtx   llm.Provider
}

// NewParser builds a parser around a primary provider and an optional
// large-context provider used for big documents. largeCtx may be nil.
func NewParser(primary llm.Provider, largeCtx llm.Provider) *Parser {
	return &Parser{
		httpClient: &http.Client{Timeout: fetchTimeout},
		primary:    primary,
		largeCtx:   largeCtx,
	}
}

// Parse fetches the documentation at url, extracts its text and endpoint
// listings, and asks an LLM for a structured specification.
func (p *Parser) Parse(ctx context.Context, url string) Result {
	doc, err := p.fetch(ctx, url)
	if err != nil {
		return Result{URL: url, Status: "error", Error: err.Error()}
	}

	content := extractContent(doc)
	title := extractTitle(doc)

	specs := p.extractSpecifications(ctx, url, content)

	return Result{
		URL:               url,
		Title:             title,
		APISpecifications: specs,
		Status:            "success",
	}
}

func (p *Parser) fetch(ctx context.Context, url string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", browserUA)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch documentation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read documentation: %w", err)
	}
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// extractSpecifications routes large documents to the large-context provider
// when one is available and degrades LLM failures to an in-band error map.
func (p *Parser) extractSpecifications(ctx context.Context, url, content string) map[string]any {
	provider := p.primary
	if len(content) > largeContentThreshold && p.largeCtx != nil {
		provider = p.largeCtx
	}

	prompt := buildExtractionPrompt(url, content)
	completion, err := provider.Complete(ctx, prompt, llm.Options{
		System:      extractionSystemPrompt,
		MaxTokens:   2000,
		Temperature: 0.1,
	})
	if err != nil {
		log.Printf("doc analysis failed (%s): %v", provider.Name(), err)
		fallback := content
		if len(fallback) > 500 {
			fallback = fallback[:500] + "..."
		}
		return map[string]any{
			"error":            fmt.Sprintf("%s analysis failed: %v", provider.Name(), err),
			"fallback_content": fallback,
		}
	}

	var specs map[string]any
	if err := llm.DecodeJSON(completion, &specs); err != nil {
		return map[string]any{
			"raw_analysis": completion,
			"note":         "Could not extract JSON from response",
		}
	}
	return specs
}

const extractionSystemPrompt = `You are an expert API analyst specializing in data integration. Your job is to analyze API documentation and extract specifications that will be used by other AI agents to:

1. Map API data to database ontologies
2. Create programmatic SDK calls for data ingestion
3. Understand the structure and capabilities of the API

Focus on extracting information that will help with automated data integration workflows.`

func buildExtractionPrompt(url, content string) string {
	return fmt.Sprintf(`Analyze this API documentation and extract specifications for data integration:

URL: %s

Documentation Content:
%s

IMPORTANT: Respond ONLY with valid JSON. Do not include any text before or after the JSON object.

Extract ALL available endpoints and entity types. Be comprehensive and thorough. Look for:
- All API endpoints mentioned
- All data models/entities described
- All authentication methods
- Rate limits and pagination details
- Integration considerations

Respond with this exact JSON structure:

{
    "api_overview": "Brief description of what this API does and its main purpose",
    "authentication_method": "How authentication works (API keys, OAuth, etc.)",
    "base_url": "The base URL for API calls",
    "endpoints": [
        {
            "method": "GET/POST/PUT/DELETE",
            "path": "/api/endpoint",
            "description": "What this endpoint does",
            "data_type": "What type of data this returns (users, orders, etc.)"
        }
    ],
    "data_models": [
        {
            "name": "Model name",
            "fields": ["field1", "field2", "field3"],
            "description": "What this model represents"
        }
    ],
    "rate_limits": "Rate limiting information if available",
    "pagination": "How pagination works (if mentioned)",
    "integration_notes": "Important details for data integration"
}

If any information is not available, use "Not specified" for that field. Be as comprehensive as possible in extracting ALL endpoints and entity types mentioned in the documentation.`, url, content)
}
