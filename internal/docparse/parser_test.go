package docparse

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openintegrate/ingest-core/internal/llm"
)

type stubProvider struct {
	name       string
	completion string
	err        error
	lastPrompt string
	calls      int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Complete(_ context.Context, prompt string, _ llm.Options) (string, error) {
	s.calls++
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.completion, nil
}

const docPage = `<html>
<head><title>Widget API Reference</title></head>
<body>
<script>var tracking = true;</script>
<style>.hidden { display: none }</style>
<nav>
  <a href="/v1/widgets">List Widgets</a>
  <a href="/about">About us</a>
</nav>
<p>The Widget API lets you manage widgets.</p>
<table>
  <tr><td>GET</td><td>/v1/widgets</td></tr>
  <tr><td>color</td><td>string</td></tr>
</table>
<pre>curl https://api.example.com/v1/widgets</pre>
</body>
</html>`

func serveDoc(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestParseExtractsTitleAndSpecs(t *testing.T) {
	srv := serveDoc(t, docPage)
	provider := &stubProvider{name: "anthropic", completion: `{"api_overview": "widget management"}`}

	parser := NewParser(provider, nil)
	result := parser.Parse(context.Background(), srv.URL)

	if result.Status != "success" {
		t.Fatalf("expected success, got %s (%s)", result.Status, result.Error)
	}
	if result.Title != "Widget API Reference" {
		t.Errorf("unexpected title %q", result.Title)
	}
	if result.APISpecifications["api_overview"] != "widget management" {
		t.Errorf("unexpected specs: %v", result.APISpecifications)
	}
}

func TestParsePromptIncludesEndpointListings(t *testing.T) {
	srv := serveDoc(t, docPage)
	provider := &stubProvider{name: "anthropic", completion: `{}`}

	parser := NewParser(provider, nil)
	parser.Parse(context.Background(), srv.URL)

	if !strings.Contains(provider.lastPrompt, "ENDPOINT LISTINGS:") {
		t.Fatal("prompt missing endpoint listings section")
	}
	if !strings.Contains(provider.lastPrompt, "Endpoint: List Widgets -> /v1/widgets") {
		t.Errorf("prompt missing nav link entry:\n%s", provider.lastPrompt)
	}
	if !strings.Contains(provider.lastPrompt, "Table Row: GET | /v1/widgets") {
		t.Errorf("prompt missing table row entry")
	}
	if strings.Contains(provider.lastPrompt, "color | string") {
		t.Errorf("non-endpoint table row should not be listed")
	}
	if !strings.Contains(provider.lastPrompt, "Code Example: curl https://api.example.com/v1/widgets") {
		t.Errorf("prompt missing code example entry")
	}
	if strings.Contains(provider.lastPrompt, "var tracking") {
		t.Errorf("script content leaked into prompt")
	}
}

func TestParseRoutesLargeContentToLargeContextProvider(t *testing.T) {
	filler := strings.Repeat("widgets are great and plentiful here ", 400)
	srv := serveDoc(t, "<html><head><title>Big</title></head><body><p>"+filler+"</p></body></html>")

	primary := &stubProvider{name: "anthropic", completion: `{}`}
	large := &stubProvider{name: "gemini", completion: `{"base_url": "https://api.example.com"}`}

	parser := NewParser(primary, large)
	result := parser.Parse(context.Background(), srv.URL)

	if primary.calls != 0 {
		t.Errorf("primary provider called %d times for large content", primary.calls)
	}
	if large.calls != 1 {
		t.Fatalf("large-context provider called %d times", large.calls)
	}
	if result.APISpecifications["base_url"] != "https://api.example.com" {
		t.Errorf("unexpected specs: %v", result.APISpecifications)
	}
}

func TestParseSmallContentUsesPrimary(t *testing.T) {
	srv := serveDoc(t, docPage)
	primary := &stubProvider{name: "anthropic", completion: `{}`}
	large := &stubProvider{name: "gemini", completion: `{}`}

	parser := NewParser(primary, large)
	parser.Parse(context.Background(), srv.URL)

	if primary.calls != 1 || large.calls != 0 {
		t.Errorf("expected primary only, got primary=%d large=%d", primary.calls, large.calls)
	}
}

func TestParseNonJSONCompletionKeptAsRawAnalysis(t *testing.T) {
	srv := serveDoc(t, docPage)
	provider := &stubProvider{name: "anthropic", completion: "I could not find any API details."}

	parser := NewParser(provider, nil)
	result := parser.Parse(context.Background(), srv.URL)

	if result.Status != "success" {
		t.Fatalf("expected success, got %s", result.Status)
	}
	if result.APISpecifications["raw_analysis"] != "I could not find any API details." {
		t.Errorf("raw analysis not preserved: %v", result.APISpecifications)
	}
}

func TestParseLLMFailureDegradesInBand(t *testing.T) {
	srv := serveDoc(t, docPage)
	provider := &stubProvider{name: "anthropic", err: fmt.Errorf("quota exceeded")}

	parser := NewParser(provider, nil)
	result := parser.Parse(context.Background(), srv.URL)

	if result.Status != "success" {
		t.Fatalf("LLM failure should not fail the parse, got %s", result.Status)
	}
	errMsg, _ := result.APISpecifications["error"].(string)
	if !strings.Contains(errMsg, "quota exceeded") {
		t.Errorf("error not surfaced in specs: %v", result.APISpecifications)
	}
	if _, ok := result.APISpecifications["fallback_content"]; !ok {
		t.Errorf("fallback content missing")
	}
}

func TestParseFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	parser := NewParser(&stubProvider{name: "anthropic"}, nil)
	result := parser.Parse(context.Background(), srv.URL)

	if result.Status != "error" {
		t.Fatalf("expected error status, got %s", result.Status)
	}
	if !strings.Contains(result.Error, "404") {
		t.Errorf("unexpected error %q", result.Error)
	}
}
