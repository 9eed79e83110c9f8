package vendorauth

import (
	"encoding/base64"
	"testing"

	"github.com/openintegrate/ingest-core/internal/apispec"
)

func envFrom(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func emptyEnv(string) string { return "" }

func TestSynthesize_StripeDetection(t *testing.T) {
	s := NewSynthesizer()
	byURL := s.Synthesize(&apispec.Specification{URL: "https://stripe.com/docs/api"})
	if byURL.Vendor != "stripe" {
		t.Fatalf("Expected stripe vendor from URL, got %q", byURL.Vendor)
	}
	byTitle := s.Synthesize(&apispec.Specification{Title: "Stripe API Reference"})
	if byTitle.Vendor != "stripe" {
		t.Fatalf("Expected stripe vendor from title, got %q", byTitle.Vendor)
	}
}

func TestSynthesize_VendorPriorityOrder(t *testing.T) {
	// Stripe appears before ramp in the dispatch table, so a spec matching
	// both resolves to stripe.
	s := NewSynthesizer()
	spec := &apispec.Specification{Title: "Stripe to Ramp sync"}
	if got := s.Synthesize(spec); got.Vendor != "stripe" {
		t.Errorf("Expected stripe to win priority order, got %q", got.Vendor)
	}
}

func TestSynthesize_Deterministic(t *testing.T) {
	s := NewSynthesizer()
	spec := &apispec.Specification{URL: "https://developer.zendesk.com", Title: "Zendesk"}
	a := s.Synthesize(spec)
	b := s.Synthesize(spec)
	if a.Vendor != b.Vendor || len(a.Headers) != len(b.Headers) {
		t.Fatalf("Synthesis not deterministic: %+v vs %+v", a, b)
	}
}

func TestResolve_StripeBasicKey(t *testing.T) {
	s := NewSynthesizer()
	spec := s.Synthesize(&apispec.Specification{URL: "https://stripe.com"})

	headers, err := s.Resolve(spec, envFrom(map[string]string{"STRIPE_SK": "sk_test_123"}))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("sk_test_123:"))
	if got := headers.Get("Authorization"); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestResolve_PlaceholderWhenSecretMissing(t *testing.T) {
	s := NewSynthesizer()
	spec := s.Synthesize(&apispec.Specification{URL: "https://stripe.com"})

	headers, err := s.Resolve(spec, emptyEnv)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got := headers.Get("Authorization"); got != "Basic YOUR_STRIPE_KEY" {
		t.Errorf("Expected placeholder value, got %q", got)
	}
}

func TestResolve_PlaceholdersDisabled(t *testing.T) {
	s := &Synthesizer{AllowPlaceholders: false}
	spec := s.Synthesize(&apispec.Specification{URL: "https://stripe.com"})

	if _, err := s.Resolve(spec, emptyEnv); err == nil {
		t.Fatal("Expected error with placeholders disabled and no secret")
	}
}

func TestResolve_AtlassianBasicPair(t *testing.T) {
	s := NewSynthesizer()
	spec := s.Synthesize(&apispec.Specification{URL: "https://example.atlassian.net"})
	if spec.Vendor != "jira" {
		t.Fatalf("Expected jira vendor, got %q", spec.Vendor)
	}

	headers, err := s.Resolve(spec, envFrom(map[string]string{
		"JIRA_EMAIL":     "dev@example.com",
		"JIRA_API_TOKEN": "tok123",
	}))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("dev@example.com:tok123"))
	if got := headers.Get("Authorization"); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestResolve_ZendeskTokenSuffix(t *testing.T) {
	s := NewSynthesizer()
	spec := s.Synthesize(&apispec.Specification{Title: "Zendesk Support API"})

	headers, err := s.Resolve(spec, envFrom(map[string]string{
		"ZENDESK_EMAIL":     "agent@example.com",
		"ZENDESK_API_TOKEN": "ztok",
	}))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("agent@example.com/token:ztok"))
	if got := headers.Get("Authorization"); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestResolve_ShopifyCustomHeader(t *testing.T) {
	s := NewSynthesizer()
	spec := s.Synthesize(&apispec.Specification{URL: "https://shop.myshopify.com"})
	if spec.Vendor != "shopify" {
		t.Fatalf("Expected shopify vendor, got %q", spec.Vendor)
	}

	headers, err := s.Resolve(spec, envFrom(map[string]string{"SHOPIFY_ACCESS_TOKEN": "shpat_x"}))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got := headers.Get("X-Shopify-Access-Token"); got != "shpat_x" {
		t.Errorf("Expected raw token header, got %q", got)
	}
}

func TestSynthesize_GenericBearer(t *testing.T) {
	s := NewSynthesizer()
	spec := s.Synthesize(&apispec.Specification{
		URL:            "https://api.unknownvendor.com",
		Authentication: apispec.Authentication{Type: "bearer", Token: "abc"},
	})
	if spec.Vendor != "" {
		t.Fatalf("Expected no vendor, got %q", spec.Vendor)
	}
	headers, err := s.Resolve(spec, emptyEnv)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got := headers.Get("Authorization"); got != "Bearer abc" {
		t.Errorf("Expected bearer header, got %q", got)
	}
}

func TestSynthesize_GenericAPIKey(t *testing.T) {
	s := NewSynthesizer()
	spec := s.Synthesize(&apispec.Specification{
		Authentication: apispec.Authentication{Type: "api_key", HeaderName: "X-Custom-Key", APIKey: "k1"},
	})
	headers, err := s.Resolve(spec, emptyEnv)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got := headers.Get("X-Custom-Key"); got != "k1" {
		t.Errorf("Expected api key header, got %q", got)
	}
}

func TestSynthesize_UnknownAuthTypeYieldsNoHeaders(t *testing.T) {
	s := NewSynthesizer()
	spec := s.Synthesize(&apispec.Specification{URL: "https://api.unknownvendor.com"})
	headers, err := s.Resolve(spec, emptyEnv)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(headers) != 0 {
		t.Errorf("Expected empty header set, got %v", headers)
	}
}

func TestVendorEnvVars_CoversAllVendors(t *testing.T) {
	vars := VendorEnvVars()
	for _, vendor := range []string{"stripe", "hubspot", "shopify", "quickbooks", "zendesk", "jira", "ramp"} {
		if len(vars[vendor]) == 0 {
			t.Errorf("Vendor %s has no registered env vars", vendor)
		}
	}
}
