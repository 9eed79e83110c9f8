// Package vendorauth synthesizes credential-header construction logic for
// known API vendors. Vendor detection is a priority-ordered predicate pass,
// and the produced HeaderSpec names the environment variables it consumes so
// the executor can inject only the relevant secrets into the child process.
package vendorauth

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/openintegrate/ingest-core/internal/apispec"
)

// Scheme identifies how a header value is constructed from its secret.
type Scheme string

const (
	// SchemeBasicKey encodes base64(key + ":"), the Stripe convention.
	SchemeBasicKey Scheme = "basic_key"
	// SchemeBasicPair encodes base64(user + suffix + ":" + secret), the
	// Atlassian/Zendesk convention.
	SchemeBasicPair Scheme = "basic_pair"
	// SchemeBearer emits "Bearer <token>".
	SchemeBearer Scheme = "bearer"
	// SchemeToken emits the raw secret in a custom-named header.
	SchemeToken Scheme = "token"
	// SchemeLiteral emits a pre-rendered value unchanged.
	SchemeLiteral Scheme = "literal"
)

// Header describes the construction of one credential header.
type Header struct {
	Name        string   `json:"name"`
	Scheme      Scheme   `json:"scheme"`
	EnvVars     []string `json:"env_vars,omitempty"`
	UserSuffix  string   `json:"user_suffix,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	Value       string   `json:"value,omitempty"` // SchemeLiteral only
}

// HeaderSpec is the full header-construction logic for one specification.
// It is deterministic given (url, title): resolution against an environment
// happens later, inside the runner.
type HeaderSpec struct {
	Vendor  string   `json:"vendor,omitempty"`
	Headers []Header `json:"headers"`
}

// EnvVars returns every environment variable the spec consumes.
func (s HeaderSpec) EnvVars() []string {
	var vars []string
	for _, h := range s.Headers {
		vars = append(vars, h.EnvVars...)
	}
	return vars
}

// Synthesizer builds HeaderSpecs from API specifications.
//
// AllowPlaceholders preserves the deferred-failure policy of the pipeline: a
// missing secret yields a syntactically complete header with a literal
// placeholder, so the run proceeds and fails remote authentication instead of
// failing synthesis. Disable it to reject missing secrets at resolve time.
type Synthesizer struct {
	AllowPlaceholders bool
}

// NewSynthesizer returns a synthesizer with the deferred-failure policy on.
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{AllowPlaceholders: true}
}

// Synthesize detects the vendor for the specification and emits its header
// construction logic. Unmatched specs fall back to the generic logic keyed
// off the declared authentication type.
func (s *Synthesizer) Synthesize(spec *apispec.Specification) HeaderSpec {
	if spec == nil {
		return HeaderSpec{}
	}
	for _, rule := range vendorRules {
		if rule.match(spec) {
			return HeaderSpec{Vendor: rule.name, Headers: rule.headers}
		}
	}
	return genericHeaders(spec)
}

// Resolve materializes the spec into concrete headers using the given
// environment lookup. With placeholders disabled, a missing secret is an
// error instead.
func (s *Synthesizer) Resolve(spec HeaderSpec, lookup func(string) string) (http.Header, error) {
	out := http.Header{}
	for _, h := range spec.Headers {
		value, err := s.resolveHeader(h, lookup)
		if err != nil {
			return nil, err
		}
		if value != "" {
			out.Set(h.Name, value)
		}
	}
	return out, nil
}

func (s *Synthesizer) resolveHeader(h Header, lookup func(string) string) (string, error) {
	if h.Scheme == SchemeLiteral {
		return h.Value, nil
	}

	secrets := make([]string, 0, len(h.EnvVars))
	missing := false
	for _, name := range h.EnvVars {
		v := lookup(name)
		if v == "" {
			missing = true
		}
		secrets = append(secrets, v)
	}

	if missing {
		if !s.AllowPlaceholders {
			return "", fmt.Errorf("missing credential environment variable(s) %s", strings.Join(h.EnvVars, ", "))
		}
		switch h.Scheme {
		case SchemeBearer:
			return "Bearer " + h.Placeholder, nil
		case SchemeBasicKey, SchemeBasicPair:
			return "Basic " + h.Placeholder, nil
		default:
			return h.Placeholder, nil
		}
	}

	switch h.Scheme {
	case SchemeBasicKey:
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(secrets[0]+":")), nil
	case SchemeBasicPair:
		credentials := secrets[0] + h.UserSuffix + ":" + secrets[1]
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(credentials)), nil
	case SchemeBearer:
		return "Bearer " + secrets[0], nil
	default:
		return secrets[0], nil
	}
}

// --- Vendor dispatch table ---

// vendorRule pairs a detection predicate with the headers a vendor needs.
// Rules are evaluated in order; the first match wins.
type vendorRule struct {
	name    string
	match   func(*apispec.Specification) bool
	headers []Header
}

func matchKeywords(keywords ...string) func(*apispec.Specification) bool {
	return func(spec *apispec.Specification) bool {
		haystack := strings.ToLower(spec.URL) + " " + strings.ToLower(spec.Title)
		for _, kw := range keywords {
			if strings.Contains(haystack, kw) {
				return true
			}
		}
		return false
	}
}

var vendorRules = []vendorRule{
	{
		name:  "stripe",
		match: matchKeywords("stripe"),
		headers: []Header{{
			Name:        "Authorization",
			Scheme:      SchemeBasicKey,
			EnvVars:     []string{"STRIPE_SK"},
			Placeholder: "YOUR_STRIPE_KEY",
		}},
	},
	{
		name:  "hubspot",
		match: matchKeywords("hubspot"),
		headers: []Header{{
			Name:        "Authorization",
			Scheme:      SchemeBearer,
			EnvVars:     []string{"HUBSPOT_ACCESS_TOKEN"},
			Placeholder: "YOUR_HUBSPOT_TOKEN",
		}},
	},
	{
		name:  "shopify",
		match: matchKeywords("shopify"),
		headers: []Header{{
			Name:        "X-Shopify-Access-Token",
			Scheme:      SchemeToken,
			EnvVars:     []string{"SHOPIFY_ACCESS_TOKEN"},
			Placeholder: "YOUR_SHOPIFY_TOKEN",
		}},
	},
	{
		name:  "quickbooks",
		match: matchKeywords("quickbooks", "intuit"),
		headers: []Header{{
			Name:        "Authorization",
			Scheme:      SchemeBearer,
			EnvVars:     []string{"QUICKBOOKS_ACCESS_TOKEN"},
			Placeholder: "YOUR_QUICKBOOKS_TOKEN",
		}},
	},
	{
		name:  "zendesk",
		match: matchKeywords("zendesk"),
		headers: []Header{{
			Name:        "Authorization",
			Scheme:      SchemeBasicPair,
			EnvVars:     []string{"ZENDESK_EMAIL", "ZENDESK_API_TOKEN"},
			UserSuffix:  "/token",
			Placeholder: "YOUR_ZENDESK_TOKEN",
		}},
	},
	{
		name:  "jira",
		match: matchKeywords("jira", "atlassian"),
		headers: []Header{{
			Name:        "Authorization",
			Scheme:      SchemeBasicPair,
			EnvVars:     []string{"JIRA_EMAIL", "JIRA_API_TOKEN"},
			Placeholder: "YOUR_JIRA_TOKEN",
		}},
	},
	{
		name:  "ramp",
		match: matchKeywords("ramp"),
		headers: []Header{{
			Name:        "Authorization",
			Scheme:      SchemeBearer,
			EnvVars:     []string{"RAMP_ACCESS_TOKEN"},
			Placeholder: "YOUR_RAMP_TOKEN",
		}},
	},
}

// VendorEnvVars maps vendor names to the secret environment variables they
// consume, for the executor's environment overlay.
func VendorEnvVars() map[string][]string {
	out := make(map[string][]string, len(vendorRules))
	for _, rule := range vendorRules {
		var vars []string
		for _, h := range rule.headers {
			vars = append(vars, h.EnvVars...)
		}
		out[rule.name] = vars
	}
	return out
}

// genericHeaders builds the fallback logic from the declared auth type.
// Credentials come from the specification itself, with human-readable
// placeholders when absent; an unspecified type yields no headers.
func genericHeaders(spec *apispec.Specification) HeaderSpec {
	auth := spec.Authentication
	switch auth.Type {
	case "bearer":
		token := auth.Token
		if token == "" {
			token = "YOUR_TOKEN"
		}
		return HeaderSpec{Headers: []Header{{
			Name:   "Authorization",
			Scheme: SchemeLiteral,
			Value:  "Bearer " + token,
		}}}
	case "api_key":
		name := auth.HeaderName
		if name == "" {
			name = "X-API-Key"
		}
		key := auth.APIKey
		if key == "" {
			key = "YOUR_API_KEY"
		}
		return HeaderSpec{Headers: []Header{{
			Name:   name,
			Scheme: SchemeLiteral,
			Value:  key,
		}}}
	default:
		return HeaderSpec{}
	}
}
