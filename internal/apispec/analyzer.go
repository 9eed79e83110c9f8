package apispec

import "strings"

// AuthType classifies a specification's declared authentication scheme.
type AuthType string

const (
	AuthBearer  AuthType = "bearer"
	AuthAPIKey  AuthType = "api_key"
	AuthOAuth   AuthType = "oauth"
	AuthUnknown AuthType = "unknown"
)

// PaginationType classifies how an API pages through results.
type PaginationType string

const (
	PaginationCursor  PaginationType = "cursor"
	PaginationPage    PaginationType = "page"
	PaginationUnknown PaginationType = "unknown"
)

// DataStructure flags vendor-specific payload shapes.
type DataStructure string

const (
	StructureGeneric DataStructure = "generic"
	StructureStripe  DataStructure = "stripe"
)

// Analysis is the derived, ephemeral classification of one specification.
// Computed fresh per synthesis call, never persisted.
type Analysis struct {
	AuthType       AuthType       `json:"auth_type"`
	PaginationType PaginationType `json:"pagination_type"`
	BaseURL        string         `json:"base_url"`
	HasRateLimit   bool           `json:"has_rate_limiting"`
	DataStructure  DataStructure  `json:"data_structure"`
}

var (
	cursorKeywords = []string{"cursor", "after", "before"}
	pageKeywords   = []string{"page", "offset", "limit"}
)

// Analyze classifies the pagination style and authentication scheme of a
// specification. It never fails: unresolved fields default to unknown.
//
// Cursor keywords take precedence over page keywords across the whole
// endpoint list, and a Stripe vendor path overrides both.
func Analyze(spec *Specification) Analysis {
	a := Analysis{
		AuthType:       AuthUnknown,
		PaginationType: PaginationUnknown,
		DataStructure:  StructureGeneric,
	}
	if spec == nil {
		return a
	}
	a.BaseURL = spec.BaseURL

	switch spec.Authentication.Type {
	case string(AuthBearer):
		a.AuthType = AuthBearer
	case string(AuthAPIKey):
		a.AuthType = AuthAPIKey
	case string(AuthOAuth):
		a.AuthType = AuthOAuth
	}

	var sawCursor, sawPage, sawStripe bool
	for _, ep := range spec.Endpoints {
		path := strings.ToLower(ep.Path)
		switch {
		case containsAny(path, cursorKeywords):
			sawCursor = true
		case containsAny(path, pageKeywords):
			sawPage = true
		}
		if strings.Contains(path, "stripe") {
			sawStripe = true
		}
	}

	switch {
	case sawCursor:
		a.PaginationType = PaginationCursor
	case sawPage:
		a.PaginationType = PaginationPage
	}

	// Vendor identity beats the generic path heuristics: Stripe is always
	// cursor-paginated.
	if sawStripe {
		a.DataStructure = StructureStripe
		a.PaginationType = PaginationCursor
	}

	return a
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
