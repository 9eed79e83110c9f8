// Package apispec defines the API specification and mapping documents that
// flow through the integration pipeline, plus the analyzer that classifies a
// specification's pagination and authentication patterns.
package apispec

// Specification describes a third-party API as produced by the documentation
// parser. It is treated as read-only input everywhere downstream.
type Specification struct {
	Title          string         `json:"title,omitempty"`
	URL            string         `json:"url,omitempty"`
	BaseURL        string         `json:"base_url"`
	Endpoints      []Endpoint     `json:"endpoints"`
	Authentication Authentication `json:"authentication"`
}

// Endpoint is one documented API operation.
type Endpoint struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description,omitempty"`
	DataType    string `json:"data_type,omitempty"`
}

// Authentication captures the declared auth scheme of a specification.
type Authentication struct {
	Type       string `json:"type,omitempty"`
	Token      string `json:"token,omitempty"`
	APIKey     string `json:"api_key,omitempty"`
	HeaderName string `json:"header_name,omitempty"`
}

// Mapping assigns API endpoints to destination ontology tables. Produced by
// the ontology mapper; read-only input to ingestion.
type Mapping struct {
	EndpointToTable []MappingEntry `json:"endpoint_to_table"`
}

// MappingEntry binds one endpoint to one destination table.
type MappingEntry struct {
	Endpoint     string `json:"endpoint"`
	Table        string `json:"table"`
	ResourceID   string `json:"resource_id,omitempty"`
	ResourceName string `json:"resource_name,omitempty"`
}

// --- Ingestion outcome types ---

// Status is the per-endpoint ingestion outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusNoData  Status = "no_data"
	StatusError   Status = "error"
)

// EndpointResult records the outcome of ingesting one mapped endpoint.
// RecordsIngested is omitted for error results.
type EndpointResult struct {
	Endpoint        string `json:"endpoint"`
	Table           string `json:"table"`
	Status          Status `json:"status"`
	RecordsIngested *int   `json:"records_ingested,omitempty"`
	Error           string `json:"error,omitempty"`
}

// Summary is the terminal output of one synthesis+execution cycle.
type Summary struct {
	ResourceID           string           `json:"resource_id"`
	Results              []EndpointResult `json:"results"`
	TotalEndpoints       int              `json:"total_endpoints"`
	SuccessfulIngestions int              `json:"successful_ingestions"`
	TotalRecordsIngested int              `json:"total_records_ingested"`
}
