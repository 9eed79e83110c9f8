// Package ontology maps parsed API specifications onto the destination's
// ontology tables with a single LLM call.
package ontology

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/openintegrate/ingest-core/internal/apispec"
	"github.com/openintegrate/ingest-core/internal/destination"
	"github.com/openintegrate/ingest-core/internal/llm"
)

// SchemaExporter fetches the destination's ontology schema.
type SchemaExporter interface {
	ExportSchema(ctx context.Context) (*destination.OntologySchema, error)
}

// Mapper produces endpoint-to-table mappings.
type Mapper struct {
	llm llm.Provider
}

// NewMapper builds a mapper around the given provider.
func NewMapper(provider llm.Provider) *Mapper {
	return &Mapper{llm: provider}
}

// MapEndpoints fetches the ontology schema from the destination and asks the
// LLM to map the specification's endpoints onto it. A schema-fetch failure
// falls back to the mock schema so mapping can proceed in degraded mode.
func (m *Mapper) MapEndpoints(ctx context.Context, exporter SchemaExporter, apiSpec any) (*apispec.Mapping, error) {
	schema := m.fetchSchema(ctx, exporter)

	specJSON, err := json.MarshalIndent(apiSpec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode api spec: %w", err)
	}
	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}

	prompt := fmt.Sprintf(mappingPrompt, string(specJSON), string(schemaJSON))
	completion, err := m.llm.Complete(ctx, prompt, llm.Options{
		System:      "You are a helpful assistant.",
		MaxTokens:   1024,
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("mapping failed: %w", err)
	}

	var mapping apispec.Mapping
	if err := llm.DecodeJSON(completion, &mapping); err != nil {
		return nil, fmt.Errorf("could not extract mapping from response: %w", err)
	}
	return &mapping, nil
}

func (m *Mapper) fetchSchema(ctx context.Context, exporter SchemaExporter) *destination.OntologySchema {
	if exporter != nil {
		schema, err := exporter.ExportSchema(ctx)
		if err == nil {
			return schema
		}
		log.Printf("schema export failed, using mock schema: %v", err)
	}
	return MockSchema()
}

// MockSchema is the fallback ontology used when the destination's schema
// export is unavailable.
func MockSchema() *destination.OntologySchema {
	return &destination.OntologySchema{
		Tables: []destination.Table{
			{Name: "customers", Fields: []string{"id", "name", "email", "created_at"}},
			{Name: "orders", Fields: []string{"id", "customer_id", "amount", "status", "created_at"}},
			{Name: "products", Fields: []string{"id", "name", "price", "created_at"}},
			{Name: "users", Fields: []string{"id", "name", "email", "created_at"}},
		},
	}
}

const mappingPrompt = `
You are an expert data integration agent. Your job is to map API endpoints to ontology tables for automated data onboarding.

Given the following API specification and ontology schema, output ONLY a JSON object in the following format:

{
  "endpoint_to_table": [
    {"endpoint": "/api/users", "table": "users"},
    ...
  ]
}

If you are not sure about a mapping, do not include it. Only include mappings you are confident about.

API Spec:
%s

Ontology Schema:
%s
`
