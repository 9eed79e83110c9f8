package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openintegrate/ingest-core/internal/apispec"
	"github.com/openintegrate/ingest-core/internal/vendorauth"
)

// ErrEmptyPlan is the synthesis failure: nothing to assemble a plan from.
var ErrEmptyPlan = errors.New("empty ingestion plan: specification and mapping are required")

// Plan is the synthesized, single-use ingestion artifact: the analyzed
// specification, the endpoint mapping, and the header-construction logic,
// bundled with the destination credential. Exactly one plan exists per
// ingestion request; plans are never reused or cached even when the same
// specification/mapping pair repeats.
type Plan struct {
	RunID            string                `json:"run_id"`
	CreatedAt        time.Time             `json:"created_at"`
	Spec             apispec.Specification `json:"spec"`
	Mapping          apispec.Mapping       `json:"mapping"`
	Analysis         apispec.Analysis      `json:"analysis"`
	Headers          vendorauth.HeaderSpec `json:"headers"`
	DestinationToken string                `json:"destination_token"`
}

// Assemble analyzes the specification, synthesizes its auth headers, and
// stitches both into a runnable plan.
func Assemble(spec *apispec.Specification, mapping *apispec.Mapping, destinationToken string) (*Plan, error) {
	if spec == nil || mapping == nil {
		return nil, ErrEmptyPlan
	}
	return &Plan{
		RunID:            uuid.NewString(),
		CreatedAt:        time.Now().UTC(),
		Spec:             *spec,
		Mapping:          *mapping,
		Analysis:         apispec.Analyze(spec),
		Headers:          vendorauth.NewSynthesizer().Synthesize(spec),
		DestinationToken: destinationToken,
	}, nil
}

// Encode serializes the plan for handoff to the runner process.
func (p *Plan) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}
	return data, nil
}

// DecodePlan parses a plan produced by Encode.
func DecodePlan(data []byte) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return &p, nil
}
