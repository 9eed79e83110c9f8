package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/openintegrate/ingest-core/internal/apispec"
	"github.com/openintegrate/ingest-core/internal/vendorauth"
)

// SummarySentinel marks the start of the machine-parseable summary on the
// runner's standard output. It is the sole contract between the runner
// process and the executor.
const SummarySentinel = "=== INGESTION SUMMARY ==="

// Destination is the write side of the destination platform as the runner
// sees it.
type Destination interface {
	// CreateResourceEndpoint registers a new resource endpoint and returns
	// its id.
	CreateResourceEndpoint(ctx context.Context, name string) (string, error)

	// OpenWriteStream opens a streaming record channel into one table.
	OpenWriteStream(ctx context.Context, resID, table string) (RecordWriter, error)
}

// RecordWriter is one open write channel. Close flushes the stream and
// blocks until the destination acknowledges it.
type RecordWriter interface {
	Write(rec Record) error
	Close() error
}

// Archiver optionally preserves the records fetched for each endpoint.
// Archiving failures never fail an ingestion.
type Archiver interface {
	Archive(ctx context.Context, runID, table string, seq int, records []Record) error
}

// RunOptions tunes plan execution.
type RunOptions struct {
	// LookupEnv resolves credential environment variables. Defaults to
	// os.Getenv.
	LookupEnv func(string) string

	// Auth resolves the plan's header spec. Defaults to a synthesizer with
	// the deferred-failure placeholder policy.
	Auth *vendorauth.Synthesizer

	// Archiver, when set, receives each endpoint's cleaned records.
	Archiver Archiver
}

// ExecutePlan runs one ingestion plan to completion: it resolves credentials,
// resolves the resource endpoint, then ingests every mapped endpoint with
// independent error isolation. A failure inside one endpoint becomes that
// endpoint's error result and never aborts the rest of the batch. Only
// resource-endpoint resolution can fail the whole run.
func ExecutePlan(ctx context.Context, plan *Plan, dest Destination, opts RunOptions) (*apispec.Summary, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.Getenv
	}
	auth := opts.Auth
	if auth == nil {
		auth = vendorauth.NewSynthesizer()
	}

	headers, err := auth.Resolve(plan.Headers, lookup)
	if err != nil {
		return nil, fmt.Errorf("resolve auth headers: %w", err)
	}

	resID, err := resolveResource(ctx, plan, dest)
	if err != nil {
		return nil, fmt.Errorf("resolve resource endpoint: %w", err)
	}
	log.Printf("Resource ID: %s", resID)

	fetcher := NewFetcher(plan.Spec.BaseURL, headers)
	strategy := SelectStrategy(plan.Analysis)

	summary := &apispec.Summary{
		ResourceID:     resID,
		Results:        []apispec.EndpointResult{},
		TotalEndpoints: len(plan.Mapping.EndpointToTable),
	}

	for i, entry := range plan.Mapping.EndpointToTable {
		log.Printf("Processing %s -> %s", entry.Endpoint, entry.Table)
		result := ingestEndpoint(ctx, plan.RunID, fetcher, strategy, dest, resID, entry, i, opts.Archiver)
		summary.Results = append(summary.Results, result)
		if result.Status == apispec.StatusSuccess {
			summary.SuccessfulIngestions++
			if result.RecordsIngested != nil {
				summary.TotalRecordsIngested += *result.RecordsIngested
			}
		}
	}

	return summary, nil
}

// resolveResource reuses the resource id of the first mapping entry when
// present; otherwise it registers a fresh resource endpoint tagged with the
// current timestamp.
func resolveResource(ctx context.Context, plan *Plan, dest Destination) (string, error) {
	entries := plan.Mapping.EndpointToTable
	if len(entries) > 0 && entries[0].ResourceID != "" {
		return entries[0].ResourceID, nil
	}
	name := "API Integration - " + time.Now().UTC().Format(time.RFC3339)
	return dest.CreateResourceEndpoint(ctx, name)
}

func ingestEndpoint(ctx context.Context, runID string, fetcher *Fetcher, strategy Strategy, dest Destination, resID string, entry apispec.MappingEntry, seq int, archiver Archiver) apispec.EndpointResult {
	result := apispec.EndpointResult{Endpoint: entry.Endpoint, Table: entry.Table}

	records, err := strategy.FetchAll(ctx, fetcher, entry.Endpoint)
	if err != nil {
		log.Printf("Error processing %s: %v", entry.Endpoint, err)
		result.Status = apispec.StatusError
		result.Error = err.Error()
		return result
	}

	if len(records) == 0 {
		log.Printf("No data found for %s", entry.Endpoint)
		result.Status = apispec.StatusNoData
		result.RecordsIngested = intPtr(0)
		return result
	}

	cleaned := make([]Record, len(records))
	for i, rec := range records {
		cleaned[i] = CleanRecord(rec)
	}

	if archiver != nil {
		if err := archiver.Archive(ctx, runID, entry.Table, seq, cleaned); err != nil {
			log.Printf("Warning: archiving %s failed: %v", entry.Table, err)
		}
	}

	if err := writeAll(ctx, dest, resID, entry.Table, cleaned); err != nil {
		log.Printf("Error processing %s: %v", entry.Endpoint, err)
		result.Status = apispec.StatusError
		result.Error = err.Error()
		return result
	}

	log.Printf("Successfully ingested %d records from %s", len(cleaned), entry.Endpoint)
	result.Status = apispec.StatusSuccess
	result.RecordsIngested = intPtr(len(cleaned))
	return result
}

func writeAll(ctx context.Context, dest Destination, resID, table string, records []Record) error {
	stream, err := dest.OpenWriteStream(ctx, resID, table)
	if err != nil {
		return fmt.Errorf("open write stream: %w", err)
	}
	for _, rec := range records {
		if err := stream.Write(rec); err != nil {
			stream.Close()
			return fmt.Errorf("write record: %w", err)
		}
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("close write stream: %w", err)
	}
	return nil
}

// EmitSummary prints the sentinel line followed by the pretty-printed
// summary. Nothing may be written to w afterwards.
func EmitSummary(w io.Writer, summary *apispec.Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if _, err := fmt.Fprintf(w, "\n%s\n%s\n", SummarySentinel, data); err != nil {
		return err
	}
	return nil
}

func intPtr(n int) *int { return &n }
