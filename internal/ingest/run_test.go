package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openintegrate/ingest-core/internal/apispec"
)

// stubDestination records writes in memory.
type stubDestination struct {
	createdName string
	failCreate  bool
	failClose   bool
	written     map[string][]Record
}

func newStubDestination() *stubDestination {
	return &stubDestination{written: map[string][]Record{}}
}

func (d *stubDestination) CreateResourceEndpoint(ctx context.Context, name string) (string, error) {
	if d.failCreate {
		return "", fmt.Errorf("resource endpoint unavailable")
	}
	d.createdName = name
	return "res-new", nil
}

func (d *stubDestination) OpenWriteStream(ctx context.Context, resID, table string) (RecordWriter, error) {
	return &stubWriter{dest: d, table: table, failClose: d.failClose}, nil
}

type stubWriter struct {
	dest      *stubDestination
	table     string
	failClose bool
	buffered  []Record
}

func (w *stubWriter) Write(rec Record) error {
	w.buffered = append(w.buffered, rec)
	return nil
}

func (w *stubWriter) Close() error {
	if w.failClose {
		return fmt.Errorf("HTTP 500")
	}
	w.dest.written[w.table] = append(w.dest.written[w.table], w.buffered...)
	return nil
}

func sourceServer(t *testing.T, payloads map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, ok := payloads[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(payload)
	}))
}

func testPlan(t *testing.T, baseURL string, entries ...apispec.MappingEntry) *Plan {
	t.Helper()
	spec := &apispec.Specification{BaseURL: baseURL, Endpoints: []apispec.Endpoint{{Method: "GET", Path: "/v1/users"}}}
	plan, err := Assemble(spec, &apispec.Mapping{EndpointToTable: entries}, "tok")
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	return plan
}

func TestAssemble_RequiresSpecAndMapping(t *testing.T) {
	if _, err := Assemble(nil, &apispec.Mapping{}, "tok"); err != ErrEmptyPlan {
		t.Errorf("Expected ErrEmptyPlan for nil spec, got %v", err)
	}
	if _, err := Assemble(&apispec.Specification{}, nil, "tok"); err != ErrEmptyPlan {
		t.Errorf("Expected ErrEmptyPlan for nil mapping, got %v", err)
	}
}

func TestPlan_EncodeDecodeRoundTrip(t *testing.T) {
	plan := testPlan(t, "https://api.example.com", apispec.MappingEntry{Endpoint: "/v1/users", Table: "users"})
	data, err := plan.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := DecodePlan(data)
	if err != nil {
		t.Fatalf("DecodePlan failed: %v", err)
	}
	if decoded.RunID != plan.RunID || decoded.DestinationToken != "tok" {
		t.Errorf("Round trip lost fields: %+v", decoded)
	}
}

func TestExecutePlan_SuccessCountsRecords(t *testing.T) {
	srv := sourceServer(t, map[string]any{
		"/v1/users": map[string]any{"data": []any{
			map[string]any{"id": "u1", "profile": map[string]any{"age": 3.0}},
			map[string]any{"id": "u2"},
		}},
	})
	defer srv.Close()

	dest := newStubDestination()
	plan := testPlan(t, srv.URL, apispec.MappingEntry{Endpoint: "/v1/users", Table: "users"})

	summary, err := ExecutePlan(context.Background(), plan, dest, RunOptions{})
	if err != nil {
		t.Fatalf("ExecutePlan failed: %v", err)
	}
	if summary.TotalEndpoints != 1 || summary.SuccessfulIngestions != 1 || summary.TotalRecordsIngested != 2 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
	result := summary.Results[0]
	if result.Status != apispec.StatusSuccess || result.RecordsIngested == nil || *result.RecordsIngested != 2 {
		t.Errorf("Unexpected result: %+v", result)
	}
	if len(dest.written["users"]) != 2 {
		t.Errorf("Expected 2 records written, got %d", len(dest.written["users"]))
	}
	// Nested values arrive at the sink flattened.
	if dest.written["users"][0]["profile"] != `{"age":3}` {
		t.Errorf("Expected cleaned profile, got %v", dest.written["users"][0]["profile"])
	}
	if !strings.HasPrefix(dest.createdName, "API Integration - ") {
		t.Errorf("Expected timestamped resource name, got %q", dest.createdName)
	}
}

func TestExecutePlan_NoData(t *testing.T) {
	srv := sourceServer(t, map[string]any{"/v1/empty": map[string]any{"data": []any{}}})
	defer srv.Close()

	dest := newStubDestination()
	plan := testPlan(t, srv.URL, apispec.MappingEntry{Endpoint: "/v1/empty", Table: "empty"})

	summary, err := ExecutePlan(context.Background(), plan, dest, RunOptions{})
	if err != nil {
		t.Fatalf("ExecutePlan failed: %v", err)
	}
	result := summary.Results[0]
	if result.Status != apispec.StatusNoData {
		t.Errorf("Expected no_data, got %s", result.Status)
	}
	if result.RecordsIngested == nil || *result.RecordsIngested != 0 {
		t.Errorf("Expected records_ingested 0, got %v", result.RecordsIngested)
	}
	if summary.TotalRecordsIngested != 0 || summary.SuccessfulIngestions != 0 {
		t.Errorf("Unexpected totals: %+v", summary)
	}
}

func TestExecutePlan_PerEndpointIsolation(t *testing.T) {
	srv := sourceServer(t, map[string]any{
		"/v1/good": []any{map[string]any{"id": "1"}},
		// /v1/bad is unmapped on the server and returns 404.
	})
	defer srv.Close()

	dest := newStubDestination()
	plan := testPlan(t, srv.URL,
		apispec.MappingEntry{Endpoint: "/v1/bad", Table: "bad"},
		apispec.MappingEntry{Endpoint: "/v1/good", Table: "good"},
	)

	summary, err := ExecutePlan(context.Background(), plan, dest, RunOptions{})
	if err != nil {
		t.Fatalf("ExecutePlan failed: %v", err)
	}
	if summary.Results[0].Status != apispec.StatusError {
		t.Errorf("Expected first endpoint error, got %s", summary.Results[0].Status)
	}
	if summary.Results[0].Error == "" || summary.Results[0].RecordsIngested != nil {
		t.Errorf("Error result must carry message and omit count: %+v", summary.Results[0])
	}
	if summary.Results[1].Status != apispec.StatusSuccess {
		t.Errorf("Expected second endpoint to succeed despite first failing, got %s", summary.Results[1].Status)
	}
}

func TestExecutePlan_SinkRejectionIsEndpointError(t *testing.T) {
	srv := sourceServer(t, map[string]any{"/v1/users": []any{map[string]any{"id": "1"}}})
	defer srv.Close()

	dest := newStubDestination()
	dest.failClose = true
	plan := testPlan(t, srv.URL, apispec.MappingEntry{Endpoint: "/v1/users", Table: "users"})

	summary, err := ExecutePlan(context.Background(), plan, dest, RunOptions{})
	if err != nil {
		t.Fatalf("ExecutePlan failed: %v", err)
	}
	if summary.Results[0].Status != apispec.StatusError {
		t.Errorf("Expected sink rejection to yield error result, got %+v", summary.Results[0])
	}
}

func TestExecutePlan_ReusesMappedResourceID(t *testing.T) {
	srv := sourceServer(t, map[string]any{"/v1/users": []any{map[string]any{"id": "1"}}})
	defer srv.Close()

	dest := newStubDestination()
	dest.failCreate = true // creation must never be attempted
	plan := testPlan(t, srv.URL, apispec.MappingEntry{Endpoint: "/v1/users", Table: "users", ResourceID: "res-42"})

	summary, err := ExecutePlan(context.Background(), plan, dest, RunOptions{})
	if err != nil {
		t.Fatalf("ExecutePlan failed: %v", err)
	}
	if summary.ResourceID != "res-42" {
		t.Errorf("Expected reused resource id, got %q", summary.ResourceID)
	}
}

func TestExecutePlan_ResourceCreationFailureAbortsRun(t *testing.T) {
	dest := newStubDestination()
	dest.failCreate = true
	plan := testPlan(t, "https://api.example.com", apispec.MappingEntry{Endpoint: "/v1/users", Table: "users"})

	if _, err := ExecutePlan(context.Background(), plan, dest, RunOptions{}); err == nil {
		t.Fatal("Expected run to fail when resource endpoint cannot be resolved")
	}
}

func TestEmitSummary_SentinelThenJSON(t *testing.T) {
	var buf bytes.Buffer
	summary := &apispec.Summary{ResourceID: "r1", Results: []apispec.EndpointResult{}}
	if err := EmitSummary(&buf, summary); err != nil {
		t.Fatalf("EmitSummary failed: %v", err)
	}

	out := buf.String()
	idx := strings.Index(out, SummarySentinel)
	if idx == -1 {
		t.Fatalf("Sentinel line missing from output: %q", out)
	}
	var parsed apispec.Summary
	if err := json.Unmarshal([]byte(out[idx+len(SummarySentinel):]), &parsed); err != nil {
		t.Fatalf("Trailing JSON does not parse: %v", err)
	}
	if parsed.ResourceID != "r1" {
		t.Errorf("Round-tripped summary lost data: %+v", parsed)
	}
}
