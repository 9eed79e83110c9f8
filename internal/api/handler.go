// Package api exposes the integration pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/openintegrate/ingest-core/internal/apispec"
	"github.com/openintegrate/ingest-core/internal/docparse"
	"github.com/openintegrate/ingest-core/internal/executor"
	"github.com/openintegrate/ingest-core/internal/ontology"
	"github.com/openintegrate/ingest-core/internal/runstore"
)

// DocParser parses one documentation URL.
type DocParser interface {
	Parse(ctx context.Context, url string) docparse.Result
}

// Mapper maps a parsed specification onto ontology tables.
type Mapper interface {
	MapEndpoints(ctx context.Context, exporter ontology.SchemaExporter, apiSpec any) (*apispec.Mapping, error)
}

// Runner executes one ingestion.
type Runner interface {
	Run(ctx context.Context, spec *apispec.Specification, mapping *apispec.Mapping, token string) executor.Outcome
}

// RunRecorder persists run outcomes. Satisfied by *runstore.Store.
type RunRecorder interface {
	RecordRun(ctx context.Context, runID, specTitle, status string, report any) error
	ListRuns(ctx context.Context, limit int) ([]runstore.Run, error)
}

// Handler wires the pipeline stages behind the HTTP surface.
type Handler struct {
	Parser DocParser
	Mapper Mapper
	Runner Runner
	// NewExporter builds a schema exporter for the given destination token.
	// Nil disables schema export and mapping falls back to the mock schema.
	NewExporter func(token string) ontology.SchemaExporter
	// Runs is optional run-history recording.
	Runs RunRecorder
	// DefaultToken is the ACHO_TOKEN fallback when requests omit acho_token.
	DefaultToken string
}

// Router assembles the chi router with logging, panic recovery and CORS for
// the local frontend.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/", h.root)
	r.Get("/health", h.health)
	r.Post("/api/parse-doc", h.parseDoc)
	r.Post("/api/map-ontology", h.mapOntology)
	r.Post("/api/ingest-data", h.ingestData)
	r.Get("/api/runs", h.listRuns)

	return r
}

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Open Integrate API is running"})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type parseDocRequest struct {
	URL string `json:"url"`
}

func (h *Handler) parseDoc(w http.ResponseWriter, r *http.Request) {
	var req parseDocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "url is required"})
		return
	}
	writeJSON(w, http.StatusOK, h.Parser.Parse(r.Context(), req.URL))
}

type mapOntologyRequest struct {
	APISpec   json.RawMessage `json:"api_spec"`
	AchoToken string          `json:"acho_token"`
}

func (h *Handler) mapOntology(w http.ResponseWriter, r *http.Request) {
	var req mapOntologyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.APISpec) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "api_spec is required"})
		return
	}

	var spec any
	if err := json.Unmarshal(req.APISpec, &spec); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "api_spec is not valid JSON"})
		return
	}

	var exporter ontology.SchemaExporter
	if h.NewExporter != nil {
		exporter = h.NewExporter(h.token(req.AchoToken))
	}

	mapping, err := h.Mapper.MapEndpoints(r.Context(), exporter, spec)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, mapping)
}

type ingestDataRequest struct {
	APISpec   *apispec.Specification `json:"api_spec"`
	Mapping   *apispec.Mapping       `json:"mapping"`
	AchoToken string                 `json:"acho_token"`
}

func (h *Handler) ingestData(w http.ResponseWriter, r *http.Request) {
	var req ingestDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.APISpec == nil || req.Mapping == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "api_spec and mapping are required"})
		return
	}

	outcome := h.Runner.Run(r.Context(), req.APISpec, req.Mapping, h.token(req.AchoToken))
	h.record(r.Context(), req.APISpec.Title, outcome)
	writeJSON(w, http.StatusOK, outcome.Payload())
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	if h.Runs == nil {
		writeJSON(w, http.StatusOK, []runstore.Run{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.Runs.ListRuns(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []runstore.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) token(requestToken string) string {
	if requestToken != "" {
		return requestToken
	}
	return h.DefaultToken
}

func (h *Handler) record(ctx context.Context, specTitle string, outcome executor.Outcome) {
	if h.Runs == nil {
		return
	}
	runID := outcome.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	status := "error"
	switch {
	case outcome.Summary != nil:
		status = "success"
	case outcome.NoData != nil:
		status = "no_data"
	}
	// Recording failures never affect the response.
	_ = h.Runs.RecordRun(ctx, runID, specTitle, status, outcome.Payload())
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
