// Package main runs the Open Integrate HTTP server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/openintegrate/ingest-core/internal/api"
	"github.com/openintegrate/ingest-core/internal/config"
	"github.com/openintegrate/ingest-core/internal/destination"
	"github.com/openintegrate/ingest-core/internal/docparse"
	"github.com/openintegrate/ingest-core/internal/executor"
	"github.com/openintegrate/ingest-core/internal/llm"
	"github.com/openintegrate/ingest-core/internal/ontology"
	"github.com/openintegrate/ingest-core/internal/runstore"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	anthropic, err := llm.NewAnthropicProvider(cfg.AnthropicAPIKey)
	if err != nil {
		log.Fatalf("anthropic provider: %v", err)
	}

	var largeCtx llm.Provider
	if cfg.GoogleAPIKey != "" {
		gemini, err := llm.NewGeminiProvider(ctx, cfg.GoogleAPIKey)
		if err != nil {
			log.Printf("Warning: could not initialize Gemini client: %v", err)
		} else {
			largeCtx = gemini
		}
	}

	exec := executor.New(cfg.RunnerBin)
	if cfg.RunTimeoutSecs > 0 {
		exec.Timeout = time.Duration(cfg.RunTimeoutSecs) * time.Second
	}

	handler := &api.Handler{
		Parser: docparse.NewParser(anthropic, largeCtx),
		Mapper: ontology.NewMapper(anthropic),
		Runner: exec,
		NewExporter: func(token string) ontology.SchemaExporter {
			return destination.NewClient(cfg.AchoAPIURL, token)
		},
		DefaultToken: cfg.AchoToken,
	}

	if cfg.DatabaseURL != "" {
		store, err := runstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: run history disabled: %v", err)
		} else {
			defer store.Close()
			handler.Runs = store
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	log.Printf("Open Integrate API listening on %s", addr)
	if err := http.ListenAndServe(addr, handler.Router()); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
