// Package main is the ingestion runner: it executes one serialized plan and
// reports through the sentinel output protocol on stdout.
package main

import (
	"context"
	"log"
	"os"

	"github.com/openintegrate/ingest-core/internal/destination"
	"github.com/openintegrate/ingest-core/internal/ingest"
	"github.com/openintegrate/ingest-core/internal/staging"
)

func main() {
	// Progress lines go to stdout: the executor scans them for the
	// sentinel and the no-data phrase.
	log.SetFlags(0)
	log.SetOutput(os.Stdout)

	if len(os.Args) < 2 {
		log.Printf("Integration failed: no plan file given")
		return
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Printf("Integration failed: %v", err)
		return
	}
	plan, err := ingest.DecodePlan(data)
	if err != nil {
		log.Printf("Integration failed: %v", err)
		return
	}

	ctx := context.Background()
	dest := destination.NewClient(os.Getenv("ACHO_API_URL"), plan.DestinationToken)

	opts := ingest.RunOptions{}
	if cfg := staging.ConfigFromEnv(os.LookupEnv); cfg != nil {
		archiver, err := staging.NewArchiver(ctx, cfg)
		if err != nil {
			log.Printf("Warning: staging disabled: %v", err)
		} else {
			opts.Archiver = archiver
		}
	}

	summary, err := ingest.ExecutePlan(ctx, plan, dest, opts)
	if err != nil {
		// The executor interprets missing summaries; a top-level failure
		// still exits zero so stdout reaches it intact.
		log.Printf("Integration failed: %v", err)
		return
	}
	if err := ingest.EmitSummary(os.Stdout, summary); err != nil {
		log.Printf("Integration failed: %v", err)
	}
}
