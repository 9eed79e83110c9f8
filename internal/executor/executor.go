// Package executor runs assembled ingestion plans in a child process and
// interprets the sentinel output protocol.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/openintegrate/ingest-core/internal/apispec"
	"github.com/openintegrate/ingest-core/internal/ingest"
	"github.com/openintegrate/ingest-core/internal/vendorauth"
)

// DefaultTimeout is the wall-clock bound for one ingestion run.
const DefaultTimeout = 600 * time.Second

// ErrorReport is returned when the run fails or its output cannot be parsed.
type ErrorReport struct {
	Error  string `json:"error"`
	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`
}

// NoDataReport is the synthetic result for runs that queried the API
// successfully but found nothing to ingest.
type NoDataReport struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Details string `json:"details"`
}

// Outcome holds exactly one of the three possible run results. RunID is set
// once a plan was assembled, even when the run itself failed.
type Outcome struct {
	RunID   string
	Summary *apispec.Summary
	NoData  *NoDataReport
	Failure *ErrorReport
}

// Payload returns the populated result for serialization.
func (o Outcome) Payload() any {
	switch {
	case o.Summary != nil:
		return o.Summary
	case o.NoData != nil:
		return o.NoData
	default:
		return o.Failure
	}
}

// Executor assembles plans and executes them through the runner binary.
type Executor struct {
	// RunnerPath is the ingest-runner binary.
	RunnerPath string
	// WorkDir is the child's working directory. Empty means inherit.
	WorkDir string
	// Timeout bounds the run; zero means DefaultTimeout.
	Timeout time.Duration
	// LookupEnv and Environ are injectable for tests; nil means the
	// process environment.
	LookupEnv func(string) (string, bool)
	Environ   func() []string
}

// New returns an executor for the given runner binary. The child runs with
// its working directory fixed to the binary's own directory; a bare command
// name resolved through PATH inherits the parent's.
func New(runnerPath string) *Executor {
	workDir := ""
	if strings.ContainsRune(runnerPath, os.PathSeparator) {
		workDir = filepath.Dir(runnerPath)
	}
	return &Executor{RunnerPath: runnerPath, WorkDir: workDir, Timeout: DefaultTimeout}
}

// Run assembles a plan for the spec and mapping, persists it to a temp file,
// executes the runner against it, and parses the sentinel output. The temp
// file is removed whether or not the run succeeds.
func (e *Executor) Run(ctx context.Context, spec *apispec.Specification, mapping *apispec.Mapping, token string) Outcome {
	plan, err := ingest.Assemble(spec, mapping, token)
	if err != nil {
		return Outcome{Failure: &ErrorReport{Error: fmt.Sprintf("Failed to assemble ingestion plan: %v", err)}}
	}
	outcome := e.execute(ctx, plan)
	outcome.RunID = plan.RunID
	return outcome
}

func (e *Executor) execute(ctx context.Context, plan *ingest.Plan) Outcome {
	encoded, err := plan.Encode()
	if err != nil {
		return Outcome{Failure: &ErrorReport{Error: fmt.Sprintf("Failed to encode ingestion plan: %v", err)}}
	}

	planFile, err := os.CreateTemp("", "ingest-plan-*.json")
	if err != nil {
		return Outcome{Failure: &ErrorReport{Error: fmt.Sprintf("Failed to stage ingestion plan: %v", err)}}
	}
	planPath := planFile.Name()
	defer os.Remove(planPath)

	if _, err := planFile.Write(encoded); err != nil {
		planFile.Close()
		return Outcome{Failure: &ErrorReport{Error: fmt.Sprintf("Failed to stage ingestion plan: %v", err)}}
	}
	if err := planFile.Close(); err != nil {
		return Outcome{Failure: &ErrorReport{Error: fmt.Sprintf("Failed to stage ingestion plan: %v", err)}}
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.RunnerPath, planPath)
	cmd.Dir = e.WorkDir
	cmd.Env = e.overlayEnv(plan.Headers.Vendor)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Outcome{Failure: &ErrorReport{
			Error:  fmt.Sprintf("SDK execution failed: %s", strings.TrimSpace(stderr.String())),
			Stdout: stdout.String(),
		}}
	}

	return parseOutput(stdout.String(), stderr.String())
}

// overlayEnv copies the ambient environment, strips every known vendor secret
// and re-injects only the detected vendor's secrets that are actually set.
func (e *Executor) overlayEnv(vendor string) []string {
	environ := os.Environ
	if e.Environ != nil {
		environ = e.Environ
	}
	lookup := os.LookupEnv
	if e.LookupEnv != nil {
		lookup = e.LookupEnv
	}

	secretVars := vendorauth.VendorEnvVars()
	stripped := make(map[string]bool)
	for _, vars := range secretVars {
		for _, name := range vars {
			stripped[name] = true
		}
	}

	var env []string
	for _, kv := range environ() {
		name, _, _ := strings.Cut(kv, "=")
		if stripped[name] {
			continue
		}
		env = append(env, kv)
	}

	for _, name := range secretVars[vendor] {
		if value, ok := lookup(name); ok {
			log.Printf("Passing %s to runner process", name)
			env = append(env, name+"="+value)
		}
	}
	return env
}

// parseOutput scans stdout for the summary sentinel and joins the non-blank
// lines after it into one JSON document. Output without a parseable summary
// degrades to a no_data report when the no-data phrase appears.
func parseOutput(stdout, stderr string) Outcome {
	var summaryLines []string
	started := false
	for _, line := range strings.Split(stdout, "\n") {
		if strings.Contains(line, ingest.SummarySentinel) {
			started = true
			continue
		}
		if started && strings.TrimSpace(line) != "" {
			summaryLines = append(summaryLines, strings.TrimSpace(line))
		}
	}

	if len(summaryLines) > 0 {
		var summary apispec.Summary
		if err := json.Unmarshal([]byte(strings.Join(summaryLines, "")), &summary); err == nil {
			return Outcome{Summary: &summary}
		}
	}

	if strings.Contains(stdout, "No data found for") {
		return Outcome{NoData: &NoDataReport{
			Message: "No data found in the API",
			Status:  "no_data",
			Details: "The API endpoints were successfully queried but no data was found.",
		}}
	}

	return Outcome{Failure: &ErrorReport{
		Error:  "Could not parse SDK output",
		Stdout: stdout,
		Stderr: stderr,
	}}
}
