// Package llm provides hosted large-language-model completion providers.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Options tunes one completion call.
type Options struct {
	Model       string
	System      string
	MaxTokens   int
	Temperature float64
}

// Provider is a hosted completion backend.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Complete sends a prompt and returns the completion text.
	Complete(ctx context.Context, prompt string, options Options) (string, error)
}

// DecodeJSON parses a completion into target. Models occasionally wrap their
// JSON in prose; when direct parsing fails, the substring from the first '{'
// to the last '}' is tried before giving up.
func DecodeJSON(completion string, target any) error {
	completion = strings.TrimSpace(completion)
	if err := json.Unmarshal([]byte(completion), target); err == nil {
		return nil
	}

	start := strings.Index(completion, "{")
	end := strings.LastIndex(completion, "}")
	if start == -1 || end <= start {
		return fmt.Errorf("completion contains no JSON object")
	}
	if err := json.Unmarshal([]byte(completion[start:end+1]), target); err != nil {
		return fmt.Errorf("parse extracted JSON: %w", err)
	}
	return nil
}
