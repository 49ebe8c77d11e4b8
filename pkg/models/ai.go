// Package models contains shared data models used across the resumix codebase.
package models

import "context"

// Completer is the core interface every AI backend must implement.
// Never call a specific provider directly — always inject this interface.
type Completer interface {
	// Complete runs one prompt against the provider and returns the raw
	// model output text.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// Name returns the provider identifier (e.g., "openai").
	Name() string
}

// CompletionRequest is the input to a single provider call. Credential
// is the caller-supplied provider API key; it is used server-side only
// and never echoed back.
type CompletionRequest struct {
	Credential      string
	Model           string
	Prompt          string
	MaxOutputTokens int
	TemperatureZero bool
}
