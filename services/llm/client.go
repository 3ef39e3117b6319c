package llm

import (
	"context"
	"errors"
)

var (
	// ErrEmptyResponse is returned when a backend answers without text.
	ErrEmptyResponse = errors.New("llm returned an empty response")

	// ErrMissingAPIKey is returned when a hosted backend has no key.
	ErrMissingAPIKey = errors.New("api key not configured")

	// ErrNoBackend is returned when a client is built without a backend.
	ErrNoBackend = errors.New("no llm backend configured")
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`

	// SystemInstruction replaces the backend's default system prompt.
	SystemInstruction string `json:"system_instruction,omitempty"`
}

// LLMClient defines the standard interface for any LLM backend
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// ClientFunc adapts a function into an LLMClient. Tests use it as a stub
// collaborator.
type ClientFunc func(ctx context.Context, prompt string, params GenerationParams) (string, error)

// Generate calls f.
func (f ClientFunc) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	return f(ctx, prompt, params)
}

// Float32 returns a pointer to v for GenerationParams.
func Float32(v float32) *float32 { return &v }

// Int returns a pointer to v for GenerationParams.
func Int(v int) *int { return &v }
