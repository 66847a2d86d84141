// Package ai renders board-related prompts, sends them to a text-generation
// endpoint and validates the JSON shape of the answers.
package ai

import (
	"context"
	"errors"
)

// ErrDisabled is returned by every flow when no provider is configured.
var ErrDisabled = errors.New("ai assistant is not configured")

// Request is a single prompt sent to a text-generation endpoint.
type Request struct {
	Prompt      string
	Model       string
	Temperature float32
	// JSON asks providers that support it to constrain output to JSON.
	JSON bool
}

// Generator sends one request and returns the raw model text.
// Implementations perform exactly one call: no retries.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Disabled is the Generator used when AI_PROVIDER is "none".
type Disabled struct{}

func (Disabled) Generate(context.Context, Request) (string, error) {
	return "", ErrDisabled
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
