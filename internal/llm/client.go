// Package llm provides reasoning oracle client implementations.
package llm

import "context"

// Oracle is the interface the agent loop reasons through. Prompts go in
// whole, text comes back whole; no streaming contract is required
// because the loop consumes responses atomically.
type Oracle interface {
	// Generate produces a completion for the given prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}

// Options are generation parameters shared across providers.
type Options struct {
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
}

// DefaultOptions returns the generation parameters tuned for agentic
// reasoning. Temperature 1.0 is deliberate: Gemini 2.0 reasoning is
// optimized for it, and lower values hurt multi-step planning.
func DefaultOptions() Options {
	return Options{
		Temperature:     1.0,
		TopP:            0.95,
		TopK:            40,
		MaxOutputTokens: 8192,
	}
}
