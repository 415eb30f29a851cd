package adapter

import "context"

// Adapter defines the interface for LLM provider adapters.
type Adapter interface {
	// Generate sends a prompt to the model and returns the response.
	Generate(ctx context.Context, model string, prompt string, opts Options) (*Response, error)

	// Name returns the adapter's identifier.
	Name() string

	// Models returns the list of supported models.
	Models() []string
}

// Options carries per-call generation parameters.
type Options struct {
	// System is an optional system prompt.
	System string

	// Temperature overrides the provider default when non-nil.
	Temperature *float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int

	// OutputFormat hints the expected response shape ("json" or empty).
	// Providers that cannot enforce it still receive the hint via the
	// system prompt.
	OutputFormat string
}

// Response wraps a provider output.
type Response struct {
	// Text is the concatenated text content of the response.
	Text string

	// Raw holds the provider-specific response object, when available.
	Raw any
}
