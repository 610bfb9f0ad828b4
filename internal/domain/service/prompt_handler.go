package service

import "context"

// ProviderInfo describes one configured LLM provider's static capabilities,
// enumerated at config load rather than discovered via runtime reflection.
type ProviderInfo struct {
	Name       string
	Type       string // "local" | "remote"
	BaseURL    string
	Models     []string
	Enabled    bool
	CircuitOpen bool
}

// CompletionOptions overrides the active provider's defaults for a single
// call; never mutates state-store configuration.
type CompletionOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Stream      bool
}

// CompletionDelta is one lazily-produced chunk of a streaming completion.
type CompletionDelta struct {
	Text  string
	Done  bool
	Final *CompletionSummary
}

// CompletionSummary carries aggregate metadata delivered with the final
// completion marker of a stream.
type CompletionSummary struct {
	Model        string
	PromptTokens int
	OutputTokens int
	Elapsed      float64 // seconds
}

// PromptHandler is the provider-agnostic single-shot LLM invocation
// contract with a fallback chain across configured providers.
type PromptHandler interface {
	// Initialize loads provider definitions from configPath, validates them
	// against schemaPath, and opens handles for providers marked enabled.
	Initialize(ctx context.Context, configPath, schemaPath string) error
	// Complete invokes the active provider; on transport error, overload,
	// or explicit unavailability it walks the fallback chain, failing with
	// ALL_PROVIDERS_EXHAUSTED only once every provider has failed.
	Complete(ctx context.Context, text string, opts CompletionOptions) (string, error)
	// Stream is Complete's streaming form: deltas arrive in provider emit
	// order, terminated by a delta with Done=true carrying Final.
	Stream(ctx context.Context, text string, opts CompletionOptions) (<-chan CompletionDelta, error)
	// GetAvailableProviders lists every configured provider's static info.
	GetAvailableProviders() []ProviderInfo
	// SetActiveProvider switches the active provider between requests; the
	// handler rejects the switch while a request is in flight.
	SetActiveProvider(name string) error
}
