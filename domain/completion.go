package domain

// CompletionOptions tunes a single text-generation request.
// A zero value lets the client fall back to its configured defaults.
type CompletionOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
}
