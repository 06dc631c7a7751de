package router

import "context"

// RateLimitInfo carries structured rate-limit metadata a provider may return
// alongside a failure.
type RateLimitInfo struct {
	ResetAt   int64 // unix seconds
	Remaining int
	Limit     int
}

// InvokeResult is the successful outcome of calling a model.
type InvokeResult struct {
	Text           string
	TokensIn       int
	TokensOut      int
	ThinkingTokens int
	LatencyMs      int
}

// Adapter transforms a prompt before it is sent to a specific model. Adapters
// must be idempotent: applying one twice must equal applying it once.
type Adapter func(prompt string) string

// Invoke is the single host-provided execution callable the Fallback
// Executor treats as opaque. thinkingBudget is the recommended
// thinking-token budget from the Ledger's predictor.
type Invoke func(ctx context.Context, model, promptBody string, thinkingBudget int, systemPrompt string, adapters []Adapter) (InvokeResult, error)
