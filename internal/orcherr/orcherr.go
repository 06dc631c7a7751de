// Package orcherr defines the error taxonomy shared by the router, the
// fallback executor, and the ledger. Each kind is a distinct Go type so
// callers can use errors.As instead of matching on message substrings.
package orcherr

import "fmt"

// ConstraintViolation means no model in the catalog satisfies every hard
// constraint on a TaskDescriptor. The router surfaces it unless a
// defaultModel is configured.
type ConstraintViolation struct {
	Reason string
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("constraint violation: %s", e.Reason)
}

// BudgetBlock means spending the estimated cost would exceed a budget
// window's limit. It is advisory at the ledger level and terminal at the
// orchestrator level.
type BudgetBlock struct {
	Scope     string // "daily" or "monthly"
	Limit     float64
	Spent     float64
	Attempted float64
}

func (e *BudgetBlock) Error() string {
	return fmt.Sprintf("budget block: %s window would reach %.4f of %.4f limit (spent %.4f)",
		e.Scope, e.Spent+e.Attempted, e.Limit, e.Spent)
}

// RateLimited means a provider rejected a request as rate-limited. The
// executor recovers from this locally by skipping to the next model; it is
// only surfaced when every model in the chain is rate-limited.
type RateLimited struct {
	Model     string
	ResetAt   int64 // unix seconds
	Remaining int
	Limit     int
}

func (e *RateLimited) Error() string {
	return fmt.Sprintf("rate limited: model %s resets at %d", e.Model, e.ResetAt)
}

// ProviderError wraps a failure from the invoke callable. Transient errors
// are retried with backoff; terminal errors fall through immediately.
type ProviderError struct {
	Model     string
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	kind := "terminal"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("provider error (%s) on %s: %v", kind, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// TimeoutError means an invoke call exceeded its per-attempt deadline. It is
// always treated as transient.
type TimeoutError struct {
	Model string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout invoking model %s", e.Model)
}

// CatalogMiss is fatal at startup: the catalog could not be loaded or is
// missing an entry the configuration depends on.
type CatalogMiss struct {
	Name string
}

func (e *CatalogMiss) Error() string {
	return fmt.Sprintf("catalog miss: %s", e.Name)
}

// InvariantViolation is an internal consistency failure. The request that
// triggered it is aborted without committing an outcome.
type InvariantViolation struct {
	Invariant string
	Detail    string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation (%s): %s", e.Invariant, e.Detail)
}
