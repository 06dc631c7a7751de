// Package executor drives a routing decision through the injected invoke
// callable: per-attempt timeouts, retry with backoff, rate-limit cooldowns,
// and graceful fallback through the decision's model chain.
package executor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/overhuman/orchestrator/internal/orcherr"
	"github.com/overhuman/orchestrator/internal/router"
)

// Backoff selects how the delay between retries grows.
type Backoff string

const (
	BackoffLinear      Backoff = "linear"
	BackoffExponential Backoff = "exponential"
)

// Config controls retry/timeout/backoff behavior.
type Config struct {
	Enabled      bool
	MaxAttempts  int
	Timeout      time.Duration
	InitialDelay time.Duration
	Backoff      Backoff
}

// DefaultConfig returns the stock retry configuration.
func DefaultConfig() Config {
	return Config{Enabled: true, MaxAttempts: 3, Timeout: 60 * time.Second, InitialDelay: time.Second, Backoff: BackoffExponential}
}

var rateLimitSubstrings = []string{
	"rate limit", "too many requests", "quota exceeded", "429", "throttled",
}

// AttemptError records one failed attempt against one model, for the
// composite terminal failure raised when every model is exhausted.
type AttemptError struct {
	Model string
	Err   error
}

// Result is what the Executor returns on success.
type Result struct {
	Value        router.InvokeResult
	Model        string
	UsedFallback bool
	Attempts     int
	TotalTime    time.Duration
	Errors       []AttemptError
}

// TerminalFailure is raised when every model in the chain is exhausted.
type TerminalFailure struct {
	Errors []AttemptError
}

func (e *TerminalFailure) Error() string {
	var b strings.Builder
	b.WriteString("fallback exhausted: ")
	for i, ae := range e.Errors {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(ae.Model)
		b.WriteString(": ")
		b.WriteString(ae.Err.Error())
	}
	return b.String()
}

// rateLimitState tracks a per-model cooldown, guarded by its own mutex since
// it is read/written from whichever goroutine is currently executing.
type rateLimitState struct {
	mu      sync.Mutex
	resetAt map[string]time.Time
}

func newRateLimitState() *rateLimitState {
	return &rateLimitState{resetAt: make(map[string]time.Time)}
}

func (s *rateLimitState) set(model string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetAt[model] = at
}

func (s *rateLimitState) get(model string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.resetAt[model]
	return t, ok
}

// Executor runs a RoutingDecision against an injected Invoke callable.
type Executor struct {
	invoke   router.Invoke
	cfg      Config
	rlState  *rateLimitState
	adapters map[string][]router.Adapter // per-model prompt adapters
	sleep    func(ctx context.Context, d time.Duration) error
}

// Config returns the Executor's retry/timeout/backoff configuration, for the
// `fallback` control-surface command.
func (e *Executor) Config() Config {
	return e.cfg
}

// New constructs an Executor. adapters maps model name to the adapter chain
// applied to the prompt before invocation for that model.
func New(invoke router.Invoke, cfg Config, adapters map[string][]router.Adapter) *Executor {
	return &Executor{
		invoke: invoke, cfg: cfg, rlState: newRateLimitState(), adapters: adapters,
		sleep: ctxSleep,
	}
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes the decision's chosen model, then its fallback chain. A
// rate-limited model whose cooldown extends more than a minute out is
// skipped unless it is the last model left. With fallback disabled only the
// chosen model is attempted.
func (e *Executor) Run(ctx context.Context, decision router.RoutingDecision, promptBody, systemPrompt string, thinkingBudget int) (Result, error) {
	chain := append([]string{decision.ChosenModel}, decision.FallbackChain...)
	if !e.cfg.Enabled {
		chain = chain[:1]
	}
	var errs []AttemptError
	attempts := 0
	start := time.Now()

	for modelIdx, model := range chain {
		if err := ctx.Err(); err != nil {
			return Result{}, &TerminalFailure{Errors: errs}
		}

		if resetAt, limited := e.rlState.get(model); limited {
			now := time.Now()
			isLast := modelIdx == len(chain)-1
			if resetAt.After(now.Add(60*time.Second)) && !isLast {
				continue
			}
			if resetAt.After(now) {
				if err := e.sleep(ctx, resetAt.Sub(now)); err != nil {
					return Result{}, &TerminalFailure{Errors: errs}
				}
			}
		}

		prompt := applyAdapters(promptBody, e.adapters[model])

		maxAttempts := e.cfg.MaxAttempts
		if maxAttempts <= 0 {
			maxAttempts = 1
		}

		for retry := 0; retry < maxAttempts; retry++ {
			attempts++
			attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
			value, err := e.invoke(attemptCtx, model, prompt, thinkingBudget, systemPrompt, e.adapters[model])
			cancel()

			if err == nil {
				return Result{
					Value: value, Model: model, UsedFallback: modelIdx > 0,
					Attempts: attempts, TotalTime: time.Since(start), Errors: errs,
				}, nil
			}

			if attemptCtx.Err() == context.DeadlineExceeded {
				err = &orcherr.TimeoutError{Model: model}
			}

			if isRateLimited(err) {
				resetAt := rateLimitResetAt(err)
				e.rlState.set(model, resetAt)
				errs = append(errs, AttemptError{Model: model, Err: &orcherr.RateLimited{Model: model, ResetAt: resetAt.Unix()}})
				break
			}

			errs = append(errs, AttemptError{Model: model, Err: err})

			if ctx.Err() != nil {
				return Result{}, &TerminalFailure{Errors: errs}
			}

			var pe *orcherr.ProviderError
			if errors.As(err, &pe) && !pe.Transient {
				break
			}

			if retry < maxAttempts-1 {
				delay := e.backoffDelay(retry)
				if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
					return Result{}, &TerminalFailure{Errors: errs}
				}
			}
		}
	}

	return Result{}, &TerminalFailure{Errors: errs}
}

func (e *Executor) backoffDelay(retry int) time.Duration {
	base := e.cfg.InitialDelay
	if base <= 0 {
		base = time.Second
	}
	if e.cfg.Backoff == BackoffLinear {
		return base * time.Duration(retry+1)
	}
	return base * time.Duration(1<<uint(retry))
}

func applyAdapters(prompt string, adapters []router.Adapter) string {
	for _, a := range adapters {
		prompt = a(prompt)
	}
	return prompt
}

func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var rl *orcherr.RateLimited
	if errors.As(err, &rl) {
		return true
	}
	lower := strings.ToLower(err.Error())
	for _, s := range rateLimitSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func rateLimitResetAt(err error) time.Time {
	var rl *orcherr.RateLimited
	if errors.As(err, &rl) && rl.ResetAt > 0 {
		return time.Unix(rl.ResetAt, 0)
	}
	return time.Now().Add(60 * time.Second)
}

// TerseAdapter strips chain-of-thought phrasing for models that charge for
// or ignore it. Idempotent.
func TerseAdapter(prompt string) string {
	replacer := strings.NewReplacer(
		"think step by step", "",
		"Think step by step", "",
		"let's think step by step", "",
	)
	return strings.TrimSpace(replacer.Replace(prompt))
}

// VerboseAdapter appends a reasoning instruction when the prompt doesn't
// already carry one. Idempotent: re-applying it is a no-op once present.
func VerboseAdapter(prompt string) string {
	if strings.Contains(strings.ToLower(prompt), "step by step") {
		return prompt
	}
	return prompt + "\n\nThink step by step before answering."
}
