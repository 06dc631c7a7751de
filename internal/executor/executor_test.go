package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/overhuman/orchestrator/internal/orcherr"
	"github.com/overhuman/orchestrator/internal/router"
)

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestRunSucceedsOnFirstModel(t *testing.T) {
	calls := 0
	invoke := func(ctx context.Context, model, prompt string, budget int, system string, adapters []router.Adapter) (router.InvokeResult, error) {
		calls++
		return router.InvokeResult{Text: "ok"}, nil
	}
	e := New(invoke, DefaultConfig(), nil)
	e.sleep = noSleep

	decision := router.RoutingDecision{ChosenModel: "sonnet", FallbackChain: []string{"haiku"}}
	result, err := e.Run(context.Background(), decision, "prompt", "system", 1000)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.UsedFallback {
		t.Error("expected UsedFallback = false")
	}
	if calls != 1 {
		t.Errorf("invoke called %d times, want 1", calls)
	}
}

func TestRunFallsBackOnRateLimit(t *testing.T) {
	attempted := []string{}
	invoke := func(ctx context.Context, model, prompt string, budget int, system string, adapters []router.Adapter) (router.InvokeResult, error) {
		attempted = append(attempted, model)
		if model == "sonnet" {
			return router.InvokeResult{}, &orcherr.RateLimited{Model: "sonnet", ResetAt: time.Now().Add(30 * time.Second).Unix()}
		}
		return router.InvokeResult{Text: "ok"}, nil
	}
	e := New(invoke, DefaultConfig(), nil)
	e.sleep = noSleep

	decision := router.RoutingDecision{ChosenModel: "sonnet", FallbackChain: []string{"haiku"}}
	result, err := e.Run(context.Background(), decision, "prompt", "system", 1000)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.UsedFallback {
		t.Error("expected UsedFallback = true")
	}
	if result.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", result.Attempts)
	}
	if len(result.Errors) != 1 || result.Errors[0].Model != "sonnet" {
		t.Errorf("errors = %+v, want first error from sonnet", result.Errors)
	}
}

func TestRunExhaustsChainOnTerminalErrors(t *testing.T) {
	invoke := func(ctx context.Context, model, prompt string, budget int, system string, adapters []router.Adapter) (router.InvokeResult, error) {
		return router.InvokeResult{}, errors.New("internal server error")
	}
	e := New(invoke, DefaultConfig(), nil)
	e.sleep = noSleep

	decision := router.RoutingDecision{ChosenModel: "sonnet", FallbackChain: []string{"haiku"}}
	_, err := e.Run(context.Background(), decision, "prompt", "system", 1000)
	if err == nil {
		t.Fatal("expected terminal failure, got nil")
	}
	var tf *TerminalFailure
	if !errors.As(err, &tf) {
		t.Fatalf("error = %v, want *TerminalFailure", err)
	}
	if len(tf.Errors) == 0 {
		t.Error("expected recorded errors on terminal failure")
	}
}

func TestRunRespectsCancellation(t *testing.T) {
	invoke := func(ctx context.Context, model, prompt string, budget int, system string, adapters []router.Adapter) (router.InvokeResult, error) {
		return router.InvokeResult{}, errors.New("transient failure")
	}
	e := New(invoke, DefaultConfig(), nil)
	e.sleep = noSleep

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	decision := router.RoutingDecision{ChosenModel: "sonnet"}
	_, err := e.Run(ctx, decision, "prompt", "system", 1000)
	if err == nil {
		t.Fatal("expected terminal failure on cancelled context")
	}
}

func TestTerseAdapterIdempotent(t *testing.T) {
	p := "Think step by step and answer."
	once := TerseAdapter(p)
	twice := TerseAdapter(once)
	if once != twice {
		t.Errorf("TerseAdapter not idempotent: %q != %q", once, twice)
	}
}

func TestVerboseAdapterIdempotent(t *testing.T) {
	p := "Answer the question."
	once := VerboseAdapter(p)
	twice := VerboseAdapter(once)
	if once != twice {
		t.Errorf("VerboseAdapter not idempotent: %q != %q", once, twice)
	}
}

func TestRunDisabledFallbackOnlyTriesChosen(t *testing.T) {
	var attempted []string
	invoke := func(ctx context.Context, model, prompt string, budget int, system string, adapters []router.Adapter) (router.InvokeResult, error) {
		attempted = append(attempted, model)
		return router.InvokeResult{}, errors.New("unavailable")
	}
	cfg := DefaultConfig()
	cfg.Enabled = false
	cfg.MaxAttempts = 1
	e := New(invoke, cfg, nil)
	e.sleep = noSleep

	decision := router.RoutingDecision{ChosenModel: "sonnet", FallbackChain: []string{"haiku"}}
	if _, err := e.Run(context.Background(), decision, "prompt", "system", 1000); err == nil {
		t.Fatal("expected terminal failure")
	}
	if len(attempted) != 1 || attempted[0] != "sonnet" {
		t.Errorf("attempted = %v, want only the chosen model", attempted)
	}
}
