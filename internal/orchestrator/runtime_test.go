package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/overhuman/orchestrator/internal/catalog"
	"github.com/overhuman/orchestrator/internal/config"
	"github.com/overhuman/orchestrator/internal/orcherr"
	"github.com/overhuman/orchestrator/internal/router"
	"github.com/overhuman/orchestrator/internal/tracker"
)

func testAgentCatalog(t *testing.T) *catalog.InMemoryAgentCatalog {
	t.Helper()
	c, err := catalog.NewInMemoryAgentCatalog(map[string][]catalog.AgentVariant{
		"agent-1": {
			{AgentID: "agent-1", Version: 1, PromptBody: "do the task", SystemPrompt: "be helpful", Status: "active"},
		},
	})
	if err != nil {
		t.Fatalf("NewInMemoryAgentCatalog() error = %v", err)
	}
	return c
}

func bootstrapTestRuntime(t *testing.T, invoke router.Invoke) *Runtime {
	t.Helper()
	rt, err := Bootstrap(config.Default(), BootstrapOptions{
		Models:     catalog.DefaultModelCatalog(),
		Agents:     testAgentCatalog(t),
		LedgerPath: ":memory:",
		Invoke:     invoke,
	})
	if err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	t.Cleanup(func() { rt.Close() })
	return rt
}

func TestClassifyAndRoute(t *testing.T) {
	rt := bootstrapTestRuntime(t, nil)

	desc := rt.Classify("fix the bug in the login handler", "")
	if desc.Type != "debugging" {
		t.Fatalf("Classify() type = %q, want debugging", desc.Type)
	}

	decision, err := rt.Route(desc)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if decision.ChosenModel == "" {
		t.Fatal("Route() chose no model")
	}
}

func TestRunTaskRequiresExecutor(t *testing.T) {
	rt := bootstrapTestRuntime(t, nil)
	_, err := rt.RunTask(context.Background(), "agent-1", "do something", "")
	if err == nil {
		t.Fatal("RunTask() with no Invoke callable should error")
	}
}

func TestRunTaskSuccessRecordsOutcome(t *testing.T) {
	invoke := func(ctx context.Context, model, promptBody string, thinkingBudget int, systemPrompt string, adapters []router.Adapter) (router.InvokeResult, error) {
		return router.InvokeResult{Text: "done", TokensIn: 100, TokensOut: 200, LatencyMs: 50}, nil
	}
	rt := bootstrapTestRuntime(t, invoke)

	result, err := rt.RunTask(context.Background(), "agent-1", "write a short summary", "")
	if err != nil {
		t.Fatalf("RunTask() error = %v", err)
	}
	if result.TaskID == "" {
		t.Fatal("RunTask() returned an empty task id")
	}
	if result.Result.Model == "" {
		t.Fatal("RunTask() returned no model in its result")
	}

	status, err := rt.Cost(context.Background())
	if err != nil {
		t.Fatalf("Cost() error = %v", err)
	}
	if status.DailySpent <= 0 {
		t.Errorf("Cost() DailySpent = %v, want > 0 after a recorded outcome", status.DailySpent)
	}
}

func TestRunTaskFailureRecordsGap(t *testing.T) {
	invoke := func(ctx context.Context, model, promptBody string, thinkingBudget int, systemPrompt string, adapters []router.Adapter) (router.InvokeResult, error) {
		return router.InvokeResult{}, errors.New("provider unavailable")
	}

	cfg := config.Default()
	cfg.Fallback.MaxAttempts = 1
	cfg.Fallback.InitialDelaySec = 0
	rt, err := Bootstrap(cfg, BootstrapOptions{
		Models: catalog.DefaultModelCatalog(), Agents: testAgentCatalog(t),
		LedgerPath: ":memory:", Invoke: invoke,
	})
	if err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	t.Cleanup(func() { rt.Close() })

	for i := 0; i < 3; i++ {
		if _, err := rt.RunTask(context.Background(), "agent-1", "summarize this doc", ""); err == nil {
			t.Fatal("RunTask() expected an error from a failing invoke")
		}
	}

	gaps := rt.Gaps()
	if len(gaps) == 0 {
		t.Fatal("Gaps() expected at least one discovered gap after repeated failures")
	}
}

func TestEvolveUnknownAgentErrors(t *testing.T) {
	rt := bootstrapTestRuntime(t, nil)
	if _, err := rt.Evolve(context.Background(), "no-such-agent"); err == nil {
		t.Fatal("Evolve() for an unseeded agent should error")
	}
}

func TestBuildReportAndExport(t *testing.T) {
	rt := bootstrapTestRuntime(t, nil)

	report := rt.BuildReport(context.Background(), "manual", time.Now().UTC())
	if report.Period != "manual" {
		t.Errorf("BuildReport() Period = %q, want manual", report.Period)
	}

	out, err := rt.Export(ExportJSON)
	if err != nil {
		t.Fatalf("Export(json) error = %v", err)
	}
	if out == "" {
		t.Fatal("Export(json) returned empty output")
	}

	if _, err := rt.Export(ExportCSV); err != nil {
		t.Fatalf("Export(csv) error = %v", err)
	}
}

func TestExportWithNoReportsErrors(t *testing.T) {
	rt := bootstrapTestRuntime(t, nil)
	if _, err := rt.Export(ExportJSON); err == nil {
		t.Fatal("Export() with no retained reports should error")
	}
}

func TestSetBudgetAndPrecheckBlocks(t *testing.T) {
	rt := bootstrapTestRuntime(t, nil)
	rt.SetBudget(0.0001, -1, -1)

	verdict, err := rt.PrecheckCost(context.Background(), 1.0)
	if err != nil {
		t.Fatalf("PrecheckCost() error = %v", err)
	}
	if string(verdict) != "block" {
		t.Errorf("PrecheckCost() = %q, want block", verdict)
	}
}

func TestClassifyErrorMapsExitCodes(t *testing.T) {
	cases := []struct {
		err      error
		wantKind ErrorKind
		wantCode int
	}{
		{&orcherr.ConstraintViolation{Reason: "x"}, KindConstraintViolation, 1},
		{&orcherr.BudgetBlock{}, KindBudgetBlock, 1},
		{&orcherr.RateLimited{Model: "m"}, KindRateLimited, 2},
		{&orcherr.ProviderError{Model: "m", Err: errors.New("boom")}, KindProviderError, 2},
		{&orcherr.TimeoutError{Model: "m"}, KindTimeoutError, 2},
		{&orcherr.CatalogMiss{Name: "x"}, KindCatalogMiss, 2},
		{&orcherr.InvariantViolation{Invariant: "x", Detail: "y"}, KindInvariantViolation, 2},
		{errors.New("plain"), KindInternal, 2},
	}
	for _, c := range cases {
		kind, code := ClassifyError(c.err)
		if kind != c.wantKind || code != c.wantCode {
			t.Errorf("ClassifyError(%v) = (%v, %d), want (%v, %d)", c.err, kind, code, c.wantKind, c.wantCode)
		}
	}
}

func TestResetClearsCacheAndStats(t *testing.T) {
	rt := bootstrapTestRuntime(t, nil)
	desc := rt.Classify("summarize this", "")
	if _, err := rt.Route(desc); err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	rt.ClearCache()
	rt.ResetStats()
}

func TestRecordImplicitSignalPersists(t *testing.T) {
	rt := bootstrapTestRuntime(t, nil)
	if err := rt.RecordImplicitSignal(context.Background(), "task-1", "agent-1", tracker.ImplicitRetry); err != nil {
		t.Fatalf("RecordImplicitSignal() error = %v", err)
	}
	rt.RecordExplicitRating("agent-1", 4)
}
