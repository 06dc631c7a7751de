// Package orchestrator wires the Task Classifier, Model Router, Prompt
// Optimizer, Fallback Executor, Cost Ledger, Performance Tracker, Capability
// Expander, and Feedback Loop into a single in-process Runtime. There is no
// network hop between components; the host's Invoke callable is the only
// function that leaves the process.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/overhuman/orchestrator/internal/catalog"
	"github.com/overhuman/orchestrator/internal/classify"
	"github.com/overhuman/orchestrator/internal/executor"
	"github.com/overhuman/orchestrator/internal/expander"
	"github.com/overhuman/orchestrator/internal/feedback"
	"github.com/overhuman/orchestrator/internal/ledger"
	"github.com/overhuman/orchestrator/internal/observability"
	"github.com/overhuman/orchestrator/internal/optimizer"
	"github.com/overhuman/orchestrator/internal/orcherr"
	"github.com/overhuman/orchestrator/internal/router"
	"github.com/overhuman/orchestrator/internal/tracker"
)

// Dependencies are the fully constructed subsystems a Runtime wires
// together. Every field is required except Executor and Tracer: a host that
// never calls RunTask can leave Executor nil and still drive route/classify/
// evolve/gaps/suggestions/report/cost/budget.
type Dependencies struct {
	Models    catalog.ModelCatalog
	Agents    catalog.AgentCatalog
	Router    *router.Router
	Optimizer *optimizer.Optimizer
	Ledger    *ledger.Ledger
	Tracker   *tracker.Tracker
	Expander  *expander.Expander
	Feedback  *feedback.Loop
	Executor  *executor.Executor
	Logger    *observability.Logger
	Metrics   *observability.MetricsCollector
	Tracer    *observability.Tracer // optional
}

// Runtime is the top-level façade. It holds no business logic of its own
// beyond sequencing calls into the subsystems above and recording the
// outcome through the Ledger/Tracker/Expander.
type Runtime struct {
	deps Dependencies
}

// New constructs a Runtime from already-wired Dependencies. Use Bootstrap
// for the common case of building every subsystem from a config.Config.
func New(deps Dependencies) *Runtime {
	return &Runtime{deps: deps}
}

// RunResult is what RunTask returns on success, mirroring the control
// surface's {ok, decision, result} shape.
type RunResult struct {
	TaskID   string
	Decision router.RoutingDecision
	Variant  *optimizer.PromptVariant
	Budget   ledger.BudgetPrediction
	Result   executor.Result
	Warning  string
}

// Classify runs the Task Classifier in isolation, for the `classify`
// control-surface command.
func (rt *Runtime) Classify(task, taskContext string) classify.TaskDescriptor {
	return classify.Classify(task, taskContext)
}

// Route runs classification followed by routing, for the `route`
// control-surface command. It does not touch the budget ledger or
// Optimizer/Executor, so it is safe to call without an invoke callable.
func (rt *Runtime) Route(desc classify.TaskDescriptor) (router.RoutingDecision, error) {
	decision, err := rt.deps.Router.Route(desc)
	if err != nil {
		return router.RoutingDecision{}, err
	}
	if rt.deps.Logger != nil {
		rt.deps.Logger.Decision(decision.ChosenModel, decision.Confidence, decision.EstimatedCost)
	}
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.Increment(string(observability.MetricRoutingDecisions))
		rt.deps.Metrics.Record(observability.MetricCost, decision.EstimatedCost, nil)
	}
	return decision, nil
}

// RunTask is the full pipeline: classify -> route -> optimizer selection ->
// budget prediction -> fallback execution -> outcome recording. Requires
// Dependencies.Executor to have been constructed with a real Invoke
// callable.
func (rt *Runtime) RunTask(ctx context.Context, agentID, task, taskContext string) (RunResult, error) {
	if rt.deps.Executor == nil {
		return RunResult{}, fmt.Errorf("orchestrator: RunTask requires an Executor wired with a host Invoke callable")
	}

	desc := classify.Classify(task, taskContext)
	if rt.deps.Tracer != nil {
		spanCtx, span := rt.deps.Tracer.StartTask(ctx, desc.Type)
		defer span.End()
		ctx = spanCtx
	}

	decision, err := rt.deps.Router.Route(desc)
	if err != nil {
		return RunResult{}, err
	}

	estimatedCost := decision.EstimatedCost
	precheck, err := rt.deps.Ledger.Precheck(ctx, estimatedCost)
	if err != nil {
		return RunResult{}, err
	}
	if precheck == ledger.PrecheckBlock {
		status, _ := rt.deps.Ledger.Status(ctx)
		return RunResult{}, &orcherr.BudgetBlock{Scope: "daily", Limit: status.DailyLimit, Spent: status.DailySpent, Attempted: estimatedCost}
	}

	variant, err := rt.deps.Optimizer.Select(agentID)
	if err != nil {
		return RunResult{}, err
	}

	profile, _ := rt.deps.Models.Get(decision.ChosenModel)
	budget, err := rt.deps.Ledger.PredictBudget(ctx, desc, agentID, profile.MaxOutputTokens, profile.CostPer1kOutput)
	if err != nil {
		return RunResult{}, err
	}

	result, execErr := rt.deps.Executor.Run(ctx, decision, variant.PromptBody, variant.SystemPrompt, budget.RecommendedThinkingTokens)

	taskID := uuid.NewString()
	now := time.Now().UTC()

	rt.audit(rt.deps.Ledger.RecordDecision(ctx, ledger.DecisionRecord{
		ID: taskID, TaskType: desc.Type, Complexity: string(desc.Complexity),
		ChosenModel: decision.ChosenModel, Confidence: decision.Confidence,
		EstimatedCost: decision.EstimatedCost, CacheKey: decision.CacheKey,
	}))

	success := execErr == nil
	var quality float64
	var tokensIn, tokensOut, thinkingTokens int
	var errMsg string
	model := decision.ChosenModel
	usedFallback := false
	if success {
		quality = profile.QualityScore
		tokensIn = result.Value.TokensIn
		tokensOut = result.Value.TokensOut
		thinkingTokens = result.Value.ThinkingTokens
		model = result.Model
		usedFallback = result.UsedFallback
	} else {
		errMsg = execErr.Error()
	}

	if recErr := rt.deps.Ledger.RecordOutcome(ctx, ledger.OutcomeInput{
		TaskID: taskID, Model: model, AgentID: agentID, VariantID: variant.ID,
		TaskType: desc.Type, Complexity: desc.Complexity, Success: success, Quality: quality,
		ActualCost: estimatedCost, ActualLatencyMs: result.Value.LatencyMs,
		TokensIn: tokensIn, TokensOut: tokensOut, ThinkingTokens: thinkingTokens,
		UsedFallback: usedFallback, Error: errMsg,
	}); recErr != nil {
		return RunResult{}, recErr
	}

	rt.deps.Tracker.RecordOutcome(agentID, success, now)
	if optErr := rt.deps.Optimizer.RecordOutcome(agentID, variant.ID, success, float64(result.Value.LatencyMs), float64(tokensIn+tokensOut)); optErr != nil {
		return RunResult{}, optErr
	}

	if !success {
		rt.deps.Expander.RecordFailure(expander.Failure{
			TaskID: taskID, ErrorType: classifyErrorType(execErr),
			RequiredCapabilities: requiredCapabilities(desc), Timestamp: now,
		})
	}

	attemptErrors := result.Errors
	if tf, ok := execErr.(*executor.TerminalFailure); ok {
		attemptErrors = tf.Errors
	}
	if usedFallback {
		rt.audit(rt.deps.Ledger.RecordFallbackEvent(ctx, taskID, decision.ChosenModel, model, "primary model failed"))
	}
	for _, ae := range attemptErrors {
		var rl *orcherr.RateLimited
		if errors.As(ae.Err, &rl) {
			rt.audit(rt.deps.Ledger.RecordRateLimitEvent(ctx, ae.Model, time.Unix(rl.ResetAt, 0)))
		}
	}

	if rt.deps.Logger != nil {
		rt.deps.Logger.Outcome(model, success, usedFallback, result.Attempts)
	}
	if rt.deps.Metrics != nil {
		if usedFallback {
			rt.deps.Metrics.Increment(string(observability.MetricFallbacks))
		}
		if !success {
			rt.deps.Metrics.Increment(string(observability.MetricErrors))
		}
	}

	run := RunResult{TaskID: taskID, Decision: decision, Variant: variant, Budget: budget, Result: result}
	if precheck == ledger.PrecheckWarning {
		run.Warning = "budget window is approaching its configured limit"
	}
	if execErr != nil {
		return run, execErr
	}
	return run, nil
}

// audit logs a failed best-effort audit-table write without failing the
// task; the transactional outcome/budget path surfaces its errors directly.
func (rt *Runtime) audit(err error) {
	if err != nil && rt.deps.Logger != nil {
		rt.deps.Logger.Warn("audit write failed", "error", err.Error())
	}
}

// requiredCapabilities returns a TaskDescriptor's constraint-listed
// capabilities, nil-safe since Constraints is optional.
func requiredCapabilities(desc classify.TaskDescriptor) []string {
	if desc.Constraints == nil {
		return nil
	}
	return desc.Constraints.RequiredCapabilities
}

// classifyErrorType buckets an executor failure into the coarse error-type
// vocabulary the Expander's gap discovery groups by.
func classifyErrorType(err error) string {
	tf, ok := err.(*executor.TerminalFailure)
	if !ok || len(tf.Errors) == 0 {
		return "provider_error"
	}
	switch tf.Errors[len(tf.Errors)-1].Err.(type) {
	case *orcherr.TimeoutError:
		return "timeout"
	case *orcherr.RateLimited:
		return "rate_limit"
	default:
		return "provider_error"
	}
}
