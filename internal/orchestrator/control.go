package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/overhuman/orchestrator/internal/executor"
	"github.com/overhuman/orchestrator/internal/expander"
	"github.com/overhuman/orchestrator/internal/feedback"
	"github.com/overhuman/orchestrator/internal/ledger"
	"github.com/overhuman/orchestrator/internal/observability"
	"github.com/overhuman/orchestrator/internal/optimizer"
	"github.com/overhuman/orchestrator/internal/router"
	"github.com/overhuman/orchestrator/internal/tracker"
)

// Close releases every resource the Runtime owns (currently the Ledger's
// SQLite handle and, if configured, the Tracer's exporter).
func (rt *Runtime) Close() error {
	var firstErr error
	if rt.deps.Ledger != nil {
		if err := rt.deps.Ledger.Close(); err != nil {
			firstErr = err
		}
	}
	if rt.deps.Tracer != nil {
		if err := rt.deps.Tracer.Shutdown(context.Background()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ClearCache invalidates every cached routing decision, for the
// `reset --cache` control-surface command.
func (rt *Runtime) ClearCache() {
	rt.deps.Router.ClearCache()
}

// Weights returns the Router's current sub-score weights, for the `config`
// control-surface command's default listing.
func (rt *Runtime) Weights() router.Weights {
	return rt.deps.Router.Weights()
}

// SetWeight overrides one named Router sub-score weight, for the
// `config set-weight <k> <v>` control-surface subcommand. The CLI has no
// `--set-weight` flag.
func (rt *Runtime) SetWeight(name string, value float64) error {
	return rt.deps.Router.SetWeight(name, value)
}

// MetricsSummary aggregates one metric type's recorded points since the
// given time. The `stats` command does not call it; it prints counters only.
func (rt *Runtime) MetricsSummary(mt observability.MetricType, since time.Time) observability.Summary {
	return rt.deps.Metrics.Summarize(mt, since)
}

// MetricsCounters returns every named counter's current value, for the
// `stats` control-surface command.
func (rt *Runtime) MetricsCounters() map[string]int64 {
	return rt.deps.Metrics.Snapshot()
}

// FallbackConfig returns the Fallback Executor's retry/timeout/backoff
// configuration, for the `fallback` control-surface command, which takes no
// flags (there is no `--list` flag; it always prints the configuration). The
// second return value is false when no Executor was wired (no Invoke
// callable was supplied to Bootstrap).
func (rt *Runtime) FallbackConfig() (executor.Config, bool) {
	if rt.deps.Executor == nil {
		return executor.Config{}, false
	}
	return rt.deps.Executor.Config(), true
}

// ResetStats drops the in-process performance mirror, for the
// `reset --stats` control-surface command. The durable Ledger tables are
// untouched; this only clears the Tracker's rolling window.
func (rt *Runtime) ResetStats() {
	rt.deps.Tracker.Retain(time.Now().AddDate(100, 0, 0))
}

// Evolve runs the Optimizer's evolution step for one agent, bucketing the
// agent's most frequent recent failure modes from the Expander's discovered
// gaps, for the `evolve --agent-id` control-surface command. The new
// variant's durable row is written through the Ledger.
func (rt *Runtime) Evolve(ctx context.Context, agentID string) (*optimizer.PromptVariant, error) {
	var modes []optimizer.FailureMode
	for _, g := range rt.deps.Expander.Gaps() {
		modes = append(modes, optimizer.FailureMode{ErrorType: categoryToErrorType(g.Category), Count: g.FailureCount})
	}
	v, err := rt.deps.Optimizer.Evolve(agentID, modes)
	if err != nil {
		return nil, err
	}
	rt.audit(rt.deps.Ledger.UpsertVariant(ctx, variantRecord(v)))
	if rt.deps.Logger != nil {
		rt.deps.Logger.Evolution("evolve", agentID)
	}
	if rt.deps.Metrics != nil {
		rt.deps.Metrics.Increment(string(observability.MetricEvolutions))
	}
	return v, nil
}

func variantRecord(v *optimizer.PromptVariant) ledger.VariantRecord {
	return ledger.VariantRecord{
		ID: v.ID, AgentID: v.AgentID, Version: v.Version, Status: string(v.Status),
		TrialCount: v.TrialCount, SuccessCount: v.SuccessCount,
		ParentVariantID: v.ParentVariantID, CreatedAt: v.CreatedAt,
	}
}

// RecordImplicitSignal ingests one implicit feedback signal in real time:
// the Tracker's rolling mirror for threshold checks plus the Ledger's
// implicit_feedback table for durability.
func (rt *Runtime) RecordImplicitSignal(ctx context.Context, taskID, agentID string, kind tracker.ImplicitKind) error {
	now := time.Now().UTC()
	rt.deps.Tracker.RecordImplicitSignal(agentID, kind, now)
	return rt.deps.Ledger.RecordImplicitFeedback(ctx, taskID, agentID, int(tracker.RatingFor(kind)), string(kind))
}

// RecordExplicitRating ingests one explicit 1-5 rating.
func (rt *Runtime) RecordExplicitRating(agentID string, rating float64) {
	rt.deps.Tracker.RecordExplicitRating(agentID, rating, time.Now().UTC())
}

func categoryToErrorType(c expander.Category) string {
	switch c {
	case expander.CategoryToolLimitation:
		return "timeout"
	case expander.CategoryMissingSkill:
		return "capability"
	case expander.CategoryKnowledgeGap:
		return "validation"
	default:
		return "ambiguous"
	}
}

// Gaps returns every discovered capability gap, for the `gaps`
// control-surface command.
func (rt *Runtime) Gaps() []expander.CapabilityGap {
	return rt.deps.Expander.Gaps()
}

// Suggestions returns one SkillSuggestion per discovered gap, for the
// `suggestions` control-surface command.
func (rt *Runtime) Suggestions() []expander.SkillSuggestion {
	return rt.deps.Expander.Suggest()
}

// CheckThresholds runs the Feedback Loop's per-agent threshold check for
// every seeded agent, returning the PromptUpdates that tripped.
func (rt *Runtime) CheckThresholds(now time.Time) []feedback.PromptUpdate {
	var updates []feedback.PromptUpdate
	for _, agentID := range rt.deps.Agents.Agents() {
		if u := rt.deps.Feedback.CheckThresholds(agentID, feedback.AgentActive, now); u != nil {
			updates = append(updates, *u)
		}
	}
	return updates
}

// BuildReport aggregates the current period into an EvolutionReport,
// appends it to the Feedback Loop's retained history, and writes the report
// plus the current variant/promotion state through the Ledger, for the
// `report[--period]` control-surface command.
func (rt *Runtime) BuildReport(ctx context.Context, period string, now time.Time) feedback.EvolutionReport {
	updates := rt.CheckThresholds(now)

	var lines []feedback.AgentReportLine
	totalTasks := 0
	var totalSuccess float64
	for _, agentID := range rt.deps.Agents.Agents() {
		n := rt.deps.Tracker.TaskCount(agentID, now)
		totalTasks += n
		delta := rt.deps.Tracker.SuccessRateDelta(agentID, now)
		rate, _, ok := rt.deps.Optimizer.ActiveSuccessRate(agentID)
		if !ok {
			rate = 0
		}
		totalSuccess += rate * float64(n)
		lines = append(lines, feedback.AgentReportLine{AgentID: agentID, SuccessRate: rate, SuccessRateDelta: delta})
	}

	overall := 0.0
	if totalTasks > 0 {
		overall = totalSuccess / float64(totalTasks)
	}

	report := feedback.EvolutionReport{
		Period: period, TotalTasks: totalTasks, OverallSuccessRate: overall,
		PerAgent: lines, OpenGaps: len(rt.deps.Expander.Gaps()),
		PendingSuggestions: len(rt.deps.Expander.Suggest()),
		PromptUpdates: updates, GeneratedAt: now,
	}
	rt.deps.Feedback.AddReport(report)

	if body, err := json.Marshal(report); err == nil {
		rt.audit(rt.deps.Ledger.SaveReport(ctx, uuid.NewString(), period, string(body)))
	}
	rt.persistEvolutionState(ctx, now)
	rt.audit(rt.deps.Ledger.SetState(ctx, "last_report_at", now.Format(time.RFC3339)))
	return report
}

// persistEvolutionState refreshes the durable variant rows and appends any
// promotion history rows not yet written. The persisted-count cursor in
// evolution_state keeps the append idempotent across repeated reports.
func (rt *Runtime) persistEvolutionState(ctx context.Context, now time.Time) {
	for _, agentID := range rt.deps.Agents.Agents() {
		for _, v := range rt.deps.Optimizer.AllVariants(agentID) {
			rt.audit(rt.deps.Ledger.UpsertVariant(ctx, variantRecord(v)))
		}
	}

	history := rt.deps.Optimizer.History()
	persisted := 0
	if raw, ok, err := rt.deps.Ledger.GetState(ctx, "promotions_persisted"); err == nil && ok {
		if n, convErr := strconv.Atoi(raw); convErr == nil {
			persisted = n
		}
	}
	if persisted > len(history) {
		persisted = len(history)
	}
	for _, h := range history[persisted:] {
		rt.audit(rt.deps.Ledger.AppendPromotion(ctx, h.AgentID, h.PromotedVariantID, h.DemotedVariantID, h.Timestamp))
	}
	rt.audit(rt.deps.Ledger.SetState(ctx, "promotions_persisted", strconv.Itoa(len(history))))
}

// Reports returns every retained EvolutionReport, oldest first.
func (rt *Runtime) Reports() []feedback.EvolutionReport {
	return rt.deps.Feedback.Reports()
}

// Cost returns the current budget window state, for the `cost[--period]`
// control-surface command.
func (rt *Runtime) Cost(ctx context.Context) (ledger.BudgetStatus, error) {
	return rt.deps.Ledger.Status(ctx)
}

// PrecheckCost runs the Ledger's advisory budget check for a hypothetical
// spend without committing anything, for the `route` control-surface
// command's warn-shape result.
func (rt *Runtime) PrecheckCost(ctx context.Context, estimatedCost float64) (ledger.PrecheckResult, error) {
	return rt.deps.Ledger.Precheck(ctx, estimatedCost)
}

// SetBudget updates the Ledger's configured limits, for
// `budget[--set-daily|--set-monthly|--set-per-request]`. Pass a negative
// value to leave a limit unchanged.
func (rt *Runtime) SetBudget(daily, monthly, perRequest float64) {
	rt.deps.Ledger.SetLimits(daily, monthly, perRequest)
}

// SuggestDowngrades proxies ledger.SuggestDowngrades using the Runtime's
// model catalog as the cost/quality lookup.
func (rt *Runtime) SuggestDowngrades(ctx context.Context) ([]ledger.DowngradeSuggestion, error) {
	lookup, ok := rt.deps.Models.(ledger.ModelCostLookup)
	if !ok {
		return nil, fmt.Errorf("orchestrator: model catalog does not implement ledger.ModelCostLookup")
	}
	return rt.deps.Ledger.SuggestDowngrades(ctx, lookup)
}

// ExportFormat is the serialization the `export[--format]` control-surface
// command supports.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
)

// Export serializes the most recent EvolutionReport in the requested
// format.
func (rt *Runtime) Export(format ExportFormat) (string, error) {
	reports := rt.Reports()
	if len(reports) == 0 {
		return "", fmt.Errorf("orchestrator: no reports to export")
	}
	latest := reports[len(reports)-1]

	switch format {
	case ExportCSV:
		var b strings.Builder
		b.WriteString("agent_id,success_rate,success_rate_delta\n")
		for _, line := range latest.PerAgent {
			fmt.Fprintf(&b, "%s,%.4f,%.4f\n", line.AgentID, line.SuccessRate, line.SuccessRateDelta)
		}
		return b.String(), nil
	case ExportJSON, "":
		raw, err := json.MarshalIndent(latest, "", "  ")
		if err != nil {
			return "", err
		}
		return string(raw), nil
	default:
		return "", fmt.Errorf("orchestrator: unknown export format %q", format)
	}
}
