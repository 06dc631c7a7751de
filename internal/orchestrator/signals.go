package orchestrator

import (
	"time"

	"github.com/overhuman/orchestrator/internal/optimizer"
	"github.com/overhuman/orchestrator/internal/tracker"
)

// trackerSignals adapts *tracker.Tracker to feedback.AgentSignals,
// collapsing the Trend enum to the declining bool the loop checks.
type trackerSignals struct{ t *tracker.Tracker }

func (s trackerSignals) TaskCount(agentID string, now time.Time) int {
	return s.t.TaskCount(agentID, now)
}

func (s trackerSignals) SuccessRateDelta(agentID string, now time.Time) float64 {
	return s.t.SuccessRateDelta(agentID, now)
}

func (s trackerSignals) Trend(agentID string, now time.Time) bool {
	return s.t.Trend(agentID, now) == tracker.TrendDeclining
}

// optimizerSignals adapts *optimizer.Optimizer to feedback.VariantSignals.
type optimizerSignals struct{ o *optimizer.Optimizer }

func (s optimizerSignals) HasTestingVariant(agentID string) bool {
	return s.o.HasTestingVariant(agentID)
}

func (s optimizerSignals) ActiveSuccessRate(agentID string) (rate float64, n int, ok bool) {
	return s.o.ActiveSuccessRate(agentID)
}

func (s optimizerSignals) PreviousArchivedSuccessRate(agentID string) (rate float64, n int, ok bool) {
	return s.o.PreviousArchivedSuccessRate(agentID)
}
