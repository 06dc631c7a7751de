package feedback

import (
	"testing"
	"time"
)

type fakeSignals struct {
	taskCount int
	declining bool
	delta     float64
}

func (f fakeSignals) TaskCount(agentID string, now time.Time) int            { return f.taskCount }
func (f fakeSignals) SuccessRateDelta(agentID string, now time.Time) float64 { return f.delta }
func (f fakeSignals) Trend(agentID string, now time.Time) bool               { return f.declining }

type fakeVariants struct {
	hasTesting bool
	activeRate float64
	activeN    int
	hasActive  bool
	prevRate   float64
	prevN      int
	hasPrev    bool
}

func (f fakeVariants) HasTestingVariant(agentID string) bool { return f.hasTesting }
func (f fakeVariants) ActiveSuccessRate(agentID string) (float64, int, bool) {
	return f.activeRate, f.activeN, f.hasActive
}
func (f fakeVariants) PreviousArchivedSuccessRate(agentID string) (float64, int, bool) {
	return f.prevRate, f.prevN, f.hasPrev
}

func TestCheckThresholdsSkipsPaused(t *testing.T) {
	l := New(DefaultConfig(), fakeSignals{taskCount: 20, declining: true, delta: -0.2}, fakeVariants{}, nil)
	if update := l.CheckThresholds("a1", AgentPaused, time.Now()); update != nil {
		t.Errorf("expected nil update for paused agent, got %+v", update)
	}
}

func TestCheckThresholdsEvolveWhenNoTestingVariant(t *testing.T) {
	l := New(DefaultConfig(), fakeSignals{taskCount: 20, declining: true, delta: -0.2}, fakeVariants{hasTesting: false}, nil)
	update := l.CheckThresholds("a1", AgentActive, time.Now())
	if update == nil {
		t.Fatal("expected an update")
	}
	if update.RecommendedAction != ActionEvolve {
		t.Errorf("action = %q, want evolve", update.RecommendedAction)
	}
}

func TestCheckThresholdsABTestWhenTestingVariantExists(t *testing.T) {
	l := New(DefaultConfig(), fakeSignals{taskCount: 20, declining: true, delta: -0.2}, fakeVariants{hasTesting: true}, nil)
	update := l.CheckThresholds("a1", AgentActive, time.Now())
	if update == nil || update.RecommendedAction != ActionABTest {
		t.Fatalf("expected ab_test action, got %+v", update)
	}
}

func TestCheckThresholdsRollbackWhenSignificantlyWorse(t *testing.T) {
	always := func(r1 float64, n1 int, r2 float64, n2 int) bool { return true }
	vars := fakeVariants{hasTesting: true, activeRate: 0.3, activeN: 40, hasActive: true, prevRate: 0.8, prevN: 40, hasPrev: true}
	l := New(DefaultConfig(), fakeSignals{taskCount: 20, declining: true, delta: -0.2}, vars, always)
	update := l.CheckThresholds("a1", AgentActive, time.Now())
	if update == nil || update.RecommendedAction != ActionRollback {
		t.Fatalf("expected rollback action, got %+v", update)
	}
}

func TestCheckThresholdsBelowMinTaskCountIsNil(t *testing.T) {
	l := New(DefaultConfig(), fakeSignals{taskCount: 5, declining: true, delta: -0.5}, fakeVariants{}, nil)
	if update := l.CheckThresholds("a1", AgentActive, time.Now()); update != nil {
		t.Errorf("expected nil below min task count, got %+v", update)
	}
}

func TestAddReportPrunesToRetention(t *testing.T) {
	l := New(DefaultConfig(), fakeSignals{}, fakeVariants{}, nil)
	l.cfg.ReportRetention = 2
	now := time.Now()
	l.AddReport(EvolutionReport{Period: "1", GeneratedAt: now})
	l.AddReport(EvolutionReport{Period: "2", GeneratedAt: now.Add(time.Hour)})
	l.AddReport(EvolutionReport{Period: "3", GeneratedAt: now.Add(2 * time.Hour)})

	reports := l.Reports()
	if len(reports) != 2 {
		t.Fatalf("expected 2 retained reports, got %d", len(reports))
	}
	if reports[0].Period != "2" || reports[1].Period != "3" {
		t.Errorf("expected oldest pruned, kept [2,3], got %+v", reports)
	}
}
