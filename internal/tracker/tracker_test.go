package tracker

import (
	"testing"
	"time"
)

func TestWeightedRatingBlendsExplicitAndImplicit(t *testing.T) {
	tr := New(DefaultConfig())
	now := time.Now()
	tr.RecordExplicitRating("agent-a", 5, now)
	tr.RecordImplicitSignal("agent-a", ImplicitAbandon, now)

	rating := tr.WeightedRating("agent-a", now)
	// explicit=5, implicit=1, blend = 5*0.7 + 1*0.3 = 3.8
	if rating < 3.7 || rating > 3.9 {
		t.Errorf("rating = %v, want ~3.8", rating)
	}
}

func TestWeightedRatingDecaysOlderEvents(t *testing.T) {
	tr := New(DefaultConfig())
	now := time.Now()
	tr.RecordExplicitRating("agent-b", 5, now.Add(-30*24*time.Hour))
	tr.RecordExplicitRating("agent-b", 1, now)

	rating := tr.WeightedRating("agent-b", now)
	if rating > 2 {
		t.Errorf("rating = %v, want close to the recent low rating since the old one decayed", rating)
	}
}

func TestTrendDeclining(t *testing.T) {
	tr := New(DefaultConfig())
	now := time.Now()

	for i := 0; i < 10; i++ {
		tr.RecordOutcome("agent-c", true, now.Add(-10*24*time.Hour))
	}
	for i := 0; i < 10; i++ {
		tr.RecordOutcome("agent-c", i < 2, now.Add(-1*time.Hour))
	}

	trend := tr.Trend("agent-c", now)
	if trend != TrendDeclining {
		t.Errorf("trend = %q, want declining", trend)
	}
}

func TestTaskCountWithinWindow(t *testing.T) {
	tr := New(DefaultConfig())
	now := time.Now()
	for i := 0; i < 15; i++ {
		tr.RecordOutcome("agent-d", i < 5, now.Add(-time.Duration(i)*time.Hour))
	}
	count := tr.TaskCount("agent-d", now)
	if count != 15 {
		t.Errorf("task count = %d, want 15", count)
	}
}

func TestFingerprintStableUnderReordering(t *testing.T) {
	a := Fingerprint("timeout", []string{"tool-use", "vision"})
	b := Fingerprint("timeout", []string{"vision", "tool-use"})
	if a != b {
		t.Error("fingerprint should be order-independent over capabilities")
	}
}

func TestRetainDropsOldRows(t *testing.T) {
	tr := New(DefaultConfig())
	now := time.Now()
	tr.RecordOutcome("agent-e", true, now.AddDate(0, 0, -200))
	tr.RecordOutcome("agent-e", true, now)

	tr.Retain(now)
	if len(tr.outcomes) != 1 {
		t.Errorf("outcomes after retention = %d, want 1", len(tr.outcomes))
	}
}
