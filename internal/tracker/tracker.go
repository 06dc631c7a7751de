// Package tracker aggregates task outcomes and feedback signals:
// time-decayed weighted ratings, success-rate trend detection over paired
// windows, and a retention sweep. The Ledger remains the durable record;
// the Tracker holds the bounded in-process mirror the scoring queries read.
package tracker

import (
	"math"
	"sort"
	"sync"
	"time"
)

// ImplicitKind is the sub-kind of an implicit feedback signal.
type ImplicitKind string

const (
	ImplicitRetry           ImplicitKind = "retry"
	ImplicitMinorEdit       ImplicitKind = "minor-edit"
	ImplicitMajorEdit       ImplicitKind = "major-edit"
	ImplicitCompleteRewrite ImplicitKind = "complete-rewrite"
	ImplicitAbandon         ImplicitKind = "abandon"
)

// implicitRatings maps each implicit sub-kind to its equivalent 1-5 rating.
var implicitRatings = map[ImplicitKind]float64{
	ImplicitRetry:           2,
	ImplicitMinorEdit:       3,
	ImplicitMajorEdit:       2,
	ImplicitCompleteRewrite: 1,
	ImplicitAbandon:         1,
}

// Trend is the direction of an agent's recent success rate movement.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// outcomeRecord is the Tracker's own append-only view of an outcome, kept
// separate from ledger.OutcomeInput since the Tracker only needs the fields
// relevant to aggregation, not persistence.
type outcomeRecord struct {
	agentID   string
	success   bool
	timestamp time.Time
}

// ratingEvent is one explicit or implicit rating, timestamped for decay.
type ratingEvent struct {
	agentID   string
	rating    float64
	explicit  bool
	timestamp time.Time
}

// Config controls decay half-life, the explicit/implicit blend, and
// retention.
type Config struct {
	HalfLife       time.Duration
	ImplicitWeight float64
	TrendWindow    time.Duration
	RetentionDays  int
}

// DefaultConfig returns the stock decay/retention configuration.
func DefaultConfig() Config {
	return Config{HalfLife: 7 * 24 * time.Hour, ImplicitWeight: 0.3, TrendWindow: 7 * 24 * time.Hour, RetentionDays: 90}
}

// Tracker is an append-only aggregator. It does not own persistence (the
// Ledger does); it holds a bounded in-process mirror sufficient for the
// scoring queries Router/Optimizer/Feedback Loop/Expander need.
type Tracker struct {
	mu       sync.RWMutex
	outcomes []outcomeRecord
	ratings  map[string][]ratingEvent // agentID -> events, most recent last
	cfg      Config
	maxSize  int
}

// New constructs an empty Tracker.
func New(cfg Config) *Tracker {
	return &Tracker{
		ratings: make(map[string][]ratingEvent),
		cfg:     cfg,
		maxSize: 100000,
	}
}

// RecordOutcome appends an outcome to the in-process mirror used for trend
// detection. The Ledger remains the durable record.
func (t *Tracker) RecordOutcome(agentID string, success bool, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.outcomes) >= t.maxSize {
		copy(t.outcomes, t.outcomes[1:])
		t.outcomes = t.outcomes[:len(t.outcomes)-1]
	}
	t.outcomes = append(t.outcomes, outcomeRecord{agentID: agentID, success: success, timestamp: at})
}

// RecordExplicitRating appends an explicit 1-5 rating.
func (t *Tracker) RecordExplicitRating(agentID string, rating float64, at time.Time) {
	t.recordRating(agentID, rating, true, at)
}

// RatingFor returns the 1-5 rating an implicit sub-kind maps to, with a
// neutral-low fallback for an unrecognized sub-kind.
func RatingFor(kind ImplicitKind) float64 {
	if r, ok := implicitRatings[kind]; ok {
		return r
	}
	return 2
}

// RecordImplicitSignal converts an implicit sub-kind into its mapped rating
// and appends it.
func (t *Tracker) RecordImplicitSignal(agentID string, kind ImplicitKind, at time.Time) {
	t.recordRating(agentID, RatingFor(kind), false, at)
}

func (t *Tracker) recordRating(agentID string, rating float64, explicit bool, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	events := t.ratings[agentID]
	events = append(events, ratingEvent{agentID: agentID, rating: rating, explicit: explicit, timestamp: at})
	if len(events) > 100 {
		events = events[len(events)-100:]
	}
	t.ratings[agentID] = events
}

// WeightedRating computes the combined, time-decayed rating for an agent:
// weight(age) = exp(-age * ln2 / halfLife), averaged over the most recent
// 100 ratings, explicit and implicit blended by ImplicitWeight.
func (t *Tracker) WeightedRating(agentID string, now time.Time) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	events := t.ratings[agentID]
	if len(events) == 0 {
		return 0
	}

	var explicitNum, explicitDen, implicitNum, implicitDen float64
	halfLifeDays := t.cfg.HalfLife.Hours() / 24
	if halfLifeDays == 0 {
		halfLifeDays = 7
	}

	for _, e := range events {
		ageDays := now.Sub(e.timestamp).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		weight := math.Exp(-ageDays * math.Ln2 / halfLifeDays)
		if e.explicit {
			explicitNum += e.rating * weight
			explicitDen += weight
		} else {
			implicitNum += e.rating * weight
			implicitDen += weight
		}
	}

	explicitAvg := 0.0
	if explicitDen > 0 {
		explicitAvg = explicitNum / explicitDen
	}
	implicitAvg := 0.0
	if implicitDen > 0 {
		implicitAvg = implicitNum / implicitDen
	}

	w := t.cfg.ImplicitWeight
	if explicitDen == 0 {
		return implicitAvg
	}
	if implicitDen == 0 {
		return explicitAvg
	}
	return explicitAvg*(1-w) + implicitAvg*w
}

// Trend compares success rate over the trend window to the prior window of
// the same length. With no samples in either window the trend is stable.
func (t *Tracker) Trend(agentID string, now time.Time) Trend {
	t.mu.RLock()
	defer t.mu.RUnlock()

	delta := t.successRateDeltaLocked(agentID, now)
	switch {
	case delta >= 0.05:
		return TrendImproving
	case delta <= -0.05:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// SuccessRateDelta returns recentRate - priorRate, used by the Feedback Loop
// threshold check which needs the magnitude, not just the trend bucket.
func (t *Tracker) SuccessRateDelta(agentID string, now time.Time) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.successRateDeltaLocked(agentID, now)
}

func (t *Tracker) successRateDeltaLocked(agentID string, now time.Time) float64 {
	window := t.cfg.TrendWindow
	recentStart := now.Add(-window)
	priorStart := recentStart.Add(-window)

	var recentTotal, recentSuccess, priorTotal, priorSuccess int
	for _, o := range t.outcomes {
		if o.agentID != agentID {
			continue
		}
		switch {
		case o.timestamp.After(recentStart) && !o.timestamp.After(now):
			recentTotal++
			if o.success {
				recentSuccess++
			}
		case o.timestamp.After(priorStart) && !o.timestamp.After(recentStart):
			priorTotal++
			if o.success {
				priorSuccess++
			}
		}
	}
	if recentTotal == 0 || priorTotal == 0 {
		return 0
	}
	return float64(recentSuccess)/float64(recentTotal) - float64(priorSuccess)/float64(priorTotal)
}

// TaskCount returns the number of outcomes recorded for an agent within the
// trend window, used by the Feedback Loop's minTaskCount threshold.
func (t *Tracker) TaskCount(agentID string, now time.Time) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	start := now.Add(-t.cfg.TrendWindow)
	count := 0
	for _, o := range t.outcomes {
		if o.agentID == agentID && o.timestamp.After(start) {
			count++
		}
	}
	return count
}

// Retain drops rows older than RetentionDays.
func (t *Tracker) Retain(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := now.AddDate(0, 0, -t.cfg.RetentionDays)

	kept := t.outcomes[:0]
	for _, o := range t.outcomes {
		if o.timestamp.After(cutoff) {
			kept = append(kept, o)
		}
	}
	t.outcomes = kept

	for agentID, events := range t.ratings {
		keptEvents := events[:0]
		for _, e := range events {
			if e.timestamp.After(cutoff) {
				keptEvents = append(keptEvents, e)
			}
		}
		t.ratings[agentID] = keptEvents
	}
}

// Percentile computes the p-th percentile of values with linear
// interpolation between ranks.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := p * float64(len(sorted)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
