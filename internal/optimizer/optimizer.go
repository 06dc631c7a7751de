package optimizer

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/overhuman/orchestrator/internal/catalog"
)

// PromotionHistoryEntry records an activation/deactivation pair written when
// a promotion occurs.
type PromotionHistoryEntry struct {
	AgentID           string
	PromotedVariantID string
	DemotedVariantID  string
	PromotedStats     VariantSnapshot
	DemotedStats      VariantSnapshot
	Timestamp         time.Time
}

// VariantSnapshot is a point-in-time summary of a variant's stats, captured
// into history rows so they remain meaningful after the variant itself
// changes further.
type VariantSnapshot struct {
	TrialCount   int
	SuccessCount int
	SuccessRate  float64
}

func snapshotOf(v *PromptVariant) VariantSnapshot {
	return VariantSnapshot{TrialCount: v.TrialCount, SuccessCount: v.SuccessCount, SuccessRate: v.SuccessRate()}
}

// Config controls bandit exploration and promotion thresholds.
type Config struct {
	ExplorationCoefficient   float64
	MinTrialsBeforePromotion int
	PromotionDelta           float64
}

// DefaultConfig returns the stock bandit configuration.
func DefaultConfig() Config {
	return Config{ExplorationCoefficient: 2.0, MinTrialsBeforePromotion: 20, PromotionDelta: 0.05}
}

// Optimizer owns every PromptVariant, keyed by agent id then variant id.
// Promotion is serialized per agent via a dedicated mutex: only one
// promotion may be in flight for a given agent at a time.
type Optimizer struct {
	mu       sync.RWMutex
	variants map[string]map[string]*PromptVariant // agentID -> variantID -> variant
	order    map[string][]string                  // agentID -> variantIDs in creation order
	locks    map[string]*sync.Mutex               // agentID -> promotion lock
	history  []PromotionHistoryEntry
	cfg      Config
}

// New constructs an empty Optimizer.
func New(cfg Config) *Optimizer {
	return &Optimizer{
		variants: make(map[string]map[string]*PromptVariant),
		order:    make(map[string][]string),
		locks:    make(map[string]*sync.Mutex),
		cfg:      cfg,
	}
}

// Seed loads an agent's catalog-provided variants at startup. The caller's
// AgentCatalog (internal/catalog) has already validated exactly one active
// variant per agent.
func (o *Optimizer) Seed(agentID string, seeds []catalog.AgentVariant) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.variants[agentID]; !ok {
		o.variants[agentID] = make(map[string]*PromptVariant)
	}
	for _, s := range seeds {
		id := uuid.NewString()
		v := &PromptVariant{
			ID: id, AgentID: agentID, Version: s.Version,
			PromptBody: s.PromptBody, SystemPrompt: s.SystemPrompt,
			CreatedAt: time.Now().UTC(), Status: Status(s.Status),
			MutationType: MutationManual,
		}
		o.variants[agentID][id] = v
		o.order[agentID] = append(o.order[agentID], id)
	}
	o.locks[agentID] = &sync.Mutex{}
}

func (o *Optimizer) agentLock(agentID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.locks[agentID]
	if !ok {
		l = &sync.Mutex{}
		o.locks[agentID] = l
	}
	return l
}

// Select performs UCB1 selection among an agent's testing/active variants.
// A never-trialed variant is always picked first (forced exploration). The
// exploration term uses ln(totalTrials+1) so it stays defined when a single
// variant holds every trial.
func (o *Optimizer) Select(agentID string) (*PromptVariant, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	eligible := o.eligibleLocked(agentID)
	if len(eligible) == 0 {
		return nil, fmt.Errorf("optimizer: agent %q has no seeded variants", agentID)
	}

	for _, v := range eligible {
		if v.TrialCount == 0 {
			return v, nil
		}
	}

	totalTrials := 0
	for _, v := range eligible {
		totalTrials += v.TrialCount
	}

	var best *PromptVariant
	bestScore := math.Inf(-1)
	for _, v := range eligible {
		score := v.SuccessRate() + o.cfg.ExplorationCoefficient*math.Sqrt(math.Log(float64(totalTrials)+1)/float64(v.TrialCount))
		if score > bestScore {
			bestScore = score
			best = v
		}
	}
	return best, nil
}

func (o *Optimizer) eligibleLocked(agentID string) []*PromptVariant {
	var out []*PromptVariant
	for _, id := range o.order[agentID] {
		v := o.variants[agentID][id]
		if v.Status == StatusTesting || v.Status == StatusActive {
			out = append(out, v)
		}
	}
	return out
}

// Active returns the agent's current active variant, if any.
func (o *Optimizer) Active(agentID string) (*PromptVariant, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, id := range o.order[agentID] {
		v := o.variants[agentID][id]
		if v.Status == StatusActive {
			return v, true
		}
	}
	return nil, false
}

// Get returns a variant by id.
func (o *Optimizer) Get(agentID, variantID string) (*PromptVariant, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	m, ok := o.variants[agentID]
	if !ok {
		return nil, false
	}
	v, ok := m[variantID]
	return v, ok
}

// RecordOutcome updates a variant's counters and evaluates promotion.
// Promotion is serialized per agent so only one promotion can be in flight.
func (o *Optimizer) RecordOutcome(agentID, variantID string, success bool, durationMs, tokens float64) error {
	lock := o.agentLock(agentID)
	lock.Lock()
	defer lock.Unlock()

	o.mu.Lock()
	v, ok := o.variants[agentID][variantID]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("optimizer: unknown variant %q for agent %q", variantID, agentID)
	}
	v.recordOutcome(success, durationMs, tokens)
	o.mu.Unlock()

	o.maybePromote(agentID, v)
	return nil
}

// maybePromote promotes the candidate when it has crossed the minimum trial
// count and beats the current active variant's success rate by the
// configured delta. Promoting the already-active variant is a no-op and
// writes no history row.
func (o *Optimizer) maybePromote(agentID string, candidate *PromptVariant) {
	if candidate.TrialCount < o.cfg.MinTrialsBeforePromotion {
		return
	}
	if candidate.Status == StatusActive {
		return
	}

	active, hasActive := o.Active(agentID)
	if !hasActive {
		return
	}
	if active.ID == candidate.ID {
		return
	}
	if candidate.SuccessRate()-active.SuccessRate() < o.cfg.PromotionDelta {
		return
	}

	o.mu.Lock()
	candidateSnap := snapshotOf(candidate)
	activeSnap := snapshotOf(active)
	candidate.Status = StatusActive
	active.Status = StatusArchived
	o.history = append(o.history, PromotionHistoryEntry{
		AgentID: agentID, PromotedVariantID: candidate.ID, DemotedVariantID: active.ID,
		PromotedStats: candidateSnap, DemotedStats: activeSnap, Timestamp: time.Now().UTC(),
	})
	o.mu.Unlock()
}

// History returns every promotion history row recorded so far.
func (o *Optimizer) History() []PromotionHistoryEntry {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]PromotionHistoryEntry, len(o.history))
	copy(out, o.history)
	return out
}

// HasTestingVariant reports whether an agent currently has a variant with
// status=testing, used by the Feedback Loop to choose between "evolve" and
// "ab_test" recommended actions.
func (o *Optimizer) HasTestingVariant(agentID string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, id := range o.order[agentID] {
		if o.variants[agentID][id].Status == StatusTesting {
			return true
		}
	}
	return false
}

// ActiveSuccessRate returns the active variant's success rate and trial
// count, for the Feedback Loop's rollback comparison.
func (o *Optimizer) ActiveSuccessRate(agentID string) (rate float64, n int, ok bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, id := range o.order[agentID] {
		v := o.variants[agentID][id]
		if v.Status == StatusActive {
			return v.SuccessRate(), v.TrialCount, true
		}
	}
	return 0, 0, false
}

// PreviousArchivedSuccessRate returns the most recently archived variant's
// recorded success rate at the moment it was demoted, from the promotion
// history, for the Feedback Loop's rollback comparison.
func (o *Optimizer) PreviousArchivedSuccessRate(agentID string) (rate float64, n int, ok bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for i := len(o.history) - 1; i >= 0; i-- {
		h := o.history[i]
		if h.AgentID == agentID {
			return h.DemotedStats.SuccessRate, h.DemotedStats.TrialCount, true
		}
	}
	return 0, 0, false
}

// AllVariants returns every variant for an agent, in creation order.
func (o *Optimizer) AllVariants(agentID string) []*PromptVariant {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*PromptVariant, 0, len(o.order[agentID]))
	for _, id := range o.order[agentID] {
		out = append(out, o.variants[agentID][id])
	}
	return out
}
