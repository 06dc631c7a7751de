// Package router selects a model for a classified task. Each candidate from
// the catalog gets five sub-scores (capability, cost, latency, quality,
// historical); the weighted argmax wins, runners-up form the fallback chain,
// and decisions are cached by task shape until the TTL expires or the
// weights change.
package router

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/overhuman/orchestrator/internal/catalog"
	"github.com/overhuman/orchestrator/internal/classify"
	"github.com/overhuman/orchestrator/internal/orcherr"
)

// Weights configures the contribution of each sub-score to the weighted
// total. Must sum to 1.0 within +/-0.001; Config validates this at load.
type Weights struct {
	Capability float64
	Cost       float64
	Latency    float64
	Quality    float64
	Historical float64
}

// DefaultWeights is the stock sub-score weighting.
func DefaultWeights() Weights {
	return Weights{Capability: 0.35, Cost: 0.20, Latency: 0.15, Quality: 0.20, Historical: 0.10}
}

// HistoricalLookup supplies the Router's historical sub-score. The tracker
// package implements this; Router depends only on the narrow interface so
// the two packages don't cycle.
type HistoricalLookup interface {
	SuccessAndQuality(model, taskType string, complexity classify.Complexity) (successRate, avgQuality float64, sampleSize int)
}

// Alternative is a candidate model that was not chosen, kept for the
// RoutingDecision's alternatives list.
type Alternative struct {
	Model  string
	Score  float64
	Reason string
}

// RoutingDecision is the Router's immutable output.
type RoutingDecision struct {
	ChosenModel        string
	Confidence         float64
	Reasoning          []string
	Alternatives       []Alternative
	EstimatedCost      float64
	EstimatedLatencyMs int
	FallbackChain      []string
	Timestamp          time.Time
	CacheKey           string
}

// Config controls router behavior beyond the weights.
type Config struct {
	Weights              Weights
	DefaultModel         string
	EnableCache          bool
	CacheTTL             time.Duration
	EnableLearning       bool
	ComplexityPreference map[classify.Complexity][]string // preferred models per complexity, for the +20 table bonus
}

// DefaultConfig returns sane defaults.
func DefaultConfig() Config {
	return Config{
		Weights:        DefaultWeights(),
		EnableCache:    true,
		CacheTTL:       3600 * time.Second,
		EnableLearning: true,
		ComplexityPreference: map[classify.Complexity][]string{
			classify.ComplexitySimple:   {"claude-3-haiku", "gpt-4o-mini"},
			classify.ComplexityComplex:  {"claude-3-opus", "gpt-4-turbo"},
			classify.ComplexityCritical: {"claude-3-opus", "gpt-4-turbo"},
		},
	}
}

// Router scores candidates from a ModelCatalog and produces RoutingDecisions.
type Router struct {
	catalog    catalog.ModelCatalog
	historical HistoricalLookup
	cfg        Config
	cache      DecisionCache
	mu         sync.RWMutex // guards cfg.Weights; every other Config field is set once at construction
}

// New constructs a Router. historical may be nil, in which case the
// historical sub-score is always neutral (50), as if learning were disabled.
func New(cat catalog.ModelCatalog, historical HistoricalLookup, cfg Config, cache DecisionCache) *Router {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Router{catalog: cat, historical: historical, cfg: cfg, cache: cache}
}

// ClearCache invalidates every cached decision, for hosts that reload the
// catalog eagerly rather than waiting for TTL expiry.
func (r *Router) ClearCache() {
	r.cache.Clear()
}

// Weights returns the Router's current sub-score weights.
func (r *Router) Weights() Weights {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg.Weights
}

// SetWeight overrides one named sub-score weight (capability, cost, latency,
// quality, historical) and clears the decision cache, since cached decisions
// were scored under the old weights. Unlike load-time Config validation,
// this does not enforce the weights-sum-to-1.0 constraint: an operator
// adjusting weights one at a time would otherwise be unable to reach a valid
// intermediate state.
func (r *Router) SetWeight(name string, value float64) error {
	r.mu.Lock()
	switch name {
	case "capability":
		r.cfg.Weights.Capability = value
	case "cost":
		r.cfg.Weights.Cost = value
	case "latency":
		r.cfg.Weights.Latency = value
	case "quality":
		r.cfg.Weights.Quality = value
	case "historical":
		r.cfg.Weights.Historical = value
	default:
		r.mu.Unlock()
		return fmt.Errorf("router: unknown weight %q", name)
	}
	r.mu.Unlock()
	r.cache.Clear()
	return nil
}

// Route scores every candidate model and returns a RoutingDecision.
func (r *Router) Route(desc classify.TaskDescriptor) (RoutingDecision, error) {
	key := cacheKey(desc)
	if r.cfg.EnableCache {
		if cached, ok := r.cache.Get(key); ok {
			return cached, nil
		}
	}

	candidates := r.catalog.All()
	if len(candidates) == 0 {
		return RoutingDecision{}, &orcherr.CatalogMiss{Name: "model catalog is empty"}
	}

	type scored struct {
		profile  catalog.ModelProfile
		total    float64
		reasons  []string
		hardFail bool
	}

	results := make([]scored, 0, len(candidates))
	for _, p := range candidates {
		sc, reasons, hardFail := r.score(p, desc)
		results = append(results, scored{profile: p, total: sc, reasons: reasons, hardFail: hardFail})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].total > results[j].total })

	var chosen *scored
	for i := range results {
		if !results[i].hardFail {
			chosen = &results[i]
			break
		}
	}

	if chosen == nil {
		if r.cfg.DefaultModel == "" {
			return RoutingDecision{}, &orcherr.ConstraintViolation{Reason: "no model satisfied constraints"}
		}
		decision := RoutingDecision{
			ChosenModel: r.cfg.DefaultModel,
			Confidence:  0,
			Reasoning:   []string{"no model satisfied constraints"},
			Timestamp:   time.Now().UTC(),
			CacheKey:    key,
		}
		if r.cfg.EnableCache {
			r.cache.Set(key, decision, r.cfg.CacheTTL)
		}
		return decision, nil
	}

	cost := estimateCost(chosen.profile, desc)
	decision := RoutingDecision{
		ChosenModel:        chosen.profile.Name,
		Confidence:         math.Min(100, chosen.total),
		Reasoning:          chosen.reasons,
		EstimatedCost:      cost,
		EstimatedLatencyMs: chosen.profile.P50LatencyMs,
		Timestamp:          time.Now().UTC(),
		CacheKey:           key,
	}

	for _, res := range results {
		if res.profile.Name == chosen.profile.Name {
			continue
		}
		if len(decision.Alternatives) < 3 {
			decision.Alternatives = append(decision.Alternatives, Alternative{
				Model: res.profile.Name, Score: res.total, Reason: primaryReason(res.reasons),
			})
		}
	}

	for _, res := range results {
		if res.profile.Name == chosen.profile.Name || res.hardFail {
			continue
		}
		if res.total > 30 && len(decision.FallbackChain) < 3 {
			decision.FallbackChain = append(decision.FallbackChain, res.profile.Name)
		}
	}

	if r.cfg.EnableCache {
		r.cache.Set(key, decision, r.cfg.CacheTTL)
	}
	return decision, nil
}

func primaryReason(reasons []string) string {
	if len(reasons) == 0 {
		return ""
	}
	return reasons[0]
}

func cacheKey(desc classify.TaskDescriptor) string {
	kTokens := int(math.Ceil(float64(desc.InputTokenEstimate) / 1000.0))
	return fmt.Sprintf("%s:%s:%s:%dk", desc.Type, desc.Complexity, desc.Pattern, kTokens)
}

func estimateCost(p catalog.ModelProfile, desc classify.TaskDescriptor) float64 {
	inK := float64(desc.InputTokenEstimate) / 1000.0
	outK := float64(desc.OutputTokenEstimate) / 1000.0
	return inK*p.CostPer1kInput + outK*p.CostPer1kOutput
}
