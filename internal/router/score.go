package router

import (
	"fmt"

	"github.com/overhuman/orchestrator/internal/catalog"
	"github.com/overhuman/orchestrator/internal/classify"
)

// score computes the weighted total for one candidate model plus the
// human-readable reasoning lines. hardFail is true when any hard constraint
// eliminates the model regardless of weighted total.
func (r *Router) score(p catalog.ModelProfile, desc classify.TaskDescriptor) (float64, []string, bool) {
	var reasons []string
	hardFail := false

	capability := r.scoreCapability(p, desc)
	cost, costHardFail := r.scoreCost(p, desc)
	latency, latencyHardFail := r.scoreLatency(p, desc)
	quality, qualityHardFail := r.scoreQuality(p, desc)
	historical := r.scoreHistorical(p, desc)

	if costHardFail || latencyHardFail || qualityHardFail {
		hardFail = true
	}

	w := r.Weights()
	total := w.Capability*capability + w.Cost*cost + w.Latency*latency + w.Quality*quality + w.Historical*historical

	if capability > 70 {
		reasons = append(reasons, fmt.Sprintf("%s has strong capability match for %s", p.Name, desc.Type))
	}
	if cost > 70 {
		reasons = append(reasons, fmt.Sprintf("%s is cost-efficient for this request", p.Name))
	} else if cost < 30 {
		reasons = append(reasons, fmt.Sprintf("%s is relatively expensive for this request", p.Name))
	}
	if quality > 90 {
		reasons = append(reasons, fmt.Sprintf("%s has high quality score", p.Name))
	}
	if latency > 80 {
		reasons = append(reasons, fmt.Sprintf("%s has low expected latency", p.Name))
	}
	if historical > 70 {
		reasons = append(reasons, fmt.Sprintf("%s has strong historical performance on similar tasks", p.Name))
	}
	if desc.Complexity == classify.ComplexityComplex || desc.Complexity == classify.ComplexityCritical {
		reasons = append(reasons, "task is critical or complex")
	}

	return total, reasons, hardFail
}

func (r *Router) scoreCapability(p catalog.ModelProfile, desc classify.TaskDescriptor) float64 {
	score := 0.0
	if p.HasStrength(desc.Type) {
		score += 40
	}
	if desc.RequiresThinking {
		if p.HasCapability(catalog.CapabilityExtendedThinking) {
			score += 20
		} else {
			score -= 30
		}
	}
	if desc.IsCode && p.HasCapability(catalog.CapabilityToolUse) {
		score += 15
	}

	totalTokens := desc.InputTokenEstimate + desc.OutputTokenEstimate
	if p.ContextWindow > 0 {
		if totalTokens > p.ContextWindow {
			score -= 50
		} else if float64(totalTokens) > 0.9*float64(p.ContextWindow) {
			score -= 20
		}
	}
	if p.MaxOutputTokens > 0 && desc.OutputTokenEstimate > p.MaxOutputTokens {
		score -= 50
	}

	if prefs, ok := r.cfg.ComplexityPreference[desc.Complexity]; ok {
		for _, name := range prefs {
			if name == p.Name {
				score += 20
				break
			}
		}
	}

	score += 50 // normalization
	return clamp(score, 0, 100)
}

func (r *Router) scoreCost(p catalog.ModelProfile, desc classify.TaskDescriptor) (score float64, hardFail bool) {
	estimatedCost := estimateCost(p, desc)
	if desc.Constraints != nil && desc.Constraints.MaxCost > 0 && estimatedCost > desc.Constraints.MaxCost {
		return 0, true
	}
	return clamp(100*(1-estimatedCost/0.015), 0, 100), false
}

func (r *Router) scoreLatency(p catalog.ModelProfile, desc classify.TaskDescriptor) (score float64, hardFail bool) {
	if desc.Constraints != nil && desc.Constraints.MaxLatencyMs > 0 && p.P50LatencyMs > desc.Constraints.MaxLatencyMs {
		return 0, true
	}
	return clamp(100*(1-float64(p.P50LatencyMs)/10000.0), 0, 100), false
}

func (r *Router) scoreQuality(p catalog.ModelProfile, desc classify.TaskDescriptor) (score float64, hardFail bool) {
	if desc.Constraints != nil && desc.Constraints.MinQuality > 0 && p.QualityScore < desc.Constraints.MinQuality {
		return 0, true
	}
	q := p.QualityScore
	if desc.Complexity == classify.ComplexityCritical && q > 90 {
		q += 10
	}
	return clamp(q, 0, 100), false
}

func (r *Router) scoreHistorical(p catalog.ModelProfile, desc classify.TaskDescriptor) float64 {
	if !r.cfg.EnableLearning || r.historical == nil {
		return 50
	}
	successRate, avgQuality, sampleSize := r.historical.SuccessAndQuality(p.Name, desc.Type, desc.Complexity)
	if sampleSize == 0 {
		return 50
	}
	return clamp(60*successRate+0.4*avgQuality, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
