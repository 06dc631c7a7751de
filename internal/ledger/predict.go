package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/overhuman/orchestrator/internal/classify"
)

// complexityBaseTokens is the per-complexity starting thinking budget.
var complexityBaseTokens = map[classify.Complexity]int{
	classify.ComplexitySimple:   1000,
	classify.ComplexityMedium:   3000,
	classify.ComplexityComplex:  8000,
	classify.ComplexityCritical: 16000,
}

// BudgetPrediction is the Budget Predictor's output.
type BudgetPrediction struct {
	RecommendedThinkingTokens int
	Confidence                float64
	Reasoning                 []string
}

// PredictBudget recommends a thinking-token budget: a per-complexity base,
// an agent-specific multiplier learned from history, clamped against the
// chosen model's max output and the per-request cost limit.
func (l *Ledger) PredictBudget(ctx context.Context, desc classify.TaskDescriptor, agentID string, modelMaxOutput int, costPer1kOutput float64) (BudgetPrediction, error) {
	base, ok := complexityBaseTokens[desc.Complexity]
	if !ok {
		base = complexityBaseTokens[classify.ComplexityMedium]
	}

	multiplier, sampleSize, err := l.thinkingTokenMultiplier(ctx, agentID, desc.Type, desc.Complexity)
	if err != nil {
		return BudgetPrediction{}, err
	}

	recommended := int(float64(base) * multiplier)
	reasoning := []string{fmt.Sprintf("base budget for %s complexity is %d tokens", desc.Complexity, base)}
	if sampleSize > 0 {
		reasoning = append(reasoning, fmt.Sprintf("adjusted by %.2fx from %d historical samples", multiplier, sampleSize))
	}

	if modelMaxOutput > 0 && recommended > modelMaxOutput {
		recommended = modelMaxOutput
		reasoning = append(reasoning, "clamped to model max output tokens")
	}

	if l.cfg.PerRequestLimit > 0 && costPer1kOutput > 0 {
		maxAffordable := int((l.cfg.PerRequestLimit / costPer1kOutput) * 1000)
		if maxAffordable > 0 && recommended > maxAffordable {
			recommended = maxAffordable
			reasoning = append(reasoning, "clamped to per-request cost limit")
		}
	}

	confidence := 0.3
	switch {
	case sampleSize >= 50:
		confidence = 0.9
	case sampleSize >= 20:
		confidence = 0.75
	case sampleSize >= 5:
		confidence = 0.5
	}

	return BudgetPrediction{RecommendedThinkingTokens: recommended, Confidence: confidence, Reasoning: reasoning}, nil
}

func (l *Ledger) thinkingTokenMultiplier(ctx context.Context, agentID, taskType string, complexity classify.Complexity) (multiplier float64, sampleSize int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var avgThinking sql.NullFloat64
	err = l.db.QueryRowContext(ctx, `
		SELECT AVG(thinking_tokens), COUNT(*) FROM routing_outcomes
		WHERE agent_id = ? AND task_type = ? AND complexity = ? AND thinking_tokens > 0`,
		agentID, taskType, string(complexity)).Scan(&avgThinking, &sampleSize)
	if err != nil {
		return 1.0, 0, err
	}
	if sampleSize == 0 || !avgThinking.Valid {
		return 1.0, 0, nil
	}

	base := float64(complexityBaseTokens[complexity])
	if base == 0 {
		return 1.0, sampleSize, nil
	}
	multiplier = avgThinking.Float64 / base
	if multiplier < 0.25 {
		multiplier = 0.25
	}
	if multiplier > 4.0 {
		multiplier = 4.0
	}
	return multiplier, sampleSize, nil
}

// DowngradeSuggestion is one entry of SuggestDowngrades' output.
type DowngradeSuggestion struct {
	TaskType                string
	CurrentModel            string
	SuggestedModel          string
	ProjectedMonthlySavings float64
}

// ModelCostLookup is the narrow view of the catalog SuggestDowngrades needs,
// kept separate from catalog.ModelCatalog so internal/ledger does not
// depend on internal/catalog for its whole interface.
type ModelCostLookup interface {
	CostPer1kOutput(model string) (float64, bool)
	QualityScore(model string) (float64, bool)
	HasStrength(model, taskType string) bool
	AllModels() []string
}

// SuggestDowngrades scans the last 30 days of usage: for each task type's
// most-used model, find a cheaper model whose quality delta is >= -20 and
// which is tagged strong for that task type, and project monthly savings.
// Returns the top five by projected savings.
func (l *Ledger) SuggestDowngrades(ctx context.Context, models ModelCostLookup) ([]DowngradeSuggestion, error) {
	l.mu.Lock()
	rows, err := l.db.QueryContext(ctx, `
		SELECT task_type, model, COUNT(*) as n, AVG(cost) as avg_cost
		FROM cost_tracking
		WHERE created_at >= ?
		GROUP BY task_type, model`, time.Now().Add(-30*24*time.Hour).UTC().Format(time.RFC3339))
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type usage struct {
		model   string
		count   int
		avgCost float64
	}
	mostUsedByType := make(map[string]usage)
	for rows.Next() {
		var taskType, model string
		var count int
		var avgCost float64
		if err := rows.Scan(&taskType, &model, &count, &avgCost); err != nil {
			return nil, err
		}
		if existing, ok := mostUsedByType[taskType]; !ok || count > existing.count {
			mostUsedByType[taskType] = usage{model: model, count: count, avgCost: avgCost}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	currentQuality := func(m string) float64 {
		q, _ := models.QualityScore(m)
		return q
	}
	currentCost := func(m string) float64 {
		c, _ := models.CostPer1kOutput(m)
		return c
	}

	var suggestions []DowngradeSuggestion
	for taskType, u := range mostUsedByType {
		baseQuality := currentQuality(u.model)
		baseCost := currentCost(u.model)
		for _, candidate := range models.AllModels() {
			if candidate == u.model {
				continue
			}
			if !models.HasStrength(candidate, taskType) {
				continue
			}
			candidateCost := currentCost(candidate)
			candidateQuality := currentQuality(candidate)
			if candidateCost >= baseCost {
				continue
			}
			if candidateQuality-baseQuality < -20 {
				continue
			}
			savingsPerRequest := baseCost - candidateCost
			projected := savingsPerRequest * 30 * float64(u.count)
			suggestions = append(suggestions, DowngradeSuggestion{
				TaskType: taskType, CurrentModel: u.model, SuggestedModel: candidate,
				ProjectedMonthlySavings: projected,
			})
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].ProjectedMonthlySavings > suggestions[j].ProjectedMonthlySavings
	})
	if len(suggestions) > 5 {
		suggestions = suggestions[:5]
	}
	return suggestions, nil
}
