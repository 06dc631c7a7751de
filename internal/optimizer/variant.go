// Package optimizer maintains the per-agent prompt variants: UCB1 selection,
// outcome-driven statistics, promotion of variants that beat the incumbent,
// and mutation-based evolution of new variants when an agent's performance
// degrades.
package optimizer

import "time"

// Status is a PromptVariant's place in its lifecycle.
type Status string

const (
	StatusTesting  Status = "testing"
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// MutationType records how a variant came to exist.
type MutationType string

const (
	MutationManual       MutationType = "manual"
	MutationAutomated    MutationType = "automated"
	MutationEvolutionary MutationType = "evolutionary"
)

// PromptVariant is a specific prompt body for an agent. Owned exclusively by
// the Optimizer; every other component holds read-only references keyed by
// id.
type PromptVariant struct {
	ID              string
	AgentID         string
	Version         int
	PromptBody      string
	SystemPrompt    string
	CreatedAt       time.Time
	TrialCount      int
	SuccessCount    int
	AvgDuration     float64
	AvgTokens       float64
	ParentVariantID string
	MutationType    MutationType
	MutationReason  string
	Status          Status
}

// SuccessRate returns the variant's observed success rate, or 0 with no
// trials recorded yet.
func (v *PromptVariant) SuccessRate() float64 {
	if v.TrialCount == 0 {
		return 0
	}
	return float64(v.SuccessCount) / float64(v.TrialCount)
}

// recordOutcome updates trial/success counts and the incremental means for
// duration and tokens. Called while the agent's promotion lock and the
// Optimizer's mutex are held.
func (v *PromptVariant) recordOutcome(success bool, durationMs float64, tokens float64) {
	v.TrialCount++
	if success {
		v.SuccessCount++
	}
	n := float64(v.TrialCount)
	v.AvgDuration += (durationMs - v.AvgDuration) / n
	v.AvgTokens += (tokens - v.AvgTokens) / n
}
