// Package expander discovers recurring capability gaps from task failures
// and proposes remediations: skill suggestions, specialized prompt
// variants, and multi-agent composition proposals. Generation is templated
// and deterministic; no model call is made.
package expander

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/overhuman/orchestrator/internal/tracker"
)

// Category is the kind of gap discovered.
type Category string

const (
	CategoryMissingSkill   Category = "missing-skill"
	CategoryToolLimitation Category = "tool-limitation"
	CategoryKnowledgeGap   Category = "knowledge-gap"
	CategoryPatternFailure Category = "pattern-failure"
)

// Severity ranks how urgently a gap needs addressing.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// GapStatus tracks a gap's remediation lifecycle.
type GapStatus string

const (
	GapOpen       GapStatus = "open"
	GapAddressing GapStatus = "addressing"
	GapResolved   GapStatus = "resolved"
)

// Failure is one recorded task failure, as reported by the tracker/executor.
type Failure struct {
	TaskID               string
	ErrorType            string
	RequiredCapabilities []string
	Timestamp            time.Time
}

// CapabilityGap is a recurring failure pattern that indicates a missing
// skill, tool, or knowledge bucket.
type CapabilityGap struct {
	ID              string
	Category        Category
	Description     string
	FailureCount    int
	AffectedTaskIDs []string
	ErrorPatterns   []string
	Severity        Severity
	FrequencyPerDay float64
	Status          GapStatus
	firstSeen       time.Time
	lastSeen        time.Time
}

// SkillSuggestion proposes a concrete remediation for a gap.
type SkillSuggestion struct {
	ID              string
	GapID           string
	RequiredTools   []string
	EstimatedImpact Impact
}

// Impact is the projected value of addressing a gap.
type Impact struct {
	GapsClosed             int
	TasksUnblocked         int
	SuccessRateImprovement float64
}

// categoryImpact maps category to its projected success-rate improvement.
var categoryImpact = map[Category]float64{
	CategoryMissingSkill:   20,
	CategoryToolLimitation: 15,
	CategoryKnowledgeGap:   10,
	CategoryPatternFailure: 10,
}

// Config controls gap-discovery thresholds.
type Config struct {
	MinFailuresForGap int
}

// DefaultConfig returns the stock discovery threshold.
func DefaultConfig() Config {
	return Config{MinFailuresForGap: 3}
}

// Expander discovers gaps and proposes remediations.
type Expander struct {
	mu    sync.Mutex
	cfg   Config
	gaps  map[string]*CapabilityGap // fingerprint -> gap
	order []string
}

// New constructs an empty Expander.
func New(cfg Config) *Expander {
	return &Expander{cfg: cfg, gaps: make(map[string]*CapabilityGap)}
}

// RecordFailure ingests one failure, growing its group's fingerprinted
// bucket. The bucket surfaces as a CapabilityGap once it crosses
// MinFailuresForGap.
func (e *Expander) RecordFailure(f Failure) {
	key := tracker.Fingerprint(f.ErrorType, f.RequiredCapabilities)

	e.mu.Lock()
	defer e.mu.Unlock()

	gap, ok := e.gaps[key]
	if !ok {
		gap = &CapabilityGap{
			ID: uuid.NewString(), Category: categoryOf(f.ErrorType),
			Description: describeGap(f.ErrorType, f.RequiredCapabilities),
			Status:      GapOpen, firstSeen: f.Timestamp, lastSeen: f.Timestamp,
		}
		e.gaps[key] = gap
		e.order = append(e.order, key)
	}

	gap.FailureCount++
	gap.AffectedTaskIDs = append(gap.AffectedTaskIDs, f.TaskID)
	gap.ErrorPatterns = appendUnique(gap.ErrorPatterns, f.ErrorType)
	if f.Timestamp.After(gap.lastSeen) {
		gap.lastSeen = f.Timestamp
	}
	if f.Timestamp.Before(gap.firstSeen) {
		gap.firstSeen = f.Timestamp
	}

	days := gap.lastSeen.Sub(gap.firstSeen).Hours() / 24
	if days < 1 {
		days = 1
	}
	gap.FrequencyPerDay = float64(gap.FailureCount) / days
	gap.Severity = severityOf(gap.FrequencyPerDay)
}

func appendUnique(existing []string, v string) []string {
	for _, e := range existing {
		if e == v {
			return existing
		}
	}
	return append(existing, v)
}

func severityOf(freqPerDay float64) Severity {
	switch {
	case freqPerDay > 5:
		return SeverityCritical
	case freqPerDay > 2:
		return SeverityHigh
	case freqPerDay > 0.5:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func categoryOf(errorType string) Category {
	lower := strings.ToLower(errorType)
	switch {
	case strings.Contains(lower, "skill") || strings.Contains(lower, "capability"):
		return CategoryMissingSkill
	case strings.Contains(lower, "tool") || strings.Contains(lower, "timeout") || strings.Contains(lower, "rate"):
		return CategoryToolLimitation
	case strings.Contains(lower, "knowledge") || strings.Contains(lower, "fact") || strings.Contains(lower, "outdated"):
		return CategoryKnowledgeGap
	default:
		return CategoryPatternFailure
	}
}

func describeGap(errorType string, capabilities []string) string {
	if len(capabilities) == 0 {
		return fmt.Sprintf("recurring %s failures with no specific missing capability identified", errorType)
	}
	return fmt.Sprintf("recurring %s failures requiring %s", errorType, strings.Join(capabilities, ", "))
}

// Gaps returns every gap that has crossed MinFailuresForGap, sorted by
// FrequencyPerDay, highest first.
func (e *Expander) Gaps() []CapabilityGap {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []CapabilityGap
	for _, key := range e.order {
		g := e.gaps[key]
		if g.FailureCount >= e.cfg.MinFailuresForGap {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FrequencyPerDay > out[j].FrequencyPerDay })
	return out
}

// SetStatus transitions a gap's status (open -> addressing -> resolved).
func (e *Expander) SetStatus(gapID string, status GapStatus) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, g := range e.gaps {
		if g.ID == gapID {
			g.Status = status
			return true
		}
	}
	return false
}

// requiredToolsFor infers tools by substring match on the gap's description.
func requiredToolsFor(description string) []string {
	lower := strings.ToLower(description)
	var tools []string
	if strings.Contains(lower, "database") {
		tools = append(tools, "database-client")
	}
	if strings.Contains(lower, "api") {
		tools = append(tools, "http-client")
	}
	if strings.Contains(lower, "file") {
		tools = append(tools, "filesystem")
	}
	if strings.Contains(lower, "browser") || strings.Contains(lower, "web") {
		tools = append(tools, "browser")
	}
	return tools
}

// Suggest generates one SkillSuggestion per gap returned by Gaps, whatever
// the gap's status.
func (e *Expander) Suggest() []SkillSuggestion {
	gaps := e.Gaps()
	out := make([]SkillSuggestion, 0, len(gaps))
	for _, g := range gaps {
		out = append(out, SkillSuggestion{
			ID: uuid.NewString(), GapID: g.ID,
			RequiredTools: requiredToolsFor(g.Description),
			EstimatedImpact: Impact{
				GapsClosed:             1,
				TasksUnblocked:         len(g.AffectedTaskIDs),
				SuccessRateImprovement: categoryImpact[g.Category],
			},
		})
	}
	return out
}
