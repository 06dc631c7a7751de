// Package catalog supplies the two read-only inputs the core reads on
// startup: the model catalog and the agent/variant catalog. In a hosted
// deployment these are backed by the directory/billing CRUD layer; the
// in-memory implementations here make the runtime usable standalone, and a
// host replaces them by satisfying the same two interfaces.
package catalog

import "fmt"

// Capability is a tag describing what a model can do.
type Capability string

const (
	CapabilityVision           Capability = "vision"
	CapabilityToolUse          Capability = "tool-use"
	CapabilityExtendedThinking Capability = "extended-thinking"
)

// ModelProfile is the static description of a model, as loaded from the
// catalog. Mutated only by an admin reload, never by the runtime.
type ModelProfile struct {
	Name            string
	Provider        string
	CostPer1kInput  float64
	CostPer1kOutput float64
	QualityScore    float64 // 0-100
	P50LatencyMs    int
	ContextWindow   int
	MaxOutputTokens int
	Capabilities    []Capability
	StrengthTags    []string // task types this model is known to be strong at
}

// HasCapability reports whether the profile lists a capability tag.
func (m ModelProfile) HasCapability(c Capability) bool {
	for _, have := range m.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// HasStrength reports whether the profile's strength tags include taskType.
func (m ModelProfile) HasStrength(taskType string) bool {
	for _, s := range m.StrengthTags {
		if s == taskType {
			return true
		}
	}
	return false
}

// ModelCatalog is the read-only collaborator the Router queries. A host
// application can satisfy this with its own directory-backed implementation;
// InMemoryModelCatalog below is the default standalone one.
type ModelCatalog interface {
	Get(name string) (ModelProfile, bool)
	All() []ModelProfile
}

// InMemoryModelCatalog holds a fixed set of ModelProfiles loaded at startup.
type InMemoryModelCatalog struct {
	profiles map[string]ModelProfile
	order    []string
}

// NewInMemoryModelCatalog builds a catalog from the given profiles.
func NewInMemoryModelCatalog(profiles ...ModelProfile) *InMemoryModelCatalog {
	c := &InMemoryModelCatalog{profiles: make(map[string]ModelProfile, len(profiles))}
	for _, p := range profiles {
		c.profiles[p.Name] = p
		c.order = append(c.order, p.Name)
	}
	return c
}

// Get returns the named profile.
func (c *InMemoryModelCatalog) Get(name string) (ModelProfile, bool) {
	p, ok := c.profiles[name]
	return p, ok
}

// All returns every profile, in load order.
func (c *InMemoryModelCatalog) All() []ModelProfile {
	out := make([]ModelProfile, 0, len(c.order))
	for _, n := range c.order {
		out = append(out, c.profiles[n])
	}
	return out
}

// The methods below give InMemoryModelCatalog the narrow shape
// ledger.ModelCostLookup expects, so SuggestDowngrades can be driven by the
// same catalog the Router uses without internal/ledger importing
// internal/catalog's whole interface.

// CostPer1kOutput returns a model's per-1k-output-token cost.
func (c *InMemoryModelCatalog) CostPer1kOutput(name string) (float64, bool) {
	p, ok := c.profiles[name]
	if !ok {
		return 0, false
	}
	return p.CostPer1kOutput, true
}

// QualityScore returns a model's quality score.
func (c *InMemoryModelCatalog) QualityScore(name string) (float64, bool) {
	p, ok := c.profiles[name]
	if !ok {
		return 0, false
	}
	return p.QualityScore, true
}

// HasStrength reports whether a named model is tagged strong at taskType.
func (c *InMemoryModelCatalog) HasStrength(name, taskType string) bool {
	p, ok := c.profiles[name]
	if !ok {
		return false
	}
	return p.HasStrength(taskType)
}

// AllModels returns every catalog model name, in load order.
func (c *InMemoryModelCatalog) AllModels() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// DefaultModelCatalog ships the public, already-released model set the
// runtime is configured against out of the box. Cost/latency/quality figures
// are illustrative placeholders a host is expected to override via config.
func DefaultModelCatalog() *InMemoryModelCatalog {
	return NewInMemoryModelCatalog(
		ModelProfile{
			Name: "claude-3-haiku", Provider: "anthropic",
			CostPer1kInput: 0.00025, CostPer1kOutput: 0.00125,
			QualityScore: 72, P50LatencyMs: 900,
			ContextWindow: 200000, MaxOutputTokens: 4096,
			Capabilities: []Capability{CapabilityToolUse},
			StrengthTags: []string{"simple-task", "documentation", "classification", "summarization"},
		},
		ModelProfile{
			Name: "claude-3-sonnet", Provider: "anthropic",
			CostPer1kInput: 0.003, CostPer1kOutput: 0.015,
			QualityScore: 85, P50LatencyMs: 1800,
			ContextWindow: 200000, MaxOutputTokens: 4096,
			Capabilities: []Capability{CapabilityToolUse, CapabilityVision, CapabilityExtendedThinking},
			StrengthTags: []string{"code-generation", "debugging", "refactoring", "code-review"},
		},
		ModelProfile{
			Name: "claude-3-opus", Provider: "anthropic",
			CostPer1kInput: 0.015, CostPer1kOutput: 0.075,
			QualityScore: 95, P50LatencyMs: 3200,
			ContextWindow: 200000, MaxOutputTokens: 4096,
			Capabilities: []Capability{CapabilityToolUse, CapabilityVision, CapabilityExtendedThinking},
			StrengthTags: []string{"architecture", "research", "analysis", "critical"},
		},
		ModelProfile{
			Name: "gpt-4o-mini", Provider: "openai",
			CostPer1kInput: 0.00015, CostPer1kOutput: 0.0006,
			QualityScore: 70, P50LatencyMs: 800,
			ContextWindow: 128000, MaxOutputTokens: 16384,
			Capabilities: []Capability{CapabilityToolUse, CapabilityVision},
			StrengthTags: []string{"simple-task", "classification", "translation"},
		},
		ModelProfile{
			Name: "gpt-4o", Provider: "openai",
			CostPer1kInput: 0.0025, CostPer1kOutput: 0.01,
			QualityScore: 88, P50LatencyMs: 1600,
			ContextWindow: 128000, MaxOutputTokens: 16384,
			Capabilities: []Capability{CapabilityToolUse, CapabilityVision, CapabilityExtendedThinking},
			StrengthTags: []string{"code-generation", "analysis", "data-extraction"},
		},
		ModelProfile{
			Name: "gpt-4-turbo", Provider: "openai",
			CostPer1kInput: 0.01, CostPer1kOutput: 0.03,
			QualityScore: 91, P50LatencyMs: 2600,
			ContextWindow: 128000, MaxOutputTokens: 4096,
			Capabilities: []Capability{CapabilityToolUse, CapabilityVision, CapabilityExtendedThinking},
			StrengthTags: []string{"architecture", "research", "critical"},
		},
	)
}

// AgentVariant is a host-provided view of a PromptVariant suitable for
// catalog seeding. The optimizer owns the authoritative, mutable copy after
// load; this shape only covers the startup seed.
type AgentVariant struct {
	AgentID      string
	Version      int
	PromptBody   string
	SystemPrompt string
	Status       string // testing | active | archived
}

// AgentCatalog supplies the startup seed of agents and their variants.
type AgentCatalog interface {
	Agents() []string
	Variants(agentID string) []AgentVariant
}

// InMemoryAgentCatalog is the default standalone AgentCatalog.
type InMemoryAgentCatalog struct {
	variants map[string][]AgentVariant
	order    []string
}

// NewInMemoryAgentCatalog builds a catalog from a map of agent id to seed
// variants. Each agent must have exactly one variant with status "active".
func NewInMemoryAgentCatalog(seed map[string][]AgentVariant) (*InMemoryAgentCatalog, error) {
	c := &InMemoryAgentCatalog{variants: make(map[string][]AgentVariant, len(seed))}
	for agentID, variants := range seed {
		activeCount := 0
		for _, v := range variants {
			if v.Status == "active" {
				activeCount++
			}
		}
		if activeCount != 1 {
			return nil, fmt.Errorf("catalog: agent %q must seed exactly one active variant, got %d", agentID, activeCount)
		}
		c.variants[agentID] = variants
		c.order = append(c.order, agentID)
	}
	return c, nil
}

// Agents returns every seeded agent id, in load order.
func (c *InMemoryAgentCatalog) Agents() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Variants returns the seed variants for an agent.
func (c *InMemoryAgentCatalog) Variants(agentID string) []AgentVariant {
	return c.variants[agentID]
}

// DefaultAgentCatalog seeds a single "default" agent with one active
// variant, for hosts (such as the control-surface CLI) that have no
// directory-backed agent catalog of their own to supply.
func DefaultAgentCatalog() *InMemoryAgentCatalog {
	c, err := NewInMemoryAgentCatalog(map[string][]AgentVariant{
		"default": {
			{
				AgentID: "default", Version: 1,
				PromptBody:   "You are a helpful assistant. Complete the task described by the user.",
				SystemPrompt: "Respond accurately and concisely.",
				Status:       "active",
			},
		},
	})
	if err != nil {
		panic("catalog: DefaultAgentCatalog seed is invalid: " + err.Error())
	}
	return c
}
