package catalog

import "testing"

func TestInMemoryModelCatalogGetAndAll(t *testing.T) {
	c := NewInMemoryModelCatalog(
		ModelProfile{Name: "a", QualityScore: 50},
		ModelProfile{Name: "b", QualityScore: 60},
	)

	if _, ok := c.Get("missing"); ok {
		t.Fatalf("Get(missing) should report ok=false")
	}
	p, ok := c.Get("a")
	if !ok || p.QualityScore != 50 {
		t.Fatalf("Get(a) = %+v, %v", p, ok)
	}

	all := c.All()
	if len(all) != 2 || all[0].Name != "a" || all[1].Name != "b" {
		t.Fatalf("All() = %+v, want load order [a b]", all)
	}
}

func TestModelProfileHasCapabilityAndStrength(t *testing.T) {
	p := ModelProfile{
		Capabilities: []Capability{CapabilityToolUse, CapabilityVision},
		StrengthTags: []string{"debugging"},
	}
	if !p.HasCapability(CapabilityToolUse) {
		t.Errorf("expected tool-use capability")
	}
	if p.HasCapability(CapabilityExtendedThinking) {
		t.Errorf("did not expect extended-thinking capability")
	}
	if !p.HasStrength("debugging") {
		t.Errorf("expected debugging strength")
	}
	if p.HasStrength("architecture") {
		t.Errorf("did not expect architecture strength")
	}
}

func TestDefaultModelCatalogIsUsable(t *testing.T) {
	cat := DefaultModelCatalog()
	models := cat.AllModels()
	if len(models) == 0 {
		t.Fatalf("DefaultModelCatalog produced no models")
	}
	for _, name := range models {
		if _, ok := cat.QualityScore(name); !ok {
			t.Errorf("QualityScore(%q) missing", name)
		}
		if _, ok := cat.CostPer1kOutput(name); !ok {
			t.Errorf("CostPer1kOutput(%q) missing", name)
		}
	}
	if !cat.HasStrength("claude-3-opus", "architecture") {
		t.Errorf("expected claude-3-opus to be tagged strong at architecture")
	}
}

func TestNewInMemoryAgentCatalogRequiresExactlyOneActiveVariant(t *testing.T) {
	_, err := NewInMemoryAgentCatalog(map[string][]AgentVariant{
		"agent-a": {{AgentID: "agent-a", Version: 1, Status: "testing"}},
	})
	if err == nil {
		t.Fatalf("expected an error when no variant is active")
	}

	_, err = NewInMemoryAgentCatalog(map[string][]AgentVariant{
		"agent-a": {
			{AgentID: "agent-a", Version: 1, Status: "active"},
			{AgentID: "agent-a", Version: 2, Status: "active"},
		},
	})
	if err == nil {
		t.Fatalf("expected an error when more than one variant is active")
	}

	c, err := NewInMemoryAgentCatalog(map[string][]AgentVariant{
		"agent-a": {{AgentID: "agent-a", Version: 1, Status: "active"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.Variants("agent-a"); len(got) != 1 {
		t.Fatalf("Variants(agent-a) = %+v, want one seed variant", got)
	}
}

func TestDefaultAgentCatalogSeedsOneActiveVariant(t *testing.T) {
	c := DefaultAgentCatalog()
	agents := c.Agents()
	if len(agents) != 1 || agents[0] != "default" {
		t.Fatalf("Agents() = %v, want [default]", agents)
	}
	variants := c.Variants("default")
	if len(variants) != 1 || variants[0].Status != "active" {
		t.Fatalf("Variants(default) = %+v, want one active seed variant", variants)
	}
}
