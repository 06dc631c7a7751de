package router

import (
	"testing"

	"github.com/overhuman/orchestrator/internal/catalog"
	"github.com/overhuman/orchestrator/internal/classify"
)

func TestRouteDocumentationPrefersHaiku(t *testing.T) {
	cat := catalog.DefaultModelCatalog()
	r := New(cat, nil, DefaultConfig(), nil)

	desc := classify.Classify("Add JSDoc comments to utility functions", "")
	decision, err := r.Route(desc)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if decision.ChosenModel != "claude-3-haiku" && decision.ChosenModel != "gpt-4o-mini" {
		t.Errorf("chosen = %q, want a cheap model", decision.ChosenModel)
	}
	if decision.Confidence <= 60 {
		t.Errorf("confidence = %v, want > 60", decision.Confidence)
	}
}

func TestRouteArchitectureComplexPrefersOpus(t *testing.T) {
	cat := catalog.DefaultModelCatalog()
	r := New(cat, nil, DefaultConfig(), nil)

	desc := classify.Classify("Design scalable microservices architecture for e-commerce platform", "")
	decision, err := r.Route(desc)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if decision.ChosenModel != "claude-3-opus" && decision.ChosenModel != "gpt-4-turbo" {
		t.Errorf("chosen = %q, want opus or gpt-4-turbo", decision.ChosenModel)
	}
	found := false
	for _, line := range decision.Reasoning {
		if line == "task is critical or complex" {
			found = true
		}
	}
	if !found {
		t.Errorf("reasoning %v missing critical/complex line", decision.Reasoning)
	}
}

func TestRouteFallbackChainExcludesChosen(t *testing.T) {
	cat := catalog.DefaultModelCatalog()
	r := New(cat, nil, DefaultConfig(), nil)

	desc := classify.Classify("fix a small bug in the parser", "")
	decision, err := r.Route(desc)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if len(decision.FallbackChain) > 3 {
		t.Errorf("fallback chain length = %d, want <= 3", len(decision.FallbackChain))
	}
	for _, m := range decision.FallbackChain {
		if m == decision.ChosenModel {
			t.Errorf("fallback chain contains chosen model %q", m)
		}
	}
}

func TestRouteNoModelSatisfiesConstraints(t *testing.T) {
	cat := catalog.DefaultModelCatalog()
	cfg := DefaultConfig()
	cfg.DefaultModel = "claude-3-haiku"
	r := New(cat, nil, cfg, nil)

	desc := classify.Classify("summarize this short memo", "")
	desc.Constraints = &classify.Constraints{MaxCost: 0.0000001}

	decision, err := r.Route(desc)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if decision.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", decision.Confidence)
	}
	if len(decision.Reasoning) != 1 || decision.Reasoning[0] != "no model satisfied constraints" {
		t.Errorf("reasoning = %v, want single no-constraint line", decision.Reasoning)
	}
}

func TestRouteNoModelNoDefaultSurfacesConstraintViolation(t *testing.T) {
	cat := catalog.DefaultModelCatalog()
	r := New(cat, nil, DefaultConfig(), nil)

	desc := classify.Classify("summarize this short memo", "")
	desc.Constraints = &classify.Constraints{MaxCost: 0.0000001}

	_, err := r.Route(desc)
	if err == nil {
		t.Fatal("expected ConstraintViolation, got nil")
	}
}

func TestRouteCachesDecision(t *testing.T) {
	cat := catalog.DefaultModelCatalog()
	r := New(cat, nil, DefaultConfig(), nil)

	desc := classify.Classify("write a function to parse csv", "")
	first, _ := r.Route(desc)
	second, _ := r.Route(desc)
	if first.Timestamp != second.Timestamp {
		t.Error("expected second Route() to return cached decision with identical timestamp")
	}

	r.ClearCache()
	third, _ := r.Route(desc)
	if third.Timestamp == first.Timestamp {
		t.Error("expected ClearCache to force recomputation")
	}
}
