package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default() should validate, got %v", err)
	}
}

func TestValidateRejectsWeightsNotSummingToOne(t *testing.T) {
	cfg := Default()
	cfg.Weights.Capability = 0.9
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for weights not summing to 1.0")
	}
}

func TestValidateRejectsUnknownBackoff(t *testing.T) {
	cfg := Default()
	cfg.Fallback.Backoff = "quadratic"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for an unrecognized backoff strategy")
	}
}

func TestValidateRejectsUnknownTimezone(t *testing.T) {
	cfg := Default()
	cfg.Budget.Timezone = "Not/A_Zone"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for an unrecognized timezone")
	}
}

func TestLoadMergesOntoDefaultsAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "defaultModel: claude-3-haiku\nbudget:\n  dailyLimit: 10\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultModel != "claude-3-haiku" {
		t.Errorf("DefaultModel = %q, want claude-3-haiku", cfg.DefaultModel)
	}
	if cfg.Budget.DailyLimit != 10 {
		t.Errorf("Budget.DailyLimit = %v, want 10", cfg.Budget.DailyLimit)
	}
	if cfg.Evolution.MinTrialsBeforePromotion != Default().Evolution.MinTrialsBeforePromotion {
		t.Errorf("unspecified fields should keep their Default() value")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "notARealOption: true\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for an unrecognized configuration key")
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "weights:\n  capability: 0.9\n  cost: 0.2\n  latency: 0.15\n  quality: 0.2\n  historical: 0.1\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for weights not summing to 1.0")
	}
}
