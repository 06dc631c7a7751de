// Package config loads and validates the runtime's YAML configuration.
// Unknown keys are rejected at decode time; an unrecognized option is a
// configuration error, not a silently ignored extension point.
package config

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Weights mirrors router.Weights in a YAML-friendly shape so
// internal/config does not need to import internal/router.
type Weights struct {
	Capability float64 `yaml:"capability"`
	Cost       float64 `yaml:"cost"`
	Latency    float64 `yaml:"latency"`
	Quality    float64 `yaml:"quality"`
	Historical float64 `yaml:"historical"`
}

// FallbackConfig is the fallback.* option group.
type FallbackConfig struct {
	Enabled         bool    `yaml:"enabled"`
	MaxAttempts     int     `yaml:"maxAttempts"`
	TimeoutSec      int     `yaml:"timeout"`
	InitialDelaySec float64 `yaml:"initialDelay"`
	Backoff         string  `yaml:"backoff"`
}

// BudgetAlerts is the budget.alerts.* option group.
type BudgetAlerts struct {
	DailyWarning   float64 `yaml:"dailyWarning"`
	MonthlyWarning float64 `yaml:"monthlyWarning"`
}

// BudgetConfig is the budget.* option group.
type BudgetConfig struct {
	DailyLimit      float64      `yaml:"dailyLimit"`
	MonthlyLimit    float64      `yaml:"monthlyLimit"`
	PerRequestLimit float64      `yaml:"perRequestLimit"`
	Alerts          BudgetAlerts `yaml:"alerts"`
	Timezone        string       `yaml:"timezone"`
}

// EvolutionThreshold is the evolution.evolutionThreshold.* option group.
type EvolutionThreshold struct {
	MinSuccessRateDrop float64 `yaml:"minSuccessRateDrop"`
	MinTaskCount       int     `yaml:"minTaskCount"`
}

// EvolutionConfig is the evolution.* option group.
type EvolutionConfig struct {
	AutoEnabled               bool               `yaml:"autoEnabled"`
	MinTrialsBeforePromotion  int                `yaml:"minTrialsBeforePromotion"`
	ExplorationParameter      float64            `yaml:"explorationParameter"`
	EvolutionThreshold        EvolutionThreshold `yaml:"evolutionThreshold"`
	ImplicitFeedbackWeight    float64            `yaml:"implicitFeedbackWeight"`
	FeedbackDecayHalfLifeDays float64            `yaml:"feedbackDecayHalfLife"`
	ReportFrequencyDays       float64            `yaml:"reportFrequency"`
	ReportRetentionCount      int                `yaml:"reportRetentionCount"`
}

// TrackerConfig is the tracker.* option group.
type TrackerConfig struct {
	RetentionDays int `yaml:"retentionDays"`
}

// Config is the full recognized option set.
type Config struct {
	DefaultModel   string          `yaml:"defaultModel"`
	Weights        Weights         `yaml:"weights"`
	EnableCache    bool            `yaml:"enableCache"`
	CacheTTLSec    int             `yaml:"cacheTTL"`
	EnableLearning bool            `yaml:"enableLearning"`
	Fallback       FallbackConfig  `yaml:"fallback"`
	Budget         BudgetConfig    `yaml:"budget"`
	Evolution      EvolutionConfig `yaml:"evolution"`
	Tracker        TrackerConfig   `yaml:"tracker"`
}

// Default returns a Config populated with the stock defaults.
func Default() Config {
	return Config{
		Weights:        Weights{Capability: 0.35, Cost: 0.20, Latency: 0.15, Quality: 0.20, Historical: 0.10},
		EnableCache:    true,
		CacheTTLSec:    3600,
		EnableLearning: true,
		Fallback:       FallbackConfig{Enabled: true, MaxAttempts: 3, TimeoutSec: 60, InitialDelaySec: 1, Backoff: "exponential"},
		Budget: BudgetConfig{
			Alerts:   BudgetAlerts{DailyWarning: 0.75, MonthlyWarning: 0.80},
			Timezone: "UTC",
		},
		Evolution: EvolutionConfig{
			MinTrialsBeforePromotion:  20,
			ExplorationParameter:      2.0,
			EvolutionThreshold:        EvolutionThreshold{MinSuccessRateDrop: 0.10, MinTaskCount: 10},
			ImplicitFeedbackWeight:    0.3,
			FeedbackDecayHalfLifeDays: 7,
			ReportFrequencyDays:       7,
			ReportRetentionCount:      12,
		},
		Tracker: TrackerConfig{RetentionDays: 90},
	}
}

// Load reads and validates a YAML config file, merging onto Default().
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %q: %w", path, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces the weight-sum-to-1.0 constraint and rejects
// nonsensical values; unknown keys are already rejected by
// KnownFields(true) during Load.
func (c Config) Validate() error {
	sum := c.Weights.Capability + c.Weights.Cost + c.Weights.Latency + c.Weights.Quality + c.Weights.Historical
	if math.Abs(sum-1.0) > 0.001 {
		return fmt.Errorf("config: weights must sum to 1.0 within +/-0.001, got %.4f", sum)
	}
	if c.Fallback.Backoff != "linear" && c.Fallback.Backoff != "exponential" {
		return fmt.Errorf("config: fallback.backoff must be 'linear' or 'exponential', got %q", c.Fallback.Backoff)
	}
	if _, err := time.LoadLocation(c.Budget.Timezone); err != nil {
		return fmt.Errorf("config: invalid budget.timezone %q: %w", c.Budget.Timezone, err)
	}
	return nil
}
