package orchestrator

import (
	"time"

	"github.com/overhuman/orchestrator/internal/catalog"
	"github.com/overhuman/orchestrator/internal/config"
	"github.com/overhuman/orchestrator/internal/executor"
	"github.com/overhuman/orchestrator/internal/expander"
	"github.com/overhuman/orchestrator/internal/feedback"
	"github.com/overhuman/orchestrator/internal/ledger"
	"github.com/overhuman/orchestrator/internal/observability"
	"github.com/overhuman/orchestrator/internal/optimizer"
	"github.com/overhuman/orchestrator/internal/router"
	"github.com/overhuman/orchestrator/internal/tracker"
)

// BootstrapOptions are the host-supplied collaborators Bootstrap cannot
// derive from config.Config alone: the catalogs, the persistence path, and
// the execution callable.
type BootstrapOptions struct {
	Models     catalog.ModelCatalog
	Agents     catalog.AgentCatalog
	LedgerPath string                // ":memory:" for an ephemeral ledger
	Invoke     router.Invoke         // optional; nil disables RunTask
	Adapters   map[string][]router.Adapter
	Logger     *observability.Logger // optional; a default is created if nil
}

// Bootstrap builds every subsystem from a validated config.Config plus the
// host-supplied options above, wiring them into a Runtime.
func Bootstrap(cfg config.Config, opts BootstrapOptions) (*Runtime, error) {
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger("orchestrator", nil)
	}

	weights := router.Weights{
		Capability: cfg.Weights.Capability, Cost: cfg.Weights.Cost, Latency: cfg.Weights.Latency,
		Quality: cfg.Weights.Quality, Historical: cfg.Weights.Historical,
	}

	ledgerCfg := ledger.DefaultConfig()
	tz, err := time.LoadLocation(cfg.Budget.Timezone)
	if err != nil {
		tz = time.UTC
	}
	ledgerCfg.Timezone = tz
	ledgerCfg.DailyLimit = cfg.Budget.DailyLimit
	ledgerCfg.MonthlyLimit = cfg.Budget.MonthlyLimit
	ledgerCfg.PerRequestLimit = cfg.Budget.PerRequestLimit
	if cfg.Budget.Alerts.DailyWarning > 0 {
		ledgerCfg.DailyWarning = cfg.Budget.Alerts.DailyWarning
	}
	if cfg.Budget.Alerts.MonthlyWarning > 0 {
		ledgerCfg.MonthlyWarning = cfg.Budget.Alerts.MonthlyWarning
	}

	path := opts.LedgerPath
	if path == "" {
		path = ":memory:"
	}
	led, err := ledger.Open(path, ledgerCfg)
	if err != nil {
		return nil, err
	}

	trackerCfg := tracker.DefaultConfig()
	if cfg.Evolution.FeedbackDecayHalfLifeDays > 0 {
		trackerCfg.HalfLife = time.Duration(cfg.Evolution.FeedbackDecayHalfLifeDays * float64(24*time.Hour))
	}
	if cfg.Evolution.ImplicitFeedbackWeight > 0 {
		trackerCfg.ImplicitWeight = cfg.Evolution.ImplicitFeedbackWeight
	}
	if cfg.Tracker.RetentionDays > 0 {
		trackerCfg.RetentionDays = cfg.Tracker.RetentionDays
	}
	trk := tracker.New(trackerCfg)

	routerCfg := router.Config{
		Weights: weights, DefaultModel: cfg.DefaultModel, EnableCache: cfg.EnableCache,
		EnableLearning: cfg.EnableLearning,
		ComplexityPreference: router.DefaultConfig().ComplexityPreference,
	}
	if cfg.CacheTTLSec > 0 {
		routerCfg.CacheTTL = time.Duration(cfg.CacheTTLSec) * time.Second
	} else {
		routerCfg.CacheTTL = router.DefaultConfig().CacheTTL
	}
	rtr := router.New(opts.Models, led, routerCfg, nil)

	optCfg := optimizer.DefaultConfig()
	if cfg.Evolution.MinTrialsBeforePromotion > 0 {
		optCfg.MinTrialsBeforePromotion = cfg.Evolution.MinTrialsBeforePromotion
	}
	if cfg.Evolution.ExplorationParameter > 0 {
		optCfg.ExplorationCoefficient = cfg.Evolution.ExplorationParameter
	}
	opt := optimizer.New(optCfg)
	for _, agentID := range opts.Agents.Agents() {
		opt.Seed(agentID, opts.Agents.Variants(agentID))
	}

	exp := expander.New(expander.DefaultConfig())

	feedbackCfg := feedback.DefaultConfig()
	if cfg.Evolution.EvolutionThreshold.MinTaskCount > 0 {
		feedbackCfg.MinTaskCount = cfg.Evolution.EvolutionThreshold.MinTaskCount
	}
	if cfg.Evolution.EvolutionThreshold.MinSuccessRateDrop > 0 {
		feedbackCfg.MinSuccessRateDrop = cfg.Evolution.EvolutionThreshold.MinSuccessRateDrop
	}
	if cfg.Evolution.ReportFrequencyDays > 0 {
		feedbackCfg.ReportFrequency = time.Duration(cfg.Evolution.ReportFrequencyDays * float64(24*time.Hour))
	}
	if cfg.Evolution.ReportRetentionCount > 0 {
		feedbackCfg.ReportRetention = cfg.Evolution.ReportRetentionCount
	}
	loop := feedback.New(feedbackCfg, trackerSignals{trk}, optimizerSignals{opt}, optimizer.SuccessRateSignificantlyLower)

	var exec *executor.Executor
	if opts.Invoke != nil {
		execCfg := executor.DefaultConfig()
		execCfg.Enabled = cfg.Fallback.Enabled
		if cfg.Fallback.MaxAttempts > 0 {
			execCfg.MaxAttempts = cfg.Fallback.MaxAttempts
		}
		if cfg.Fallback.TimeoutSec > 0 {
			execCfg.Timeout = time.Duration(cfg.Fallback.TimeoutSec) * time.Second
		}
		if cfg.Fallback.InitialDelaySec > 0 {
			execCfg.InitialDelay = time.Duration(cfg.Fallback.InitialDelaySec * float64(time.Second))
		}
		if cfg.Fallback.Backoff == string(executor.BackoffLinear) {
			execCfg.Backoff = executor.BackoffLinear
		} else {
			execCfg.Backoff = executor.BackoffExponential
		}
		exec = executor.New(opts.Invoke, execCfg, opts.Adapters)
	}

	metrics := observability.NewMetricsCollector(10000)

	return New(Dependencies{
		Models: opts.Models, Agents: opts.Agents, Router: rtr, Optimizer: opt,
		Ledger: led, Tracker: trk, Expander: exp, Feedback: loop, Executor: exec,
		Logger: opts.Logger, Metrics: metrics,
	}), nil
}
