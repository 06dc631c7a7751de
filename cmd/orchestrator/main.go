// Package main is the entry point for the orchestrator control-surface CLI.
// Commands are cobra subcommands; exit codes are 0 ok, 1 constraint
// violation or budget block, 2 internal error.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/overhuman/orchestrator/internal/catalog"
	"github.com/overhuman/orchestrator/internal/config"
	"github.com/overhuman/orchestrator/internal/observability"
	"github.com/overhuman/orchestrator/internal/orchestrator"
)

const (
	appName = "orchestrator"
	version = "0.1.0"
)

var (
	flagConfigPath string
	flagLedgerPath string
	flagDataDir    string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Cobra has already printed usage/parse errors; a bare non-zero exit
		// here covers flag-parsing failures, which predate any runtime
		// construction and so have no orcherr kind to classify.
		os.Exit(2)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         fmt.Sprintf("%s v%s: agent orchestration runtime control surface", appName, version),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to a YAML configuration file (default: built-in defaults)")
	root.PersistentFlags().StringVar(&flagLedgerPath, "ledger", "", "path to the SQLite cost ledger (default: <data-dir>/ledger.db)")
	root.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory for persistence (default: $ORCHESTRATOR_DATA or ~/.orchestrator)")

	root.AddCommand(
		newClassifyCmd(),
		newRouteCmd(),
		newStatsCmd(),
		newCostCmd(),
		newBudgetCmd(),
		newConfigCmd(),
		newFallbackCmd(),
		newEvolveCmd(),
		newGapsCmd(),
		newSuggestionsCmd(),
		newReportCmd(),
		newExportCmd(),
		newResetCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the orchestrator version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("%s v%s\n", appName, version)
			return nil
		},
	}
}

// resolveDataDir picks the persistence directory: the --data-dir flag, then
// $ORCHESTRATOR_DATA, then ~/.orchestrator.
func resolveDataDir() (string, error) {
	if flagDataDir != "" {
		return flagDataDir, nil
	}
	if env := os.Getenv("ORCHESTRATOR_DATA"); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".orchestrator"), nil
}

// buildRuntime loads configuration, resolves the ledger path, and
// bootstraps a Runtime wired with the default standalone model/agent
// catalogs. The CLI never supplies an Invoke callable: every command in the
// control surface (route, classify, stats, cost, budget, config, fallback,
// evolve, gaps, suggestions, report, export, reset) is satisfied by
// Classify/Route/administrative methods alone, none of which touch the
// Fallback Executor.
func buildRuntime() (*orchestrator.Runtime, error) {
	cfg := config.Default()
	if flagConfigPath != "" {
		loaded, err := config.Load(flagConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory %q: %w", dataDir, err)
	}

	ledgerPath := flagLedgerPath
	if ledgerPath == "" {
		ledgerPath = filepath.Join(dataDir, "ledger.db")
	}

	return orchestrator.Bootstrap(cfg, orchestrator.BootstrapOptions{
		Models:     catalog.DefaultModelCatalog(),
		Agents:     catalog.DefaultAgentCatalog(),
		LedgerPath: ledgerPath,
		Logger:     observability.NewLogger(appName, os.Stderr),
	})
}
