package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/overhuman/orchestrator/internal/orchestrator"
	"github.com/overhuman/orchestrator/internal/orcherr"
)

// outcome is what a command's body produces: a successful result (with an
// optional advisory warning) or a terminal error. Exactly one of err and
// result is meaningful.
type outcome struct {
	result  any
	warning string
	err     error
}

func ok(result any) outcome             { return outcome{result: result} }
func warn(result any, w string) outcome { return outcome{result: result, warning: w} }
func fail(err error) outcome            { return outcome{err: err} }

// run bootstraps a Runtime, hands it to body, closes the Runtime, and only
// then prints one of the three result shapes ({ok,...}/{warn,...}/{error,
// kind, details}) and exits with the matching code. Closing before exiting
// (rather than exiting from inside body) keeps the SQLite ledger handle's
// shutdown on the normal path.
func run(body func(rt *orchestrator.Runtime) outcome) {
	rt, err := buildRuntime()
	if err != nil {
		printJSON(errorShape(err))
		os.Exit(2)
	}

	out := body(rt)
	if closeErr := rt.Close(); closeErr != nil && out.err == nil {
		out.err = closeErr
	}

	if out.err != nil {
		kind, code := orchestrator.ClassifyError(out.err)
		printJSON(map[string]any{"error": true, "kind": kind, "details": out.err.Error()})
		os.Exit(code)
	}
	if out.warning != "" {
		printJSON(map[string]any{"warn": true, "result": out.result, "warning": out.warning})
		os.Exit(0)
	}
	printJSON(map[string]any{"ok": true, "result": out.result})
	os.Exit(0)
}

func errorShape(err error) map[string]any {
	kind, _ := orchestrator.ClassifyError(err)
	return map[string]any{"error": true, "kind": kind, "details": err.Error()}
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	fmt.Println(string(b))
}

func newClassifyCmd() *cobra.Command {
	var taskContext string
	cmd := &cobra.Command{
		Use:   "classify <task>",
		Short: "run the Task Classifier on a free-text task description",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			run(func(rt *orchestrator.Runtime) outcome {
				return ok(rt.Classify(strings.Join(args, " "), taskContext))
			})
		},
	}
	cmd.Flags().StringVar(&taskContext, "context", "", "optional free-text context accompanying the task")
	return cmd
}

func newRouteCmd() *cobra.Command {
	var taskContext string
	cmd := &cobra.Command{
		Use:   "route <task>",
		Short: "classify then route a task, printing the chosen model and reasoning",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			run(func(rt *orchestrator.Runtime) outcome {
				desc := rt.Classify(strings.Join(args, " "), taskContext)
				decision, err := rt.Route(desc)
				if err != nil {
					return fail(err)
				}
				verdict, precheckErr := rt.PrecheckCost(context.Background(), decision.EstimatedCost)
				if precheckErr != nil {
					return fail(precheckErr)
				}
				switch verdict {
				case "block":
					status, _ := rt.Cost(context.Background())
					return fail(&orcherr.BudgetBlock{Scope: "daily", Limit: status.DailyLimit, Spent: status.DailySpent, Attempted: decision.EstimatedCost})
				case "warning":
					return warn(decision, "budget window is approaching its configured limit")
				default:
					return ok(decision)
				}
			})
		},
	}
	cmd.Flags().StringVar(&taskContext, "context", "", "optional free-text context accompanying the task")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "print rolling-window metrics counters",
		Run: func(cmd *cobra.Command, args []string) {
			run(func(rt *orchestrator.Runtime) outcome {
				return ok(map[string]any{"counters": rt.MetricsCounters()})
			})
		},
	}
}

func newCostCmd() *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "cost",
		Short: "print the current budget window state",
		Run: func(cmd *cobra.Command, args []string) {
			run(func(rt *orchestrator.Runtime) outcome {
				status, err := rt.Cost(context.Background())
				if err != nil {
					return fail(err)
				}
				switch period {
				case "daily":
					return ok(map[string]any{"spent": status.DailySpent, "limit": status.DailyLimit})
				case "monthly":
					return ok(map[string]any{"spent": status.MonthlySpent, "limit": status.MonthlyLimit})
				default:
					return ok(status)
				}
			})
		},
	}
	cmd.Flags().StringVar(&period, "period", "", "daily|monthly (default: both)")
	return cmd
}

func newBudgetCmd() *cobra.Command {
	var setDaily, setMonthly, setPerRequest string
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "view or update the configured budget limits",
		Run: func(cmd *cobra.Command, args []string) {
			run(func(rt *orchestrator.Runtime) outcome {
				daily, err := parseLimitFlag(setDaily)
				if err != nil {
					return fail(err)
				}
				monthly, err := parseLimitFlag(setMonthly)
				if err != nil {
					return fail(err)
				}
				perRequest, err := parseLimitFlag(setPerRequest)
				if err != nil {
					return fail(err)
				}
				if setDaily != "" || setMonthly != "" || setPerRequest != "" {
					rt.SetBudget(daily, monthly, perRequest)
				}
				status, err := rt.Cost(context.Background())
				if err != nil {
					return fail(err)
				}
				return ok(status)
			})
		},
	}
	cmd.Flags().StringVar(&setDaily, "set-daily", "", "set the daily budget limit")
	cmd.Flags().StringVar(&setMonthly, "set-monthly", "", "set the monthly budget limit")
	cmd.Flags().StringVar(&setPerRequest, "set-per-request", "", "set the per-request budget limit")
	return cmd
}

// parseLimitFlag returns -1 (meaning "leave unchanged", per
// ledger.SetLimits) when the flag was not supplied.
func parseLimitFlag(raw string) (float64, error) {
	if raw == "" {
		return -1, nil
	}
	return strconv.ParseFloat(raw, 64)
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "print the Router's current sub-score weights",
		Run: func(cmd *cobra.Command, args []string) {
			run(func(rt *orchestrator.Runtime) outcome {
				return ok(rt.Weights())
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set-weight <capability|cost|latency|quality|historical> <value>",
		Short: "override one Router sub-score weight",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			run(func(rt *orchestrator.Runtime) outcome {
				v, err := strconv.ParseFloat(args[1], 64)
				if err != nil {
					return fail(fmt.Errorf("config: invalid weight value %q: %w", args[1], err))
				}
				if err := rt.SetWeight(args[0], v); err != nil {
					return fail(err)
				}
				return ok(rt.Weights())
			})
		},
	})
	return cmd
}

func newFallbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fallback",
		Short: "print the Fallback Executor's configuration",
		Run: func(cmd *cobra.Command, args []string) {
			run(func(rt *orchestrator.Runtime) outcome {
				cfg, configured := rt.FallbackConfig()
				if !configured {
					return ok(map[string]any{"enabled": false, "reason": "no invoke callable configured for this CLI invocation"})
				}
				return ok(cfg)
			})
		},
	}
}

func newEvolveCmd() *cobra.Command {
	var agentID string
	cmd := &cobra.Command{
		Use:   "evolve",
		Short: "run the Optimizer's evolution step for one agent",
		Run: func(cmd *cobra.Command, args []string) {
			run(func(rt *orchestrator.Runtime) outcome {
				variant, err := rt.Evolve(context.Background(), agentID)
				if err != nil {
					return fail(err)
				}
				return ok(variant)
			})
		},
	}
	cmd.Flags().StringVar(&agentID, "agent-id", "default", "agent id to evolve")
	return cmd
}

func newGapsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gaps",
		Short: "list discovered capability gaps",
		Run: func(cmd *cobra.Command, args []string) {
			run(func(rt *orchestrator.Runtime) outcome { return ok(rt.Gaps()) })
		},
	}
}

func newSuggestionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggestions",
		Short: "list proposed remediations for discovered capability gaps",
		Run: func(cmd *cobra.Command, args []string) {
			run(func(rt *orchestrator.Runtime) outcome { return ok(rt.Suggestions()) })
		},
	}
}

func newReportCmd() *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "build and retain an EvolutionReport for the current period",
		Run: func(cmd *cobra.Command, args []string) {
			run(func(rt *orchestrator.Runtime) outcome {
				return ok(rt.BuildReport(context.Background(), period, time.Now().UTC()))
			})
		},
	}
	cmd.Flags().StringVar(&period, "period", "manual", "a label for this report's reporting period")
	return cmd
}

func newExportCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "export the most recent EvolutionReport",
		Run: func(cmd *cobra.Command, args []string) {
			rt, err := buildRuntime()
			if err != nil {
				printJSON(errorShape(err))
				os.Exit(2)
			}
			out, exportErr := rt.Export(orchestrator.ExportFormat(format))
			closeErr := rt.Close()
			if exportErr == nil {
				exportErr = closeErr
			}
			if exportErr != nil {
				kind, code := orchestrator.ClassifyError(exportErr)
				printJSON(map[string]any{"error": true, "kind": kind, "details": exportErr.Error()})
				os.Exit(code)
			}
			fmt.Println(out)
			os.Exit(0)
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "json|csv")
	return cmd
}

func newResetCmd() *cobra.Command {
	var resetCache, resetStats bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "clear the Router's decision cache and/or the Tracker's rolling window",
		Run: func(cmd *cobra.Command, args []string) {
			run(func(rt *orchestrator.Runtime) outcome {
				if !resetCache && !resetStats {
					resetCache, resetStats = true, true
				}
				if resetCache {
					rt.ClearCache()
				}
				if resetStats {
					rt.ResetStats()
				}
				return ok(map[string]any{"cache": resetCache, "stats": resetStats})
			})
		},
	}
	cmd.Flags().BoolVar(&resetCache, "cache", false, "clear the routing decision cache")
	cmd.Flags().BoolVar(&resetStats, "stats", false, "clear the in-process performance tracker window")
	return cmd
}
