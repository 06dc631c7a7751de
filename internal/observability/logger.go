// Package observability provides structured logging, in-process metrics,
// and OpenTelemetry tracing for the orchestration runtime.
//
// Logger wraps log/slog with a persistent agent field and
// Decision/Outcome/Budget/Evolution convenience methods for the runtime's
// recurring event shapes.
package observability

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// Logger wraps slog with persistent agent context.
type Logger struct {
	mu     sync.RWMutex
	inner  *slog.Logger
	agent  string
	fields []slog.Attr
}

// NewLogger creates a structured logger for a given agent.
// Output defaults to os.Stderr if w is nil.
func NewLogger(agentName string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	return &Logger{
		inner: slog.New(handler),
		agent: agentName,
	}
}

// NewLoggerWithHandler creates a logger with a custom slog handler.
func NewLoggerWithHandler(agentName string, h slog.Handler) *Logger {
	return &Logger{
		inner: slog.New(h),
		agent: agentName,
	}
}

// With returns a new Logger with additional persistent fields.
func (l *Logger) With(key string, value any) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &Logger{
		inner:  l.inner.With(slog.Any(key, value)),
		agent:  l.agent,
		fields: append(l.fields, slog.Any(key, value)),
	}
}

// attrs prepends agent name to the arguments.
func (l *Logger) attrs(msg string, args []any) (string, []any) {
	return msg, append([]any{slog.String("agent", l.agent)}, args...)
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(msg string, args ...any) {
	msg, args = l.attrs(msg, args)
	l.inner.Debug(msg, args...)
}

// Info logs at INFO level.
func (l *Logger) Info(msg string, args ...any) {
	msg, args = l.attrs(msg, args)
	l.inner.Info(msg, args...)
}

// Warn logs at WARN level.
func (l *Logger) Warn(msg string, args ...any) {
	msg, args = l.attrs(msg, args)
	l.inner.Warn(msg, args...)
}

// Error logs at ERROR level.
func (l *Logger) Error(msg string, args ...any) {
	msg, args = l.attrs(msg, args)
	l.inner.Error(msg, args...)
}

// Decision logs a routing decision: chosen model, confidence, and estimated
// cost, the three fields an operator scanning logs cares about first.
func (l *Logger) Decision(model string, confidence float64, estimatedCost float64, args ...any) {
	allArgs := append([]any{
		slog.String("agent", l.agent),
		slog.String("model", model),
		slog.Float64("confidence", confidence),
		slog.Float64("estimated_cost", estimatedCost),
	}, args...)
	l.inner.Info("routing_decision", allArgs...)
}

// Outcome logs a Fallback Executor outcome.
func (l *Logger) Outcome(model string, success bool, usedFallback bool, attempts int, args ...any) {
	allArgs := append([]any{
		slog.String("agent", l.agent),
		slog.String("model", model),
		slog.Bool("success", success),
		slog.Bool("used_fallback", usedFallback),
		slog.Int("attempts", attempts),
	}, args...)
	l.inner.Info("outcome", allArgs...)
}

// Budget logs a precheck verdict or a budget-window state change.
func (l *Logger) Budget(scope string, result string, spent, limit float64, args ...any) {
	allArgs := append([]any{
		slog.String("agent", l.agent),
		slog.String("scope", scope),
		slog.String("result", result),
		slog.Float64("spent", spent),
		slog.Float64("limit", limit),
	}, args...)
	l.inner.Info("budget", allArgs...)
}

// Evolution logs an evolve/promote/rollback event from the Optimizer or
// Feedback Loop.
func (l *Logger) Evolution(event, agentID string, args ...any) {
	allArgs := append([]any{
		slog.String("agent", l.agent),
		slog.String("event", event),
		slog.String("target_agent_id", agentID),
	}, args...)
	l.inner.Info("evolution", allArgs...)
}

// AgentName returns the agent name associated with this logger.
func (l *Logger) AgentName() string {
	return l.agent
}
