// Package ledger tracks cost against daily and monthly budget windows,
// persists every routing outcome, and predicts thinking-token budgets from
// historical usage. It is the sole owner of mutation for outcome, feedback,
// and budget rows; the Optimizer and Expander own their own in-memory
// entities. The Optimizer's variants and promotion history are written
// through the Ledger; the Expander's gaps and suggestions are not persisted.
// Storage is SQLite in WAL mode behind a single mutex.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/overhuman/orchestrator/internal/classify"
	"github.com/overhuman/orchestrator/internal/orcherr"
)

// PrecheckResult is the advisory verdict returned before an invocation.
type PrecheckResult string

const (
	PrecheckOK      PrecheckResult = "ok"
	PrecheckWarning PrecheckResult = "warning"
	PrecheckBlock   PrecheckResult = "block"
)

// Config controls budget limits, alert thresholds, and timezone.
type Config struct {
	DailyLimit      float64
	MonthlyLimit    float64
	PerRequestLimit float64
	DailyWarning    float64
	MonthlyWarning  float64
	Timezone        *time.Location
}

// DefaultConfig returns the stock warning thresholds. Limits default to 0,
// meaning "no limit configured".
func DefaultConfig() Config {
	return Config{DailyWarning: 0.75, MonthlyWarning: 0.80, Timezone: time.UTC}
}

// Ledger is the single mutable-shared-state component of the runtime. All
// writers serialize through it; a sync.Mutex wraps the SQLite handle.
type Ledger struct {
	mu  sync.Mutex
	db  *sql.DB
	cfg Config
}

// Open creates or opens a SQLite-backed Ledger. Use ":memory:" for an
// in-memory database.
func Open(path string, cfg Config) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open sqlite %q: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: set WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: create schema: %w", err)
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	return &Ledger{db: db, cfg: cfg}, nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) dayKey(now time.Time) string {
	return now.In(l.cfg.Timezone).Format("2006-01-02")
}

func (l *Ledger) monthKey(now time.Time) string {
	return now.In(l.cfg.Timezone).Format("2006-01")
}

// maybeReset is the idempotent check-on-read rollover: each window's
// consumed total resets exactly once per period, keyed off a day/month
// string rather than a scheduled timer.
func (l *Ledger) maybeReset(ctx context.Context, scope, windowKey string, limit float64) error {
	var existingKey string
	err := l.db.QueryRowContext(ctx, `SELECT window_key FROM budget_tracking WHERE scope = ?`, scope).Scan(&existingKey)
	if err == sql.ErrNoRows {
		_, err = l.db.ExecContext(ctx, `
			INSERT INTO budget_tracking (scope, limit_amt, consumed, window_key, reset_at)
			VALUES (?, ?, 0, ?, ?)`, scope, limit, windowKey, time.Now().UTC().Format(time.RFC3339))
		return err
	}
	if err != nil {
		return err
	}
	if existingKey != windowKey {
		_, err = l.db.ExecContext(ctx, `
			UPDATE budget_tracking SET consumed = 0, window_key = ?, limit_amt = ?, reset_at = ?
			WHERE scope = ?`, windowKey, limit, time.Now().UTC().Format(time.RFC3339), scope)
		return err
	}
	// Keep the configured limit current even without a rollover.
	_, err = l.db.ExecContext(ctx, `UPDATE budget_tracking SET limit_amt = ? WHERE scope = ?`, limit, scope)
	return err
}

func (l *Ledger) windowSpent(ctx context.Context, scope string) (spent, limit float64, err error) {
	err = l.db.QueryRowContext(ctx, `SELECT consumed, limit_amt FROM budget_tracking WHERE scope = ?`, scope).Scan(&spent, &limit)
	return
}

// Precheck is the advisory budget check run before each invocation. A
// warning may be proceeded past; a block may not.
func (l *Ledger) Precheck(ctx context.Context, estimatedCost float64) (PrecheckResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if err := l.maybeReset(ctx, "daily", l.dayKey(now), l.cfg.DailyLimit); err != nil {
		return "", err
	}
	if err := l.maybeReset(ctx, "monthly", l.monthKey(now), l.cfg.MonthlyLimit); err != nil {
		return "", err
	}

	if l.cfg.PerRequestLimit > 0 && estimatedCost > l.cfg.PerRequestLimit {
		return PrecheckBlock, nil
	}

	dailySpent, dailyLimit, err := l.windowSpent(ctx, "daily")
	if err != nil {
		return "", err
	}
	monthlySpent, monthlyLimit, err := l.windowSpent(ctx, "monthly")
	if err != nil {
		return "", err
	}

	if dailyLimit > 0 && dailySpent+estimatedCost > dailyLimit {
		return PrecheckBlock, nil
	}
	if monthlyLimit > 0 && monthlySpent+estimatedCost > monthlyLimit {
		return PrecheckBlock, nil
	}

	warn := PrecheckOK
	if dailyLimit > 0 && dailySpent/dailyLimit >= l.cfg.DailyWarning {
		warn = PrecheckWarning
	}
	if monthlyLimit > 0 && monthlySpent/monthlyLimit >= l.cfg.MonthlyWarning {
		warn = PrecheckWarning
	}
	return warn, nil
}

// OutcomeInput is what the Tracker/Executor hand the Ledger after a task
// completes. RecordOutcome is idempotent by TaskID: duplicate writes are
// absorbed silently.
type OutcomeInput struct {
	TaskID          string
	Model           string
	AgentID         string
	VariantID       string
	TaskType        string
	Complexity      classify.Complexity
	Success         bool
	Quality         float64
	ActualCost      float64
	ActualLatencyMs int
	TokensIn        int
	TokensOut       int
	ThinkingTokens  int
	UsedFallback    bool
	Error           string
	UserRating      *int
}

// RecordOutcome persists one outcome, updates the relevant budget windows'
// consumed totals, and appends a cost_tracking row, all as a single
// transaction so the window totals stay equal to the sum of recorded costs
// under concurrent tasks.
func (l *Ledger) RecordOutcome(ctx context.Context, o OutcomeInput) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var exists int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM routing_outcomes WHERE task_id = ?`, o.TaskID).Scan(&exists); err != nil {
		return err
	}
	if exists > 0 {
		return nil // idempotent no-op on duplicate task id
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	var ratingVal any
	if o.UserRating != nil {
		ratingVal = *o.UserRating
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO routing_outcomes (
			task_id, model, agent_id, variant_id, task_type, complexity, success, quality,
			actual_cost, actual_latency_ms, tokens_in, tokens_out, thinking_tokens, used_fallback,
			error, user_rating, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		o.TaskID, o.Model, o.AgentID, o.VariantID, o.TaskType, string(o.Complexity), boolToInt(o.Success), o.Quality,
		o.ActualCost, o.ActualLatencyMs, o.TokensIn, o.TokensOut, o.ThinkingTokens, boolToInt(o.UsedFallback),
		o.Error, ratingVal, now.Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("ledger: insert outcome: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO cost_tracking (task_id, model, task_type, tokens_in, tokens_out, thinking_tokens, cost, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		o.TaskID, o.Model, o.TaskType, o.TokensIn, o.TokensOut, o.ThinkingTokens, o.ActualCost, now.Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("ledger: insert cost_tracking: %w", err)
	}

	if err := l.maybeResetTx(ctx, tx, "daily", l.dayKey(now), l.cfg.DailyLimit); err != nil {
		return err
	}
	if err := l.maybeResetTx(ctx, tx, "monthly", l.monthKey(now), l.cfg.MonthlyLimit); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE budget_tracking SET consumed = consumed + ? WHERE scope = 'daily'`, o.ActualCost); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE budget_tracking SET consumed = consumed + ? WHERE scope = 'monthly'`, o.ActualCost); err != nil {
		return err
	}

	if err := l.upsertModelPerformanceTx(ctx, tx, o); err != nil {
		return err
	}

	return tx.Commit()
}

func (l *Ledger) maybeResetTx(ctx context.Context, tx *sql.Tx, scope, windowKey string, limit float64) error {
	var existingKey string
	err := tx.QueryRowContext(ctx, `SELECT window_key FROM budget_tracking WHERE scope = ?`, scope).Scan(&existingKey)
	if err == sql.ErrNoRows {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO budget_tracking (scope, limit_amt, consumed, window_key, reset_at)
			VALUES (?, ?, 0, ?, ?)`, scope, limit, windowKey, time.Now().UTC().Format(time.RFC3339))
		return err
	}
	if err != nil {
		return err
	}
	if existingKey != windowKey {
		_, err = tx.ExecContext(ctx, `
			UPDATE budget_tracking SET consumed = 0, window_key = ?, reset_at = ?
			WHERE scope = ?`, windowKey, time.Now().UTC().Format(time.RFC3339), scope)
		return err
	}
	return nil
}

func (l *Ledger) upsertModelPerformanceTx(ctx context.Context, tx *sql.Tx, o OutcomeInput) error {
	var sampleSize int
	var successRate, avgQuality float64
	err := tx.QueryRowContext(ctx, `
		SELECT sample_size, success_rate, avg_quality FROM model_performance
		WHERE model = ? AND task_type = ? AND complexity = ?`,
		o.Model, o.TaskType, string(o.Complexity)).Scan(&sampleSize, &successRate, &avgQuality)

	successVal := 0.0
	if o.Success {
		successVal = 1.0
	}

	if err == sql.ErrNoRows {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO model_performance (model, task_type, complexity, sample_size, success_rate, avg_quality, updated_at)
			VALUES (?, ?, ?, 1, ?, ?, ?)`,
			o.Model, o.TaskType, string(o.Complexity), successVal, o.Quality, time.Now().UTC().Format(time.RFC3339))
		return err
	}
	if err != nil {
		return err
	}

	newSample := sampleSize + 1
	newSuccessRate := successRate + (successVal-successRate)/float64(newSample)
	newAvgQuality := avgQuality + (o.Quality-avgQuality)/float64(newSample)
	_, err = tx.ExecContext(ctx, `
		UPDATE model_performance SET sample_size = ?, success_rate = ?, avg_quality = ?, updated_at = ?
		WHERE model = ? AND task_type = ? AND complexity = ?`,
		newSample, newSuccessRate, newAvgQuality, time.Now().UTC().Format(time.RFC3339),
		o.Model, o.TaskType, string(o.Complexity))
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SuccessAndQuality implements router.HistoricalLookup by reading the
// materialized model_performance aggregation.
func (l *Ledger) SuccessAndQuality(model, taskType string, complexity classify.Complexity) (successRate, avgQuality float64, sampleSize int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	row := l.db.QueryRow(`
		SELECT sample_size, success_rate, avg_quality FROM model_performance
		WHERE model = ? AND task_type = ? AND complexity = ?`, model, taskType, string(complexity))
	if err := row.Scan(&sampleSize, &successRate, &avgQuality); err != nil {
		return 0, 0, 0
	}
	return successRate, avgQuality, sampleSize
}

// BudgetStatus summarizes both windows for the `budget`/`cost` control
// surface commands.
type BudgetStatus struct {
	DailySpent, DailyLimit     float64
	MonthlySpent, MonthlyLimit float64
}

// Status returns the current budget window state.
func (l *Ledger) Status(ctx context.Context) (BudgetStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if err := l.maybeReset(ctx, "daily", l.dayKey(now), l.cfg.DailyLimit); err != nil {
		return BudgetStatus{}, err
	}
	if err := l.maybeReset(ctx, "monthly", l.monthKey(now), l.cfg.MonthlyLimit); err != nil {
		return BudgetStatus{}, err
	}
	var s BudgetStatus
	if err := l.db.QueryRowContext(ctx, `SELECT consumed, limit_amt FROM budget_tracking WHERE scope='daily'`).Scan(&s.DailySpent, &s.DailyLimit); err != nil {
		return BudgetStatus{}, err
	}
	if err := l.db.QueryRowContext(ctx, `SELECT consumed, limit_amt FROM budget_tracking WHERE scope='monthly'`).Scan(&s.MonthlySpent, &s.MonthlyLimit); err != nil {
		return BudgetStatus{}, err
	}
	return s, nil
}

// SetLimits updates the configured budget limits. Takes effect on the next
// Precheck/RecordOutcome call since limits are applied lazily via maybeReset.
func (l *Ledger) SetLimits(daily, monthly, perRequest float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if daily >= 0 {
		l.cfg.DailyLimit = daily
	}
	if monthly >= 0 {
		l.cfg.MonthlyLimit = monthly
	}
	if perRequest >= 0 {
		l.cfg.PerRequestLimit = perRequest
	}
}

// ErrWriteLockTimeout is the internal error for a Ledger write that could not
// take the lock within 5 seconds. No Ledger method returns it: writes wait on
// Ledger.mu without a timeout.
var ErrWriteLockTimeout = &orcherr.InvariantViolation{Invariant: "ledger-write-lock", Detail: "exceeded 5s write lock timeout"}
