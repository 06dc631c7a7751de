package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// DecisionRecord is the persisted form of a routing decision.
type DecisionRecord struct {
	ID            string
	TaskType      string
	Complexity    string
	ChosenModel   string
	Confidence    float64
	EstimatedCost float64
	CacheKey      string
}

// RecordDecision persists one routing decision row.
func (l *Ledger) RecordDecision(ctx context.Context, d DecisionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO routing_decisions (id, task_type, complexity, chosen_model, confidence, estimated_cost, cache_key, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		d.ID, d.TaskType, d.Complexity, d.ChosenModel, d.Confidence, d.EstimatedCost, d.CacheKey,
		time.Now().UTC().Format(time.RFC3339))
	return err
}

// RecordFallbackEvent persists one chain-walk event: the task abandoned
// fromModel and completed (or kept failing) on toModel.
func (l *Ledger) RecordFallbackEvent(ctx context.Context, taskID, fromModel, toModel, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO fallback_events (task_id, from_model, to_model, reason, created_at)
		VALUES (?,?,?,?,?)`,
		taskID, fromModel, toModel, reason, time.Now().UTC().Format(time.RFC3339))
	return err
}

// RecordRateLimitEvent persists one provider rate-limit observation.
func (l *Ledger) RecordRateLimitEvent(ctx context.Context, model string, resetAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO rate_limit_events (model, reset_at, created_at)
		VALUES (?,?,?)`,
		model, resetAt.UTC().Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339))
	return err
}

// RecordImplicitFeedback persists one implicit signal row alongside the
// Tracker's in-process mirror.
func (l *Ledger) RecordImplicitFeedback(ctx context.Context, taskID, agentID string, rating int, subKind string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO implicit_feedback (task_id, agent_id, rating, kind, sub_kind, created_at)
		VALUES (?,?,?,?,?,?)`,
		taskID, agentID, rating, "implicit", subKind, time.Now().UTC().Format(time.RFC3339))
	return err
}

// VariantRecord is the persisted form of a prompt variant's durable fields.
// The prompt bodies stay with the agent catalog; the ledger keeps the
// lifecycle and counters so an export captures evolution state.
type VariantRecord struct {
	ID              string
	AgentID         string
	Version         int
	Status          string
	TrialCount      int
	SuccessCount    int
	ParentVariantID string
	CreatedAt       time.Time
}

// UpsertVariant writes or refreshes one variant's durable row.
func (l *Ledger) UpsertVariant(ctx context.Context, v VariantRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO prompt_variants (id, agent_id, version, status, trial_count, success_count, parent_variant_id, created_at)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status,
			trial_count = excluded.trial_count, success_count = excluded.success_count`,
		v.ID, v.AgentID, v.Version, v.Status, v.TrialCount, v.SuccessCount, v.ParentVariantID,
		v.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

// AppendPromotion persists one promotion history row.
func (l *Ledger) AppendPromotion(ctx context.Context, agentID, promotedID, demotedID string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO prompt_history (agent_id, promoted_variant_id, demoted_variant_id, created_at)
		VALUES (?,?,?,?)`,
		agentID, promotedID, demotedID, at.UTC().Format(time.RFC3339))
	return err
}

// SaveReport persists one evolution report as its serialized body.
func (l *Ledger) SaveReport(ctx context.Context, id, period, body string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO evolution_reports (id, period, body, created_at)
		VALUES (?,?,?,?)`,
		id, period, body, time.Now().UTC().Format(time.RFC3339))
	return err
}

// SetState writes one evolution_state key. Keys are runtime bookkeeping such
// as the last report time.
func (l *Ledger) SetState(ctx context.Context, key, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO evolution_state (key, value) VALUES (?,?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// GetState reads one evolution_state key; ok is false when unset.
func (l *Ledger) GetState(ctx context.Context, key string) (value string, ok bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	err = l.db.QueryRowContext(ctx, `SELECT value FROM evolution_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}
