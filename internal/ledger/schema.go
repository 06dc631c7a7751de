package ledger

// schema creates every runtime table. The Ledger itself only ever writes to
// the outcome/feedback/budget-owning tables (cost_tracking, budget_tracking,
// routing_outcomes, fallback_events, rate_limit_events, implicit_feedback);
// the remaining tables physically live in the same database file (so a
// single export dumps the whole runtime) but are logically owned and written
// by the Optimizer (prompt_variants, prompt_history) and the Feedback Loop
// (evolution_reports, evolution_state) through their own Ledger-mediated
// calls. capability_gaps and skill_suggestions are created but never
// written: the Expander keeps its gaps and suggestions in memory only.
const schema = `
CREATE TABLE IF NOT EXISTS routing_decisions (
	id             TEXT PRIMARY KEY,
	task_type      TEXT NOT NULL,
	complexity     TEXT NOT NULL,
	chosen_model   TEXT NOT NULL,
	confidence     REAL NOT NULL,
	estimated_cost REAL NOT NULL,
	cache_key      TEXT NOT NULL,
	created_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS routing_outcomes (
	task_id         TEXT PRIMARY KEY,
	model           TEXT NOT NULL,
	agent_id        TEXT NOT NULL,
	variant_id      TEXT NOT NULL,
	task_type       TEXT NOT NULL,
	complexity      TEXT NOT NULL,
	success         INTEGER NOT NULL,
	quality         REAL NOT NULL,
	actual_cost     REAL NOT NULL,
	actual_latency_ms INTEGER NOT NULL,
	tokens_in       INTEGER NOT NULL,
	tokens_out      INTEGER NOT NULL,
	thinking_tokens INTEGER NOT NULL,
	used_fallback   INTEGER NOT NULL,
	error           TEXT,
	user_rating     INTEGER,
	created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outcomes_agent_time ON routing_outcomes(agent_id, created_at DESC);

CREATE TABLE IF NOT EXISTS model_performance (
	model        TEXT NOT NULL,
	task_type    TEXT NOT NULL,
	complexity   TEXT NOT NULL,
	sample_size  INTEGER NOT NULL,
	success_rate REAL NOT NULL,
	avg_quality  REAL NOT NULL,
	updated_at   TEXT NOT NULL,
	PRIMARY KEY (model, task_type, complexity)
);

CREATE TABLE IF NOT EXISTS cost_tracking (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id         TEXT NOT NULL,
	model           TEXT NOT NULL,
	task_type       TEXT NOT NULL,
	tokens_in       INTEGER NOT NULL,
	tokens_out      INTEGER NOT NULL,
	thinking_tokens INTEGER NOT NULL,
	cost            REAL NOT NULL,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS budget_tracking (
	scope      TEXT PRIMARY KEY,
	limit_amt  REAL NOT NULL,
	consumed   REAL NOT NULL,
	window_key TEXT NOT NULL,
	reset_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS fallback_events (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id       TEXT NOT NULL,
	from_model    TEXT NOT NULL,
	to_model      TEXT NOT NULL,
	reason        TEXT NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rate_limit_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	model      TEXT NOT NULL,
	reset_at   TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS prompt_variants (
	id                TEXT PRIMARY KEY,
	agent_id          TEXT NOT NULL,
	version           INTEGER NOT NULL,
	status            TEXT NOT NULL,
	trial_count       INTEGER NOT NULL,
	success_count     INTEGER NOT NULL,
	parent_variant_id TEXT,
	created_at        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_variants_agent_status ON prompt_variants(agent_id, status);

CREATE TABLE IF NOT EXISTS prompt_history (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id            TEXT NOT NULL,
	promoted_variant_id TEXT NOT NULL,
	demoted_variant_id  TEXT NOT NULL,
	created_at          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS capability_gaps (
	id             TEXT PRIMARY KEY,
	category       TEXT NOT NULL,
	description    TEXT NOT NULL,
	failure_count  INTEGER NOT NULL,
	severity       TEXT NOT NULL,
	frequency_per_day REAL NOT NULL,
	status         TEXT NOT NULL,
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_gaps_status_severity ON capability_gaps(status, severity DESC);

CREATE TABLE IF NOT EXISTS skill_suggestions (
	id          TEXT PRIMARY KEY,
	gap_id      TEXT NOT NULL,
	description TEXT NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS implicit_feedback (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id    TEXT NOT NULL,
	agent_id   TEXT NOT NULL,
	rating     INTEGER NOT NULL,
	kind       TEXT NOT NULL,
	sub_kind   TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_feedback_agent_time ON implicit_feedback(agent_id, created_at DESC);

CREATE TABLE IF NOT EXISTS evolution_reports (
	id         TEXT PRIMARY KEY,
	period     TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS evolution_state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
