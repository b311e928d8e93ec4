package store

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT,
	role TEXT DEFAULT 'user', -- admin, user, child
	platform TEXT,
	trust_level TEXT DEFAULT 'trusted', -- admin, trusted, guest, restricted, blocked (coarse admission gate)
	may_install_software INTEGER DEFAULT 0,
	may_execute_commands INTEGER DEFAULT 1,
	may_use_browser INTEGER DEFAULT 1,
	requires_admin_approval INTEGER DEFAULT 0,
	daily_token_budget INTEGER DEFAULT 0, -- 0 = unlimited
	tokens_consumed_today INTEGER DEFAULT 0,
	budget_reset_date TEXT DEFAULT '',
	metadata TEXT,
	first_seen DATETIME DEFAULT CURRENT_TIMESTAMP,
	last_seen DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- (channel, external_identifier) -> user, so one user can be reached from
-- several channels (spec: cross-channel identity linking).
CREATE TABLE IF NOT EXISTS user_identities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	channel TEXT NOT NULL,
	external_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY(user_id) REFERENCES users(id),
	UNIQUE(channel, external_id)
);
CREATE INDEX IF NOT EXISTS idx_user_identities_user ON user_identities(user_id);

-- Queue of tool calls that a capability-restricted user requested but
-- can't run unattended; an admin resolves each row via manage_approvals.
CREATE TABLE IF NOT EXISTS approval_queue (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	tool_name TEXT NOT NULL,
	args_json TEXT,
	status TEXT NOT NULL DEFAULT 'pending', -- pending, approved, denied
	requested_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	resolved_at DATETIME,
	resolved_by TEXT,
	FOREIGN KEY(user_id) REFERENCES users(id)
);
CREATE INDEX IF NOT EXISTS idx_approval_queue_status ON approval_queue(status);

CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	model TEXT,
	sender_id TEXT NOT NULL,
	channel TEXT NOT NULL,
	thread_id TEXT NOT NULL,
	tool_calls TEXT,
	tool_results TEXT,
	tool_call_id TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS config (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tools_registry (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	binary_path TEXT NOT NULL,
	description TEXT,
	input_schema TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	status TEXT DEFAULT 'active',
	last_success DATETIME,
	failure_count INTEGER DEFAULT 0,
	last_error TEXT
);

CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at);

CREATE TABLE IF NOT EXISTS jobs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT,
	status TEXT NOT NULL DEFAULT 'open', -- open, blocked, closed
	blocked_reason TEXT,
	snoozed_until DATETIME, -- NULL = not snoozed, otherwise hide until this time
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY(user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS facts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '', -- Instruction, Preference, Fact, Context
	confidence REAL DEFAULT 1.0,
	source TEXT DEFAULT '',
	expires_at DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY(user_id) REFERENCES users(id),
	UNIQUE(user_id, category, key)
);

CREATE TABLE IF NOT EXISTS scheduled_plans (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	description TEXT NOT NULL,
	action_type TEXT NOT NULL,
	action_payload TEXT,
	schedule_type TEXT NOT NULL,
	schedule_value TEXT,
	next_run_at DATETIME,
	last_run_at DATETIME,
	locked_until DATETIME,
	status TEXT DEFAULT 'active',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY(user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS memory_chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	content TEXT NOT NULL,
	embedding BLOB, -- JSON string or raw bytes? SQLite usually stores BLOB as raw. We will store JSON string of []float32 for portability or raw bytes? Pure Go impl -> JSON is easier to debug, BLOB is smaller. Let's use JSON string for now to avoid endianness issues. Or just BLOB.
	source TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);


CREATE TABLE IF NOT EXISTS system_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
	level TEXT NOT NULL,
	component TEXT NOT NULL,
	message TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON system_logs(timestamp);
CREATE INDEX IF NOT EXISTS idx_logs_level ON system_logs(level);
CREATE INDEX IF NOT EXISTS idx_logs_component ON system_logs(component);

CREATE TABLE IF NOT EXISTS context_documents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL UNIQUE,
	content TEXT NOT NULL,
	description TEXT,
	tags TEXT DEFAULT '', -- comma-separated, scored against tool_calls for hot-index injection
	source TEXT DEFAULT 'api', -- user, seed, api
	is_active BOOLEAN DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_context_docs_active ON context_documents(is_active);

-- Usage log backing hot-index tag-overlap scoring: which tools have been
-- called recently, so knowledge entries whose tags match get surfaced.
CREATE TABLE IF NOT EXISTS tool_calls (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT,
	tool_name TEXT NOT NULL,
	called_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_tool_calls_called_at ON tool_calls(called_at);
CREATE INDEX IF NOT EXISTS idx_tool_calls_name ON tool_calls(tool_name);

-- One row per scheduled-plan delivery attempt (spec: delivery_attempts),
-- distinct from the plan's own last-status columns, so a retried/late
-- delivery keeps its full history instead of being overwritten in place.
CREATE TABLE IF NOT EXISTS delivery_attempts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	plan_id INTEGER NOT NULL,
	channel TEXT,
	status TEXT NOT NULL, -- Completed, Failed, Missed
	reason TEXT,
	attempted_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY(plan_id) REFERENCES scheduled_plans(id)
);
CREATE INDEX IF NOT EXISTS idx_delivery_attempts_plan ON delivery_attempts(plan_id);

-- Acknowledgement of a fired reminder (e.g. user replied "done"/"snooze"),
-- kept separate from scheduled_plans so one plan can accumulate a history
-- of acks across its recurring fires.
CREATE TABLE IF NOT EXISTS reminder_acks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	plan_id INTEGER NOT NULL,
	user_id TEXT NOT NULL,
	acked_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	response TEXT,
	FOREIGN KEY(plan_id) REFERENCES scheduled_plans(id),
	FOREIGN KEY(user_id) REFERENCES users(id)
);
CREATE INDEX IF NOT EXISTS idx_reminder_acks_plan ON reminder_acks(plan_id);

-- One row per distinct session key seen, so sessions.list can answer
-- "what sessions exist for this user" without scanning all of messages.
CREATE TABLE IF NOT EXISTS sessions (
	session_key TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	channel TEXT NOT NULL,
	context_suffix TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	last_active_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY(user_id) REFERENCES users(id)
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

CREATE TABLE IF NOT EXISTS submind_sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	mode TEXT NOT NULL,
	task TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'running', -- running, completed, failed, suspended
	messages TEXT NOT NULL, -- JSON array of core.Message
	turns INTEGER NOT NULL DEFAULT 0,
	result_output TEXT,
	result_error TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY(user_id) REFERENCES users(id)
);
CREATE INDEX IF NOT EXISTS idx_submind_sessions_user_status ON submind_sessions(user_id, status);

CREATE TABLE IF NOT EXISTS self_modifications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	file_paths TEXT NOT NULL,
	change_type TEXT NOT NULL,
	description TEXT NOT NULL,
	context TEXT
);
CREATE INDEX IF NOT EXISTS idx_self_modifications_created_at ON self_modifications(created_at);

CREATE TABLE IF NOT EXISTS trusted_identities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	type TEXT NOT NULL, -- email, phone, api_key
	value TEXT NOT NULL,
	notes TEXT,
	added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(type, value)
);
CREATE INDEX IF NOT EXISTS idx_trusted_identities_type_value ON trusted_identities(type, value);
`
