package store

// schemaVersion is the current schema_info version this package maintains.
const schemaVersion = 1

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_info (
	version INTEGER PRIMARY KEY,
	applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	description TEXT
);

CREATE TABLE IF NOT EXISTS platforms (
	id INTEGER PRIMARY KEY,
	name TEXT UNIQUE NOT NULL,
	rate_limit_requests_per_second REAL DEFAULT 2.0,
	rate_limit_burst_capacity INTEGER DEFAULT 5,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS streams (
	url TEXT PRIMARY KEY,
	alias TEXT NOT NULL,
	platform_id INTEGER,
	handle TEXT,
	category TEXT DEFAULT 'N/A',
	added_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	last_modified TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	user_notes TEXT,
	is_active BOOLEAN DEFAULT TRUE,
	FOREIGN KEY (platform_id) REFERENCES platforms(id)
);

CREATE TABLE IF NOT EXISTS stream_checks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	stream_url TEXT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('live', 'offline', 'error', 'unknown')),
	viewer_count INTEGER,
	title TEXT,
	category TEXT,
	checked_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	response_time_ms INTEGER,
	error_message TEXT,
	FOREIGN KEY (stream_url) REFERENCES streams(url) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS app_config (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	data_type TEXT NOT NULL CHECK (data_type IN ('string', 'integer', 'float', 'boolean', 'json')),
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_stream_checks_url_time ON stream_checks(stream_url, checked_at DESC);
CREATE INDEX IF NOT EXISTS idx_stream_checks_status ON stream_checks(status);
CREATE INDEX IF NOT EXISTS idx_stream_checks_time ON stream_checks(checked_at);
CREATE INDEX IF NOT EXISTS idx_streams_platform ON streams(platform_id);
CREATE INDEX IF NOT EXISTS idx_streams_active ON streams(is_active);
CREATE INDEX IF NOT EXISTS idx_streams_alias ON streams(alias);
`

const connectionPragmas = `
PRAGMA foreign_keys = ON;
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA temp_store = MEMORY;
PRAGMA cache_size = -64000;
`
