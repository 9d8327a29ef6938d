package sqlstore

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	role TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS waf_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	client_ip TEXT NOT NULL,
	method TEXT NOT NULL,
	url TEXT NOT NULL,
	verdict TEXT NOT NULL,
	reason TEXT,
	score REAL,
	attack_type TEXT,
	upstream_status INTEGER
);

CREATE TABLE IF NOT EXISTS alerts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	waf_log_id INTEGER NOT NULL REFERENCES waf_logs(id),
	severity TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'open',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS restrictions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	type TEXT NOT NULL,
	value TEXT NOT NULL,
	reason TEXT,
	created_at DATETIME NOT NULL,
	UNIQUE(type, value)
);

CREATE TABLE IF NOT EXISTS custom_signatures (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	expression TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS models (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	version TEXT NOT NULL,
	confidence REAL NOT NULL,
	trained_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS patching_reports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	waf_log_id INTEGER NOT NULL REFERENCES waf_logs(id),
	report_json TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS suspicious_user_profiles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	identifier TEXT NOT NULL,
	notes TEXT,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS whitelist_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	pattern TEXT NOT NULL,
	reason TEXT,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sys_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	message TEXT NOT NULL,
	restriction_id INTEGER,
	model_id INTEGER,
	signature_id INTEGER,
	user_id INTEGER,
	suspicious_user_id INTEGER,
	report_id INTEGER,
	whitelist_id INTEGER
);
`
