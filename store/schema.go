package store

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	name TEXT PRIMARY KEY,
	type TEXT NOT NULL CHECK (type IN ('MASTER','SLAVE')),
	path TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	symbol_map TEXT NOT NULL DEFAULT '{}',
	suffix TEXT NOT NULL DEFAULT '',
	slippage_tolerance INTEGER NOT NULL DEFAULT 50
);

CREATE TABLE IF NOT EXISTS mappings (
	id TEXT PRIMARY KEY,
	master_ticket INTEGER NOT NULL,
	slave_name TEXT NOT NULL,
	slave_ticket INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	direction TEXT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('OPEN','CLOSED')),
	open_time DATETIME NOT NULL,
	close_time DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_mappings_open
	ON mappings(master_ticket, slave_name) WHERE status = 'OPEN';

CREATE INDEX IF NOT EXISTS idx_mappings_slave ON mappings(slave_name, status);
`
