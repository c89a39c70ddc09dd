package sqlstore

// Decimals are stored as TEXT and timestamps as unix nanoseconds (UTC) so that
// both dialects share every query.

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS ledger (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts INTEGER NOT NULL,
		cash TEXT NOT NULL,
		equity TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_ts ON ledger(ts)`,
	`CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts INTEGER NOT NULL,
		action TEXT NOT NULL,
		symbol TEXT NOT NULL,
		qty TEXT NOT NULL,
		price TEXT NOT NULL,
		order_type TEXT NOT NULL,
		tag TEXT NOT NULL DEFAULT '',
		details TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(ts)`,
	`CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		kind TEXT NOT NULL,
		qty TEXT NOT NULL,
		avg_price TEXT NOT NULL,
		UNIQUE(symbol, kind)
	)`,
	`CREATE TABLE IF NOT EXISTS option_positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		direction TEXT NOT NULL,
		symbol TEXT NOT NULL,
		legs TEXT NOT NULL,
		expiry TEXT NOT NULL,
		contracts INTEGER NOT NULL,
		entry_credit TEXT NOT NULL,
		collateral TEXT NOT NULL,
		status TEXT NOT NULL,
		opened_at INTEGER NOT NULL,
		closed_at INTEGER,
		close_reason TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_option_positions_status ON option_positions(status)`,
	`CREATE TABLE IF NOT EXISTS risk_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		risk_amount TEXT NOT NULL,
		direction TEXT NOT NULL,
		option_id INTEGER NOT NULL DEFAULT 0,
		opened_at INTEGER NOT NULL,
		closed_at INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS control_flags (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS ledger (
		id BIGSERIAL PRIMARY KEY,
		ts BIGINT NOT NULL,
		cash TEXT NOT NULL,
		equity TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_ts ON ledger(ts)`,
	`CREATE TABLE IF NOT EXISTS trades (
		id BIGSERIAL PRIMARY KEY,
		ts BIGINT NOT NULL,
		action TEXT NOT NULL,
		symbol TEXT NOT NULL,
		qty TEXT NOT NULL,
		price TEXT NOT NULL,
		order_type TEXT NOT NULL,
		tag TEXT NOT NULL DEFAULT '',
		details TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(ts)`,
	`CREATE TABLE IF NOT EXISTS positions (
		id BIGSERIAL PRIMARY KEY,
		symbol TEXT NOT NULL,
		kind TEXT NOT NULL,
		qty TEXT NOT NULL,
		avg_price TEXT NOT NULL,
		UNIQUE(symbol, kind)
	)`,
	`CREATE TABLE IF NOT EXISTS option_positions (
		id BIGSERIAL PRIMARY KEY,
		kind TEXT NOT NULL,
		direction TEXT NOT NULL,
		symbol TEXT NOT NULL,
		legs TEXT NOT NULL,
		expiry TEXT NOT NULL,
		contracts INTEGER NOT NULL,
		entry_credit TEXT NOT NULL,
		collateral TEXT NOT NULL,
		status TEXT NOT NULL,
		opened_at BIGINT NOT NULL,
		closed_at BIGINT,
		close_reason TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_option_positions_status ON option_positions(status)`,
	`CREATE TABLE IF NOT EXISTS risk_items (
		id BIGSERIAL PRIMARY KEY,
		kind TEXT NOT NULL,
		risk_amount TEXT NOT NULL,
		direction TEXT NOT NULL,
		option_id BIGINT NOT NULL DEFAULT 0,
		opened_at BIGINT NOT NULL,
		closed_at BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS control_flags (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}
