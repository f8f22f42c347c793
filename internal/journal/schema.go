package journal

// Schema creates the journal tables. Money is stored as decimal text.
const Schema = `
CREATE TABLE IF NOT EXISTS settlements (
	trade_id      TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	symbol        TEXT NOT NULL,
	position_type TEXT NOT NULL,
	units         TEXT NOT NULL,
	entry_price   TEXT NOT NULL,
	exit_price    TEXT NOT NULL,
	gross_pnl     TEXT NOT NULL,
	commission    TEXT NOT NULL,
	net_pnl       TEXT NOT NULL,
	reason        TEXT NOT NULL,
	opened_at     DATETIME NOT NULL,
	closed_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_settlements_user ON settlements(user_id, closed_at);

CREATE TABLE IF NOT EXISTS equity (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id        TEXT NOT NULL,
	time           DATETIME NOT NULL,
	cash           TEXT NOT NULL,
	equity         TEXT NOT NULL,
	realized_pnl   TEXT NOT NULL,
	unrealized_pnl TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_user ON equity(user_id, time);
`
