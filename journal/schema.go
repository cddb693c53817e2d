package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	time DATETIME NOT NULL,
	epic TEXT NOT NULL,
	direction TEXT NOT NULL,
	size REAL NOT NULL,
	currency TEXT NOT NULL,
	entry_level REAL NOT NULL,
	exit_level REAL,
	move_points REAL,
	tp_points REAL NOT NULL,
	sl_points REAL NOT NULL,
	pnl REAL NOT NULL,
	balance_after REAL NOT NULL,
	notes TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_time ON trades(time);
`
