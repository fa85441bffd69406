package db

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    account_id TEXT NOT NULL,
    raw_line TEXT NOT NULL,
    outcome TEXT NOT NULL DEFAULT 'received',
    detail TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS orders (
    id TEXT PRIMARY KEY,
    alert_id TEXT,
    account_id TEXT NOT NULL,
    symbol TEXT NOT NULL,
    side TEXT NOT NULL,
    qty REAL NOT NULL,
    reduce_only INTEGER NOT NULL DEFAULT 0,
    leverage INTEGER NOT NULL DEFAULT 0,
    exchange_order_id TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_alerts_account ON alerts(account_id, created_at);
CREATE INDEX IF NOT EXISTS idx_orders_account ON orders(account_id, created_at);
`
