package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// AlertRecord is one journaled alert line.
type AlertRecord struct {
	ID        string
	AccountID string
	RawLine   string
	Outcome   string
	Detail    string
	CreatedAt time.Time
}

// OrderRecord is one journaled order submission.
type OrderRecord struct {
	ID              string
	AlertID         string
	AccountID       string
	Symbol          string
	Side            string
	Qty             float64
	ReduceOnly      bool
	Leverage        int
	ExchangeOrderID string
	CreatedAt       time.Time
}

// InsertAlert records a received alert line before execution.
func (d *Database) InsertAlert(ctx context.Context, id, accountID, rawLine string) error {
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO alerts (id, account_id, raw_line) VALUES (?, ?, ?)
	`, id, accountID, rawLine)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// SetAlertOutcome records the terminal outcome of an alert.
func (d *Database) SetAlertOutcome(ctx context.Context, id, outcome, detail string) error {
	_, err := d.conn.ExecContext(ctx, `
		UPDATE alerts SET outcome = ?, detail = ? WHERE id = ?
	`, outcome, detail, id)
	if err != nil {
		return fmt.Errorf("update alert outcome: %w", err)
	}
	return nil
}

// InsertOrder records a submitted order.
func (d *Database) InsertOrder(ctx context.Context, o OrderRecord) error {
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO orders (id, alert_id, account_id, symbol, side, qty, reduce_only, leverage, exchange_order_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.AlertID, o.AccountID, o.Symbol, o.Side, o.Qty, boolToInt(o.ReduceOnly), o.Leverage, o.ExchangeOrderID)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// RecentOrders returns the newest orders, most recent first.
func (d *Database) RecentOrders(ctx context.Context, limit int) ([]OrderRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, COALESCE(alert_id, ''), account_id, symbol, side, qty, reduce_only, leverage, COALESCE(exchange_order_id, ''), created_at
		FROM orders ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var o OrderRecord
		var reduceOnly int
		if err := rows.Scan(&o.ID, &o.AlertID, &o.AccountID, &o.Symbol, &o.Side, &o.Qty, &reduceOnly, &o.Leverage, &o.ExchangeOrderID, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.ReduceOnly = reduceOnly != 0
		out = append(out, o)
	}
	return out, rows.Err()
}

// RecentAlerts returns the newest alerts, most recent first.
func (d *Database) RecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, account_id, raw_line, outcome, COALESCE(detail, ''), created_at
		FROM alerts ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []AlertRecord
	for rows.Next() {
		var a AlertRecord
		if err := rows.Scan(&a.ID, &a.AccountID, &a.RawLine, &a.Outcome, &a.Detail, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetSetting reads a persisted setting.
func (d *Database) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := d.conn.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

// SetSetting upserts a persisted setting.
func (d *Database) SetSetting(ctx context.Context, key, value string) error {
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
