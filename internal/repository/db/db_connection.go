package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens/creates a SQLite DB file and ensures tables exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// one writer; concurrent evaluation passes queue on the pool
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Fail fast if the DB cannot be reached
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

const sqliteDriverName = "sqlite"

// Value columns (threshold, current, last processed) hold JSON text:
// null, a number or a string.
const schemaSubscriptions = `
CREATE TABLE IF NOT EXISTS subscriptions (
    owner TEXT NOT NULL,
    subscription_id TEXT NOT NULL,
    device_id TEXT NOT NULL,
    parameter_path TEXT NOT NULL,
    condition_type TEXT NOT NULL,
    threshold_value TEXT,
    tolerance_fraction REAL,
    cooldown_ms INTEGER NOT NULL DEFAULT 30000,
    commands TEXT NOT NULL DEFAULT '[]',
    notification_method TEXT NOT NULL,
    enabled BOOLEAN NOT NULL,
    last_processed_value TEXT,
    last_triggered_at TIMESTAMP,
    trigger_count INTEGER NOT NULL DEFAULT 0,
    auto_disabled_reason TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (owner, subscription_id)
);
`

const indexSubscriptionsDevice = `
CREATE INDEX IF NOT EXISTS idx_subscriptions_device ON subscriptions (device_id, enabled);
`

const schemaNotifications = `
CREATE TABLE IF NOT EXISTS notifications (
    id TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    subscription_id TEXT NOT NULL,
    device_id TEXT NOT NULL,
    parameter_path TEXT NOT NULL,
    current_value TEXT,
    condition_type TEXT NOT NULL,
    threshold_value TEXT,
    message_class TEXT NOT NULL,
    message TEXT NOT NULL,
    method TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    read BOOLEAN NOT NULL DEFAULT 0
);
`

const indexNotificationsOwner = `
CREATE INDEX IF NOT EXISTS idx_notifications_owner ON notifications (owner, created_at);
`

const schemaDeviceIOState = `
CREATE TABLE IF NOT EXISTS device_io_state (
    device_id TEXT NOT NULL,
    param TEXT NOT NULL,
    state INTEGER NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (device_id, param)
);
`

const schemaAlarms = `
CREATE TABLE IF NOT EXISTS alarms (
    owner TEXT NOT NULL,
    alarm_id TEXT NOT NULL,
    device_id TEXT NOT NULL,
    variable_name TEXT NOT NULL,
    condition TEXT NOT NULL,
    threshold REAL NOT NULL,
    enabled BOOLEAN NOT NULL,
    last_triggered_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (owner, alarm_id)
);
`

const indexAlarmsDevice = `
CREATE INDEX IF NOT EXISTS idx_alarms_device ON alarms (device_id, enabled);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaSubscriptions,
		indexSubscriptionsDevice,
		schemaNotifications,
		indexNotificationsOwner,
		schemaDeviceIOState,
		schemaAlarms,
		indexAlarmsDevice,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
