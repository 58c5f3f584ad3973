package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

type IOStateSQLite struct {
	db *sql.DB
}

func NewIOStateSQLite(db *sql.DB) *IOStateSQLite { return &IOStateSQLite{db: db} }

const (
	loadIOStateSQL = `SELECT param, state FROM device_io_state WHERE device_id = ?`

	upsertIOStateSQL = `
		INSERT INTO device_io_state (device_id, param, state, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(device_id, param) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at
	`
)

// Load returns the stored levels of a device; an unknown device yields an
// empty map.
func (r *IOStateSQLite) Load(ctx context.Context, deviceID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, loadIOStateSQL, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var (
			param string
			state int
		)
		if err := rows.Scan(&param, &state); err != nil {
			return nil, err
		}
		out[param] = state
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Store upserts the given levels in one transaction. Params not in states
// keep their stored level.
func (r *IOStateSQLite) Store(ctx context.Context, deviceID string, states map[string]int) error {
	params := make([]string, 0, len(states))
	for p := range states {
		params = append(params, p)
	}
	sort.Strings(params)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin io state transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, p := range params {
		if _, err := tx.ExecContext(ctx, upsertIOStateSQL, deviceID, p, states[p], now); err != nil {
			return fmt.Errorf("store %s: %w", p, err)
		}
	}
	return tx.Commit()
}
