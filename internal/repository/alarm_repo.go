package repository

import (
	"context"
	"database/sql"
	"time"

	"device_triggers/internal/models"
)

type AlarmSQLite struct {
	db *sql.DB
}

func NewAlarmSQLite(db *sql.DB) *AlarmSQLite { return &AlarmSQLite{db: db} }

const (
	insertAlarmSQL = `
		INSERT INTO alarms (owner, alarm_id, device_id, variable_name, condition, threshold, enabled, last_triggered_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectAlarmsSQL = `SELECT owner, alarm_id, device_id, variable_name, condition, threshold, enabled,
		last_triggered_at, created_at FROM alarms`

	listAlarmsByOwnerSQL  = selectAlarmsSQL + ` WHERE owner = ? ORDER BY created_at`
	listAlarmsByDeviceSQL = selectAlarmsSQL + ` WHERE device_id = ? AND enabled = 1 ORDER BY owner, alarm_id`

	markAlarmTriggeredSQL = `UPDATE alarms SET last_triggered_at = ? WHERE owner = ? AND alarm_id = ?`
	deleteAlarmSQL        = `DELETE FROM alarms WHERE owner = ? AND alarm_id = ?`
)

func (r *AlarmSQLite) Create(ctx context.Context, a models.Alarm) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	var last any
	if a.LastTriggeredAt != nil {
		last = a.LastTriggeredAt.UTC()
	}
	_, err := r.db.ExecContext(ctx, insertAlarmSQL,
		a.Owner,
		a.AlarmID,
		a.DeviceID,
		a.VariableName,
		string(a.Condition),
		a.Threshold,
		a.Enabled,
		last,
		a.CreatedAt.UTC(),
	)
	return err
}

func (r *AlarmSQLite) ListByOwner(ctx context.Context, owner string) ([]models.Alarm, error) {
	return r.query(ctx, listAlarmsByOwnerSQL, owner)
}

// ListByDevice returns the enabled alarms of a device.
func (r *AlarmSQLite) ListByDevice(ctx context.Context, deviceID string) ([]models.Alarm, error) {
	return r.query(ctx, listAlarmsByDeviceSQL, deviceID)
}

func (r *AlarmSQLite) MarkTriggered(ctx context.Context, owner, alarmID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, markAlarmTriggeredSQL, at.UTC(), owner, alarmID)
	return affectedOne(res, err)
}

func (r *AlarmSQLite) Delete(ctx context.Context, owner, alarmID string) error {
	res, err := r.db.ExecContext(ctx, deleteAlarmSQL, owner, alarmID)
	return affectedOne(res, err)
}

func (r *AlarmSQLite) query(ctx context.Context, q string, arg string) ([]models.Alarm, error) {
	rows, err := r.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Alarm, 0, 8)
	for rows.Next() {
		var (
			a    models.Alarm
			cond string
			last sql.NullTime
		)
		if err := rows.Scan(
			&a.Owner,
			&a.AlarmID,
			&a.DeviceID,
			&a.VariableName,
			&cond,
			&a.Threshold,
			&a.Enabled,
			&last,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}
		a.Condition = models.ConditionType(cond)
		a.CreatedAt = a.CreatedAt.UTC()
		if last.Valid {
			t := last.Time.UTC()
			a.LastTriggeredAt = &t
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
