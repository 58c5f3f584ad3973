package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"device_triggers/internal/models"
)

type SubscriptionSQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewSubscriptionSQLite(db *sql.DB) *SubscriptionSQLite {
	return &SubscriptionSQLite{db: db, now: time.Now}
}

const (
	subscriptionColumns = `owner, subscription_id, device_id, parameter_path, condition_type, threshold_value,
		tolerance_fraction, cooldown_ms, commands, notification_method, enabled, last_processed_value,
		last_triggered_at, trigger_count, auto_disabled_reason, created_at, updated_at`

	selectSubscriptionsSQL = `SELECT ` + subscriptionColumns + ` FROM subscriptions`

	loadActiveSQL = selectSubscriptionsSQL + ` WHERE device_id = ? AND enabled = 1 ORDER BY owner, subscription_id`

	getSubscriptionSQL = selectSubscriptionsSQL + ` WHERE owner = ? AND subscription_id = ?`

	listByOwnerSQL = selectSubscriptionsSQL + ` WHERE owner = ? ORDER BY created_at ASC`

	listByDeviceParameterSQL = selectSubscriptionsSQL + ` WHERE device_id = ? AND parameter_path = ?`

	listEnabledSQL = selectSubscriptionsSQL + ` WHERE enabled = 1`

	insertSubscriptionSQL = `INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	updateSubscriptionSQL = `UPDATE subscriptions SET device_id = ?, parameter_path = ?, condition_type = ?,
		threshold_value = ?, tolerance_fraction = ?, cooldown_ms = ?, commands = ?, notification_method = ?,
		enabled = ?, auto_disabled_reason = ?, updated_at = ?
		WHERE owner = ? AND subscription_id = ?`

	storeStateSQL = `UPDATE subscriptions SET last_processed_value = ?, last_triggered_at = ?, trigger_count = ?, updated_at = ?
		WHERE owner = ? AND subscription_id = ?`

	setEnabledSQL = `UPDATE subscriptions SET enabled = ?, auto_disabled_reason = ?, updated_at = ?
		WHERE owner = ? AND subscription_id = ?`

	deleteSubscriptionSQL = `DELETE FROM subscriptions WHERE owner = ? AND subscription_id = ?`
)

// LoadActive returns the enabled subscriptions watching deviceID.
func (r *SubscriptionSQLite) LoadActive(ctx context.Context, deviceID string) ([]models.Subscription, error) {
	return r.query(ctx, loadActiveSQL, deviceID)
}

// CompareAndStore writes the trigger state unconditionally; expected is not
// checked, so the read-then-write of one evaluation is not atomic.
func (r *SubscriptionSQLite) CompareAndStore(ctx context.Context, key models.SubscriptionKey, _ models.TriggerState, next models.TriggerState) error {
	last, err := marshalValue(next.LastProcessedValue)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, storeStateSQL,
		last,
		nullTime(next.LastTriggeredAt),
		next.TriggerCount,
		r.now().UTC(),
		key.Owner,
		key.SubscriptionID,
	)
	return affectedOne(res, err)
}

func (r *SubscriptionSQLite) Create(ctx context.Context, s models.Subscription) error {
	threshold, err := marshalValue(s.ThresholdValue)
	if err != nil {
		return err
	}
	last, err := marshalValue(s.LastProcessedValue)
	if err != nil {
		return err
	}
	cmds, err := marshalCommands(s.Commands)
	if err != nil {
		return err
	}

	now := r.now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}

	_, err = r.db.ExecContext(ctx, insertSubscriptionSQL,
		s.Owner,
		s.SubscriptionID,
		s.DeviceID,
		s.ParameterPath,
		string(s.ConditionType),
		threshold,
		nullFloat(s.ToleranceFraction),
		s.CooldownMillis,
		cmds,
		string(s.NotificationMethod),
		s.Enabled,
		last,
		nullTime(s.LastTriggeredAt),
		s.TriggerCount,
		nullString(s.AutoDisabledReason),
		s.CreatedAt.UTC(),
		s.UpdatedAt.UTC(),
	)
	return err
}

// Update rewrites the configuration of a subscription. Trigger state is
// left alone; it belongs to the engine.
func (r *SubscriptionSQLite) Update(ctx context.Context, s models.Subscription) error {
	threshold, err := marshalValue(s.ThresholdValue)
	if err != nil {
		return err
	}
	cmds, err := marshalCommands(s.Commands)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, updateSubscriptionSQL,
		s.DeviceID,
		s.ParameterPath,
		string(s.ConditionType),
		threshold,
		nullFloat(s.ToleranceFraction),
		s.CooldownMillis,
		cmds,
		string(s.NotificationMethod),
		s.Enabled,
		nullString(s.AutoDisabledReason),
		r.now().UTC(),
		s.Owner,
		s.SubscriptionID,
	)
	return affectedOne(res, err)
}

func (r *SubscriptionSQLite) Get(ctx context.Context, key models.SubscriptionKey) (models.Subscription, error) {
	subs, err := r.query(ctx, getSubscriptionSQL, key.Owner, key.SubscriptionID)
	if err != nil {
		return models.Subscription{}, err
	}
	if len(subs) == 0 {
		return models.Subscription{}, ErrNotFound
	}
	return subs[0], nil
}

func (r *SubscriptionSQLite) ListByOwner(ctx context.Context, owner string) ([]models.Subscription, error) {
	return r.query(ctx, listByOwnerSQL, owner)
}

func (r *SubscriptionSQLite) ListByDeviceParameter(ctx context.Context, deviceID, parameterPath string) ([]models.Subscription, error) {
	return r.query(ctx, listByDeviceParameterSQL, deviceID, parameterPath)
}

func (r *SubscriptionSQLite) ListEnabled(ctx context.Context) ([]models.Subscription, error) {
	return r.query(ctx, listEnabledSQL)
}

// SetEnabled toggles a subscription. reason is recorded when the health
// sweep disables one and cleared otherwise.
func (r *SubscriptionSQLite) SetEnabled(ctx context.Context, key models.SubscriptionKey, enabled bool, reason string) error {
	res, err := r.db.ExecContext(ctx, setEnabledSQL, enabled, nullString(reason), r.now().UTC(), key.Owner, key.SubscriptionID)
	return affectedOne(res, err)
}

func (r *SubscriptionSQLite) Delete(ctx context.Context, key models.SubscriptionKey) error {
	res, err := r.db.ExecContext(ctx, deleteSubscriptionSQL, key.Owner, key.SubscriptionID)
	return affectedOne(res, err)
}

func (r *SubscriptionSQLite) query(ctx context.Context, q string, args ...any) ([]models.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Subscription, 0, 8)
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanSubscription(rows *sql.Rows) (models.Subscription, error) {
	var (
		s                             models.Subscription
		cond, method                  string
		threshold, last, cmds, reason sql.NullString
		tolerance                     sql.NullFloat64
		triggeredAt                   sql.NullTime
	)
	if err := rows.Scan(
		&s.Owner,
		&s.SubscriptionID,
		&s.DeviceID,
		&s.ParameterPath,
		&cond,
		&threshold,
		&tolerance,
		&s.CooldownMillis,
		&cmds,
		&method,
		&s.Enabled,
		&last,
		&triggeredAt,
		&s.TriggerCount,
		&reason,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return models.Subscription{}, err
	}

	s.ConditionType = models.ConditionType(cond)
	s.NotificationMethod = models.NotificationMethod(method)
	s.AutoDisabledReason = reason.String
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	if tolerance.Valid {
		f := tolerance.Float64
		s.ToleranceFraction = &f
	}
	if triggeredAt.Valid {
		ts := triggeredAt.Time.UTC()
		s.LastTriggeredAt = &ts
	}

	var err error
	if s.ThresholdValue, err = unmarshalValue(threshold); err != nil {
		return models.Subscription{}, fmt.Errorf("subscription %s threshold: %w", s.SubscriptionID, err)
	}
	if s.LastProcessedValue, err = unmarshalValue(last); err != nil {
		return models.Subscription{}, fmt.Errorf("subscription %s last value: %w", s.SubscriptionID, err)
	}
	if cmds.Valid && cmds.String != "" {
		if err := json.Unmarshal([]byte(cmds.String), &s.Commands); err != nil {
			return models.Subscription{}, fmt.Errorf("subscription %s commands: %w", s.SubscriptionID, err)
		}
	}
	return s, nil
}

// marshalValue converts a canonical value to its JSON column text; null
// becomes SQL NULL.
func marshalValue(v models.Value) (*string, error) {
	if v.IsNull() {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func unmarshalValue(ns sql.NullString) (models.Value, error) {
	if !ns.Valid || ns.String == "" {
		return models.Null(), nil
	}
	var v models.Value
	if err := json.Unmarshal([]byte(ns.String), &v); err != nil {
		return models.Null(), err
	}
	return v, nil
}

func marshalCommands(cmds []models.Command) (string, error) {
	if cmds == nil {
		cmds = []models.Command{}
	}
	b, err := json.Marshal(cmds)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
