package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"device_triggers/internal/models"
)

type NotificationSQLite struct {
	db *sql.DB
}

func NewNotificationSQLite(db *sql.DB) *NotificationSQLite { return &NotificationSQLite{db: db} }

const (
	insertNotificationSQL = `
		INSERT INTO notifications (id, owner, subscription_id, device_id, parameter_path, current_value,
			condition_type, threshold_value, message_class, message, method, created_at, read)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectNotificationsSQL = `SELECT id, owner, subscription_id, device_id, parameter_path, current_value,
		condition_type, threshold_value, message_class, message, method, created_at, read FROM notifications`

	markReadSQL = `UPDATE notifications SET read = 1 WHERE owner = ? AND id = ?`
)

// Append inserts a notification. A missing id or timestamp is filled in.
func (r *NotificationSQLite) Append(ctx context.Context, n models.Notification) error {
	if n.NotificationID == "" {
		n.NotificationID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	current, err := marshalValue(n.CurrentValue)
	if err != nil {
		return err
	}
	threshold, err := marshalValue(n.ThresholdValue)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, insertNotificationSQL,
		n.NotificationID,
		n.Owner,
		n.SubscriptionID,
		n.DeviceID,
		n.ParameterPath,
		current,
		string(n.ConditionType),
		threshold,
		string(n.MessageClass),
		n.Message,
		string(n.Method),
		n.Timestamp.UTC(),
		n.Read,
	)
	return err
}

// List returns an owner's notifications, newest first. limit <= 0 means no limit.
func (r *NotificationSQLite) List(ctx context.Context, owner string, unreadOnly bool, limit int) ([]models.Notification, error) {
	conds := []string{"owner = ?"}
	args := []any{owner}
	if unreadOnly {
		conds = append(conds, "read = 0")
	}

	q := selectNotificationsSQL + " WHERE " + strings.Join(conds, " AND ") + " ORDER BY created_at DESC"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Notification, 0, 16)
	for rows.Next() {
		var (
			n                  models.Notification
			cond, class, meth  string
			current, threshold sql.NullString
		)
		if err := rows.Scan(
			&n.NotificationID,
			&n.Owner,
			&n.SubscriptionID,
			&n.DeviceID,
			&n.ParameterPath,
			&current,
			&cond,
			&threshold,
			&class,
			&n.Message,
			&meth,
			&n.Timestamp,
			&n.Read,
		); err != nil {
			return nil, err
		}
		n.ConditionType = models.ConditionType(cond)
		n.MessageClass = models.MessageClass(class)
		n.Method = models.NotificationMethod(meth)
		n.Timestamp = n.Timestamp.UTC()
		if n.CurrentValue, err = unmarshalValue(current); err != nil {
			return nil, fmt.Errorf("notification %s current value: %w", n.NotificationID, err)
		}
		if n.ThresholdValue, err = unmarshalValue(threshold); err != nil {
			return nil, fmt.Errorf("notification %s threshold: %w", n.NotificationID, err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *NotificationSQLite) MarkRead(ctx context.Context, owner, notificationID string) error {
	res, err := r.db.ExecContext(ctx, markReadSQL, owner, notificationID)
	return affectedOne(res, err)
}
