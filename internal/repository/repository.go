package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"device_triggers/internal/models"
)

var ErrNotFound = errors.New("not found")

// Subscriptions is the subscription store. LoadActive and CompareAndStore are
// the engine's view; the rest serves the management API and the health sweep.
type Subscriptions interface {
	LoadActive(ctx context.Context, deviceID string) ([]models.Subscription, error)
	CompareAndStore(ctx context.Context, key models.SubscriptionKey, expected, next models.TriggerState) error

	Create(ctx context.Context, s models.Subscription) error
	Update(ctx context.Context, s models.Subscription) error
	Get(ctx context.Context, key models.SubscriptionKey) (models.Subscription, error)
	ListByOwner(ctx context.Context, owner string) ([]models.Subscription, error)
	ListByDeviceParameter(ctx context.Context, deviceID, parameterPath string) ([]models.Subscription, error)
	ListEnabled(ctx context.Context) ([]models.Subscription, error)
	SetEnabled(ctx context.Context, key models.SubscriptionKey, enabled bool, reason string) error
	Delete(ctx context.Context, key models.SubscriptionKey) error
}

// Notifications is the in-app notification feed.
type Notifications interface {
	Append(ctx context.Context, n models.Notification) error
	List(ctx context.Context, owner string, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, owner, notificationID string) error
}

// IOStates holds the last binary I/O levels per device.
type IOStates interface {
	Load(ctx context.Context, deviceID string) (map[string]int, error)
	Store(ctx context.Context, deviceID string, states map[string]int) error
}

// Alarms is the fixed-threshold alarm store.
type Alarms interface {
	Create(ctx context.Context, a models.Alarm) error
	ListByOwner(ctx context.Context, owner string) ([]models.Alarm, error)
	ListByDevice(ctx context.Context, deviceID string) ([]models.Alarm, error)
	MarkTriggered(ctx context.Context, owner, alarmID string, at time.Time) error
	Delete(ctx context.Context, owner, alarmID string) error
}

type Repository struct {
	Subscriptions Subscriptions
	Notifications Notifications
	IOStates      IOStates
	Alarms        Alarms
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Subscriptions: NewSubscriptionSQLite(db),
		Notifications: NewNotificationSQLite(db),
		IOStates:      NewIOStateSQLite(db),
		Alarms:        NewAlarmSQLite(db),
	}
}
