package service

import (
	"context"
	"errors"

	"device_triggers/internal/models"
	"device_triggers/internal/repository"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid request")
	// ErrConflict means another enabled change subscription already watches
	// the same device parameter.
	ErrConflict = errors.New("conflict")
)

// Subscriptions manages an owner's trigger rules.
type Subscriptions interface {
	Create(ctx context.Context, sub models.Subscription) (models.Subscription, error)
	Get(ctx context.Context, key models.SubscriptionKey) (models.Subscription, error)
	List(ctx context.Context, owner string) ([]models.Subscription, error)
	Update(ctx context.Context, sub models.Subscription) (models.Subscription, error)
	SetEnabled(ctx context.Context, key models.SubscriptionKey, enabled bool) (models.Subscription, error)
	Delete(ctx context.Context, key models.SubscriptionKey) error
}

// Notifications exposes the in-app feed.
type Notifications interface {
	List(ctx context.Context, owner string, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, owner, notificationID string) error
}

// Alarms manages an owner's fixed-threshold alarms.
type Alarms interface {
	Create(ctx context.Context, a models.Alarm) (models.Alarm, error)
	List(ctx context.Context, owner string) ([]models.Alarm, error)
	Delete(ctx context.Context, owner, alarmID string) error
}

// Events runs one evaluation pass per inbound device message.
type Events interface {
	HandleEnvelope(ctx context.Context, raw []byte) (models.PassSummary, error)
	HandleMessage(ctx context.Context, topic string, payload []byte) (models.PassSummary, error)
}

// Health sweeps enabled subscriptions and disables misbehaving ones.
type Health interface {
	Sweep(ctx context.Context) (HealthReport, error)
}

type Service struct {
	Subscriptions
	Notifications
	Alarms
	Events
	Health
}

// NewService wires the repositories, the trigger engine and the health
// monitor into services.
func NewService(repos *repository.Repository, events Events, health Health) *Service {
	return &Service{
		Subscriptions: NewSubscriptionService(repos.Subscriptions),
		Notifications: NewNotificationService(repos.Notifications),
		Alarms:        NewAlarmService(repos.Alarms),
		Events:        events,
		Health:        health,
	}
}

// notFound maps repository misses to ErrNotFound.
func notFound(err error) error {
	if repository.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}
