// Package notify routes fired-trigger notifications to their consumers:
// the in-app feed, live websocket clients and the Redis push/email queues.
package notify

import (
	"context"
	"errors"
	"fmt"

	"device_triggers/internal/models"
)

// Sink receives one notification.
type Sink interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Fanout delivers to every sink, even after one fails.
type Fanout []Sink

func (f Fanout) Notify(ctx context.Context, n models.Notification) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Appender is the storage side of the in-app feed.
type Appender interface {
	Append(ctx context.Context, n models.Notification) error
}

// StoreSink persists notifications for the in-app feed.
type StoreSink struct {
	store Appender
}

func NewStoreSink(store Appender) *StoreSink { return &StoreSink{store: store} }

func (s *StoreSink) Notify(ctx context.Context, n models.Notification) error {
	if err := s.store.Append(ctx, n); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}
