package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"device_triggers/internal/metrics"
	"device_triggers/internal/models"
)

func newNotificationID() string { return uuid.NewString() }

// dispatch hands the notification to the sink and publishes every validated
// command. It is best-effort: the trigger state is already persisted and a
// failure here does not un-fire it. All failures are joined into one error.
func (e *Engine) dispatch(ctx context.Context, sub models.Subscription, ev models.DeviceEvent, current models.Value, batch CommandBatch, now time.Time) (*models.Notification, int, error) {
	n := models.Notification{
		NotificationID: e.newID(),
		Owner:          sub.Owner,
		SubscriptionID: sub.SubscriptionID,
		DeviceID:       sub.DeviceID,
		ParameterPath:  sub.ParameterPath,
		CurrentValue:   current,
		ConditionType:  sub.ConditionType,
		ThresholdValue: sub.ThresholdValue,
		MessageClass:   ev.MessageClass,
		Message:        BuildMessage(sub, current, ev.MessageClass),
		Method:         sub.NotificationMethod,
		Timestamp:      now.UTC(),
		Read:           false,
	}

	var errs []error
	if e.notifier != nil {
		if err := e.notifier.Notify(ctx, n); err != nil {
			errs = append(errs, e.dispatchFailed(&DispatchError{Stage: "notify", SubscriptionID: sub.SubscriptionID, Err: err}))
		}
	}

	issued := 0
	for _, cmd := range batch.Commands {
		if e.publisher == nil {
			break
		}
		topic := CommandTopic(e.topicRoot, cmd.Target)
		payload, err := cmd.Payload(now)
		if err == nil {
			err = e.publisher.Publish(ctx, topic, payload)
		}
		if err != nil {
			errs = append(errs, e.dispatchFailed(&DispatchError{Stage: "command", SubscriptionID: sub.SubscriptionID, Target: cmd.Target, Err: err}))
			continue
		}
		issued++
		metrics.RecordCommand(cmd.Kind.String())
		e.log.Infow("command_published", "subscription_id", sub.SubscriptionID, "topic", topic, "payload", string(payload))
	}

	return &n, issued, errors.Join(errs...)
}

func (e *Engine) dispatchFailed(err *DispatchError) error {
	metrics.RecordDispatchFailure(err.Stage)
	e.log.Errorw("dispatch_failed", "stage", err.Stage, "subscription_id", err.SubscriptionID, "target", err.Target, "err", err.Err)
	return err
}
