package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"device_triggers/internal/models"
)

// IOStateStore keeps the last seen binary I/O levels of each device.
type IOStateStore interface {
	Load(ctx context.Context, deviceID string) (map[string]int, error)
	Store(ctx context.Context, deviceID string, states map[string]int) error
}

// ioLevel folds 1/"1"/true/"on" (any case) to 1, everything else to 0.
func ioLevel(v any) int {
	c := Canonical(v)
	if c.IsNumber() && c.Num == 1 {
		return 1
	}
	return 0
}

// IOChangeMessage renders e.g. "Output 1 changed to ON".
func IOChangeMessage(param string, level int) string {
	kind := "Input"
	if strings.HasPrefix(param, "out") {
		kind = "Output"
	}
	num := "2"
	if strings.Contains(param, "1") {
		num = "1"
	}
	return fmt.Sprintf("%s %s changed to %s", kind, num, levelOnOff(level))
}

func levelOnOff(level int) string {
	if level == 1 {
		return "ON"
	}
	return "OFF"
}

// checkIOStates compares the event's I/O levels with the stored ones and
// notifies every owner watching the device of each flip. A level seen for
// the first time is recorded without a notification. It returns the number
// of flips found.
func (e *Engine) checkIOStates(ctx context.Context, ev models.DeviceEvent, owners []string, now time.Time) int {
	if e.ioStates == nil {
		return 0
	}
	current := map[string]int{}
	for _, p := range models.IOStateParams {
		if v, ok := ev.Attributes[p]; ok && v != nil {
			current[p] = ioLevel(v)
		}
	}
	if len(current) == 0 {
		return 0
	}

	last, err := e.ioStates.Load(ctx, ev.DeviceID)
	if err != nil {
		e.log.Errorw("load_io_state_failed", "device_id", ev.DeviceID, "err", err)
		return 0
	}
	if err := e.ioStates.Store(ctx, ev.DeviceID, current); err != nil {
		e.log.Errorw("store_io_state_failed", "device_id", ev.DeviceID, "err", err)
	}

	changes := 0
	for _, p := range models.IOStateParams {
		level, ok := current[p]
		if !ok {
			continue
		}
		prev, seen := last[p]
		if !seen || prev == level {
			continue
		}
		changes++
		e.log.Infow("io_state_changed", "device_id", ev.DeviceID, "param", p, "from", prev, "to", level)
		for _, owner := range owners {
			n := models.Notification{
				NotificationID: e.newID(),
				Owner:          owner,
				SubscriptionID: models.IOChangeSubscriptionID,
				DeviceID:       ev.DeviceID,
				ParameterPath:  p,
				CurrentValue:   models.String(levelOnOff(level)),
				ConditionType:  models.ConditionChange,
				MessageClass:   ev.MessageClass,
				Message:        IOChangeMessage(p, level),
				Method:         models.NotifyInApp,
				Timestamp:      now.UTC(),
			}
			e.notify(ctx, n, "io_change")
		}
	}
	return changes
}

// notify is the best-effort sink call shared by the pre-pass checks.
func (e *Engine) notify(ctx context.Context, n models.Notification, stage string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, n); err != nil {
		_ = e.dispatchFailed(&DispatchError{Stage: stage, SubscriptionID: n.SubscriptionID, Err: err})
	}
}

// subscriptionOwners lists the distinct owners of subs in first-seen order.
func subscriptionOwners(subs []models.Subscription) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range subs {
		if !seen[s.Owner] {
			seen[s.Owner] = true
			out = append(out, s.Owner)
		}
	}
	return out
}
