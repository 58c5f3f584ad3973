package engine

import (
	"context"
	"fmt"
	"time"

	"device_triggers/internal/models"
)

// AlarmStore is the engine's view of the alarm repository. ListByDevice
// returns enabled alarms only.
type AlarmStore interface {
	ListByDevice(ctx context.Context, deviceID string) ([]models.Alarm, error)
	MarkTriggered(ctx context.Context, owner, alarmID string, at time.Time) error
}

// AlarmMessage renders e.g. "ALARM: temperature is 32.0 (above 30.0)".
func AlarmMessage(a models.Alarm, current models.Value) string {
	return fmt.Sprintf("ALARM: %s is %s (%s %s)", a.VariableName, current.String(), a.Condition, models.Number(a.Threshold).String())
}

func alarmHolds(a models.Alarm, v float64) bool {
	switch a.Condition {
	case models.ConditionAbove:
		return v > a.Threshold
	case models.ConditionBelow:
		return v < a.Threshold
	}
	return false
}

// checkAlarms fires every enabled alarm of the device whose threshold is
// crossed and whose cooldown has run out. Non-numeric readings are skipped.
// It returns the number of alarms fired.
func (e *Engine) checkAlarms(ctx context.Context, ev models.DeviceEvent, now time.Time) int {
	if e.alarms == nil {
		return 0
	}
	alarms, err := e.alarms.ListByDevice(ctx, ev.DeviceID)
	if err != nil {
		e.log.Errorw("load_alarms_failed", "device_id", ev.DeviceID, "err", err)
		return 0
	}

	fired := 0
	for _, a := range alarms {
		if !a.Enabled {
			continue
		}
		raw, ok := ResolvePath(ev.Attributes, a.VariableName)
		if !ok {
			continue
		}
		current := Canonical(raw)
		if !current.IsNumber() || !alarmHolds(a, current.Num) {
			continue
		}
		if a.LastTriggeredAt != nil && now.Sub(*a.LastTriggeredAt) < models.AlarmCooldown {
			e.log.Debugw("alarm_in_cooldown", "alarm_id", a.AlarmID, "last_triggered_at", a.LastTriggeredAt)
			continue
		}
		// no notification without a recorded trigger, or the cooldown is lost
		if err := e.alarms.MarkTriggered(ctx, a.Owner, a.AlarmID, now); err != nil {
			e.log.Errorw("alarm_state_write_failed", "alarm_id", a.AlarmID, "err", err)
			continue
		}
		fired++
		e.log.Infow("alarm_triggered",
			"alarm_id", a.AlarmID,
			"owner", a.Owner,
			"device_id", ev.DeviceID,
			"variable", a.VariableName,
			"value", current.String(),
		)
		e.notify(ctx, models.Notification{
			NotificationID: e.newID(),
			Owner:          a.Owner,
			SubscriptionID: a.AlarmID,
			DeviceID:       ev.DeviceID,
			ParameterPath:  a.VariableName,
			CurrentValue:   current,
			ConditionType:  a.Condition,
			ThresholdValue: models.Number(a.Threshold),
			MessageClass:   ev.MessageClass,
			Message:        AlarmMessage(a, current),
			Method:         models.NotifyInApp,
			Timestamp:      now.UTC(),
		}, "alarm")
	}
	return fired
}
