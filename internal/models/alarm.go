package models

import "time"

// AlarmCooldown is the fixed quiet period after an alarm fires.
const AlarmCooldown = time.Minute

// Alarm is a fixed-threshold rule on one device variable. Unlike a
// subscription it has no change gating and no commands; it only notifies.
type Alarm struct {
	Owner           string        `json:"owner"`
	AlarmID         string        `json:"alarmID"`
	DeviceID        string        `json:"deviceID"`
	VariableName    string        `json:"variableName"`
	Condition       ConditionType `json:"condition"`
	Threshold       float64       `json:"threshold"`
	Enabled         bool          `json:"enabled"`
	LastTriggeredAt *time.Time    `json:"lastTriggeredAt,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// ValidAlarmCondition reports whether c can drive an alarm.
func ValidAlarmCondition(c ConditionType) bool {
	return c == ConditionAbove || c == ConditionBelow
}

// IOChangeSubscriptionID marks notifications raised by an input/output
// state flip rather than by a subscription.
const IOChangeSubscriptionID = "io_change"

// IOStateParams are the device attributes tracked as binary I/O states.
var IOStateParams = []string{"out1_state", "out2_state", "in1_state", "in2_state"}
