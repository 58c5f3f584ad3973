package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type ConditionType string

const (
	ConditionChange    ConditionType = "change"
	ConditionAbove     ConditionType = "above"
	ConditionBelow     ConditionType = "below"
	ConditionEquals    ConditionType = "equals"
	ConditionNotEquals ConditionType = "not_equals"
)

// Valid reports whether c is one of the known condition types.
func (c ConditionType) Valid() bool {
	switch c {
	case ConditionChange, ConditionAbove, ConditionBelow, ConditionEquals, ConditionNotEquals:
		return true
	}
	return false
}

type NotificationMethod string

const (
	NotifyInApp NotificationMethod = "in_app"
	NotifyEmail NotificationMethod = "email"
	NotifyBoth  NotificationMethod = "both"
)

func (m NotificationMethod) Valid() bool {
	switch m {
	case NotifyInApp, NotifyEmail, NotifyBoth:
		return true
	}
	return false
}

// WantsEmail reports whether the method includes the email channel.
func (m NotificationMethod) WantsEmail() bool {
	return m == NotifyEmail || m == NotifyBoth
}

const (
	// DefaultCooldownMillis applies when a subscription is created without one.
	DefaultCooldownMillis int64 = 30000
	// ActionNone is the no-op command action.
	ActionNone = "none"
)

// CommandValue is a command argument. Devices and the dashboard send it as a
// string, a number or a bool; it is always kept as a string.
type CommandValue string

func (v *CommandValue) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = ""
	case string:
		*v = CommandValue(t)
	case float64:
		*v = CommandValue(strconv.FormatFloat(t, 'f', -1, 64))
	case bool:
		if t {
			*v = "1"
		} else {
			*v = "0"
		}
	default:
		return fmt.Errorf("command value must be a string, number or bool")
	}
	return nil
}

// Command is one side effect configured on a subscription.
type Command struct {
	Action       string       `json:"action"`
	Value        CommandValue `json:"value"`
	TargetDevice string       `json:"targetDevice,omitempty"`
}

// Target returns the command's device, defaulting to the watched device.
func (c Command) Target(ownDevice string) string {
	if c.TargetDevice == "" {
		return ownDevice
	}
	return c.TargetDevice
}

// SubscriptionKey identifies a subscription.
type SubscriptionKey struct {
	Owner          string `json:"owner"`
	SubscriptionID string `json:"subscriptionID"`
}

func (k SubscriptionKey) String() string { return k.Owner + "/" + k.SubscriptionID }

// TriggerState is the part of a subscription the engine writes back.
type TriggerState struct {
	LastProcessedValue Value      `json:"lastProcessedValue"`
	LastTriggeredAt    *time.Time `json:"lastTriggeredAt"`
	TriggerCount       int64      `json:"triggerCount"`
}

// Subscription is a standing rule binding one device parameter to a
// condition and a set of side effects.
type Subscription struct {
	Owner              string             `json:"owner"`
	SubscriptionID     string             `json:"subscriptionID"`
	DeviceID           string             `json:"deviceID"`
	ParameterPath      string             `json:"parameterPath"`
	ConditionType      ConditionType      `json:"conditionType"`
	ThresholdValue     Value              `json:"thresholdValue"`
	ToleranceFraction  *float64           `json:"toleranceFraction"`
	CooldownMillis     int64              `json:"cooldownMillis"`
	Commands           []Command          `json:"commands"`
	NotificationMethod NotificationMethod `json:"notificationMethod"`
	Enabled            bool               `json:"enabled"`
	LastProcessedValue Value              `json:"lastProcessedValue"`
	LastTriggeredAt    *time.Time         `json:"lastTriggeredAt"`
	TriggerCount       int64              `json:"triggerCount"`
	AutoDisabledReason string             `json:"autoDisabledReason,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

func (s Subscription) Key() SubscriptionKey {
	return SubscriptionKey{Owner: s.Owner, SubscriptionID: s.SubscriptionID}
}

// State returns a copy of the mutable trigger state.
func (s Subscription) State() TriggerState {
	st := TriggerState{
		LastProcessedValue: s.LastProcessedValue,
		TriggerCount:       s.TriggerCount,
	}
	if s.LastTriggeredAt != nil {
		t := *s.LastTriggeredAt
		st.LastTriggeredAt = &t
	}
	return st
}

// ApplyState overwrites the mutable trigger state.
func (s *Subscription) ApplyState(st TriggerState) {
	s.LastProcessedValue = st.LastProcessedValue
	s.LastTriggeredAt = st.LastTriggeredAt
	s.TriggerCount = st.TriggerCount
}
