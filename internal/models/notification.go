package models

import "time"

// Notification is handed to the notify sink when a subscription fires.
type Notification struct {
	NotificationID string             `json:"notificationID"`
	Owner          string             `json:"owner"`
	SubscriptionID string             `json:"subscriptionID"`
	DeviceID       string             `json:"deviceID"`
	ParameterPath  string             `json:"parameterPath"`
	CurrentValue   Value              `json:"currentValue"`
	ConditionType  ConditionType      `json:"conditionType"`
	ThresholdValue Value              `json:"thresholdValue"`
	MessageClass   MessageClass       `json:"messageClass"`
	Message        string             `json:"message"`
	Method         NotificationMethod `json:"method"`
	Timestamp      time.Time          `json:"timestamp"`
	Read           bool               `json:"read"`
}
