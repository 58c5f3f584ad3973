package models

// Reason explains the outcome of evaluating one subscription against one event.
type Reason string

const (
	ReasonFired            Reason = "fired"
	ReasonParameterMissing Reason = "parameter_missing"
	ReasonUnchanged        Reason = "unchanged"
	ReasonConditionNotMet  Reason = "condition_not_met"
	ReasonInvalidCondition Reason = "invalid_condition"
	ReasonCooldown         Reason = "cooldown"
	ReasonSelfTriggerLoop  Reason = "self_trigger_loop"
	ReasonCoupledParameter Reason = "coupled_parameter"
	ReasonRepositoryError  Reason = "repository_error"
	ReasonDeadlineExceeded Reason = "deadline_exceeded"
)

// TriggerResult is the outcome for one subscription. A fired trigger whose
// dispatch failed is still Fired; DispatchError carries the failure text.
type TriggerResult struct {
	Owner          string        `json:"owner"`
	SubscriptionID string        `json:"subscriptionID"`
	Fired          bool          `json:"fired"`
	Reason         Reason        `json:"reason"`
	CommandsIssued int           `json:"commandsIssued"`
	Notification   *Notification `json:"notification,omitempty"`
	DispatchError  string        `json:"dispatchError,omitempty"`
}

// PassSummary aggregates one evaluation pass over a device's subscriptions.
type PassSummary struct {
	DeviceID     string          `json:"deviceID"`
	MessageClass MessageClass    `json:"messageClass"`
	Evaluated    int             `json:"evaluated"`
	Triggered    int             `json:"triggered"`
	IOChanges    int             `json:"ioChanges"`
	Alarms       int             `json:"alarmsTriggered"`
	Results      []TriggerResult `json:"results"`
}
