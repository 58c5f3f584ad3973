package models

type MessageClass string

const (
	ClassTelemetry MessageClass = "telemetry"
	ClassCommand   MessageClass = "command"
	ClassUnknown   MessageClass = "unknown"
)

// DeviceEvent is one normalized inbound device message. It is built per
// invocation and never persisted.
type DeviceEvent struct {
	DeviceID     string         `json:"deviceID"`
	Topic        string         `json:"topic,omitempty"`
	MessageClass MessageClass   `json:"messageClass"`
	Attributes   map[string]any `json:"attributes"`
}
