package engine

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"device_triggers/internal/models"
)

// envelope fields added by the transport, never part of device data
var metadataFields = map[string]struct{}{
	"topic":     {},
	"timestamp": {},
	"messageId": {},
	"ruleName":  {},
	"ruleArn":   {},
	"payload":   {},
}

var deviceIDKeys = []string{"deviceID", "device_id", "client_id", "ClientID"}

// NormalizeJSON decodes a raw JSON envelope and normalizes it.
func NormalizeJSON(raw []byte) (models.DeviceEvent, error) {
	var env map[string]any
	if err := json.Unmarshal(raw, &env); err != nil || env == nil {
		return models.DeviceEvent{}, &NormalizationError{Err: ErrNoAttributes}
	}
	return Normalize(env)
}

// Normalize extracts the device id, the attribute tree and the message class
// from an envelope. The payload may be base64-wrapped JSON, raw JSON, an
// already decoded object, or absent with the fields flattened into the envelope.
func Normalize(env map[string]any) (models.DeviceEvent, error) {
	topic, _ := env["topic"].(string)
	payload, hasPayload := decodePayload(env["payload"])

	deviceID, segs := deviceFromTopic(topic)
	if deviceID == "" && hasPayload {
		deviceID = firstString(payload, deviceIDKeys)
	}
	if deviceID == "" {
		deviceID = firstString(env, deviceIDKeys)
	}
	if deviceID == "" {
		return models.DeviceEvent{}, &NormalizationError{Err: ErrNoDeviceID}
	}

	var attrs map[string]any
	switch data, _ := env["data"].(map[string]any); {
	case hasPayload && len(payload) > 0:
		attrs = payload
	case len(data) > 0:
		attrs = data
	default:
		attrs = make(map[string]any, len(env))
		for k, v := range env {
			if _, skip := metadataFields[k]; !skip {
				attrs[k] = v
			}
		}
	}
	if len(attrs) == 0 {
		return models.DeviceEvent{}, &NormalizationError{Err: ErrNoAttributes}
	}

	return models.DeviceEvent{
		DeviceID:     deviceID,
		Topic:        topic,
		MessageClass: classify(segs),
		Attributes:   attrs,
	}, nil
}

// deviceFromTopic reads "root/{deviceID}/..." and returns the id plus the
// segments that follow it.
func deviceFromTopic(topic string) (string, []string) {
	if topic == "" {
		return "", nil
	}
	segs := strings.Split(strings.Trim(topic, "/"), "/")
	if len(segs) < 2 || segs[1] == "" {
		return "", nil
	}
	return segs[1], segs[2:]
}

func classify(segs []string) models.MessageClass {
	for _, s := range segs {
		switch strings.ToLower(s) {
		case "data":
			return models.ClassTelemetry
		case "cmd":
			return models.ClassCommand
		}
	}
	return models.ClassUnknown
}

func decodePayload(p any) (map[string]any, bool) {
	switch t := p.(type) {
	case map[string]any:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, false
		}
		if b, err := base64.StdEncoding.DecodeString(s); err == nil {
			var m map[string]any
			if json.Unmarshal(b, &m) == nil && m != nil {
				return m, true
			}
		}
		var m map[string]any
		if json.Unmarshal([]byte(s), &m) == nil && m != nil {
			return m, true
		}
	}
	return nil, false
}

func firstString(m map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
