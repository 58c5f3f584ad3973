package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"device_triggers/internal/models"
)

var (
	ErrUnknownAction = errors.New("unknown command action")
	ErrInvalidValue  = errors.New("invalid command value")
)

// CommandKind is the closed set of command actions a device understands.
type CommandKind int

const (
	CommandNone CommandKind = iota
	CommandOut1
	CommandOut2
	CommandIn1
	CommandIn2
	CommandSpeed
	CommandPowerSaving
	CommandRestart
)

var actionKinds = map[string]CommandKind{
	models.ActionNone: CommandNone,
	"out1":            CommandOut1,
	"out2":            CommandOut2,
	"in1":             CommandIn1,
	"in2":             CommandIn2,
	"speed":           CommandSpeed,
	"power_saving":    CommandPowerSaving,
	"restart":         CommandRestart,
}

// ParseAction maps an action string to its kind, case-insensitively.
// An empty action is none.
func ParseAction(action string) (CommandKind, bool) {
	a := strings.ToLower(strings.TrimSpace(action))
	if a == "" {
		return CommandNone, true
	}
	k, ok := actionKinds[a]
	return k, ok
}

func (k CommandKind) String() string {
	for a, kind := range actionKinds {
		if kind == k {
			return a
		}
	}
	return "unknown"
}

func (k CommandKind) isToggle() bool {
	switch k {
	case CommandOut1, CommandOut2, CommandIn1, CommandIn2, CommandPowerSaving:
		return true
	}
	return false
}

// DeviceCommand is a validated command, ready to publish.
type DeviceCommand struct {
	Kind   CommandKind
	Target string
	Raw    string
	On     bool
	Speed  int
}

// ResolveCommand validates c and binds it to a concrete kind. ownDevice is
// used when the command has no explicit target.
func ResolveCommand(c models.Command, ownDevice string) (DeviceCommand, error) {
	kind, ok := ParseAction(c.Action)
	if !ok {
		return DeviceCommand{}, fmt.Errorf("%w: %q", ErrUnknownAction, c.Action)
	}
	dc := DeviceCommand{
		Kind:   kind,
		Target: c.Target(ownDevice),
		Raw:    strings.TrimSpace(string(c.Value)),
	}

	switch {
	case kind.isToggle():
		on, ok := parseToggle(dc.Raw)
		if !ok {
			return DeviceCommand{}, fmt.Errorf("%w: %s expects 0|1|on|off|true|false, got %q", ErrInvalidValue, kind, dc.Raw)
		}
		dc.On = on
	case kind == CommandSpeed:
		speed, ok := parseSpeed(dc.Raw)
		if !ok {
			return DeviceCommand{}, fmt.Errorf("%w: speed expects an integer 0-100, got %q", ErrInvalidValue, dc.Raw)
		}
		dc.Speed = speed
	}
	return dc, nil
}

func parseToggle(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "1", "on", "true":
		return true, true
	case "0", "off", "false":
		return false, true
	}
	return false, false
}

func parseSpeed(v string) (int, bool) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != math.Trunc(f) || f < 0 || f > 100 {
		return 0, false
	}
	return int(f), true
}

// Payload builds the wire payload the device firmware expects.
func (c DeviceCommand) Payload(now time.Time) ([]byte, error) {
	var body any
	switch c.Kind {
	case CommandOut1:
		body = map[string]any{"command": onOff("TOGGLE_1", c.On)}
	case CommandOut2:
		body = map[string]any{"command": onOff("TOGGLE_2", c.On)}
	case CommandPowerSaving:
		body = map[string]any{"command": onOff("POWER_SAVING", c.On)}
	case CommandSpeed:
		body = map[string]any{"command": "SET_SPEED", "speed": c.Speed}
	default:
		body = map[string]any{
			"deviceID":    c.Target,
			"commandType": c.Kind.String(),
			"value":       c.Raw,
			"timestamp":   now.UTC().Format(time.RFC3339Nano),
		}
	}
	return json.Marshal(body)
}

func onOff(prefix string, on bool) string {
	if on {
		return prefix + "_ON"
	}
	return prefix + "_OFF"
}

// CommandTopic is the channel a device listens on for commands.
func CommandTopic(root, deviceID string) string {
	return root + "/" + deviceID + "/cmd/"
}
