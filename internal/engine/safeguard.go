package engine

import (
	"slices"
	"strings"
	"time"

	"device_triggers/internal/models"
)

// parameters each action writes to on the device it targets
var affectedParameters = map[CommandKind][]string{
	CommandOut1:        {"outputs.out1"},
	CommandOut2:        {"outputs.out2"},
	CommandIn1:         {"inputs.in1"},
	CommandIn2:         {"inputs.in2"},
	CommandSpeed:       {"outputs.speed", "motor_speed"},
	CommandPowerSaving: {"outputs.power_saving", "power_saving"},
}

// groups of parameters where changing one moves the other
var coupledGroups = [][]string{
	{"out1", "out2"},
	{"in1", "in2"},
	{"speed", "motor_speed"},
	{"battery", "power_saving"},
}

// InCooldown reports whether the last successful trigger is too recent.
// A subscription that never fired, or has no cooldown, is never in cooldown.
func InCooldown(sub models.Subscription, now time.Time) bool {
	if sub.LastTriggeredAt == nil || sub.CooldownMillis <= 0 {
		return false
	}
	return now.Sub(*sub.LastTriggeredAt) < time.Duration(sub.CooldownMillis)*time.Millisecond
}

// WouldLoop reports whether action on the watched device writes the watched
// parameter itself.
func WouldLoop(parameterPath, action string) bool {
	kind, ok := ParseAction(action)
	if !ok {
		return false
	}
	p := strings.ToLower(parameterPath)
	return slices.Contains(affectedParameters[kind], p)
}

// Coupled reports whether action and the watched parameter belong to the same
// coupled group.
func Coupled(parameterPath, action string) bool {
	p := strings.ToLower(leaf(parameterPath))
	a := strings.ToLower(strings.TrimSpace(action))
	for _, group := range coupledGroups {
		if slices.Contains(group, p) && slices.Contains(group, a) {
			return true
		}
	}
	return false
}

// SelfTriggering returns the first same-device command that would loop.
func SelfTriggering(sub models.Subscription) (models.Command, bool) {
	for _, c := range sameDeviceCommands(sub) {
		if WouldLoop(sub.ParameterPath, c.Action) {
			return c, true
		}
	}
	return models.Command{}, false
}

// CoupledCommand returns the first same-device command coupled to the
// watched parameter.
func CoupledCommand(sub models.Subscription) (models.Command, bool) {
	for _, c := range sameDeviceCommands(sub) {
		if Coupled(sub.ParameterPath, c.Action) {
			return c, true
		}
	}
	return models.Command{}, false
}

func sameDeviceCommands(sub models.Subscription) []models.Command {
	var out []models.Command
	for _, c := range sub.Commands {
		if kind, ok := ParseAction(c.Action); ok && kind == CommandNone {
			continue
		}
		if c.Target(sub.DeviceID) == sub.DeviceID {
			out = append(out, c)
		}
	}
	return out
}

// CommandBatch is the outcome of validating a subscription's commands.
type CommandBatch struct {
	Commands []DeviceCommand
	Dropped  []error
	// Blocked is set when a restart was requested; nothing is published.
	Blocked bool
}

// ValidateCommands resolves every non-none command. Invalid commands are
// dropped and reported; a restart blocks the whole batch.
func ValidateCommands(sub models.Subscription) CommandBatch {
	var batch CommandBatch
	for _, c := range sub.Commands {
		dc, err := ResolveCommand(c, sub.DeviceID)
		if err != nil {
			batch.Dropped = append(batch.Dropped, err)
			continue
		}
		switch dc.Kind {
		case CommandNone:
			continue
		case CommandRestart:
			batch.Blocked = true
		}
		batch.Commands = append(batch.Commands, dc)
	}
	if batch.Blocked {
		batch.Commands = nil
	}
	return batch
}
