package engine

import (
	"fmt"

	"device_triggers/internal/models"
)

// messageContext labels where the value came from. "status" reads the same
// on either channel.
func messageContext(parameterPath string, class models.MessageClass) string {
	switch {
	case parameterPath == "status":
		return "status"
	case class == models.ClassTelemetry:
		return "data"
	default:
		return "command"
	}
}

// BuildMessage renders the human-readable notification text.
func BuildMessage(sub models.Subscription, current models.Value, class models.MessageClass) string {
	p := sub.ParameterPath
	ctx := messageContext(p, class)
	v := current.String()
	t := sub.ThresholdValue.String()

	switch sub.ConditionType {
	case models.ConditionChange:
		return fmt.Sprintf("%s %s changed to %s", p, ctx, v)
	case models.ConditionAbove:
		return fmt.Sprintf("%s %s (%s) is above threshold (%s)", p, ctx, v, t)
	case models.ConditionBelow:
		return fmt.Sprintf("%s %s (%s) is below threshold (%s)", p, ctx, v, t)
	case models.ConditionEquals:
		return fmt.Sprintf("%s %s equals %s", p, ctx, v)
	case models.ConditionNotEquals:
		return fmt.Sprintf("%s %s (%s) is not equal to %s", p, ctx, v, t)
	default:
		return fmt.Sprintf("%s %s value changed to %s", p, ctx, v)
	}
}
