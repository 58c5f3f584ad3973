package engine

import (
	"fmt"

	"device_triggers/internal/models"
)

// EvaluateCondition applies cond to the canonical current value and threshold.
// Operands of different kinds never satisfy a condition, not_equals included.
// An unknown condition returns false with ErrUnknownCondition.
func EvaluateCondition(cond models.ConditionType, current, threshold models.Value) (bool, error) {
	if cond == models.ConditionChange {
		return true, nil
	}
	if !cond.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownCondition, cond)
	}
	if current.IsNull() || threshold.IsNull() || current.Kind != threshold.Kind {
		return false, nil
	}

	c := compare(current, threshold)
	switch cond {
	case models.ConditionAbove:
		return c > 0, nil
	case models.ConditionBelow:
		return c < 0, nil
	case models.ConditionEquals:
		return c == 0, nil
	case models.ConditionNotEquals:
		return c != 0, nil
	}
	return false, nil
}

// compare orders two values of the same kind.
func compare(a, b models.Value) int {
	if a.IsNumber() {
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		}
		return 0
	}
	switch {
	case a.Str < b.Str:
		return -1
	case a.Str > b.Str:
		return 1
	}
	return 0
}
