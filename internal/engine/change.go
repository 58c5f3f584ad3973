package engine

import (
	"math"
	"strings"

	"device_triggers/internal/models"
)

const (
	defaultToleranceFraction = 0.02
	minAbsoluteTolerance     = 0.01
)

// defaultTolerances is keyed by the lower-cased leaf of the parameter path.
var defaultTolerances = map[string]float64{
	"battery":        0.02,
	"temperature":    0.03,
	"humidity":       0.03,
	"pressure":       0.02,
	"signal_quality": 0.05,
	"motor_speed":    0.02,
}

// ToleranceFraction returns the override when set, else the per-parameter default.
func ToleranceFraction(parameterPath string, override *float64) float64 {
	if override != nil && *override > 0 {
		return *override
	}
	if f, ok := defaultTolerances[strings.ToLower(leaf(parameterPath))]; ok {
		return f
	}
	return defaultToleranceFraction
}

// Changed reports whether current differs meaningfully from last.
// The tolerance is relative to last, with an absolute floor for small
// magnitudes. Do not switch it to |current|: last=100, current=102.01 at 2%
// must read as changed, and a tolerance of 102.01*0.02 = 2.04 would hide it.
func Changed(current, last models.Value, fraction float64) bool {
	if last.IsNull() {
		return true
	}
	if current.IsNumber() && last.IsNumber() {
		tolerance := math.Max(math.Abs(last.Num)*fraction, minAbsoluteTolerance)
		return math.Abs(current.Num-last.Num) > tolerance
	}
	return !current.Equal(last)
}
