package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"device_triggers/internal/models"
)

// Canonical coerces an arbitrary decoded value into its canonical form.
// Applying it to its own output returns the same value.
func Canonical(v any) models.Value {
	switch t := v.(type) {
	case nil:
		return models.Null()
	case models.Value:
		switch t.Kind {
		case models.KindString:
			return canonicalString(t.Str)
		case models.KindNumber:
			return finite(t.Num)
		default:
			return models.Null()
		}
	case *models.Value:
		if t == nil {
			return models.Null()
		}
		return Canonical(*t)
	case float64:
		return finite(t)
	case float32:
		return finite(float64(t))
	case int:
		return models.Number(float64(t))
	case int8:
		return models.Number(float64(t))
	case int16:
		return models.Number(float64(t))
	case int32:
		return models.Number(float64(t))
	case int64:
		return models.Number(float64(t))
	case uint:
		return models.Number(float64(t))
	case uint8:
		return models.Number(float64(t))
	case uint16:
		return models.Number(float64(t))
	case uint32:
		return models.Number(float64(t))
	case uint64:
		return models.Number(float64(t))
	case json.Number:
		return canonicalString(t.String())
	case bool:
		if t {
			return models.Number(1)
		}
		return models.Number(0)
	case string:
		return canonicalString(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return models.String(fmt.Sprint(t))
		}
		return models.String(string(b))
	}
}

func canonicalString(s string) models.Value {
	trimmed := strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return models.Number(f)
	}
	switch strings.ToLower(trimmed) {
	case "true", "on":
		return models.Number(1)
	case "false", "off":
		return models.Number(0)
	}
	return models.String(s)
}

// finite keeps NaN and infinities out of the number kind; they are not
// comparable and do not survive JSON persistence.
func finite(f float64) models.Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return models.String(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return models.Number(f)
}
