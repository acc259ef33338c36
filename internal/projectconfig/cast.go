package projectconfig

import (
	"encoding/json"
	"math"
	"strconv"
)

// Cast converts a string encoded variable value to its declared type:
// bool, int, float64, string or a decoded JSON value (map[string]any for objects).
// It reports false when the value cannot be parsed; callers fall back to the default.
func Cast(value string, kind VariableType) (any, bool) {
	switch kind {
	case VariableBoolean:
		switch value {
		case "true":
			return true, true
		case "false":
			return false, true
		}
		return nil, false
	case VariableInteger:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, false
		}
		return n, true
	case VariableDouble:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		return f, true
	case VariableString:
		return value, true
	case VariableJSON:
		var out any
		if err := json.Unmarshal([]byte(value), &out); err != nil {
			return nil, false
		}
		return out, true
	default:
		return nil, false
	}
}
