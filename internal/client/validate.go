package client

import (
	"fmt"
	"math"
)

func validateUser(userID string, attrs map[string]any) error {
	if userID == "" {
		return &InputValidationError{Field: "user_id", Reason: "cannot be empty"}
	}
	return validateAttributes(attrs)
}

// validateAttributes accepts strings, booleans, finite numbers and nil.
func validateAttributes(attrs map[string]any) error {
	for key, value := range attrs {
		if reason := attributeProblem(value); reason != "" {
			return &InputValidationError{Field: fmt.Sprintf("attribute %q", key), Reason: reason}
		}
	}
	return nil
}

func attributeProblem(value any) string {
	switch v := value.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return ""
	case float32:
		return finiteProblem(float64(v))
	case float64:
		return finiteProblem(v)
	default:
		return fmt.Sprintf("unsupported type %T", value)
	}
}

func finiteProblem(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "number must be finite"
	}
	return ""
}

func validateKey(field, key string) error {
	if key == "" {
		return &InputValidationError{Field: field, Reason: "cannot be empty"}
	}
	return nil
}
