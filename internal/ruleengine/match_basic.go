package ruleengine

import (
	"fmt"
	"math"
	"strings"
)

// maxSafeNumber is the largest integer magnitude that survives a round trip through
// a float64 (and through the JavaScript SDKs sharing the same datafile).
const maxSafeNumber = 1 << 53

// ExistsEvaluator matches when the attribute is present and not null.
type ExistsEvaluator struct{}

func (ExistsEvaluator) Eval(_ *Leaf, value any) (bool, error) {
	return value != nil, nil
}

// ExactEvaluator matches strings, numbers and booleans by strict type and value equality.
type ExactEvaluator struct{}

func (ExactEvaluator) Eval(condition *Leaf, value any) (bool, error) {
	switch want := condition.Value.(type) {
	case string:
		got, ok := value.(string)
		if !ok {
			return false, incompatible(condition, value)
		}
		return got == want, nil
	case bool:
		got, ok := value.(bool)
		if !ok {
			return false, incompatible(condition, value)
		}
		return got == want, nil
	default:
		wantNum, ok := safeNumber(condition.Value)
		if !ok {
			return false, unsupported(condition)
		}
		gotNum, ok := safeNumber(value)
		if !ok {
			return false, incompatible(condition, value)
		}
		return gotNum == wantNum, nil
	}
}

// SubstringEvaluator matches when the attribute contains the condition value.
type SubstringEvaluator struct{}

func (SubstringEvaluator) Eval(condition *Leaf, value any) (bool, error) {
	want, ok := condition.Value.(string)
	if !ok {
		return false, unsupported(condition)
	}
	got, ok := value.(string)
	if !ok {
		return false, incompatible(condition, value)
	}
	return strings.Contains(got, want), nil
}

// NumericEvaluator compares numeric attributes with the condition value.
type NumericEvaluator struct {
	// Accept reports whether the comparison result (-1, 0, 1) is a match.
	Accept func(cmp int) bool
}

func (e NumericEvaluator) Eval(condition *Leaf, value any) (bool, error) {
	want, ok := safeNumber(condition.Value)
	if !ok {
		return false, unsupported(condition)
	}
	got, ok := safeNumber(value)
	if !ok {
		return false, incompatible(condition, value)
	}

	switch {
	case got < want:
		return e.Accept(-1), nil
	case got > want:
		return e.Accept(1), nil
	default:
		return e.Accept(0), nil
	}
}

// safeNumber converts any Go numeric type to float64.
// Booleans, non-finite values and magnitudes above 2^53 are rejected.
func safeNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > maxSafeNumber {
		return 0, false
	}
	return f, true
}

func unsupported(condition *Leaf) error {
	return fmt.Errorf("%w: %v cannot be used with match %q", ErrUnsupportedValue, condition.Value, condition.Match)
}

func incompatible(condition *Leaf, value any) error {
	return fmt.Errorf("%w: attribute %q has type %T", ErrIncompatibleAttribute, condition.Attribute, value)
}
