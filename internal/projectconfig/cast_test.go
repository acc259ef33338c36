package projectconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCast(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		value  string
		kind   VariableType
		want   any
		wantOK bool
	}{
		{"Should cast true", "true", VariableBoolean, true, true},
		{"Should cast false", "false", VariableBoolean, false, true},
		{"Should reject loose boolean", "1", VariableBoolean, nil, false},
		{"Should cast integer", "42", VariableInteger, 42, true},
		{"Should reject decimal integer", "4.2", VariableInteger, nil, false},
		{"Should cast double", "0.25", VariableDouble, 0.25, true},
		{"Should reject text double", "abc", VariableDouble, nil, false},
		{"Should reject NaN double", "NaN", VariableDouble, nil, false},
		{"Should reject infinite double", "+Inf", VariableDouble, nil, false},
		{"Should reject negative infinite double", "-Infinity", VariableDouble, nil, false},
		{"Should pass strings through", "hello", VariableString, "hello", true},
		{"Should decode JSON objects", `{"theme": "dark"}`, VariableJSON, map[string]any{"theme": "dark"}, true},
		{"Should reject invalid JSON", `{"theme"`, VariableJSON, nil, false},
		{"Should reject unknown types", "1", VariableType("float"), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Cast(tt.value, tt.kind)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
