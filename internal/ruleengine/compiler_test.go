package ruleengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileString(t *testing.T) {
	t.Parallel()

	browser := &Leaf{Attribute: "browser", Kind: ConditionTypeCustomAttribute, Match: MatchExact, Value: "chrome"}

	tests := []struct {
		name    string
		input   string
		want    Node
		wantErr bool
	}{
		{
			name:  "Should compile explicit and/or nesting",
			input: `["and", ["or", ["or", {"name": "browser", "type": "custom_attribute", "value": "chrome"}]]]`,
			want:  &And{Children: []Node{&Or{Children: []Node{&Or{Children: []Node{browser}}}}}},
		},
		{
			name:  "Should treat an array without operator as implicit or",
			input: `[{"name": "browser", "type": "custom_attribute", "value": "chrome"}]`,
			want:  &Or{Children: []Node{browser}},
		},
		{
			name:  "Should keep only the first operand of not",
			input: `["not", {"name": "browser", "type": "custom_attribute", "value": "chrome"}, {"name": "x"}]`,
			want:  &Not{Child: browser},
		},
		{
			name:  "Should compile empty not without child",
			input: `["not"]`,
			want:  &Not{},
		},
		{
			name:  "Should compile a bare object as a leaf",
			input: `{"name": "age", "type": "custom_attribute", "match": "gt", "value": 18}`,
			want:  &Leaf{Attribute: "age", Kind: ConditionTypeCustomAttribute, Match: MatchGT, Value: float64(18)},
		},
		{
			name:  "Should compile empty array as empty or",
			input: `[]`,
			want:  &Or{Children: []Node{}},
		},
		{
			name:    "Should reject invalid JSON",
			input:   `["and", `,
			wantErr: true,
		},
		{
			name:    "Should reject a non object leaf",
			input:   `["and", 42]`,
			wantErr: true,
		},
		{
			name:    "Should reject a non string match",
			input:   `[{"name": "a", "type": "custom_attribute", "match": 3}]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := CompileString(tt.input)

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCondition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompile_MaxDepth(t *testing.T) {
	t.Parallel()

	var raw any = map[string]any{"name": "a", "type": "custom_attribute", "value": "b"}
	for range MaxConditionDepth + 2 {
		raw = []any{"and", raw}
	}

	_, err := Compile(raw)

	assert.ErrorIs(t, err, ErrInvalidCondition)
}

func TestCompileAudienceIDs(t *testing.T) {
	t.Parallel()

	t.Run("Should target everyone on empty list", func(t *testing.T) {
		assert.Nil(t, CompileAudienceIDs(nil))
	})

	t.Run("Should AND every audience", func(t *testing.T) {
		got := CompileAudienceIDs([]string{"1", "2"})
		assert.Equal(t, &And{Children: []Node{&AudienceRef{ID: "1"}, &AudienceRef{ID: "2"}}}, got)
	})
}

func TestCompileAudienceConditions(t *testing.T) {
	t.Parallel()

	t.Run("Should compile operators over ids", func(t *testing.T) {
		got, err := CompileAudienceConditions([]any{"or", "1", []any{"not", "2"}})
		require.NoError(t, err)
		assert.Equal(t, &Or{Children: []Node{&AudienceRef{ID: "1"}, &Not{Child: &AudienceRef{ID: "2"}}}}, got)
	})

	t.Run("Should target everyone on nil or empty encoding", func(t *testing.T) {
		got, err := CompileAudienceConditions(nil)
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = CompileAudienceConditions([]any{})
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Should accept a single id", func(t *testing.T) {
		got, err := CompileAudienceConditions("7")
		require.NoError(t, err)
		assert.Equal(t, &AudienceRef{ID: "7"}, got)
	})

	t.Run("Should reject numeric ids", func(t *testing.T) {
		_, err := CompileAudienceConditions([]any{"and", float64(1)})
		assert.ErrorIs(t, err, ErrInvalidCondition)
	})
}
