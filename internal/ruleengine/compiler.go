package ruleengine

import (
	"encoding/json"
	"fmt"
)

// MaxConditionDepth bounds the nesting of a condition tree.
// Real audiences rarely nest beyond three levels; anything deeper is treated as malformed input.
const MaxConditionDepth = 32

// leafCompiler turns a non-array element of the encoding into a leaf node.
type leafCompiler func(raw any) (Node, error)

// Compile builds a condition tree from its decoded nested-array encoding.
// Arrays start with an optional operator ("and", "or", "not"); an array without one is an
// implicit "or". Objects are leaf conditions.
func Compile(raw any) (Node, error) {
	return compileTree(raw, 0, compileLeaf)
}

// CompileString decodes a JSON encoded condition tree and compiles it.
func CompileString(s string) (Node, error) {
	var raw any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCondition, err)
	}
	return Compile(raw)
}

// CompileAudienceIDs builds the targeting expression of the legacy audience id list:
// an implicit AND of every listed audience. An empty list targets everyone (nil).
func CompileAudienceIDs(ids []string) Node {
	if len(ids) == 0 {
		return nil
	}
	children := make([]Node, 0, len(ids))
	for _, id := range ids {
		children = append(children, &AudienceRef{ID: id})
	}
	return &And{Children: children}
}

// CompileAudienceConditions builds a targeting expression whose leaves are audience ids.
// A nil or empty encoding targets everyone (nil).
func CompileAudienceConditions(raw any) (Node, error) {
	if raw == nil {
		return nil, nil
	}
	if arr, ok := raw.([]any); ok && len(arr) == 0 {
		return nil, nil
	}
	return compileTree(raw, 0, compileAudienceRef)
}

func compileTree(raw any, depth int, leaf leafCompiler) (Node, error) {
	if depth > MaxConditionDepth {
		return nil, fmt.Errorf("%w: nesting exceeds %d levels", ErrInvalidCondition, MaxConditionDepth)
	}

	arr, ok := raw.([]any)
	if !ok {
		return leaf(raw)
	}

	operator := OperatorOr
	rest := arr
	if len(arr) > 0 {
		if op, isString := arr[0].(string); isString && isOperator(op) {
			operator = op
			rest = arr[1:]
		}
	}

	children := make([]Node, 0, len(rest))
	for _, item := range rest {
		child, err := compileTree(item, depth+1, leaf)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	switch operator {
	case OperatorAnd:
		return &And{Children: children}, nil
	case OperatorNot:
		// only the first operand is negated
		if len(children) == 0 {
			return &Not{}, nil
		}
		return &Not{Child: children[0]}, nil
	default:
		return &Or{Children: children}, nil
	}
}

func isOperator(s string) bool {
	return s == OperatorAnd || s == OperatorOr || s == OperatorNot
}

// compileLeaf parses a leaf object: {"name", "type", "match", "value"}.
func compileLeaf(raw any) (Node, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: leaf must be an object, got %T", ErrInvalidCondition, raw)
	}

	leaf := &Leaf{Value: obj["value"]}
	var err error
	if leaf.Attribute, err = optionalString(obj, "name"); err != nil {
		return nil, err
	}
	if leaf.Kind, err = optionalString(obj, "type"); err != nil {
		return nil, err
	}
	if leaf.Match, err = optionalString(obj, "match"); err != nil {
		return nil, err
	}
	if leaf.Match == "" {
		leaf.Match = MatchExact
	}
	return leaf, nil
}

func optionalString(obj map[string]any, key string) (string, error) {
	v, present := obj[key]
	if !present || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q must be a string, got %T", ErrInvalidCondition, key, v)
	}
	return s, nil
}

func compileAudienceRef(raw any) (Node, error) {
	id, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%w: audience reference must be a string id, got %T", ErrInvalidCondition, raw)
	}
	return &AudienceRef{ID: id}, nil
}
