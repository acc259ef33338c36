package ruleengine

// Evaluator is implemented by every match operator.
//
// Parameters:
//   - condition: the compiled leaf (operator and comparison value).
//   - value: the user attribute value, nil when the attribute is absent.
//
// Returns a decided boolean, or an error when the comparison cannot be made
// (unsupported condition value, incompatible attribute type). The Engine turns
// errors into Unknown.
type Evaluator interface {
	Eval(condition *Leaf, value any) (bool, error)
}
