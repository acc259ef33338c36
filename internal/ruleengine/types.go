// Package ruleengine evaluates audience targeting for experiments and feature rollouts.
//
// Condition trees are compiled once from their nested-array encoding into a closed set of
// node types (Leaf, And, Or, Not, AudienceRef) and evaluated many times with three-valued
// logic: a condition that cannot be decided (missing attribute, incompatible type,
// unknown operator) is Unknown rather than false, and Unknown propagates through the
// boolean operators. Match operators are strategies registered in the Engine.
package ruleengine

// Tri is the outcome of a three-valued evaluation. The zero value is Unknown.
type Tri int8

const (
	Unknown Tri = iota
	False
	True
)

// FromBool converts a decided boolean into a Tri.
func FromBool(b bool) Tri {
	if b {
		return True
	}
	return False
}

// Not flips True and False; Unknown stays Unknown.
func (t Tri) Not() Tri {
	switch t {
	case True:
		return False
	case False:
		return True
	default:
		return Unknown
	}
}

// Bool collapses the outcome to a decision. Unknown is treated as non-matching.
func (t Tri) Bool() bool {
	return t == True
}

func (t Tri) String() string {
	switch t {
	case True:
		return "TRUE"
	case False:
		return "FALSE"
	default:
		return "UNKNOWN"
	}
}

// Logical operators of the nested-array encoding.
const (
	OperatorAnd = "and"
	OperatorOr  = "or"
	OperatorNot = "not"
)

// ConditionTypeCustomAttribute is the only leaf condition type evaluated against user attributes.
const ConditionTypeCustomAttribute = "custom_attribute"

// Match operators supported by leaf conditions.
const (
	MatchExact     = "exact"
	MatchExists    = "exists"
	MatchSubstring = "substring"
	MatchGT        = "gt"
	MatchGE        = "ge"
	MatchLT        = "lt"
	MatchLE        = "le"
	MatchSemverEQ  = "semver_eq"
	MatchSemverGT  = "semver_gt"
	MatchSemverGE  = "semver_ge"
	MatchSemverLT  = "semver_lt"
	MatchSemverLE  = "semver_le"
)

// Node is a compiled condition tree. The set of implementations is closed.
type Node interface {
	node()
}

// Leaf compares one user attribute against a condition value.
type Leaf struct {
	// Attribute is the user attribute key.
	Attribute string `json:"name"`

	// Kind is the condition type (only "custom_attribute" is evaluated).
	Kind string `json:"type"`

	// Match is the operator. Compilation fills in "exact" when the document omits it.
	Match string `json:"match"`

	// Value is the comparison value as decoded from JSON (string, float64, bool or nil).
	Value any `json:"value"`
}

// And is True when every child is True.
type And struct {
	Children []Node
}

// Or is True when any child is True.
type Or struct {
	Children []Node
}

// Not negates its child. A missing child evaluates to Unknown.
type Not struct {
	Child Node
}

// AudienceRef is a leaf of an experiment targeting expression naming an audience by id.
type AudienceRef struct {
	ID string
}

func (*Leaf) node()        {}
func (*And) node()         {}
func (*Or) node()          {}
func (*Not) node()         {}
func (*AudienceRef) node() {}

// AudienceLookup resolves audience ids to their compiled condition trees.
type AudienceLookup interface {
	AudienceConditions(id string) (Node, bool)
}

// Attributes are the user attributes a condition tree is evaluated against.
type Attributes = map[string]any
