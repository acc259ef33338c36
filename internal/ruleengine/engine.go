package ruleengine

import (
	"log/slog"
)

// Engine evaluates compiled condition trees and audience targeting expressions.
// It holds no per-call state and is safe for concurrent use.
type Engine struct {
	strategies map[string]Evaluator
	logger     *slog.Logger
}

// New creates a new Engine with every supported match operator registered.
// If logger is nil, it defaults to slog.Default().
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	lt := func(cmp int) bool { return cmp < 0 }
	le := func(cmp int) bool { return cmp <= 0 }
	eq := func(cmp int) bool { return cmp == 0 }
	ge := func(cmp int) bool { return cmp >= 0 }
	gt := func(cmp int) bool { return cmp > 0 }

	return &Engine{
		logger: logger,
		strategies: map[string]Evaluator{
			MatchExact:     ExactEvaluator{},
			MatchExists:    ExistsEvaluator{},
			MatchSubstring: SubstringEvaluator{},
			MatchGT:        NumericEvaluator{Accept: gt},
			MatchGE:        NumericEvaluator{Accept: ge},
			MatchLT:        NumericEvaluator{Accept: lt},
			MatchLE:        NumericEvaluator{Accept: le},
			MatchSemverEQ:  SemverEvaluator{Accept: eq},
			MatchSemverGT:  SemverEvaluator{Accept: gt},
			MatchSemverGE:  SemverEvaluator{Accept: ge},
			MatchSemverLT:  SemverEvaluator{Accept: lt},
			MatchSemverLE:  SemverEvaluator{Accept: le},
		},
	}
}

// Evaluate runs a condition tree against the user attributes.
// Audience references inside the tree evaluate to Unknown; use Match for targeting expressions.
func (e *Engine) Evaluate(node Node, attributes Attributes) Tri {
	return e.eval(node, attributes, nil)
}

// Match evaluates a targeting expression whose leaves reference audiences by id.
// A nil expression targets everyone and returns True.
func (e *Engine) Match(expr Node, audiences AudienceLookup, attributes Attributes) Tri {
	if expr == nil {
		return True
	}
	return e.eval(expr, attributes, audiences)
}

// IsMatch reports whether the user belongs to the targeted audiences.
// An undecidable expression (Unknown) does not match.
func (e *Engine) IsMatch(expr Node, audiences AudienceLookup, attributes Attributes) bool {
	return e.Match(expr, audiences, attributes).Bool()
}

func (e *Engine) eval(node Node, attributes Attributes, audiences AudienceLookup) Tri {
	switch n := node.(type) {
	case *And:
		result := True
		for _, child := range n.Children {
			switch e.eval(child, attributes, audiences) {
			case False:
				return False
			case Unknown:
				result = Unknown
			}
		}
		return result

	case *Or:
		result := False
		for _, child := range n.Children {
			switch e.eval(child, attributes, audiences) {
			case True:
				return True
			case Unknown:
				result = Unknown
			}
		}
		return result

	case *Not:
		if n.Child == nil {
			return Unknown
		}
		return e.eval(n.Child, attributes, audiences).Not()

	case *Leaf:
		return e.evalLeaf(n, attributes)

	case *AudienceRef:
		return e.evalAudience(n, attributes, audiences)

	default:
		return Unknown
	}
}

func (e *Engine) evalLeaf(leaf *Leaf, attributes Attributes) Tri {
	if leaf.Kind != ConditionTypeCustomAttribute {
		e.logger.Warn("skipping condition of unknown type",
			"type", leaf.Kind,
			"attribute", leaf.Attribute,
		)
		return Unknown
	}

	strategy, exists := e.strategies[leaf.Match]
	if !exists {
		e.logger.Warn("skipping condition with unknown match type",
			"match", leaf.Match,
			"attribute", leaf.Attribute,
		)
		return Unknown
	}

	value := attributes[leaf.Attribute]
	if value == nil && leaf.Match != MatchExists {
		e.logger.Debug("attribute missing, condition evaluates to unknown",
			"attribute", leaf.Attribute,
			"match", leaf.Match,
		)
		return Unknown
	}

	match, err := strategy.Eval(leaf, value)
	if err != nil {
		// Fail closed: an undecidable leaf is Unknown, never an error for the caller.
		e.logger.Debug("condition evaluation failed",
			"error", err,
			"attribute", leaf.Attribute,
			"match", leaf.Match,
		)
		return Unknown
	}
	return FromBool(match)
}

func (e *Engine) evalAudience(ref *AudienceRef, attributes Attributes, audiences AudienceLookup) Tri {
	if audiences == nil {
		return Unknown
	}

	conditions, ok := audiences.AudienceConditions(ref.ID)
	if !ok {
		e.logger.Warn("audience not found", "audience_id", ref.ID)
		return Unknown
	}

	// audience conditions never reference other audiences
	result := e.eval(conditions, attributes, nil)
	e.logger.Debug("audience evaluated",
		"audience_id", ref.ID,
		"result", result.String(),
	)
	return result
}
