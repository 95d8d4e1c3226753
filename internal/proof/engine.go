package proof

import "veridex/internal/evidence"

// Engine dispatches claims to the first registered rule that handles
// their type. Registration order is fixed at construction, so repeated
// evaluations of equal inputs produce equal outputs.
type Engine struct {
	rules []Rule
}

// NewEngine builds an engine over the default rule catalog.
func NewEngine() *Engine {
	return NewEngineWithRules(DefaultRules())
}

// NewEngineWithRules builds an engine over an explicit ordered rule
// set. Mostly for tests and future catalogs.
func NewEngineWithRules(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// Rules returns the registered rules in dispatch order.
func (e *Engine) Rules() []Rule {
	return e.rules
}

// Evaluate adjudicates one claim. A claim no rule handles yields
// unproved with a "no rule available" rationale; it is not an error.
func (e *Engine) Evaluate(claim Claim, bag evidence.Bag) ProofResult {
	for _, rule := range e.rules {
		if rule.Handles(claim.ClaimType) {
			return rule.Evaluate(claim, bag)
		}
	}
	return ProofResult{
		ClaimID:   claim.ClaimID,
		Status:    StatusUnproved,
		Evidence:  nil,
		Rationale: "no rule available",
	}
}

// EvaluateClaims adjudicates each claim in order against the same
// evidence bag.
func (e *Engine) EvaluateClaims(claims []Claim, bag evidence.Bag) []ProofResult {
	results := make([]ProofResult, 0, len(claims))
	for _, claim := range claims {
		results = append(results, e.Evaluate(claim, bag))
	}
	return results
}
