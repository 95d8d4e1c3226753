// Package proof is the deterministic rule evaluator. It turns claims
// plus an evidence bag into proved/unproved verdicts with cited
// evidence. Pure computation: no I/O, no clock, no randomness.
package proof

import "veridex/internal/evidence"

// Claim types the initial rule catalog handles. Claims with other
// types evaluate to unproved with a "no rule available" rationale.
const (
	ClaimAddedRegressionTest = "added_regression_test"
	ClaimDebuggingEffective  = "debugging_effective"
	ClaimTestingDiscipline   = "testing_discipline"
	ClaimTimeEfficient       = "time_efficient"
	ClaimHandlesEdgeCases    = "handles_edge_cases"
)

// Dimensions rules inform.
const (
	DimTesting    = "testing"
	DimDebugging  = "debugging"
	DimEfficiency = "efficiency"
	DimQuality    = "quality"
)

// Claim is a typed statement about a candidate to be adjudicated.
type Claim struct {
	ClaimID   string `json:"claim_id"`
	ClaimType string `json:"claim_type"`
	Dimension string `json:"dimension,omitempty"`
	Subject   string `json:"subject,omitempty"`
}

// Evidence reference types.
const (
	RefMetric   = "metric"
	RefArtifact = "artifact"
	RefLLMTag   = "llm_tag"
)

// EvidenceRef cites one entity the rule examined, supporting or not.
type EvidenceRef struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Field string `json:"field,omitempty"`
	Value string `json:"value,omitempty"`
}

// Proof statuses. Unproved is a first-class outcome, not an error.
const (
	StatusProved   = "proved"
	StatusUnproved = "unproved"
)

// ProofResult is the immutable verdict on one claim.
type ProofResult struct {
	ClaimID   string        `json:"claim_id"`
	Status    string        `json:"status"`
	Evidence  []EvidenceRef `json:"evidence"`
	Rationale string        `json:"rationale"`
	RuleID    string        `json:"rule_id,omitempty"`
}

// EvaluateFunc is a pure function from claim and evidence to verdict.
type EvaluateFunc func(claim Claim, bag evidence.Bag) ProofResult

// Rule is a value, not a subclass: identity, the claim types it has
// authority over, the dimensions it informs, and its evaluator.
type Rule struct {
	RuleID     string
	ClaimTypes []string
	Dimensions []string
	Evaluate   EvaluateFunc
}

// Handles reports whether the rule claims authority over a claim type.
func (r Rule) Handles(claimType string) bool {
	for _, t := range r.ClaimTypes {
		if t == claimType {
			return true
		}
	}
	return false
}
