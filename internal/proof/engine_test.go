package proof

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veridex/internal/evidence"
)

// cleanBugfixBag is a run where the candidate found the root cause,
// added regression tests, and went green quickly.
func cleanBugfixBag() evidence.Bag {
	return evidence.Bag{
		Metrics: evidence.Metrics{
			"tests_passed":          evidence.Bool(true),
			"test_added":            evidence.Bool(true),
			"test_files_changed":    evidence.Int(1),
			"tests_added_count":     evidence.Int(2),
			"time_to_green_seconds": evidence.Int(1200),
			"failed_tests_before":   evidence.Int(2),
			"failed_tests_count":    evidence.Int(0),
			"skipped_tests_added":   evidence.Int(0),
			"coverage_delta":        evidence.Float(1.5),
			"total_tests":           evidence.Int(50),
		},
		LLMTags: []evidence.LLMTag{
			{Tag: "root_cause_identified", EvidenceQuote: "traced the nil deref to the cache refresh path"},
		},
		COM: evidence.ContextManifest{Pace: "medium", QualityBar: "medium"},
	}
}

func allClaims() []Claim {
	return []Claim{
		{ClaimID: "c1", ClaimType: ClaimAddedRegressionTest},
		{ClaimID: "c2", ClaimType: ClaimDebuggingEffective},
		{ClaimID: "c3", ClaimType: ClaimTestingDiscipline},
		{ClaimID: "c4", ClaimType: ClaimTimeEfficient},
		{ClaimID: "c5", ClaimType: ClaimHandlesEdgeCases},
	}
}

func TestCleanBugfixProvesAllClaims(t *testing.T) {
	engine := NewEngine()
	results := engine.EvaluateClaims(allClaims(), cleanBugfixBag())
	require.Len(t, results, 5)

	for _, res := range results {
		assert.Equal(t, StatusProved, res.Status, "claim %s: %s", res.ClaimID, res.Rationale)
		assert.NotEmpty(t, res.RuleID, "claim %s", res.ClaimID)
		assert.NotEmpty(t, res.Evidence, "claim %s", res.ClaimID)
		assert.NotEmpty(t, res.Rationale, "claim %s", res.ClaimID)
	}
}

func TestSkippedTestBreaksDiscipline(t *testing.T) {
	bag := cleanBugfixBag()
	bag.Metrics["skipped_tests_added"] = evidence.Int(1)

	res := NewEngine().Evaluate(Claim{ClaimID: "c3", ClaimType: ClaimTestingDiscipline}, bag)
	assert.Equal(t, StatusUnproved, res.Status)
	assert.Contains(t, res.Rationale, "skipped")
}

func TestOverTimeFailsEfficiencyButNotDebugging(t *testing.T) {
	bag := cleanBugfixBag()
	bag.Metrics["time_to_green_seconds"] = evidence.Int(3200) // over the medium ceiling of 3000

	engine := NewEngine()

	res := engine.Evaluate(Claim{ClaimID: "c4", ClaimType: ClaimTimeEfficient}, bag)
	assert.Equal(t, StatusUnproved, res.Status)
	assert.Contains(t, res.Rationale, "exceeds")

	// Debugging effectiveness notes the overrun without invalidating.
	res = engine.Evaluate(Claim{ClaimID: "c2", ClaimType: ClaimDebuggingEffective}, bag)
	assert.Equal(t, StatusProved, res.Status)
	assert.Contains(t, res.Rationale, "exceeded")
}

func TestPaceCeilingsDiffer(t *testing.T) {
	bag := cleanBugfixBag()
	bag.Metrics["time_to_green_seconds"] = evidence.Int(2500)
	claim := Claim{ClaimID: "c4", ClaimType: ClaimTimeEfficient}
	engine := NewEngine()

	bag.COM.Pace = "high" // ceiling 2400
	assert.Equal(t, StatusUnproved, engine.Evaluate(claim, bag).Status)

	bag.COM.Pace = "low" // ceiling 3600
	assert.Equal(t, StatusProved, engine.Evaluate(claim, bag).Status)

	bag.COM.Pace = "unknown" // normalizes to medium, ceiling 3000
	assert.Equal(t, StatusProved, engine.Evaluate(claim, bag).Status)
}

func TestCoverageFloorTracksQualityBar(t *testing.T) {
	bag := cleanBugfixBag()
	bag.Metrics["coverage_delta"] = evidence.Float(-6)
	claim := Claim{ClaimID: "c3", ClaimType: ClaimTestingDiscipline}
	engine := NewEngine()

	bag.COM.QualityBar = "high" // floor 0
	res := engine.Evaluate(claim, bag)
	assert.Equal(t, StatusUnproved, res.Status)
	assert.Contains(t, res.Rationale, "coverage_delta")

	bag.COM.QualityBar = "low" // floor -10
	assert.Equal(t, StatusProved, engine.Evaluate(claim, bag).Status)
}

func TestDisciplineWithoutAddedTestsIsUnproved(t *testing.T) {
	bag := cleanBugfixBag()
	bag.Metrics["tests_added_count"] = evidence.Int(0)

	res := NewEngine().Evaluate(Claim{ClaimID: "c3", ClaimType: ClaimTestingDiscipline}, bag)
	assert.Equal(t, StatusUnproved, res.Status)
	assert.Contains(t, res.Rationale, "no tests were added")
}

func TestUnknownClaimTypeIsUnprovedNotError(t *testing.T) {
	res := NewEngine().Evaluate(Claim{ClaimID: "cx", ClaimType: "wrote_great_docs"}, cleanBugfixBag())
	assert.Equal(t, StatusUnproved, res.Status)
	assert.Equal(t, "no rule available", res.Rationale)
	assert.Empty(t, res.RuleID)
	assert.Empty(t, res.Evidence)
}

func TestMissingEvidenceIsNotCited(t *testing.T) {
	bag := evidence.Bag{Metrics: evidence.Metrics{}}

	res := NewEngine().Evaluate(Claim{ClaimID: "c1", ClaimType: ClaimAddedRegressionTest}, bag)
	assert.Equal(t, StatusUnproved, res.Status)
	// Nothing was present, so nothing may be cited.
	assert.Empty(t, res.Evidence)
	assert.Contains(t, res.Rationale, "tests_passed")
}

func TestEmptyEvidenceLeavesEveryClaimUnproved(t *testing.T) {
	engine := NewEngine()
	results := engine.EvaluateClaims(allClaims(), evidence.Bag{Metrics: evidence.Metrics{}})
	require.Len(t, results, 5)
	for _, res := range results {
		assert.Equal(t, StatusUnproved, res.Status, "claim %s", res.ClaimID)
	}
}

func TestDebuggingFallsBackToPriorFailures(t *testing.T) {
	bag := cleanBugfixBag()
	bag.LLMTags = nil

	res := NewEngine().Evaluate(Claim{ClaimID: "c2", ClaimType: ClaimDebuggingEffective}, bag)
	assert.Equal(t, StatusProved, res.Status)
	assert.Contains(t, res.Rationale, "repairing")

	bag.Metrics["failed_tests_before"] = evidence.Int(0)
	res = NewEngine().Evaluate(Claim{ClaimID: "c2", ClaimType: ClaimDebuggingEffective}, bag)
	assert.Equal(t, StatusUnproved, res.Status)
}

func TestEvaluationIsDeterministic(t *testing.T) {
	engine := NewEngine()
	claims := allClaims()
	bag := cleanBugfixBag()

	first := engine.EvaluateClaims(claims, bag)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, engine.EvaluateClaims(claims, bag))
	}
}

func TestFirstMatchingRuleWins(t *testing.T) {
	calls := []string{}
	mk := func(id string) Rule {
		return Rule{
			RuleID:     id,
			ClaimTypes: []string{"shared_type"},
			Evaluate: func(claim Claim, bag evidence.Bag) ProofResult {
				calls = append(calls, id)
				return ProofResult{ClaimID: claim.ClaimID, Status: StatusProved, RuleID: id}
			},
		}
	}

	engine := NewEngineWithRules([]Rule{mk("first"), mk("second")})
	res := engine.Evaluate(Claim{ClaimID: "c", ClaimType: "shared_type"}, evidence.Bag{})
	assert.Equal(t, "first", res.RuleID)
	assert.Equal(t, []string{"first"}, calls)
}

func TestProvedResultsCiteExaminedEvidence(t *testing.T) {
	res := NewEngine().Evaluate(Claim{ClaimID: "c2", ClaimType: ClaimDebuggingEffective}, cleanBugfixBag())
	require.Equal(t, StatusProved, res.Status)

	ids := map[string]bool{}
	for _, ref := range res.Evidence {
		ids[ref.ID] = true
	}
	assert.True(t, ids["tests_passed"])
	assert.True(t, ids["root_cause_identified"])
}
