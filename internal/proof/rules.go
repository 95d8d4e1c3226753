package proof

import (
	"fmt"

	"veridex/internal/evidence"
)

// Metric keys the initial catalog reads. The grader documents these as
// its well-known output set.
const (
	keyTestsPassed      = "tests_passed"
	keyTestAdded        = "test_added"
	keyTestFilesChanged = "test_files_changed"
	keyTestsAddedCount  = "tests_added_count"
	keyTimeToGreen      = "time_to_green_seconds"
	keyFailedBefore     = "failed_tests_before"
	keyFailedCount      = "failed_tests_count"
	keySkippedAdded     = "skipped_tests_added"
	keyCoverageDelta    = "coverage_delta"
	keyTotalTests       = "total_tests"
)

const tagRootCauseIdentified = "root_cause_identified"

// evaluation accumulates evidence refs while a rule works through its
// checks. Only entities actually present in the bag are cited; missing
// evidence goes in the rationale.
type evaluation struct {
	claim  Claim
	ruleID string
	refs   []EvidenceRef
}

func (e *evaluation) citeMetric(m evidence.Metrics, key string) (evidence.MetricValue, bool) {
	v, ok := m[key]
	if ok {
		e.refs = append(e.refs, EvidenceRef{Type: RefMetric, ID: key, Value: v.String()})
	}
	return v, ok
}

func (e *evaluation) citeTag(bag evidence.Bag, name string) (evidence.LLMTag, bool) {
	tag, ok := bag.HasTag(name)
	if ok {
		e.refs = append(e.refs, EvidenceRef{Type: RefLLMTag, ID: name, Value: tag.EvidenceQuote})
	}
	return tag, ok
}

func (e *evaluation) proved(rationale string) ProofResult {
	return ProofResult{
		ClaimID:   e.claim.ClaimID,
		Status:    StatusProved,
		Evidence:  e.refs,
		Rationale: rationale,
		RuleID:    e.ruleID,
	}
}

func (e *evaluation) unproved(rationale string) ProofResult {
	return ProofResult{
		ClaimID:   e.claim.ClaimID,
		Status:    StatusUnproved,
		Evidence:  e.refs,
		Rationale: rationale,
		RuleID:    e.ruleID,
	}
}

// DefaultRules returns the initial catalog in its fixed registration
// order. New rules join by appending here.
func DefaultRules() []Rule {
	return []Rule{
		{
			RuleID:     "added_regression_test_v1",
			ClaimTypes: []string{ClaimAddedRegressionTest},
			Dimensions: []string{DimTesting},
			Evaluate:   evalAddedRegressionTest,
		},
		{
			RuleID:     "debugging_effective_v1",
			ClaimTypes: []string{ClaimDebuggingEffective},
			Dimensions: []string{DimDebugging, DimEfficiency},
			Evaluate:   evalDebuggingEffective,
		},
		{
			RuleID:     "testing_discipline_v1",
			ClaimTypes: []string{ClaimTestingDiscipline},
			Dimensions: []string{DimTesting, DimQuality},
			Evaluate:   evalTestingDiscipline,
		},
		{
			RuleID:     "time_efficient_v1",
			ClaimTypes: []string{ClaimTimeEfficient},
			Dimensions: []string{DimEfficiency},
			Evaluate:   evalTimeEfficient,
		},
		{
			RuleID:     "handles_edge_cases_v1",
			ClaimTypes: []string{ClaimHandlesEdgeCases},
			Dimensions: []string{DimTesting, DimQuality},
			Evaluate:   evalHandlesEdgeCases,
		},
	}
}

// evalAddedRegressionTest: tests pass and either the grader flagged an
// added test or both test_files_changed and tests_added_count are
// positive.
func evalAddedRegressionTest(claim Claim, bag evidence.Bag) ProofResult {
	e := &evaluation{claim: claim, ruleID: "added_regression_test_v1"}

	passedVal, ok := e.citeMetric(bag.Metrics, keyTestsPassed)
	if !ok {
		return e.unproved("tests_passed is unknown")
	}
	passed, _ := passedVal.AsBool()
	if !passed {
		return e.unproved("tests did not pass")
	}

	if addedVal, ok := e.citeMetric(bag.Metrics, keyTestAdded); ok {
		if added, _ := addedVal.AsBool(); added {
			return e.proved("tests passed and the grader flagged an added test")
		}
	}

	filesVal, filesOK := e.citeMetric(bag.Metrics, keyTestFilesChanged)
	countVal, countOK := e.citeMetric(bag.Metrics, keyTestsAddedCount)
	if filesOK && countOK {
		files, _ := filesVal.AsInt()
		count, _ := countVal.AsInt()
		if files > 0 && count > 0 {
			return e.proved(fmt.Sprintf("tests passed with %d test file(s) changed and %d test(s) added", files, count))
		}
	}

	missing := "test_added flag"
	if !filesOK {
		missing += ", test_files_changed"
	}
	if !countOK {
		missing += ", tests_added_count"
	}
	return e.unproved("no evidence of an added regression test (" + missing + " absent or zero)")
}

// evalDebuggingEffective: tests pass, and either the tagger identified
// a root cause or there was a pre-existing failure to repair. Time to
// green beyond the pace ceiling is recorded but does not invalidate a
// proved verdict in this catalog.
func evalDebuggingEffective(claim Claim, bag evidence.Bag) ProofResult {
	e := &evaluation{claim: claim, ruleID: "debugging_effective_v1"}

	passedVal, ok := e.citeMetric(bag.Metrics, keyTestsPassed)
	if !ok {
		return e.unproved("tests_passed is unknown")
	}
	passed, _ := passedVal.AsBool()
	if !passed {
		return e.unproved("tests did not pass")
	}

	overTimeNote := ""
	if timeVal, ok := e.citeMetric(bag.Metrics, keyTimeToGreen); ok {
		if ttg, ok := timeVal.AsFloat(); ok {
			if ceiling := maxTimeToGreen(bag.COM); ttg > ceiling {
				overTimeNote = fmt.Sprintf("; time_to_green_seconds %g exceeded the %s-pace ceiling %g", ttg, bag.COM.NormalizedPace(), ceiling)
			}
		}
	}

	if _, ok := e.citeTag(bag, tagRootCauseIdentified); ok {
		return e.proved("tests passed and the tagger identified a root cause" + overTimeNote)
	}

	if beforeVal, ok := e.citeMetric(bag.Metrics, keyFailedBefore); ok {
		if before, _ := beforeVal.AsInt(); before > 0 {
			return e.proved(fmt.Sprintf("tests passed after repairing %d failing test(s)%s", before, overTimeNote))
		}
	}

	return e.unproved("no root_cause_identified tag and no pre-existing failure to repair" + overTimeNote)
}

// evalTestingDiscipline: no skipped tests introduced, coverage held to
// the quality bar, and at least one test added. Keeping tests green
// without adding any is explicitly not discipline.
func evalTestingDiscipline(claim Claim, bag evidence.Bag) ProofResult {
	e := &evaluation{claim: claim, ruleID: "testing_discipline_v1"}

	if skippedVal, ok := e.citeMetric(bag.Metrics, keySkippedAdded); ok {
		if skipped, _ := skippedVal.AsInt(); skipped > 0 {
			return e.unproved(fmt.Sprintf("%d skipped test(s) were introduced", skipped))
		}
	}

	if deltaVal, ok := e.citeMetric(bag.Metrics, keyCoverageDelta); ok {
		if delta, ok := deltaVal.AsFloat(); ok {
			if floor := minCoverageDelta(bag.COM); delta < floor {
				return e.unproved(fmt.Sprintf("coverage_delta %g is below the %s-quality floor %g", delta, bag.COM.NormalizedQualityBar(), floor))
			}
		}
	}

	countVal, ok := e.citeMetric(bag.Metrics, keyTestsAddedCount)
	if !ok {
		return e.unproved("tests_added_count is unknown")
	}
	count, _ := countVal.AsInt()
	if count <= 0 {
		return e.unproved("no tests were added; keeping tests green alone does not demonstrate discipline")
	}
	return e.proved(fmt.Sprintf("%d test(s) added with no skips and coverage within the quality bar", count))
}

// evalTimeEfficient: time_to_green_seconds within the pace ceiling.
func evalTimeEfficient(claim Claim, bag evidence.Bag) ProofResult {
	e := &evaluation{claim: claim, ruleID: "time_efficient_v1"}

	timeVal, ok := e.citeMetric(bag.Metrics, keyTimeToGreen)
	if !ok {
		return e.unproved("time_to_green_seconds is unknown")
	}
	ttg, ok := timeVal.AsFloat()
	if !ok {
		return e.unproved("time_to_green_seconds is not numeric")
	}

	ceiling := maxTimeToGreen(bag.COM)
	if ttg <= ceiling {
		return e.proved(fmt.Sprintf("time_to_green_seconds %g is within the %s-pace ceiling %g", ttg, bag.COM.NormalizedPace(), ceiling))
	}
	return e.unproved(fmt.Sprintf("time_to_green_seconds %g exceeds the %s-pace ceiling %g", ttg, bag.COM.NormalizedPace(), ceiling))
}

// evalHandlesEdgeCases: tests pass with zero failures. total_tests is
// recorded when present but never gates the verdict.
func evalHandlesEdgeCases(claim Claim, bag evidence.Bag) ProofResult {
	e := &evaluation{claim: claim, ruleID: "handles_edge_cases_v1"}

	passedVal, ok := e.citeMetric(bag.Metrics, keyTestsPassed)
	if !ok {
		return e.unproved("tests_passed is unknown")
	}
	passed, _ := passedVal.AsBool()
	if !passed {
		return e.unproved("tests did not pass")
	}

	failedVal, ok := e.citeMetric(bag.Metrics, keyFailedCount)
	if !ok {
		return e.unproved("failed_tests_count is unknown")
	}
	failed, _ := failedVal.AsInt()

	e.citeMetric(bag.Metrics, keyTotalTests)

	if failed == 0 {
		return e.proved("tests passed with zero failing tests")
	}
	return e.unproved(fmt.Sprintf("%d test(s) still failing", failed))
}
