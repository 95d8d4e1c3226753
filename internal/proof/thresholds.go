package proof

import "veridex/internal/evidence"

// COM-driven threshold tables. Fixed at build time; rules look values
// up by the manifest's pace or quality bar, with unknown levels
// normalized to medium before lookup.

// timeToGreenMax is the maximum acceptable time_to_green_seconds by
// pace. Shared by time_efficient and debugging_effective.
var timeToGreenMax = map[string]float64{
	evidence.LevelHigh:   2400,
	evidence.LevelMedium: 3000,
	evidence.LevelLow:    3600,
}

// coverageDeltaMin is the minimum acceptable coverage_delta in
// percentage points by quality bar.
var coverageDeltaMin = map[string]float64{
	evidence.LevelHigh:   0,
	evidence.LevelMedium: -5,
	evidence.LevelLow:    -10,
}

// maxTimeToGreen resolves the pace-driven ceiling.
func maxTimeToGreen(com evidence.ContextManifest) float64 {
	return timeToGreenMax[com.NormalizedPace()]
}

// minCoverageDelta resolves the quality-bar-driven floor.
func minCoverageDelta(com evidence.ContextManifest) float64 {
	return coverageDeltaMin[com.NormalizedQualityBar()]
}
