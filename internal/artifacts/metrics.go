package artifacts

import (
	"bytes"
	"encoding/json"
	"os"

	"go.uber.org/zap"

	"veridex/internal/evidence"
	"veridex/internal/logging"
)

// Well-known artifact names carrying metrics.
const (
	MetricsArtifact      = "metrics.json"
	GraderOutputArtifact = "grader_output.json"
)

// graderOutput is the structured grader document. Only the metrics
// subtree matters here; the rest is opaque.
type graderOutput struct {
	Metrics json.RawMessage `json:"metrics"`
}

// ParseRunMetrics builds the typed metrics dictionary for a run:
// metrics.json first, then grader_output.json's metrics subtree
// shallow-merged on top (grader wins on conflict). Missing artifacts
// yield an empty dictionary; malformed JSON is logged and skipped so a
// bad grader document never fails the job.
func ParseRunMetrics(runID string, artifacts map[string]string) evidence.Metrics {
	metrics := evidence.Metrics{}

	if path, ok := artifacts[MetricsArtifact]; ok {
		if m := parseMetricsFile(runID, MetricsArtifact, path); m != nil {
			metrics = metrics.Merge(m)
		}
	}

	if path, ok := artifacts[GraderOutputArtifact]; ok {
		if m := parseGraderMetrics(runID, path); m != nil {
			metrics = metrics.Merge(m)
		}
	}

	return metrics
}

func parseMetricsFile(runID, name, path string) evidence.Metrics {
	data, err := os.ReadFile(path)
	if err != nil {
		logging.L().Warn("metrics artifact unreadable",
			zap.String("run_id", runID), zap.String("artifact", name), zap.Error(err))
		return nil
	}
	m, err := evidence.ParseMetrics(data)
	if err != nil {
		logging.L().Warn("metrics artifact malformed, skipping",
			zap.String("run_id", runID), zap.String("artifact", name), zap.Error(err))
		return nil
	}
	return m
}

func parseGraderMetrics(runID, path string) evidence.Metrics {
	data, err := os.ReadFile(path)
	if err != nil {
		logging.L().Warn("grader output unreadable",
			zap.String("run_id", runID), zap.Error(err))
		return nil
	}

	var out graderOutput
	d := json.NewDecoder(bytes.NewReader(data))
	if err := d.Decode(&out); err != nil {
		logging.L().Warn("grader output malformed, skipping",
			zap.String("run_id", runID), zap.Error(err))
		return nil
	}
	if len(out.Metrics) == 0 {
		return nil
	}

	m, err := evidence.ParseMetrics(out.Metrics)
	if err != nil {
		logging.L().Warn("grader metrics subtree malformed, skipping",
			zap.String("run_id", runID), zap.Error(err))
		return nil
	}
	return m
}
