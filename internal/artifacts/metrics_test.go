package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veridex/internal/evidence"
)

func writeArtifact(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseRunMetricsGraderWinsOnConflict(t *testing.T) {
	dir := t.TempDir()
	artifacts := map[string]string{
		MetricsArtifact:      writeArtifact(t, dir, MetricsArtifact, `{"tests_passed": false, "total_tests": 10}`),
		GraderOutputArtifact: writeArtifact(t, dir, GraderOutputArtifact, `{"metrics": {"tests_passed": true}, "notes": "ignored"}`),
	}

	m := ParseRunMetrics("run-1", artifacts)

	passed, ok := m.GetBool("tests_passed")
	assert.True(t, ok)
	assert.True(t, passed)

	total, ok := m.GetInt("total_tests")
	assert.True(t, ok)
	assert.Equal(t, int64(10), total)
}

func TestParseRunMetricsMissingArtifacts(t *testing.T) {
	m := ParseRunMetrics("run-1", map[string]string{})
	assert.Empty(t, m)
	assert.NotNil(t, m)
}

func TestParseRunMetricsMalformedIsSkipped(t *testing.T) {
	dir := t.TempDir()
	artifacts := map[string]string{
		MetricsArtifact:      writeArtifact(t, dir, MetricsArtifact, `not json at all`),
		GraderOutputArtifact: writeArtifact(t, dir, GraderOutputArtifact, `{"metrics": {"tests_passed": true}}`),
	}

	m := ParseRunMetrics("run-1", artifacts)
	assert.Equal(t, evidence.Metrics{"tests_passed": evidence.Bool(true)}, m)
}

func TestParseRunMetricsGraderWithoutMetricsSubtree(t *testing.T) {
	dir := t.TempDir()
	artifacts := map[string]string{
		MetricsArtifact:      writeArtifact(t, dir, MetricsArtifact, `{"coverage_delta": -1.5}`),
		GraderOutputArtifact: writeArtifact(t, dir, GraderOutputArtifact, `{"verdict": "pass"}`),
	}

	m := ParseRunMetrics("run-1", artifacts)
	delta, ok := m.GetFloat("coverage_delta")
	assert.True(t, ok)
	assert.Equal(t, -1.5, delta)
}

func TestParseRunMetricsUnreadableFile(t *testing.T) {
	m := ParseRunMetrics("run-1", map[string]string{
		MetricsArtifact: "/nonexistent/metrics.json",
	})
	assert.Empty(t, m)
}
