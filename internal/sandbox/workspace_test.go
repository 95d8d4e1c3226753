package sandbox

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) (*WorkspaceManager, string) {
	t.Helper()
	base := t.TempDir()
	sims := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(sims, "sim-debug-101"), 0o755))

	m, err := NewWorkspaceManager(base, sims)
	require.NoError(t, err)
	return m, base
}

func TestCreateWorkspaceLayout(t *testing.T) {
	m, _ := testManager(t)

	ws, err := m.Create(Request{
		RunID:            "run-1",
		SimulationID:     "sim-debug-101",
		CandidateCode:    "def fix(): pass",
		CandidateWriteup: "root cause was the cache",
	})
	require.NoError(t, err)
	defer ws.Remove()

	code, err := os.ReadFile(filepath.Join(ws.Root, "submission", "code.py"))
	require.NoError(t, err)
	assert.Equal(t, "def fix(): pass", string(code))

	writeup, err := os.ReadFile(filepath.Join(ws.Root, "submission", "writeup.md"))
	require.NoError(t, err)
	assert.Equal(t, "root cause was the cache", string(writeup))

	info, err := os.Stat(filepath.Join(ws.Root, "output"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateRejectsUnknownSimulation(t *testing.T) {
	m, _ := testManager(t)
	_, err := m.Create(Request{RunID: "run-1", SimulationID: "no-such-sim"})
	assert.Error(t, err)
}

func TestCreateRejectsPathTraversal(t *testing.T) {
	m, _ := testManager(t)
	_, err := m.Create(Request{RunID: "run-1", SimulationID: "../../etc"})
	assert.Error(t, err)
}

func TestStageArtifacts(t *testing.T) {
	m, _ := testManager(t)
	ws, err := m.Create(Request{RunID: "run-1", SimulationID: "sim-debug-101"})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(ws.outputDir, "metrics.json"), []byte(`{"tests_passed": true}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ws.outputDir, "testlog.txt"), []byte("ok"), 0o644))
	// Files outside the closed set are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(ws.outputDir, "notes.txt"), []byte("x"), 0o644))

	artifacts, stagingDir, err := ws.StageArtifacts("run-1")
	require.NoError(t, err)
	defer os.RemoveAll(stagingDir)

	assert.Len(t, artifacts, 2)
	assert.Contains(t, artifacts, "metrics.json")
	assert.Contains(t, artifacts, "testlog.txt")
	assert.NotContains(t, artifacts, "notes.txt")

	// Staged copies survive workspace removal.
	ws.Remove()
	data, err := os.ReadFile(artifacts["metrics.json"])
	require.NoError(t, err)
	assert.Equal(t, `{"tests_passed": true}`, string(data))
}

func TestStageArtifactsEmptyOutput(t *testing.T) {
	m, _ := testManager(t)
	ws, err := m.Create(Request{RunID: "run-1", SimulationID: "sim-debug-101"})
	require.NoError(t, err)
	defer ws.Remove()

	artifacts, stagingDir, err := ws.StageArtifacts("run-1")
	require.NoError(t, err)
	defer os.RemoveAll(stagingDir)
	assert.Empty(t, artifacts)
}

func TestRemoveIsIdempotent(t *testing.T) {
	m, _ := testManager(t)
	ws, err := m.Create(Request{RunID: "run-1", SimulationID: "sim-debug-101"})
	require.NoError(t, err)

	ws.Remove()
	_, statErr := os.Stat(ws.Root)
	assert.True(t, os.IsNotExist(statErr))
	ws.Remove()
}

func TestSweepOrphans(t *testing.T) {
	m, base := testManager(t)

	stale := filepath.Join(base, "run-stale-xyz")
	staleArtifacts := filepath.Join(base, "artifacts-stale-xyz")
	unrelated := filepath.Join(base, "keepme")
	for _, dir := range []string{stale, staleArtifacts, unrelated} {
		require.NoError(t, os.Mkdir(dir, 0o755))
	}
	old := time.Now().Add(-48 * time.Hour)
	for _, dir := range []string{stale, staleArtifacts, unrelated} {
		require.NoError(t, os.Chtimes(dir, old, old))
	}

	fresh, err := m.Create(Request{RunID: "run-fresh", SimulationID: "sim-debug-101"})
	require.NoError(t, err)
	defer fresh.Remove()

	m.SweepOrphans(24 * time.Hour)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(staleArtifacts)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(unrelated)
	assert.NoError(t, err)
	_, err = os.Stat(fresh.Root)
	assert.NoError(t, err)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "run-1", sanitizeName("run-1"))
	assert.Equal(t, "a-b-c", sanitizeName("a/b:c"))
	assert.Len(t, sanitizeName(string(make([]byte, 100))), 52)
}
