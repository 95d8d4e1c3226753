package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"veridex/internal/logging"
)

// ArtifactNames is the closed set of files the grader may leave in
// output/. Anything else in the directory is ignored.
var ArtifactNames = []string{
	"metrics.json",
	"testlog.txt",
	"coverage.xml",
	"diff.patch",
	"grader_output.json",
}

// WorkspaceManager materializes per-run workspaces under a base
// directory and knows where the read-only simulation repository lives.
type WorkspaceManager struct {
	baseDir         string
	simulationsPath string
}

// NewWorkspaceManager creates the base directory if needed.
func NewWorkspaceManager(baseDir, simulationsPath string) (*WorkspaceManager, error) {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "veridex-workspaces")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace base directory: %w", err)
	}
	return &WorkspaceManager{baseDir: baseDir, simulationsPath: simulationsPath}, nil
}

// Workspace is the on-disk layout for one run:
//
//	<root>/submission/code.py
//	<root>/submission/writeup.md
//	<root>/output/
//
// The simulation directory is bind-mounted into the container
// separately and never copied.
type Workspace struct {
	Root          string
	SimulationDir string
	outputDir     string
	baseDir       string
}

// Create builds a fresh workspace for the request. The simulation
// directory must already exist under the simulations path.
func (m *WorkspaceManager) Create(req Request) (*Workspace, error) {
	simDir := filepath.Join(m.simulationsPath, filepath.Clean("/"+req.SimulationID))
	info, err := os.Stat(simDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("simulation %q not found under %s", req.SimulationID, m.simulationsPath)
	}

	root, err := os.MkdirTemp(m.baseDir, "run-"+sanitizeName(req.RunID)+"-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	ws := &Workspace{
		Root:          root,
		SimulationDir: simDir,
		outputDir:     filepath.Join(root, "output"),
		baseDir:       m.baseDir,
	}

	submissionDir := filepath.Join(root, "submission")
	for _, dir := range []string{submissionDir, ws.outputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			ws.Remove()
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	files := map[string]string{
		filepath.Join(submissionDir, "code.py"):    req.CandidateCode,
		filepath.Join(submissionDir, "writeup.md"): req.CandidateWriteup,
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			ws.Remove()
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
	}

	return ws, nil
}

// StageArtifacts scans output/ for the well-known artifact names and
// copies those present into a staging directory outside the workspace,
// so the workspace can be removed before uploads run. Missing names
// are simply absent from the map. The caller owns the returned
// directory and removes it once uploads finish.
func (ws *Workspace) StageArtifacts(runID string) (map[string]string, string, error) {
	stagingDir, err := os.MkdirTemp(ws.baseDir, "artifacts-"+sanitizeName(runID)+"-")
	if err != nil {
		return nil, "", fmt.Errorf("create artifact staging dir: %w", err)
	}

	artifacts := make(map[string]string)
	for _, name := range ArtifactNames {
		src := filepath.Join(ws.outputDir, name)
		info, err := os.Stat(src)
		if err != nil || info.IsDir() {
			continue
		}
		dst := filepath.Join(stagingDir, name)
		if err := copyFile(src, dst); err != nil {
			logging.L().Warn("artifact staging failed",
				zap.String("run_id", runID), zap.String("artifact", name), zap.Error(err))
			continue
		}
		artifacts[name] = dst
	}
	return artifacts, stagingDir, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// Remove deletes the workspace. Safe to call more than once and
// tolerant of partial construction.
func (ws *Workspace) Remove() {
	if ws.Root == "" || !strings.HasPrefix(ws.Root, ws.baseDir) {
		return
	}
	if err := os.RemoveAll(ws.Root); err != nil {
		logging.L().Warn("workspace removal failed",
			zap.String("workspace", ws.Root), zap.Error(err))
	}
}

// SweepOrphans removes run and artifact staging directories older than
// maxAge. A crashed worker can leave both behind; the next start
// reclaims them.
func (m *WorkspaceManager) SweepOrphans(maxAge time.Duration) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if !strings.HasPrefix(entry.Name(), "run-") && !strings.HasPrefix(entry.Name(), "artifacts-") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(m.baseDir, entry.Name())
			if err := os.RemoveAll(path); err == nil {
				logging.L().Info("removed orphaned workspace", zap.String("workspace", path))
			}
		}
	}
}
