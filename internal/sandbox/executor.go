// Package sandbox executes simulation jobs in isolated Docker
// containers with hard resource caps and no network access.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"

	"veridex/internal/logging"
)

// MaxLogBytes bounds captured stdout/stderr. Downstream consumers
// (status payloads, callbacks) assume this bound.
const MaxLogBytes = 5000

// ErrTimedOut is the error string reported when the grader exceeds the
// wall-clock limit.
const ErrTimedOut = "Execution timed out"

// Request describes one sandbox execution.
type Request struct {
	RunID            string
	SimulationID     string
	CandidateCode    string
	CandidateWriteup string
}

// Result is the outcome of one sandbox execution. Success is true only
// when the grader exited zero and no infrastructure error occurred.
type Result struct {
	Success         bool              `json:"success"`
	ExitCode        int               `json:"exit_code"`
	Stdout          string            `json:"stdout"`
	Stderr          string            `json:"stderr"`
	DurationSeconds float64           `json:"duration_seconds"`
	Artifacts       map[string]string `json:"artifacts,omitempty"`
	Error           string            `json:"error,omitempty"`

	// StagingDir holds the collected artifact copies until the caller
	// releases them after upload.
	StagingDir string `json:"-"`
}

// Config holds the container limits applied to every execution.
type Config struct {
	Image           string
	Timeout         time.Duration
	MemoryBytes     int64
	CPUs            float64
	PidsLimit       int64
	NetworkDisabled bool
	DockerHost      string
	SimulationsPath string
	WorkspaceRoot   string
}

// Executor runs simulation jobs through the Docker SDK. One executor
// serves one worker process; executions are sequential.
type Executor struct {
	cli        *client.Client
	cfg        Config
	workspaces *WorkspaceManager
}

// NewExecutor creates a Docker SDK-backed executor and verifies the
// sandbox image is present so a missing image surfaces before the
// first job rather than inside it.
func NewExecutor(cfg Config) (*Executor, error) {
	if cfg.Image == "" {
		return nil, fmt.Errorf("sandbox image is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 600 * time.Second
	}

	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithHost(cfg.DockerHost),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("docker sdk client init failed: %w", err)
	}

	workspaces, err := NewWorkspaceManager(cfg.WorkspaceRoot, cfg.SimulationsPath)
	if err != nil {
		return nil, err
	}

	e := &Executor{cli: cli, cfg: cfg, workspaces: workspaces}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, _, err := cli.ImageInspectWithRaw(ctx, cfg.Image); err != nil {
		logging.L().Warn("sandbox image not present at startup",
			zap.String("image", cfg.Image), zap.Error(err))
	}

	return e, nil
}

// Execute runs one job and always returns a Result. Job-level failures
// (non-zero exit, timeout, missing image) are reported in the Result,
// never as an error; the error return is reserved for request
// validation only.
func (e *Executor) Execute(ctx context.Context, req Request) *Result {
	start := time.Now()

	ws, err := e.workspaces.Create(req)
	if err != nil {
		return &Result{
			Success:         false,
			ExitCode:        -1,
			Error:           fmt.Sprintf("workspace setup failed: %v", err),
			DurationSeconds: time.Since(start).Seconds(),
		}
	}
	// Workspace removal must survive every exit path, container launch
	// failures included.
	defer ws.Remove()

	result := e.runContainer(ctx, req, ws)
	result.DurationSeconds = time.Since(start).Seconds()
	result.Success = result.ExitCode == 0 && result.Error == ""

	if result.Success {
		artifacts, stagingDir, err := ws.StageArtifacts(req.RunID)
		if err != nil {
			logging.L().Warn("artifact collection failed",
				zap.String("run_id", req.RunID), zap.Error(err))
		} else {
			result.Artifacts = artifacts
			result.StagingDir = stagingDir
		}
	}

	return result
}

// Release removes the staged artifact copies for a result. Safe to
// call on results without artifacts.
func (e *Executor) Release(result *Result) {
	if result == nil || result.StagingDir == "" {
		return
	}
	if err := os.RemoveAll(result.StagingDir); err != nil {
		logging.L().Warn("artifact staging removal failed",
			zap.String("dir", result.StagingDir), zap.Error(err))
	}
	result.StagingDir = ""
}

func (e *Executor) runContainer(ctx context.Context, req Request, ws *Workspace) *Result {
	result := &Result{}

	execCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	if _, _, err := e.cli.ImageInspectWithRaw(execCtx, e.cfg.Image); err != nil {
		result.ExitCode = -1
		result.Error = fmt.Sprintf("Sandbox image not found: %s", e.cfg.Image)
		return result
	}

	containerName := "veridex-run-" + sanitizeName(req.RunID)
	hostCfg := e.hostConfig(ws)

	created, err := e.cli.ContainerCreate(execCtx, &container.Config{
		Image:           e.cfg.Image,
		WorkingDir:      containerWorkspacePath,
		Cmd:             []string{"grade", req.RunID},
		Tty:             false,
		NetworkDisabled: e.cfg.NetworkDisabled,
	}, hostCfg, &network.NetworkingConfig{}, nil, containerName)
	if err != nil {
		result.ExitCode = -1
		result.Error = fmt.Sprintf("container create failed: %v", err)
		return result
	}
	containerID := created.ID
	defer func() {
		// Remove only after logs and artifacts are captured.
		_ = e.cli.ContainerRemove(context.Background(), containerID, container.RemoveOptions{Force: true})
	}()

	if err := e.cli.ContainerStart(execCtx, containerID, container.StartOptions{}); err != nil {
		result.ExitCode = -1
		result.Error = fmt.Sprintf("container start failed: %v", err)
		return result
	}

	waitCh, errCh := e.cli.ContainerWait(execCtx, containerID, container.WaitConditionNotRunning)

	select {
	case <-execCtx.Done():
		_ = e.cli.ContainerKill(context.Background(), containerID, "SIGKILL")
		result.ExitCode = -1
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			result.Error = ErrTimedOut
		} else {
			result.Error = "Execution canceled"
		}
	case resp := <-waitCh:
		result.ExitCode = int(resp.StatusCode)
	case err := <-errCh:
		result.ExitCode = -1
		result.Error = fmt.Sprintf("container wait failed: %v", err)
	}

	// Logs are read with a fresh context so a timed-out execution still
	// yields its partial output.
	stdout, stderr, logErr := e.readLogs(context.Background(), containerID)
	if logErr != nil {
		logging.L().Warn("sandbox log capture failed",
			zap.String("run_id", req.RunID), zap.Error(logErr))
	}
	result.Stdout = stdout
	result.Stderr = stderr

	return result
}

const (
	containerWorkspacePath  = "/workspace"
	containerSimulationPath = "/sim"
)

func (e *Executor) hostConfig(ws *Workspace) *container.HostConfig {
	memory := e.cfg.MemoryBytes
	if memory <= 0 {
		memory = 512 * 1024 * 1024
	}
	nanoCPUs := int64(e.cfg.CPUs * 1_000_000_000)
	if nanoCPUs <= 0 {
		nanoCPUs = 1_000_000_000
	}
	pidsLimit := e.cfg.PidsLimit
	if pidsLimit <= 0 {
		pidsLimit = 256
	}

	networkMode := container.NetworkMode("bridge")
	if e.cfg.NetworkDisabled {
		networkMode = "none"
	}

	return &container.HostConfig{
		AutoRemove:  false,
		CapDrop:     []string{"ALL"},
		SecurityOpt: []string{"no-new-privileges:true"},
		NetworkMode: networkMode,
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: ws.Root,
				Target: containerWorkspacePath,
			},
			{
				Type:     mount.TypeBind,
				Source:   ws.SimulationDir,
				Target:   containerSimulationPath,
				ReadOnly: true,
			},
		},
		Resources: container.Resources{
			Memory:     memory,
			MemorySwap: memory, // no swap
			NanoCPUs:   nanoCPUs,
			PidsLimit:  &pidsLimit,
		},
	}
}

func (e *Executor) readLogs(ctx context.Context, containerID string) (string, string, error) {
	rc, err := e.cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", "", err
	}
	defer rc.Close()

	var stdout, stderr bytes.Buffer
	_, err = stdcopy.StdCopy(
		&limitedWriter{w: &stdout, limit: MaxLogBytes},
		&limitedWriter{w: &stderr, limit: MaxLogBytes},
		rc,
	)
	return stdout.String(), stderr.String(), err
}

// SweepOrphans reclaims workspaces and staging directories left behind
// by a previous crash.
func (e *Executor) SweepOrphans(maxAge time.Duration) {
	e.workspaces.SweepOrphans(maxAge)
}

// Close releases the Docker client.
func (e *Executor) Close() error {
	return e.cli.Close()
}

// Ping reports whether the Docker daemon is reachable.
func (e *Executor) Ping(ctx context.Context) error {
	_, err := e.cli.Ping(ctx)
	return err
}

// sanitizeName keeps container names within Docker's allowed charset.
func sanitizeName(runID string) string {
	out := make([]rune, 0, len(runID))
	for _, r := range runID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			out = append(out, r)
		default:
			out = append(out, '-')
		}
	}
	if len(out) > 52 {
		out = out[:52]
	}
	return string(out)
}

type limitedWriter struct {
	w       *bytes.Buffer
	limit   int64
	written int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if lw.written >= lw.limit {
		return len(p), nil
	}
	remaining := lw.limit - lw.written
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := lw.w.Write(p)
	lw.written += int64(n)
	if err != nil {
		return n, err
	}
	return len(p), nil
}
