// Package runner drives the worker loop: claim a job from the queue,
// execute it in the sandbox, publish artifacts and status, and notify
// the control plane.
package runner

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"veridex/internal/artifacts"
	"veridex/internal/backend"
	"veridex/internal/evidence"
	"veridex/internal/logging"
	"veridex/internal/queue"
	"veridex/internal/sandbox"
)

// dequeueBackoff is how long the loop sleeps after a queue error
// before polling again.
const dequeueBackoff = 5 * time.Second

// SandboxExecutor executes one job and owns the staged artifacts until
// Release is called.
type SandboxExecutor interface {
	Execute(ctx context.Context, req sandbox.Request) *sandbox.Result
	Release(result *sandbox.Result)
}

// ArtifactUploader uploads staged artifacts and returns presigned URLs
// plus metadata.
type ArtifactUploader interface {
	UploadAll(ctx context.Context, runID string, artifacts map[string]string) (map[string]string, map[string]evidence.ArtifactMeta)
}

// CompletionNotifier delivers the completion callback to the control
// plane.
type CompletionNotifier interface {
	NotifyCompletion(ctx context.Context, runID string, payload backend.CompletionPayload) error
}

// RunResult is the terminal status record payload stored under the
// run's status key.
type RunResult struct {
	Success         bool                             `json:"success"`
	ExitCode        int                              `json:"exit_code"`
	Stdout          string                           `json:"stdout,omitempty"`
	Stderr          string                           `json:"stderr,omitempty"`
	Error           string                           `json:"error,omitempty"`
	DurationSeconds float64                          `json:"duration_seconds"`
	Metrics         evidence.Metrics                 `json:"metrics,omitempty"`
	ArtifactURLs    map[string]string                `json:"artifact_urls,omitempty"`
	Artifacts       map[string]evidence.ArtifactMeta `json:"artifacts,omitempty"`
	WorkerID        string                           `json:"worker_id"`
}

// Runner is the single-job-at-a-time worker loop. One runner per
// process; concurrency comes from running more workers.
type Runner struct {
	queue    *queue.JobQueue
	status   *queue.StatusStore
	executor SandboxExecutor
	uploader ArtifactUploader
	notifier CompletionNotifier

	workerID    string
	pollTimeout time.Duration

	stopping atomic.Bool
	inFlight atomic.Value // run id of the job being processed, or ""
}

// New wires a runner. pollTimeout bounds each blocking dequeue so
// shutdown is observed between polls.
func New(q *queue.JobQueue, status *queue.StatusStore, executor SandboxExecutor, uploader ArtifactUploader, notifier CompletionNotifier, workerID string, pollTimeout time.Duration) *Runner {
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	r := &Runner{
		queue:       q,
		status:      status,
		executor:    executor,
		uploader:    uploader,
		notifier:    notifier,
		workerID:    workerID,
		pollTimeout: pollTimeout,
	}
	r.inFlight.Store("")
	return r
}

// Shutdown asks the loop to stop after the current job. Safe to call
// from a signal handler goroutine.
func (r *Runner) Shutdown() {
	r.stopping.Store(true)
}

// InFlight returns the run id currently being processed, or "".
func (r *Runner) InFlight() string {
	v, _ := r.inFlight.Load().(string)
	return v
}

// Run polls the queue until Shutdown is called or the context ends.
// An in-flight job always finishes; only the next poll is skipped.
func (r *Runner) Run(ctx context.Context) {
	logging.L().Info("worker loop started",
		zap.String("worker_id", r.workerID))

	for !r.stopping.Load() {
		if ctx.Err() != nil {
			break
		}

		payload, err := r.queue.Dequeue(ctx, r.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logging.L().Error("dequeue failed", zap.Error(err))
			time.Sleep(dequeueBackoff)
			continue
		}
		if payload == nil {
			continue
		}
		jobsDequeued.Inc()

		job, err := queue.ParseJob(payload)
		if err != nil {
			// A payload that cannot name its run gets no status record;
			// there is nothing to attach one to.
			jobsDropped.Inc()
			logging.L().Error("dropping malformed job payload", zap.Error(err))
			continue
		}

		r.inFlight.Store(job.RunID)
		r.processJob(ctx, job)
		r.inFlight.Store("")
	}

	logging.L().Info("worker loop stopped",
		zap.String("worker_id", r.workerID))
}

// processJob runs one job end to end. Every exit path leaves a
// terminal status record and sends the completion callback; partial
// failures degrade the payload rather than abort the pipeline.
func (r *Runner) processJob(ctx context.Context, job *queue.Job) {
	log := logging.L().With(
		zap.String("run_id", job.RunID),
		zap.String("simulation_id", job.SimulationID))
	log.Info("job claimed")

	if err := r.status.MarkRunning(ctx, job.RunID); err != nil {
		log.Error("failed to mark run running", zap.Error(err))
	}

	result := r.executor.Execute(ctx, sandbox.Request{
		RunID:            job.RunID,
		SimulationID:     job.SimulationID,
		CandidateCode:    job.CandidateCode,
		CandidateWriteup: job.CandidateWriteup,
	})
	defer r.executor.Release(result)

	sandboxDuration.Observe(result.DurationSeconds)

	metrics := evidence.Metrics{}
	urls := map[string]string{}
	meta := map[string]evidence.ArtifactMeta{}
	if result.Success {
		metrics = artifacts.ParseRunMetrics(job.RunID, result.Artifacts)
		urls, meta = r.uploader.UploadAll(ctx, job.RunID, result.Artifacts)
	}

	// The callback goes out for failed runs too, with empty metrics and
	// URLs, so the control plane never waits on a run that already died.
	if err := r.notifier.NotifyCompletion(ctx, job.RunID, backend.CompletionPayload{
		Success:         result.Success,
		Metrics:         metrics,
		ArtifactURLs:    urls,
		DurationSeconds: result.DurationSeconds,
	}); err != nil {
		callbackFailures.Inc()
		log.Error("completion callback failed", zap.Error(err))
	}

	status := queue.StatusFailed
	if result.Success {
		status = queue.StatusCompleted
		jobsCompleted.Inc()
	} else {
		jobsFailed.Inc()
	}

	record := RunResult{
		Success:         result.Success,
		ExitCode:        result.ExitCode,
		Stdout:          result.Stdout,
		Stderr:          result.Stderr,
		Error:           result.Error,
		DurationSeconds: result.DurationSeconds,
		Metrics:         metrics,
		ArtifactURLs:    urls,
		Artifacts:       meta,
		WorkerID:        r.workerID,
	}
	if err := r.status.MarkTerminal(ctx, job.RunID, status, record); err != nil {
		log.Error("failed to mark run terminal", zap.Error(err))
	}

	log.Info("job finished",
		zap.String("status", status),
		zap.Int("exit_code", result.ExitCode),
		zap.Float64("duration_seconds", result.DurationSeconds))
}
