// Package queue implements the shared FIFO job queue, the run status
// store, and the run_updates pub/sub channel on top of Redis.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Job is the payload the control plane enqueues for each run. Unknown
// fields in the wire payload are ignored.
type Job struct {
	RunID            string `json:"run_id"`
	Type             string `json:"type"`
	SimulationID     string `json:"simulation_id"`
	CandidateCode    string `json:"candidate_code,omitempty"`
	CandidateWriteup string `json:"candidate_writeup,omitempty"`
}

// ParseJob decodes and validates a queue payload.
func ParseJob(payload []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("malformed job payload: %w", err)
	}
	if job.RunID == "" {
		return nil, fmt.Errorf("job payload missing run_id")
	}
	if job.Type == "" {
		return nil, fmt.Errorf("job payload missing type")
	}
	if job.SimulationID == "" {
		return nil, fmt.Errorf("job payload missing simulation_id")
	}
	return &job, nil
}

// JobQueue is a FIFO list shared by all workers. Pops are atomic at
// the Redis layer, so competing workers never see the same job.
type JobQueue struct {
	client *redis.Client
	name   string
}

// NewJobQueue binds a queue name to a Redis client.
func NewJobQueue(client *redis.Client, name string) *JobQueue {
	return &JobQueue{client: client, name: name}
}

// Enqueue pushes a job onto the head of the list. Workers pop from the
// tail, giving FIFO order. Used by the control-plane side and tests.
func (q *JobQueue) Enqueue(ctx context.Context, job *Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := q.client.LPush(ctx, q.name, payload).Err(); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// Dequeue blocks up to pollTimeout for the next job payload. A poll
// timeout returns (nil, nil); the caller loops. The raw payload is
// returned so the caller decides how to handle parse failures.
func (q *JobQueue) Dequeue(ctx context.Context, pollTimeout time.Duration) ([]byte, error) {
	res, err := q.client.BRPop(ctx, pollTimeout, q.name).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue from %s: %w", q.name, err)
	}
	// BRPop returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of length %d", len(res))
	}
	return []byte(res[1]), nil
}

// Len returns the current queue depth.
func (q *JobQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.name).Result()
}
