package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Run status values. Within one run, running always precedes a
// terminal status.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// UpdatesChannel is the pub/sub channel carrying status transitions.
// Messages are hints; the status key is the source of truth.
const UpdatesChannel = "run_updates"

// statusRetention bounds how long terminal status keys live. The
// control plane reconciles well within this window.
const statusRetention = 7 * 24 * time.Hour

// StatusRecord is the JSON stored under run:{run_id}. It carries
// enough state for an observer to resume monitoring without replaying
// the pub/sub stream.
type StatusRecord struct {
	RunID     string          `json:"run_id"`
	Status    string          `json:"status"`
	UpdatedAt time.Time       `json:"updated_at"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// StatusUpdate is the pub/sub message shape.
type StatusUpdate struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// StatusStore writes run status records and publishes transitions.
// Only the worker that claimed a job writes its key.
type StatusStore struct {
	client *redis.Client
}

// NewStatusStore wraps a Redis client.
func NewStatusStore(client *redis.Client) *StatusStore {
	return &StatusStore{client: client}
}

func statusKey(runID string) string {
	return "run:" + runID
}

// MarkRunning records the running state and publishes the transition.
func (s *StatusStore) MarkRunning(ctx context.Context, runID string) error {
	return s.write(ctx, StatusRecord{
		RunID:     runID,
		Status:    StatusRunning,
		UpdatedAt: time.Now().UTC(),
	})
}

// MarkTerminal records completed or failed with the full result
// payload, then publishes the transition. The key write happens before
// the publish so a subscriber reacting to the message can already read
// the record.
func (s *StatusStore) MarkTerminal(ctx context.Context, runID, status string, result interface{}) error {
	if status != StatusCompleted && status != StatusFailed {
		return fmt.Errorf("status %q is not terminal", status)
	}

	record := StatusRecord{
		RunID:     runID,
		Status:    status,
		UpdatedAt: time.Now().UTC(),
	}
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encode result for %s: %w", runID, err)
		}
		record.Result = raw
	}

	return s.write(ctx, record)
}

func (s *StatusStore) write(ctx context.Context, record StatusRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode status record: %w", err)
	}
	if err := s.client.Set(ctx, statusKey(record.RunID), payload, statusRetention).Err(); err != nil {
		return fmt.Errorf("write status key for %s: %w", record.RunID, err)
	}

	update, err := json.Marshal(StatusUpdate{RunID: record.RunID, Status: record.Status})
	if err != nil {
		return fmt.Errorf("encode status update: %w", err)
	}
	if err := s.client.Publish(ctx, UpdatesChannel, update).Err(); err != nil {
		return fmt.Errorf("publish status update for %s: %w", record.RunID, err)
	}
	return nil
}

// Get reads the status record for a run. Returns (nil, nil) when no
// record exists.
func (s *StatusStore) Get(ctx context.Context, runID string) (*StatusRecord, error) {
	payload, err := s.client.Get(ctx, statusKey(runID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read status key for %s: %w", runID, err)
	}

	var record StatusRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("decode status record for %s: %w", runID, err)
	}
	return &record, nil
}
