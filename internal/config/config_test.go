package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, "simulation_jobs", cfg.QueueName)
	assert.Equal(t, 5*time.Second, cfg.PollTimeout)
	assert.Equal(t, "veridex-artifacts", cfg.S3Bucket)
	assert.Equal(t, 7*24*time.Hour, cfg.PresignExpiry)
	assert.Equal(t, 600*time.Second, cfg.SandboxTimeout)
	assert.Equal(t, int64(512), cfg.SandboxMemoryMB)
	assert.Equal(t, 1.0, cfg.SandboxCPUs)
	assert.True(t, cfg.SandboxNetworkDisabled)
	assert.Equal(t, "9090", cfg.HealthPort)
	assert.Zero(t, cfg.CallbackRateLimit)
	assert.NotEmpty(t, cfg.WorkerID)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("QUEUE_NAME", "priority_jobs")
	t.Setenv("SANDBOX_TIMEOUT", "120")
	t.Setenv("QUEUE_POLL_TIMEOUT", "2s")
	t.Setenv("SANDBOX_MEMORY_MB", "1024")
	t.Setenv("CALLBACK_RATE_LIMIT", "2.5")
	t.Setenv("WORKER_ID", "worker-7")
	t.Setenv("S3_ENDPOINT", "http://minio:9000")

	cfg := FromEnv()

	assert.Equal(t, "priority_jobs", cfg.QueueName)
	// Bare integers are seconds, Go duration syntax also accepted.
	assert.Equal(t, 120*time.Second, cfg.SandboxTimeout)
	assert.Equal(t, 2*time.Second, cfg.PollTimeout)
	assert.Equal(t, int64(1024), cfg.SandboxMemoryMB)
	assert.Equal(t, 2.5, cfg.CallbackRateLimit)
	assert.Equal(t, "worker-7", cfg.WorkerID)
	// Path style follows the custom endpoint unless overridden.
	assert.True(t, cfg.S3ForcePathStyle)
}

func TestBackendURLTrailingSlashTrimmed(t *testing.T) {
	t.Setenv("BACKEND_URL", "http://backend:8000/")
	cfg := FromEnv()
	assert.Equal(t, "http://backend:8000", cfg.BackendURL)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		t.Setenv("BACKEND_URL", "http://backend:8000")
		t.Setenv("INTERNAL_API_KEY", "secret")
		return FromEnv()
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.BackendURL = ""
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.InternalAPIKey = ""
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.SandboxTimeout = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.SandboxCPUs = -1
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.SimulationsPath = ""
	assert.Error(t, cfg.Validate())
}
