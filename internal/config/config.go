// Package config loads the worker configuration from the environment.
// Every knob has a default so a worker can start against local
// infrastructure with nothing but REDIS_URL and BACKEND_URL set.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds the full worker configuration surface.
type Config struct {
	// Queue
	QueueName   string
	PollTimeout time.Duration

	// Object store
	S3Endpoint       string
	S3Region         string
	S3Bucket         string
	S3AccessKeyID    string
	S3SecretKey      string
	S3ForcePathStyle bool
	PresignExpiry    time.Duration

	// Control plane
	BackendURL      string
	InternalAPIKey  string
	CallbackTimeout time.Duration
	// Callback rate limit in requests/second. 0 disables limiting.
	CallbackRateLimit float64

	// Sandbox
	SandboxImage           string
	SandboxTimeout         time.Duration
	SandboxMemoryMB        int64
	SandboxCPUs            float64
	SandboxPidsLimit       int64
	SandboxNetworkDisabled bool
	DockerHost             string

	// Worker
	WorkerID        string
	SimulationsPath string
	HealthPort      string
}

// FromEnv builds a Config from environment variables, applying defaults.
func FromEnv() *Config {
	cfg := &Config{
		QueueName:   envOr("QUEUE_NAME", "simulation_jobs"),
		PollTimeout: durationOr("QUEUE_POLL_TIMEOUT", 5*time.Second),

		S3Endpoint:    os.Getenv("S3_ENDPOINT"),
		S3Region:      envOr("S3_REGION", "us-east-1"),
		S3Bucket:      envOr("S3_BUCKET", "veridex-artifacts"),
		S3AccessKeyID: os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretKey:   os.Getenv("S3_SECRET_ACCESS_KEY"),
		PresignExpiry: durationOr("PRESIGN_EXPIRY", 7*24*time.Hour),

		BackendURL:        strings.TrimRight(os.Getenv("BACKEND_URL"), "/"),
		InternalAPIKey:    os.Getenv("INTERNAL_API_KEY"),
		CallbackTimeout:   durationOr("CALLBACK_TIMEOUT", 30*time.Second),
		CallbackRateLimit: floatOr("CALLBACK_RATE_LIMIT", 0),

		SandboxImage:           envOr("SANDBOX_IMAGE", "veridex-grader:latest"),
		SandboxTimeout:         durationOr("SANDBOX_TIMEOUT", 600*time.Second),
		SandboxMemoryMB:        intOr("SANDBOX_MEMORY_MB", 512),
		SandboxCPUs:            floatOr("SANDBOX_CPUS", 1.0),
		SandboxPidsLimit:       intOr("SANDBOX_PIDS_LIMIT", 256),
		SandboxNetworkDisabled: boolOr("SANDBOX_NETWORK_DISABLED", true),
		DockerHost:             envOr("DOCKER_HOST", "unix:///var/run/docker.sock"),

		WorkerID:        os.Getenv("WORKER_ID"),
		SimulationsPath: envOr("SIMULATIONS_PATH", "/opt/simulations"),
		HealthPort:      envOr("HEALTH_PORT", "9090"),
	}

	if cfg.WorkerID == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "worker"
		}
		cfg.WorkerID = fmt.Sprintf("%s-%s", host, uuid.New().String()[:8])
	}

	// Path-style addressing is what MinIO and most self-hosted stores expect.
	cfg.S3ForcePathStyle = boolOr("S3_FORCE_PATH_STYLE", cfg.S3Endpoint != "")

	return cfg
}

// Validate reports configuration that would make the worker useless at
// runtime. Called once at startup so misconfiguration fails fast.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	if c.InternalAPIKey == "" {
		return fmt.Errorf("INTERNAL_API_KEY is required")
	}
	if c.SandboxTimeout <= 0 {
		return fmt.Errorf("SANDBOX_TIMEOUT must be positive, got %s", c.SandboxTimeout)
	}
	if c.SandboxMemoryMB <= 0 {
		return fmt.Errorf("SANDBOX_MEMORY_MB must be positive, got %d", c.SandboxMemoryMB)
	}
	if c.SandboxCPUs <= 0 {
		return fmt.Errorf("SANDBOX_CPUS must be positive, got %f", c.SandboxCPUs)
	}
	if c.SimulationsPath == "" {
		return fmt.Errorf("SIMULATIONS_PATH is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func floatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func boolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// durationOr reads a duration env var. Accepts Go duration syntax
// ("5s", "10m") or a bare integer meaning seconds.
func durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
