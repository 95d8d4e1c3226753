// Package db provides the Redis client shared by the job queue, the
// status store, and the pub/sub publisher.
package db

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"veridex/internal/logging"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	URL      string // redis://host:port/db, takes precedence when set
	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisConfig returns sensible defaults.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Host:         "localhost",
		Port:         6379,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		// The blocking dequeue holds a connection for the poll timeout,
		// so reads must not race the server-side block.
		ReadTimeout:  0,
		WriteTimeout: 3 * time.Second,
	}
}

// RedisConfigFromEnv creates Redis config from environment variables.
func RedisConfigFromEnv() *RedisConfig {
	config := DefaultRedisConfig()

	if url := os.Getenv("REDIS_URL"); url != "" {
		config.URL = url
	}
	if host := os.Getenv("REDIS_HOST"); host != "" {
		config.Host = host
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Port = p
		}
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		config.Password = password
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		if d, err := strconv.Atoi(db); err == nil {
			config.DB = d
		}
	}
	if poolSize := os.Getenv("REDIS_POOL_SIZE"); poolSize != "" {
		if ps, err := strconv.Atoi(poolSize); err == nil {
			config.PoolSize = ps
		}
	}

	return config
}

// RedisClient wraps the go-redis client with connection checks.
type RedisClient struct {
	client *redis.Client
	config *RedisConfig
}

// NewRedisClient creates and pings a Redis client.
func NewRedisClient(config *RedisConfig) (*RedisClient, error) {
	if config == nil {
		config = RedisConfigFromEnv()
	}

	opts := &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	if config.URL != "" {
		parsedOpts, err := redis.ParseURL(config.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid Redis URL: %w", err)
		}
		parsedOpts.PoolSize = config.PoolSize
		parsedOpts.MinIdleConns = config.MinIdleConns
		parsedOpts.DialTimeout = config.DialTimeout
		parsedOpts.ReadTimeout = config.ReadTimeout
		parsedOpts.WriteTimeout = config.WriteTimeout
		opts = parsedOpts
	}

	rc := &RedisClient{
		client: redis.NewClient(opts),
		config: config,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.L().Info("redis client connected", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return rc, nil
}

// Client returns the underlying go-redis client.
func (rc *RedisClient) Client() *redis.Client {
	return rc.client
}

// Ping tests the Redis connection.
func (rc *RedisClient) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (rc *RedisClient) Close() error {
	return rc.client.Close()
}
