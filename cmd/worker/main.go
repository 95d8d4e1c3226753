// The worker binary claims simulation jobs from the shared queue,
// executes them in Docker sandboxes, uploads artifacts, and reports
// results back to the control plane.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"veridex/internal/artifacts"
	"veridex/internal/backend"
	"veridex/internal/config"
	"veridex/internal/db"
	"veridex/internal/logging"
	"veridex/internal/queue"
	"veridex/internal/runner"
	"veridex/internal/sandbox"
)

func main() {
	_ = godotenv.Load()
	logging.Init()
	defer logging.Sync()

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		logging.L().Fatal("invalid configuration", zap.Error(err))
	}

	redisClient, err := db.NewRedisClient(db.RedisConfigFromEnv())
	if err != nil {
		logging.L().Fatal("redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()

	executor, err := sandbox.NewExecutor(sandbox.Config{
		Image:           cfg.SandboxImage,
		Timeout:         cfg.SandboxTimeout,
		MemoryBytes:     cfg.SandboxMemoryMB * 1024 * 1024,
		CPUs:            cfg.SandboxCPUs,
		PidsLimit:       cfg.SandboxPidsLimit,
		NetworkDisabled: cfg.SandboxNetworkDisabled,
		DockerHost:      cfg.DockerHost,
		SimulationsPath: cfg.SimulationsPath,
	})
	if err != nil {
		logging.L().Fatal("sandbox init failed", zap.Error(err))
	}
	defer executor.Close()
	executor.SweepOrphans(24 * time.Hour)

	store, err := artifacts.NewS3Store(context.Background(), artifacts.S3Config{
		Endpoint:       cfg.S3Endpoint,
		Region:         cfg.S3Region,
		Bucket:         cfg.S3Bucket,
		AccessKeyID:    cfg.S3AccessKeyID,
		SecretKey:      cfg.S3SecretKey,
		ForcePathStyle: cfg.S3ForcePathStyle,
	})
	if err != nil {
		logging.L().Fatal("object store init failed", zap.Error(err))
	}

	jobQueue := queue.NewJobQueue(redisClient.Client(), cfg.QueueName)
	statusStore := queue.NewStatusStore(redisClient.Client())
	sink := artifacts.NewSink(store, cfg.PresignExpiry)
	notifier := backend.NewClient(cfg.BackendURL, cfg.InternalAPIKey, cfg.CallbackTimeout, cfg.CallbackRateLimit)

	worker := runner.New(jobQueue, statusStore, executor, sink, notifier, cfg.WorkerID, cfg.PollTimeout)

	healthSrv := startHealthServer(cfg, redisClient, executor, worker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logging.L().Info("shutdown signal received, finishing in-flight job",
			zap.String("signal", sig.String()))
		worker.Shutdown()
	}()

	logging.L().Info("worker starting",
		zap.String("worker_id", cfg.WorkerID),
		zap.String("queue", cfg.QueueName),
		zap.String("sandbox_image", cfg.SandboxImage))

	worker.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		logging.L().Warn("health server shutdown", zap.Error(err))
	}

	logging.L().Info("worker exited", zap.String("worker_id", cfg.WorkerID))
}

// startHealthServer exposes /health and /metrics on the health port.
// Health is degraded, not down, while dependencies are unreachable so
// orchestrators can distinguish slow from dead.
func startHealthServer(cfg *config.Config, redisClient *db.RedisClient, executor *sandbox.Executor, worker *runner.Runner) *http.Server {
	if os.Getenv("ENVIRONMENT") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		checks := gin.H{"redis": "ok", "docker": "ok"}
		status := http.StatusOK
		if err := redisClient.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := executor.Ping(ctx); err != nil {
			checks["docker"] = err.Error()
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"worker_id":     cfg.WorkerID,
			"in_flight_run": worker.InFlight(),
			"checks":        checks,
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    ":" + cfg.HealthPort,
		Handler: router,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("health server failed", zap.Error(err))
		}
	}()
	return srv
}
