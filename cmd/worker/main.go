package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/nexusacademy/inscriptio/internal/blobstore"
	"github.com/nexusacademy/inscriptio/internal/config"
	"github.com/nexusacademy/inscriptio/internal/database"
	"github.com/nexusacademy/inscriptio/internal/queue"
	"github.com/nexusacademy/inscriptio/internal/repository"
	"github.com/nexusacademy/inscriptio/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	if !cfg.ObjectStoreConfigured() {
		logger.Error("worker requires the object store; set S3_ENDPOINT")
		os.Exit(1)
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.Error("ensure schema", "error", err)
		os.Exit(1)
	}
	repo := repository.NewSubmissionRepository(pool)

	store, err := blobstore.New(cfg)
	if err != nil {
		logger.Error("init blob store", "error", err)
		os.Exit(1)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		logger.Error("ensure bucket", "error", err)
		os.Exit(1)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Workers,
	})
	processor := worker.NewProcessor(repo, store, cfg.SweepGrace, logger)
	mux := processor.Handler()

	scheduler := asynq.NewScheduler(redisOpt, nil)
	spec := fmt.Sprintf("@every %s", cfg.SweepInterval)
	if _, err := scheduler.Register(spec, asynq.NewTask(queue.SweepOrphansTask, nil)); err != nil {
		logger.Error("register sweep schedule", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := scheduler.Run(); err != nil {
			logger.Error("scheduler stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		scheduler.Shutdown()
		server.Shutdown()
	}()

	logger.Info("worker running", "sweep_interval", cfg.SweepInterval, "grace", cfg.SweepGrace)
	if err := server.Run(mux); err != nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
