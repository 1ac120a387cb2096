package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/nexusacademy/inscriptio/internal/api"
	"github.com/nexusacademy/inscriptio/internal/blobstore"
	"github.com/nexusacademy/inscriptio/internal/config"
	"github.com/nexusacademy/inscriptio/internal/database"
	"github.com/nexusacademy/inscriptio/internal/export"
	"github.com/nexusacademy/inscriptio/internal/ingest"
	"github.com/nexusacademy/inscriptio/internal/model"
	"github.com/nexusacademy/inscriptio/internal/queue"
	"github.com/nexusacademy/inscriptio/internal/repository"
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

	// The blob store is optional when proofs are not mandated; the pipeline
	// then skips the upload step and stores a null proof reference.
	var (
		store    *blobstore.Store
		objects  ingest.ObjectStore
		resolver api.ProofResolver
	)
	if cfg.ObjectStoreConfigured() {
		store, err = blobstore.New(cfg)
		if err != nil {
			logger.Error("init blob store", "error", err)
			os.Exit(1)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			logger.Error("ensure bucket", "error", err)
			os.Exit(1)
		}
		objects = store
		resolver = store
	} else {
		logger.Warn("object store not configured; proof uploads disabled")
	}

	formPipeline := ingest.New(objects, repo, ingest.Policy{
		RequireProof: cfg.RequireProof,
		TrackStatus:  cfg.TrackStatus,
	})
	apiPipeline := ingest.New(objects, repo, ingest.Policy{
		RequireCohort: true,
		TrackStatus:   cfg.TrackStatus,
	})
	engine := export.NewEngine(repo)

	srv := api.New(cfg, formPipeline, apiPipeline, engine, resolver, logger)

	if cfg.RedisAddr != "" {
		client := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		srv.OnIngest = func(ctx context.Context, sub *model.Submission) {
			payload := queue.ScanPayload{SubmissionID: sub.ID, ProofKey: *sub.ProofKey}
			if err := queue.EnqueueScan(ctx, client, payload); err != nil {
				logger.Warn("enqueue proof scan", "submission", sub.ID, "error", err)
			}
		}
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
