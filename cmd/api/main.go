package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"edurag/internal/app"
	"edurag/internal/config"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API ingests course documents into per-subject collections and answers questions from them.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: EduRAG API
//   description: |
//     Retrieval-augmented question answering over uploaded course material.
//     Upload documents into a collection, ingest them, then ask questions and vote on the cited chunks.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
//   - multipart/form-data
// produces:
//   - application/json

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := app.NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel, "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		stop()
		log.Fatalf("API server failed: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close()
	}()

	// Validate embedding client vector size (fail-fast)
	if err := a.CheckEmbeddings(ctx); err != nil {
		return err
	}
	slog.Info("Embedding client validated", "vector_size", cfg.QdrantVectorSize)
	slog.Info("Backends available", "backends", a.AvailableBackends(), "default", cfg.DefaultBackend)

	return a.Serve(ctx, ":"+cfg.APIPort)
}
