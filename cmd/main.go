package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"imageflow/internal/caption"
	"imageflow/internal/logger"
	"imageflow/internal/models"
	"imageflow/internal/pipeline"
	"imageflow/internal/server"
	"imageflow/internal/storage"
)

func main() {
	cfg, err := models.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Log); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.L.Sync()

	db, err := storage.NewStorage(cfg.DatabaseURL)
	if err != nil {
		logger.S.Fatalw("failed to init storage", "error", err)
	}
	defer db.Close()

	for _, dir := range []string{cfg.UploadDir, cfg.ThumbnailDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.S.Fatalw("failed to create data dir", "dir", dir, "error", err)
		}
	}

	resolver := caption.NewResolver(cfg.Caption)
	pipe := pipeline.New(db, resolver, cfg.ThumbnailDir)
	pipe.Start()

	srv := server.NewServer(cfg, db, pipe)
	go func() {
		if err := srv.Start(); err != nil {
			logger.S.Fatalw("failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.S.Infow("shutting down")
	pipe.Stop()
}
