package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"coleman/config"
	"coleman/server"
	"coleman/storage"
	"coleman/version"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting", zap.String("version", version.String()))

	mgr, err := storage.Open(storage.Options{
		WALPath:                  cfg.WALPath,
		SnapshotDir:              cfg.SnapshotDir,
		SnapshotRecordThreshold:  cfg.SnapshotRecordThreshold,
		SnapshotWALSizeThreshold: cfg.SnapshotWALSizeThreshold,
		Logger:                   logger,
	})
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}
	defer mgr.Close()

	mgr.SetFsync(cfg.Fsync)

	srv := server.New(cfg, mgr, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("serve", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
