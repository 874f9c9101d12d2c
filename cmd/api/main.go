// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"unipal-workers/internal/api"
	"unipal-workers/internal/app"
	"unipal-workers/internal/common/config"
	"unipal-workers/internal/common/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	components, err := app.Build(context.Background(), cfg, app.Options{
		ConnectRetries: 4,
		ServiceName:    "unipal-api",
	}, log)
	if err != nil {
		zapLog.Fatal("pipeline components failed", zap.Error(err))
	}
	defer components.Close()

	opts := api.Options{
		Unavailable:    components.Unavailable,
		Students:       components.Students,
		Snapshot:       components.Snapshot,
		ExportDir:      cfg.Pipeline.ExportDir,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log,
	}
	if components.Runner != nil {
		opts.Runner = components.Runner
	}
	server := api.NewServer(opts)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLog.Info("API server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("API server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLog.Error("API server shutdown failed", zap.Error(err))
	}
	zapLog.Info("API server stopped")
}
