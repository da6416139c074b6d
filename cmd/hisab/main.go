package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"hisab/internal/cli"
	apphttp "hisab/internal/http"
	"hisab/internal/log"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)

	res := cli.OpenBook(context.Background(), logger, cfg)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RequestTimeout:     30 * time.Second,
	}, apphttp.Deps{
		Book:      res.Book,
		Renderer:  res.Renderer,
		Data:      res.Data,
		Backups:   res.Backups,
		BackupDir: cfg.BackupDir,
		Logger:    logger.WithComponent(log.ComponentHTTP),
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 15 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to close book", "error", err)
		}
	})

	logger.Info("Starting hisab server",
		"port", cfg.Port,
		"db_path", cfg.SQLiteDBPath,
		"pdf_enabled", res.Renderer.CanPDF(),
		"events_enabled", res.Events != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		_ = res.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
