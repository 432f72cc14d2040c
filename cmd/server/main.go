// Package main provides the entry point for the spectrogram upload server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/maauso/spectroview/internal/bootstrap"
	"github.com/maauso/spectroview/internal/config"
	"github.com/maauso/spectroview/internal/server"
)

// Uploads are read in one request and the spectrogram is rendered before
// the page is written, so both deadlines cover a full analysis.
const (
	readTimeout     = 5 * time.Minute
	writeTimeout    = 10 * time.Minute
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logStartup(logger, cfg)

	deps, err := bootstrap.NewDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}
	srv := newHTTPServer(cfg, deps, logger)

	// Graceful shutdown handling
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case err := <-errCh:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

// logStartup records the settings that shape what users see on the page.
func logStartup(logger *slog.Logger, cfg *config.Config) {
	logger.Info("starting spectrogram server",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.Bool("show_error_detail", cfg.ShowErrorDetail),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
	)
	logger.Info("analysis settings",
		slog.Int("n_fft", cfg.NFFT),
		slog.Int("hop_length", cfg.HopLength),
		slog.Float64("top_db", cfg.TopDB),
		slog.Int("target_sample_rate", cfg.TargetSampleRate),
		slog.String("output_naming", cfg.OutputNaming),
	)
	logger.Info("upload settings",
		slog.String("upload_dir", cfg.UploadDir),
		slog.String("static_dir", cfg.StaticDir),
		slog.String("max_upload_memory", humanize.IBytes(uint64(cfg.MaxUploadMemory))),
		slog.Any("allowed_origins", cfg.AllowedOrigins),
	)
	logger.Debug("configuration", slog.String("config", cfg.String()))
}

// newHTTPServer builds the upload page server around the analysis service.
func newHTTPServer(cfg *config.Config, deps *bootstrap.Dependencies, logger *slog.Logger) *http.Server {
	handlers := server.NewHandlers(deps.Service, logger,
		server.WithErrorDetail(cfg.ShowErrorDetail),
		server.WithMaxMemory(cfg.MaxUploadMemory),
	)
	router := server.NewRouter(handlers, logger, server.Config{
		StaticDir:      deps.StaticDir,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}
