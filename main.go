package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	utils "s3stream/internal"
	"s3stream/internal/auth"
	"s3stream/internal/config"
	"s3stream/internal/logging"
	"s3stream/internal/metrics"
	"s3stream/internal/response"
	"s3stream/internal/s3"
	"s3stream/internal/upload"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	ctx := context.Background()

	if cfg.S3Bucket == "" {
		utils.Shutdown("S3_BUCKET is required")
	}

	streamConfig, err := config.LoadStreamConfig()
	if err != nil {
		utils.Shutdown(fmt.Sprintf("Failed to load stream config: %v", err))
	}

	s3Client, err := s3.NewClient(ctx, cfg.S3Region, cfg.AWSAccessKey, cfg.AWSSecretKey, cfg.S3Endpoint)
	if err != nil {
		utils.Shutdown(fmt.Sprintf("Failed to create S3 client: %v", err))
	}

	uploadService := upload.NewService(s3Client, cfg, slog.Default())
	uploadHandler := upload.NewHandler(uploadService, streamConfig, slog.Default())

	mux := http.NewServeMux()

	// APIs
	uploadHandler.Register(mux, auth.APIKeyMiddleware(&auth.Config{APIKey: cfg.APIKey}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		response.Plain(w, http.StatusOK, "OK")
	})
	if cfg.MetricsEnabled {
		metrics.Register()
		mux.Handle("/metrics", promhttp.Handler())
	}

	// No WriteTimeout: a stream lasts as long as its body does.
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info(fmt.Sprintf("Starting server on port %s 🚀", cfg.Port), "bucket", cfg.S3Bucket, "profiles", len(streamConfig.Profiles))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Shutdown(fmt.Sprintf("Server failed to start: %v", err))
		}
	}()

	signal.Notify(utils.QuitChan, syscall.SIGINT, syscall.SIGTERM)
	<-utils.QuitChan

	slog.Info("Shutting down server... 🛑")
	// Give in-flight streams time to finish or abort their uploads.
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		utils.Shutdown(fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	slog.Info("Server exited")
}
