package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bobarin/scenecut/internal/api"
	"github.com/bobarin/scenecut/internal/config"
	"github.com/bobarin/scenecut/internal/db"
	"github.com/bobarin/scenecut/internal/logging"
	"github.com/bobarin/scenecut/internal/queue"
	"github.com/bobarin/scenecut/internal/render"
	"github.com/bobarin/scenecut/internal/services"
	"github.com/bobarin/scenecut/internal/storage"
	"github.com/bobarin/scenecut/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The logger is not configured yet
		logging.New("info").Fatal("failed to load config", zap.Error(err))
	}

	logger := logging.New(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting scenecut", zap.String("port", cfg.APIPort))

	ffmpegSvc := services.NewFFmpegService(services.NewExecRunner(logger), services.FFmpegConfig{
		FFmpegPath:    cfg.FFmpegPath,
		FFprobePath:   cfg.FFprobePath,
		FrameRate:     cfg.FrameRate,
		EncodeTimeout: cfg.EncodeTimeout,
		ProbeTimeout:  cfg.ProbeTimeout,
		ForceCPU:      cfg.ForceCPU,
	}, logger)

	uploader := newUploader(cfg, logger)
	packager := services.NewPackager(ffmpegSvc, uploader, cfg.InlineMaxBytes, logger)
	fetcher := storage.NewFetcher(cfg.FetchTimeout, logger)

	renderSvc := render.NewService(ffmpegSvc, packager, fetcher, render.Config{
		WorkDir:        cfg.WorkDir,
		EndBuffer:      cfg.EndBuffer,
		SegmentWorkers: cfg.SegmentWorkers,
	}, logger)

	// Interfaces stay nil unless the backing service is configured
	var (
		apiStore    api.JobStore
		apiQueue    api.JobQueue
		workerStore worker.JobStore
	)

	if cfg.DatabaseURL != "" {
		database, err := db.New(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer database.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = database.EnsureSchema(ctx)
		cancel()
		if err != nil {
			logger.Fatal("failed to prepare database", zap.Error(err))
		}

		apiStore, workerStore = database, database
		logger.Info("connected to database")
	}

	var q *queue.Queue
	if cfg.RedisURL != "" {
		q, err = queue.New(cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to connect to queue", zap.Error(err))
		}
		defer q.Close()

		apiQueue = q
		logger.Info("connected to Redis queue")
	}

	handler := api.NewHandler(renderSvc, apiQueue, apiStore, logger)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	}, logger)

	if cfg.BackendAPIKey == "" {
		logger.Warn("no BACKEND_API_KEY set, API is unprotected")
	}

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	workerDone := make(chan struct{})
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	if cfg.WorkerEnabled {
		w := worker.New(q, workerStore, renderSvc, logger)
		go func() {
			w.Start(workerCtx, cfg.MaxConcurrentJobs)
			close(workerDone)
		}()
	} else {
		close(workerDone)
	}

	go func() {
		logger.Info("API server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(cfg.EncodeTimeout):
		logger.Warn("worker did not finish in time")
	}

	logger.Info("server exited")
}

// newUploader picks Drive when credentials are set, then Supabase, else none.
func newUploader(cfg *config.Config, logger *zap.Logger) services.Uploader {
	if cfg.DriveConfigured() {
		creds, err := storage.DriveCredentials(cfg.DriveCredentialsJSON, cfg.DriveCredentialsPath)
		if err != nil {
			logger.Fatal("failed to read Drive credentials", zap.Error(err))
		}
		d, err := storage.NewDrive(context.Background(), creds, cfg.DriveFolderID, logger)
		if err != nil {
			logger.Fatal("failed to create Drive uploader", zap.Error(err))
		}
		logger.Info("uploads go to Google Drive", zap.String("root_folder", cfg.DriveFolderID))
		return d
	}

	if cfg.SupabaseConfigured() {
		logger.Info("uploads go to Supabase storage", zap.String("bucket", cfg.SupabaseStorageBucket))
		return storage.NewSupabase(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket, logger)
	}

	logger.Info("no upload target configured, results are returned inline")
	return nil
}
