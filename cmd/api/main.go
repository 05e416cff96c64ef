package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/api"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/audit"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/config"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/database"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/face"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/media"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/service"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/similarity"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/video"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/vision"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/worker"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	logger.Info("starting faceverify API",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.String("detector", cfg.DetectorBackend),
		slog.String("embedder", cfg.EmbedderBackend),
		slog.String("pipeline", cfg.PipelineOrder),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Model providers
	providers, err := face.NewProviders(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create providers: %w", err)
	}
	defer func() {
		if err := providers.Close(); err != nil {
			logger.Error("close providers", slog.Any("error", err))
		}
	}()

	pipeline, err := vision.NewPipeline(providers.Detector, providers.Landmarker, vision.PipelineConfig{
		Order:         vision.Order(cfg.PipelineOrder),
		Margin:        cfg.CropMargin,
		VerticalShift: cfg.CropVerticalShift,
		Channels:      vision.ChannelOrder(cfg.EmbedderChannels),
		Estimator:     providers.Estimator,
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	threshold, err := similarity.NewThreshold(cfg.Threshold)
	if err != nil {
		return fmt.Errorf("invalid initial threshold: %w", err)
	}

	// Worker pool for CPU-bound stages
	pool := worker.NewPool(logger, worker.PoolConfig{
		Workers:     cfg.WorkerCount,
		QueueDepth:  cfg.WorkerQueueDepth,
		TaskTimeout: cfg.StageTimeout,
	})
	pool.Start()
	defer pool.Stop()

	// Audit sinks: slog and the websocket stream always, Postgres when configured
	hub := ws.NewHub()
	go hub.Run(ctx)

	deps := &api.Dependencies{Pool: pool, Stream: hub, Embedder: providers.Remote}
	sinks := []audit.Logger{audit.NewSlogLogger(logger), hub}
	if cfg.AuditToDatabase() {
		if cfg.AuditAutoMigrate {
			if err := migrateAudit(ctx, cfg.AuditDatabaseURL, logger); err != nil {
				return err
			}
		}

		db, err := database.NewPool(ctx, database.DefaultPoolConfig(cfg.AuditDatabaseURL))
		if err != nil {
			return fmt.Errorf("failed to connect to audit database: %w", err)
		}
		defer db.Close()

		pgAudit := audit.NewPostgresLogger(db)
		sinks = append(sinks, pgAudit)
		deps.Events = pgAudit
		deps.AuditDB = db
		logger.Info("audit events stored in postgres")
	}

	deps.Service = service.NewComparisonService(service.Dependencies{
		Validator: media.NewValidator(),
		Pipeline:  pipeline,
		Embedder:  providers.Embedder,
		Frames:    video.NewSampler(providers.Frames, cfg.FrameSamples, logger),
		Store:     video.NewStore(cfg.TempDir),
		Runner:    pool,
		MaxFanOut: cfg.WorkerCount,
		Audit:     audit.NewMultiLogger(sinks...),
		Logger:    logger,
	}, threshold)

	// Setup router
	router := api.NewRouter(logger, api.Config{
		BodyLimit:   cfg.MaxUploadBytes,
		Production:  cfg.IsProduction(),
		Development: cfg.IsDevelopment(),
	}, deps)
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")
	done := make(chan error, 1)
	go func() { done <- router.Shutdown() }()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("shutdown error", slog.Any("error", err))
		}
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out with requests in flight")
	}

	logger.Info("server stopped")
	return nil
}

func migrateAudit(ctx context.Context, dsn string, logger *slog.Logger) error {
	migrator, err := database.NewMigrator(ctx, dsn, logger)
	if err != nil {
		return fmt.Errorf("failed to create audit migrator: %w", err)
	}
	defer func() { _ = migrator.Close() }()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to migrate audit database: %w", err)
	}
	return nil
}
