package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"speedcam-service/internal/auth"
	"speedcam-service/internal/camera"
	"speedcam-service/internal/config"
	"speedcam-service/internal/db"
	"speedcam-service/internal/detector"
	"speedcam-service/internal/geo"
	httphandler "speedcam-service/internal/http"
	"speedcam-service/internal/http/middleware"
	"speedcam-service/internal/logger"
	"speedcam-service/internal/notify"
	"speedcam-service/internal/pipeline"
	"speedcam-service/internal/repository"
	"speedcam-service/internal/service"
	"speedcam-service/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Environment)

	database, err := db.New(cfg, appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer func() {
		if err := db.Close(database); err != nil {
			appLogger.Error().Err(err).Msg("failed to close database")
		}
	}()

	ownerRepo := repository.NewOwnerRepository(database, cfg.Enforcement.DefaultCountryCode)
	violationRepo := repository.NewViolationRepository(database, ownerRepo)

	ocrClient := detector.NewHTTPOCRClient(cfg.OCR.BaseURL, cfg.OCR.Timeout)
	plateDetector := detector.NewPlateDetector(ocrClient, cfg.OCR.ConfidenceThreshold, appLogger)

	locator := geo.NewIPLocator(cfg.Geo.Endpoint, cfg.Geo.Timeout)
	composer := notify.NewComposer(cfg.Enforcement.RepeatOffenderThreshold)

	gateway := notify.NewTwilioGateway(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber, cfg.Twilio.BaseURL)
	if cfg.Twilio.AccountSID == "" {
		appLogger.Warn().Msg("sms gateway not configured, notifications will be skipped")
	}

	// Snapshot storage is optional; without it violations are stored
	// without frame images.
	snapshots, err := storage.NewSnapshotStoreFromEnv()
	if err != nil && !errors.Is(err, storage.ErrNotConfigured) {
		appLogger.Fatal().Err(err).Msg("failed to initialize snapshot storage")
	}
	if err != nil {
		appLogger.Warn().Msg("snapshot storage not configured, frame uploads disabled")
	}

	var snapshotStore service.SnapshotStore
	if snapshots != nil {
		snapshotStore = snapshots
	}

	violationService := service.NewViolationService(
		ownerRepo,
		violationRepo,
		locator,
		composer,
		gateway,
		snapshotStore,
		cfg.Enforcement,
		appLogger,
	)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(violationService, plateDetector, cfg, appLogger)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, database, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipelineDone := make(chan error, 1)
	if cfg.Camera.SnapshotURL != "" {
		source := camera.NewSnapshotSource(cfg.Camera.SnapshotURL, cfg.Camera.PollInterval, cfg.Camera.Timeout)
		capture := pipeline.New(source, plateDetector, violationService, cfg.Pipeline.QueueSize, appLogger)
		appLogger.Info().Str("snapshot_url", cfg.Camera.SnapshotURL).Msg("starting capture pipeline")
		go func() {
			pipelineDone <- capture.Run(ctx)
		}()
	} else {
		appLogger.Warn().Msg("no camera configured, running API-only (frames via POST /api/v1/frames)")
	}

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	appLogger.Info().Str("addr", addr).Int("speed_limit", cfg.Enforcement.SpeedLimit).Msg("starting speedcam service")

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error().Err(err).Msg("failed to start server")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		appLogger.Info().Msg("shutdown signal received")
	case err := <-pipelineDone:
		// Frame-source exhaustion is fatal to the whole process; the
		// pipeline has already released its resources.
		if err != nil {
			appLogger.Error().Err(err).Msg("capture pipeline failed")
		} else {
			appLogger.Info().Msg("capture pipeline finished")
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info().Msg("service exited")
}
