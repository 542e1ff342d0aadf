package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codebuildervaibhav/transly/internal/cleanup"
	"github.com/codebuildervaibhav/transly/internal/config"
	"github.com/codebuildervaibhav/transly/internal/events"
	"github.com/codebuildervaibhav/transly/internal/handlers"
	applog "github.com/codebuildervaibhav/transly/internal/logger"
	"github.com/codebuildervaibhav/transly/internal/pipeline"
	"github.com/codebuildervaibhav/transly/internal/queue"
	"github.com/codebuildervaibhav/transly/internal/storage"
	"github.com/codebuildervaibhav/transly/internal/transcription"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := applog.New(applog.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer appLogger.Close()
	slogger := appLogger.Logger

	fatal := func(msg string, err error) {
		slogger.Error(msg, "err", err)
		appLogger.Close()
		os.Exit(1)
	}

	if err := cleanup.EnsureDirs(cfg.Storage.UploadDir, cfg.Storage.TempDir, cfg.Storage.VideosDir); err != nil {
		fatal("failed to create storage directories", err)
	}

	slogger.Info("initializing components")

	db, err := storage.NewMetadataDB(cfg.Storage.Database)
	if err != nil {
		fatal("failed to initialize database", err)
	}
	defer db.Close()

	ffmpeg := transcription.NewFFmpeg(cfg.FFmpeg.Binary, cfg.Storage.TempDir, transcription.CompressionConfig{
		Enabled:      cfg.Compression.Enabled,
		Resolution:   cfg.Compression.Resolution,
		VideoBitrate: cfg.Compression.VideoBitrate,
		AudioBitrate: cfg.Compression.AudioBitrate,
	}, slogger)

	executor := transcription.NewExecutor(transcription.ExecutorOptions{
		Loader: transcription.NewModelLoader(transcription.WhisperConfig{
			Model:   cfg.Whisper.Model,
			Python:  cfg.Whisper.Python,
			Threads: cfg.Whisper.Threads,
			Device:  cfg.Whisper.Device,
			TempDir: cfg.Storage.TempDir,
		}, slogger),
		Language: cfg.Whisper.Language,
		Logger:   slogger,
	})
	defer executor.Close()

	hub := events.NewHub(0)
	localStorage := storage.NewLocalStorage(cfg.Storage.VideosDir)

	// Google Drive mirror is optional
	var driveClient *storage.DriveClient
	var mirror storage.Mirror
	var mirrorRemover handlers.MirrorRemover
	if _, err := os.Stat(cfg.GoogleDrive.CredentialsFile); err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		driveClient, err = storage.NewDriveClient(ctx,
			cfg.GoogleDrive.CredentialsFile,
			cfg.GoogleDrive.TokenFile,
			cfg.GoogleDrive.FolderName,
		)
		cancel()
		if err != nil {
			slogger.Warn("Google Drive not available, videos will only be kept locally", "err", err)
		} else {
			slogger.Info("Google Drive mirror enabled", "folder", cfg.GoogleDrive.FolderName)
			mirror = driveClient
			mirrorRemover = driveClient
		}
	} else {
		slogger.Info("Google Drive credentials not found, keeping videos locally only")
	}

	orchestrator := pipeline.New(pipeline.Config{
		Extractor:   ffmpeg,
		Transcriber: executor,
		Store:       db,
		Broadcaster: hub,
		Archiver:    storage.NewVideoArchive(localStorage, ffmpeg, mirror, slogger),
		Logger:      slogger,
	})

	workerPool := queue.NewWorkerPool(orchestrator, queue.Options{
		MaxDepth:   cfg.Queue.MaxDepth,
		DrainDelay: cfg.Queue.DrainDelay,
	}, slogger)
	workerPool.Start(context.Background())

	cleanupScheduler := cleanup.NewScheduler(
		[]string{cfg.Storage.TempDir, cfg.Storage.UploadDir},
		cfg.Cleanup.IntervalMinutes,
		cfg.Cleanup.MaxAgeHours,
		slogger,
	)
	cleanupScheduler.Start()
	defer cleanupScheduler.Stop()

	app := fiber.New(fiber.Config{
		BodyLimit: int(cfg.MaxFileSize()),
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, " + handlers.OwnerHeader,
	}))

	uploadHandler := handlers.NewUploadHandler(db, workerPool, cfg.Storage.UploadDir, cfg.Limits.MaxFileSizeMB, slogger)
	videosHandler := handlers.NewVideosHandler(db, localStorage, mirrorRemover, slogger)
	foldersHandler := handlers.NewFoldersHandler(db, slogger)
	transcriptionsHandler := handlers.NewTranscriptionsHandler(db, slogger)
	eventsHandler := handlers.NewEventsHandler(hub, slogger)

	app.Get("/api/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":     "healthy",
			"version":    version,
			"queue_size": workerPool.Size(),
			"processing": workerPool.IsProcessing(),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/logs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"logs": appLogger.Buffer().Lines(),
		})
	})

	app.Static("/videos", cfg.Storage.VideosDir)

	api := app.Group("/api", handlers.RequireOwner)
	api.Post("/videos/upload", uploadHandler.Handle)
	api.Get("/videos", videosHandler.List)
	api.Get("/videos/:id", videosHandler.Get)
	api.Put("/videos/:id", videosHandler.Update)
	api.Delete("/videos/:id", videosHandler.Delete)
	api.Get("/folders", foldersHandler.List)
	api.Post("/folders", foldersHandler.Create)
	api.Put("/folders/:id", foldersHandler.Update)
	api.Delete("/folders/:id", foldersHandler.Delete)
	api.Get("/transcriptions/video/:videoId", transcriptionsHandler.Get)
	api.Get("/transcriptions/export/:videoId/:format", transcriptionsHandler.Export)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(eventsHandler.Handle))

	addr := cfg.Addr()
	slogger.Info("server starting", "addr", addr, "model", cfg.Whisper.Model, "version", version)

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		slogger.Info("shutting down gracefully")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			slogger.Error("http shutdown failed", "err", err)
		}
	}()

	if err := app.Listen(addr); err != nil {
		fatal("server failed", fmt.Errorf("listen %s: %w", addr, err))
	}

	// Let the running job settle before closing what it writes to
	workerPool.Stop()
	slogger.Info("server stopped")
}
