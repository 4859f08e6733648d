package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/streamvio/streamvio/internal/config"
	"github.com/streamvio/streamvio/internal/database"
	"github.com/streamvio/streamvio/internal/ffmpeg"
	internalhttp "github.com/streamvio/streamvio/internal/http"
	"github.com/streamvio/streamvio/internal/http/handlers"
	"github.com/streamvio/streamvio/internal/repository"
	"github.com/streamvio/streamvio/internal/service"
	"github.com/streamvio/streamvio/internal/transcode"
	"github.com/streamvio/streamvio/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the streamvio server",
	Long: `Start the streamvio HTTP server and transcoding engine.

The server provides:
- REST API for submitting and managing transcode jobs
- Media inspection endpoints backed by ffprobe
- Job lifecycle events over SSE at /api/v1/events
- Health check endpoint and OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server flags; applied on top of config/env when explicitly set.
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("database", "", "Database DSN (overrides config)")
	serveCmd.Flags().String("data-dir", "", "Base directory for output files (overrides config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := slog.Default()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyServeFlags(cmd, cfg)

	// Database
	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// Repositories
	jobRepo := repository.NewTranscodeJobRepository(db.DB)
	mediaRepo := repository.NewMediaFileRepository(db.DB)

	// FFmpeg binaries and probing
	bins, err := ffmpeg.FindBinaries(cfg.FFmpeg.BinaryPath, cfg.FFmpeg.ProbePath)
	if err != nil {
		return fmt.Errorf("locating ffmpeg: %w", err)
	}
	if bins.FFprobe == "" {
		logger.Warn("ffprobe not found, media probing and progress reporting are disabled")
	}
	prober := ffmpeg.NewProber(bins.FFprobe).WithTimeout(cfg.FFmpeg.ProbeTimeout)
	detector := ffmpeg.NewHWAccelDetector(bins.FFmpeg)

	// Transcode profiles
	profiles := transcode.NewProfiles(cfg.Transcoding.MaxBitrateKbps)
	if cfg.Transcoding.ProfileFile != "" {
		if err := profiles.LoadFile(cfg.Transcoding.ProfileFile); err != nil {
			return fmt.Errorf("loading profiles: %w", err)
		}
	}

	// Job engine
	bus := transcode.NewBus(logger)
	scheduler := transcode.NewScheduler(transcode.SchedulerConfig{
		Enabled:         cfg.Transcoding.Enabled,
		FFmpegPath:      bins.FFmpeg,
		OutputRoot:      cfg.Storage.OutputPath(),
		MaxConcurrent:   cfg.Transcoding.MaxConcurrentJobs,
		MaxBitrateKbps:  cfg.Transcoding.MaxBitrateKbps,
		SegmentSeconds:  int(cfg.Transcoding.SegmentDuration.Seconds()),
		ThumbnailWidth:  cfg.Transcoding.ThumbnailWidth,
		ThumbnailHeight: cfg.Transcoding.ThumbnailHeight,
		HWAccel:         cfg.Transcoding.HWAccel,
	}, jobRepo, profiles, prober, detector, ffmpeg.NewExecRunner(), bus, logger)
	defer scheduler.Close()

	// Services
	mediaService := service.NewMediaService(mediaRepo, prober, logger)

	previewListener := service.NewPreviewListener(bus, cfg.Transcoding.ThumbnailWidth, logger)
	previewListener.Start()
	defer previewListener.Stop()

	if cfg.Maintenance.Enabled {
		maintenance := service.NewMaintenanceService(jobRepo, cfg.Maintenance.Cron, cfg.Maintenance.JobRetention, logger)
		if err := maintenance.Start(); err != nil {
			return fmt.Errorf("starting maintenance service: %w", err)
		}
		defer maintenance.Stop()
	}

	// HTTP server
	serverConfig := internalhttp.DefaultServerConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	serverConfig.ReadTimeout = cfg.Server.ReadTimeout
	serverConfig.ShutdownTimeout = cfg.Server.ShutdownTimeout
	server := internalhttp.NewServer(serverConfig, logger, version.Version)

	healthHandler := handlers.NewHealthHandler(version.Version).WithDB(db)
	healthHandler.Register(server.API())

	transcodeHandler := handlers.NewTranscodeHandler(scheduler, jobRepo)
	transcodeHandler.Register(server.API())

	mediaHandler := handlers.NewMediaHandler(mediaService)
	mediaHandler.Register(server.API())

	systemHandler := handlers.NewSystemHandler(detector, scheduler)
	systemHandler.Register(server.API())

	eventsHandler := handlers.NewEventsHandler(bus, logger)
	eventsHandler.Register(server.Router())

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting streamvio server",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.String("version", version.Version),
		slog.Bool("transcoding_enabled", cfg.Transcoding.Enabled),
	)

	return server.ListenAndServe(ctx)
}

// applyServeFlags overrides config values with explicitly set CLI flags.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("database") {
		cfg.Database.DSN, _ = cmd.Flags().GetString("database")
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.Storage.BaseDir, _ = cmd.Flags().GetString("data-dir")
	}
}
