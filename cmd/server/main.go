package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/iconidentify/favmirror/internal/api"
	"github.com/iconidentify/favmirror/internal/api/handler"
	"github.com/iconidentify/favmirror/internal/config"
	"github.com/iconidentify/favmirror/internal/downloader"
	"github.com/iconidentify/favmirror/internal/media"
	"github.com/iconidentify/favmirror/internal/queue"
	"github.com/iconidentify/favmirror/internal/repository"
	"github.com/iconidentify/favmirror/internal/service"
	"github.com/iconidentify/favmirror/internal/storage"
	"github.com/iconidentify/favmirror/internal/worker"
	"github.com/iconidentify/favmirror/pkg/booru"
	"github.com/iconidentify/favmirror/pkg/ffmpeg"
	"github.com/iconidentify/favmirror/pkg/vips"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("favmirror %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Load configuration before the logger so level and format apply.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting favmirror",
		"version", Version,
		"build_time", BuildTime,
		"storage", cfg.Storage.BasePath,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// Ensure storage directories exist
	layout := storage.Layout{BasePath: cfg.Storage.BasePath, TempPath: cfg.Storage.TempPath}
	if err := layout.Ensure(); err != nil {
		return fmt.Errorf("prepare storage: %w", err)
	}
	if n, err := layout.ClearTemp(); err != nil {
		logger.Warn("failed to clear temp directory", "error", err)
	} else if n > 0 {
		logger.Info("removed stale temp files", "count", n)
	}

	repo, err := repository.OpenSQLite(ctx, cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	// External tools are required; their absence is fatal.
	video, err := ffmpeg.NewProcessor(cfg.Tools.FFmpeg, cfg.Tools.FFprobe)
	if err != nil {
		return fmt.Errorf("resolve ffmpeg: %w", err)
	}
	if v, err := video.Version(ctx); err == nil {
		logger.Info("using ffmpeg", "version", v)
	}
	images, err := vips.NewEncoder(cfg.Tools.Vips, cfg.Tools.JPEGQuality)
	if err != nil {
		return fmt.Errorf("resolve vips: %w", err)
	}

	// Initialize dependencies
	q := queue.New()
	source := booru.NewClient(cfg.Source)
	dl := downloader.NewHTTPDownloader(cfg.Download, logger)
	transcoder := media.NewTranscoder(video, images, logger)

	// Initialize services
	ingestSvc := service.NewIngestService(repo, source, dl, transcoder, cfg.Storage, logger)
	intakeSvc := service.NewIntakeService(repo, q, logger)
	gallerySvc := service.NewGalleryService(repo, cfg.Storage.BasePath)

	pool := worker.NewPool(worker.Config{Workers: cfg.Worker.Count}, q, ingestSvc, logger)
	pool.Start()

	if n, err := intakeSvc.RequeuePending(ctx); err != nil {
		logger.Error("failed to requeue pending posts", "error", err)
	} else {
		logger.Info("requeued pending posts", "count", n)
	}
	if _, err := ingestSvc.AuditDownloads(ctx); err != nil {
		logger.Error("download audit failed", "error", err)
	}

	// Initialize handlers
	postHandler := handler.NewPostHandler(intakeSvc, ingestSvc, cfg.Server.MaxUploadSize, logger)
	searchHandler := handler.NewSearchHandler(intakeSvc, logger)
	healthHandler := handler.NewHealthHandler(repo, intakeSvc, cfg.Storage.BasePath, logger)
	galleryHandler := handler.NewGalleryHandler(gallerySvc, logger)

	router := api.NewRouter(postHandler, searchHandler, healthHandler, galleryHandler, cfg.Server.AllowedOrigin, logger)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	// Stop accepting new requests
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Stop workers (in-flight posts run to completion)
	if err := pool.Stop(cfg.Worker.ShutdownTimeout); err != nil {
		logger.Error("worker pool shutdown error", "error", err)
	}
	q.Close()

	logger.Info("shutdown complete", "unprocessed", q.Len())
	return runErr
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level, err := cfg.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
