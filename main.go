package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/config"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/db"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/downloader"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/emotion"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/handler"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/service"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/spotify"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/tunnel"
	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	if cfg.Debug {
		if devLog, err := zap.NewDevelopment(); err == nil {
			log = devLog
		}
	}

	log.Info("Loaded config",
		zap.String("cache_backend", cfg.CacheBackend),
		zap.String("songs_dir", cfg.SongsDir),
		zap.String("format", cfg.DownloadFormat))

	database, err := openDatabase(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to create database connection", zap.Error(err))
	}

	log.Info("Database connection established")

	if err := os.MkdirAll(cfg.SongsDir, 0o755); err != nil {
		log.Fatal("Failed to create songs dir", zap.String("dir", cfg.SongsDir), zap.Error(err))
	}

	spotdl := downloader.NewSpotdl(cfg.SpotdlPath, cfg.DownloadFormat, cfg.DownloadTimeout, log)
	ffprobe := downloader.NewFFProbe(cfg.FFProbePath, cfg.FFProbeTimeout)
	// missing tools only fail the requests that need them
	if err := spotdl.Available(); err != nil {
		log.Warn("spotdl is not available, downloads will fail", zap.Error(err))
	}
	if err := ffprobe.Available(); err != nil {
		log.Warn("ffprobe is not available, downloads will fail validation", zap.Error(err))
	}

	tun, err := tunnel.Listen(ctx, cfg.NgrokAuthToken, log)
	if err != nil {
		log.Fatal("Failed to open tunnel", zap.Error(err))
	}

	baseURL := cfg.PublicURL
	if baseURL == "" {
		baseURL = tun.URL()
	}
	log.Info("Ingress established", zap.String("tunnel_url", tun.URL()), zap.String("base_url", baseURL))

	spotifyService := spotify.NewSpotifyService(ctx, cfg.SpotifyClientID, cfg.SpotifyClientSecret, log)
	log.Info("Spotify service initialized")

	classifier := emotion.NewClient(cfg.ClassifierURL, cfg.ClassifierTimeout, log)

	svc := service.NewService(
		database,
		classifier,
		spotifyService,
		spotdl,
		ffprobe,
		downloader.NewTagger(),
		service.Options{
			SongsDir: cfg.SongsDir,
			Format:   cfg.DownloadFormat,
			BaseURL:  baseURL,
		},
		log,
	)

	h := handler.NewHandler(svc, database, cfg.SongsDir, cfg.MaxUploadBytes, log)
	router := handler.NewRouter(h, handler.RouterConfig{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRequests:  cfg.RateLimitRequests,
	}, log)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
		}
	}()

	go func() {
		log.Info("Serving tunnel", zap.String("url", tun.URL()))
		if err := srv.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Tunnel server error", zap.Error(err))
		}
	}()

	// Periodic stats logging
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				count, err := database.CountSavedSongs(ctx)
				if err != nil {
					log.Error("Failed to get stats for periodic log", zap.Error(err))
					continue
				}
				log.Info("periodic_stats", zap.Int64("saved_songs", count))
			case <-ctx.Done():
				return
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down...")

	// in-flight downloads are allowed to finish within the grace period
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("HTTP server stopped")

	if err := tun.Close(); err != nil {
		log.Warn("Failed to close tunnel", zap.Error(err))
	}

	cancel()

	if err := database.Close(shutdownCtx); err != nil {
		log.Error("Failed to close database", zap.Error(err))
	}

	log.Info("Shutdown complete")
}

func openDatabase(ctx context.Context, cfg *config.Config, log *zap.Logger) (db.Database, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendMongo:
		return db.NewDatabase(ctx, log, cfg.DatabaseURL, cfg.DatabaseName)
	default:
		return db.NewBadgerDatabase(log, cfg.BadgerPath)
	}
}
