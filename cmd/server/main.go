package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wordclash/internal/app"
	"wordclash/internal/config"
	"wordclash/internal/domain"
	"wordclash/internal/storage"
	httpTransport "wordclash/internal/transport/http"
	"wordclash/internal/transport/tcp"
	"wordclash/internal/transport/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Set up logger
	var logger *slog.Logger
	logOpts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if cfg.Logging.Format == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, logOpts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, logOpts))
	}

	slog.SetDefault(logger)

	logger.Info("starting wordclash server",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"tcpPort", cfg.Server.TCPPort,
	)

	words, err := app.LoadWordBank(cfg.Game.WordListPath)
	if err != nil {
		logger.Error("failed to load word list", "path", cfg.Game.WordListPath, "error", err)
		os.Exit(1)
	}

	// Match history is optional
	var recorder app.MatchRecorder
	var history httpTransport.MatchHistory
	if cfg.Storage.DBPath != "" {
		store, err := storage.Open(cfg.Storage.DBPath, logger)
		if err != nil {
			logger.Error("failed to open match history", "path", cfg.Storage.DBPath, "error", err)
			os.Exit(1)
		}
		defer store.Close()
		recorder, history = store, store
	}

	settings := domain.DefaultRoomSettings()
	if cfg.Game.CountdownSeconds > 0 {
		settings.CountdownSeconds = cfg.Game.CountdownSeconds
	}
	if cfg.Game.StartingHealth > 0 {
		settings.StartingHealth = cfg.Game.StartingHealth
	}

	registry := app.NewRegistry(app.RegistryConfig{
		Words:    words,
		Settings: settings,
		Logger:   logger,
		Recorder: recorder,
	})
	defer registry.Close()

	limit := app.RateLimit{
		PerSecond: cfg.Server.RateLimitPerSecond,
		Burst:     cfg.Server.RateLimitBurst,
	}

	// Cancelling wsCtx closes every WebSocket connection
	wsCtx, cancelWS := context.WithCancel(context.Background())
	defer cancelWS()

	tcpServer := tcp.NewServer(cfg.GetTCPAddr(), registry, limit, logger)
	httpServer := httpTransport.NewServer(cfg, registry, history, ws.NewHandler(wsCtx, registry, limit, logger), logger)

	go func() {
		if err := tcpServer.ListenAndServe(); err != nil {
			logger.Error("tcp server error", "error", err)
			os.Exit(1)
		}
	}()

	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("http server forced to shutdown", "error", err)
	}
	cancelWS()
	if err := tcpServer.Shutdown(ctx); err != nil {
		logger.Error("tcp server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
