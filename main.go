// Command sentry is the moderation bot entrypoint.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Connects the Discord gateway and wires event handlers.
//   - Starts the mute-expiry scheduler.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/sentry/config"
	"github.com/onnwee/sentry/db"
	"github.com/onnwee/sentry/discordapi"
	"github.com/onnwee/sentry/moderation"
	"github.com/onnwee/sentry/server"
	"github.com/onnwee/sentry/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config invalid", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing("sentry", "1.0.0")
	if err != nil {
		slog.Warn("tracing init failed", slog.Any("err", err))
		shutdownTracing = func() {}
	}
	defer shutdownTracing()

	// Database
	sqlDB, err := db.Connect()
	if err != nil {
		slog.Error("db connect failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer sqlDB.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.Migrate(ctx, sqlDB); err != nil {
		slog.Error("db migrate failed", slog.Any("err", err))
		os.Exit(1)
	}
	store := db.NewActionStore(sqlDB)

	// Discord gateway
	client, err := discordapi.New(cfg.DiscordToken)
	if err != nil {
		slog.Error("discord client init failed", slog.Any("err", err))
		os.Exit(1)
	}

	svc := moderation.NewService(store, client, cfg)
	client.BindHandlers(ctx, svc)

	if err := client.Open(); err != nil {
		slog.Error("discord gateway connect failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer client.Close()
	svc.SetBotID(client.BotUserID())
	slog.Info("sentry is ready", slog.String("guild_id", cfg.GuildID))

	// Expiry scheduler
	go svc.StartExpiryJob(ctx)

	// HTTP server
	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.NewMux(sqlDB, cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("http server listening", slog.String("addr", cfg.ListenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", slog.Any("err", err))
		}
	}()

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	slog.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", slog.Any("err", err))
	}
}
