package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"multiroom-ws/internal/config"
	"multiroom-ws/internal/pool"
	"multiroom-ws/internal/server"
	"multiroom-ws/internal/snapcast"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pool.New()
	if err := p.Initialize(ctx, settingsSource(cfg)); err != nil {
		slog.Error("pool initialization failed", "error", err)
		os.Exit(1)
	}

	var snapHub *snapcast.Hub
	if cfg.Snapcast.Host != "" {
		snapHub = snapcast.New(cfg.Snapcast.Host, cfg.Snapcast.Port)
		if err := snapHub.Connect(ctx); err != nil {
			slog.Warn("snapcast connect failed, retrying in background", "error", err)
		}
	}

	srv := server.New(":"+cfg.ServerPort, cfg.AllowedOrigins, p, snapHub)
	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// settingsSource picks where the instance list comes from: a settings
// endpoint, a local file, or mDNS discovery when neither is configured.
func settingsSource(cfg *config.Config) pool.Source {
	switch {
	case cfg.SettingsURL != "":
		return pool.HTTPSource{URL: cfg.SettingsURL}
	case cfg.SettingsFile != "":
		return pool.FileSource{Path: cfg.SettingsFile}
	default:
		slog.Info("no settings source configured, using mdns discovery")
		return pool.Discovery{}
	}
}
