package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	announceimpl "github.com/podiumlab/racebot/external/announce"
	configloader "github.com/podiumlab/racebot/external/config"
	healthimpl "github.com/podiumlab/racebot/external/health"
	raceimpl "github.com/podiumlab/racebot/external/race"
	repositoryimpl "github.com/podiumlab/racebot/external/repository"
	"github.com/podiumlab/racebot/internal/command"
	"github.com/podiumlab/racebot/internal/config"
	"github.com/podiumlab/racebot/internal/eventbus"
	"github.com/podiumlab/racebot/internal/supervisor"
	"github.com/samber/do/v2"
)

const shutdownTimeout = 10 * time.Second

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "categories", len(cfg.BotCredentials))

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	runBot(cfg, injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	eventbus.RegisterDI(injector)
	repositoryimpl.RegisterDI(injector)
	raceimpl.RegisterDI(injector)
	command.RegisterDI(injector)
	supervisor.RegisterDI(injector)
	healthimpl.RegisterDI(injector)
	announceimpl.RegisterDI(injector)

	return injector
}

func runBot(cfg *config.Config, injector do.Injector) {
	bus, err := do.Invoke[*eventbus.Bus](injector)
	if err != nil {
		slog.Error("failed to resolve event bus", "error", err)
		os.Exit(1)
	}
	manager, err := do.Invoke[*supervisor.Manager](injector)
	if err != nil {
		slog.Error("failed to resolve supervisor manager", "error", err)
		os.Exit(1)
	}
	healthServer, err := do.Invoke[*healthimpl.Server](injector)
	if err != nil {
		slog.Error("failed to resolve health server", "error", err)
		os.Exit(1)
	}

	if cfg.AnnounceEnabled() {
		announcer, err := do.Invoke[*announceimpl.Announcer](injector)
		if err != nil {
			slog.Error("failed to resolve discord announcer", "error", err)
			os.Exit(1)
		}
		if err := announcer.Open(); err != nil {
			slog.Error("discord connect failed", "error", err)
			os.Exit(1)
		}
		announcer.Subscribe(bus)
		defer func() {
			if err := announcer.Close(); err != nil {
				slog.Error("discord close failed", "error", err)
			}
		}()
		slog.Info("startup: discord announcements enabled", "channel_id", cfg.DiscordAnnounceChannelID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("startup: launching connection supervisors")
	manager.StartAll(ctx)
	healthServer.Start()
	slog.Info("startup: health surface listening", "addr", cfg.HealthListenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("health server shutdown failed", "error", err)
	}
	manager.StopAll()
	bus.Close()
}
