package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/scanfleet/internal/auth"
	"github.com/HerbHall/scanfleet/internal/config"
	"github.com/HerbHall/scanfleet/internal/event"
	"github.com/HerbHall/scanfleet/internal/fleet"
	"github.com/HerbHall/scanfleet/internal/logging"
	"github.com/HerbHall/scanfleet/internal/registry"
	"github.com/HerbHall/scanfleet/internal/scantask"
	"github.com/HerbHall/scanfleet/internal/server"
	"github.com/HerbHall/scanfleet/internal/store"
	"github.com/HerbHall/scanfleet/pkg/plugin"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		// Logger is not up yet; this is the one place stderr is written raw.
		zap.NewExample().Fatal("failed to load configuration", zap.Error(err))
	}

	logger := logging.New(logging.Options{
		Level:      cfg.GetString("log.level"),
		File:       cfg.GetString("log.file"),
		MaxSizeMB:  cfg.GetInt("log.max_size_mb"),
		MaxBackups: cfg.GetInt("log.max_backups"),
	})
	defer logger.Sync()

	logger.Info("ScanFleet server starting")

	db, err := store.New(cfg.GetString("store.path"))
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer db.Close()

	bus := event.NewBus(logger.Named("event"))

	reg := registry.New(logger.Named("registry"))
	modules := []plugin.Plugin{
		fleet.New(),
		scantask.New(),
	}
	root := config.New(cfg)
	for _, m := range modules {
		name := m.Info().Name
		if root.IsSet("plugins."+name+".enabled") && !cfg.GetBool("plugins."+name+".enabled") {
			logger.Info("plugin disabled by configuration", zap.String("name", name))
			continue
		}
		if err := reg.Register(m); err != nil {
			logger.Fatal("failed to register plugin", zap.Error(err))
		}
	}

	if err := reg.Validate(); err != nil {
		logger.Fatal("plugin validation failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	depsFor := func(name string) plugin.Dependencies {
		return plugin.Dependencies{
			Logger: logger.Named(name),
			Config: root.Sub("plugins." + name),
			Bus:    bus,
			Store:  db,
		}
	}
	if err := reg.InitAll(ctx, depsFor); err != nil {
		logger.Fatal("failed to initialize plugins", zap.Error(err))
	}

	for _, sub := range reg.Subscriptions() {
		bus.Subscribe(sub.Topic, sub.Handler)
	}

	if err := reg.StartAll(ctx); err != nil {
		logger.Fatal("failed to start plugins", zap.Error(err))
	}

	verifier := auth.NewVerifier(cfg.GetString("auth.jwt_secret"), logger.Named("auth"))
	addr := cfg.GetString("server.host") + ":" + cfg.GetString("server.port")
	srv := server.New(addr, reg, verifier.Middleware, logger.Named("server"))

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("ScanFleet server ready", zap.String("addr", addr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	reg.StopAll(shutdownCtx)

	logger.Info("ScanFleet server stopped")
}
