package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/onco-efficacy-engine/internal/api"
	"github.com/onco-efficacy-engine/internal/calibration"
	"github.com/onco-efficacy-engine/internal/config"
	"github.com/onco-efficacy-engine/internal/database"
	"github.com/onco-efficacy-engine/internal/registry"
	"github.com/onco-efficacy-engine/internal/service"
	"github.com/onco-efficacy-engine/pkg/external"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		logrus.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := newLogger(cfg.Logging)

	tables, err := loadTables(cfg.Scoring.TablesPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load scoring tables")
	}
	reg := registry.New(tables, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshots, db, cleanup, err := buildCalibration(ctx, configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize calibration store")
	}
	defer cleanup()

	clients, err := external.NewResilientClient(
		cfg.Upstream.Scorer,
		cfg.Upstream.EnhancedScorer,
		cfg.Upstream.Evidence,
		cfg.Upstream.Clinical,
		cfg.Upstream.Insights,
		cfg.Cache,
		logger,
	)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize collaborator clients")
	}
	defer clients.Close()

	orchestrator := service.NewOrchestrator(reg, service.Collaborators{
		Baseline: clients.Baseline(),
		Enhanced: clients.Enhanced(),
		Evidence: clients,
		Clinical: clients,
		Insights: clients,
	}, service.NewConfidenceEngine(snapshots, logger), logger)
	orchestrator.SetFanoutTimeout(cfg.Pipeline.FanoutTimeout)

	server := api.NewServer(cfg, orchestrator, reg, clients, logger)
	if db != nil {
		server.SetDatabasePinger(db)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, shutting down")
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"host":           cfg.Server.Host,
		"port":           cfg.Server.Port,
		"tables_version": reg.Current().Version,
	}).Info("Starting efficacy scoring engine")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

// loadTables reads the scoring tables file, or the built-in defaults when no
// path is configured.
func loadTables(path string) (*registry.ScoringTables, error) {
	if path == "" {
		return registry.DefaultTables(), nil
	}
	return registry.LoadFile(path)
}

// buildCalibration wires the configured snapshot store behind the in-process
// cache. Backend "none" disables calibration entirely; every gene then uses
// the global fallback. The returned *database.DB is non-nil only for the
// postgres backend and feeds the health endpoint's connectivity check.
func buildCalibration(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) (*calibration.Cache, *database.DB, func(), error) {
	cfg := configManager.GetConfig()

	switch cfg.Calibration.Backend {
	case "none":
		return nil, nil, func() {}, nil

	case "sqlite":
		store, err := calibration.NewSQLiteStore(cfg.Calibration.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		cache := calibration.NewCache(store, cfg.Calibration.CacheSize, cfg.Calibration.CacheTTL, logger)
		return cache, nil, func() { store.Close() }, nil

	case "postgres":
		runner, err := database.NewMigrationRunner(configManager.DatabaseURL(), cfg.Database.MigrationsPath, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := runner.Up(); err != nil {
			runner.Close()
			return nil, nil, nil, err
		}
		runner.Close()

		db, err := database.NewConnection(ctx, database.Config{
			URL:             configManager.DatabaseURL(),
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		}, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		store, err := calibration.NewPostgresStore(db.Pool, logger)
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		cache := calibration.NewCache(store, cfg.Calibration.CacheSize, cfg.Calibration.CacheTTL, logger)
		return cache, db, func() { db.Close() }, nil
	}

	return nil, nil, func() {}, nil
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
