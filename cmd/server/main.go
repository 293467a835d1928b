package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/smart-triage-engine/internal/api"
	"github.com/smart-triage-engine/internal/audit"
	"github.com/smart-triage-engine/internal/cache"
	"github.com/smart-triage-engine/internal/config"
	"github.com/smart-triage-engine/internal/database"
	"github.com/smart-triage-engine/internal/domain"
	"github.com/smart-triage-engine/internal/history"
	"github.com/smart-triage-engine/internal/notify"
	"github.com/smart-triage-engine/internal/queue"
	"github.com/smart-triage-engine/internal/scoring"
	"github.com/smart-triage-engine/pkg/advisory"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := buildLogger(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"host":   cfg.Server.Host,
		"port":   cfg.Server.Port,
		"driver": cfg.Database.Driver,
	}).Info("Starting triage engine")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	deps, cleanup, err := buildDependencies(ctx, configManager, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to wire dependencies")
	}
	defer cleanup()

	server := api.NewServer(cfg, deps, logger)
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

func buildDependencies(ctx context.Context, configManager *config.Manager, cfg *domain.Config, logger *logrus.Logger) (api.Dependencies, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	trail := audit.NewTrail(logger, audit.Config{Enabled: cfg.Logging.AuditTrail})

	store, dbHealth, err := buildHistoryStore(ctx, configManager, cfg, logger)
	if err != nil {
		return api.Dependencies{}, cleanup, err
	}
	cleanups = append(cleanups, func() { store.Close() })

	hub := notify.NewHub(logger)

	manager := queue.NewManager(logger, trail, queue.Options{
		AutoSortOnEnqueue: cfg.Queue.AutoSortOnEnqueue,
		OnDeparture: func(entry domain.QueueEntry) {
			if err := store.SaveDeparture(context.Background(), &entry); err != nil {
				logger.WithError(err).WithField("entry_id", entry.ID).
					Error("Failed to persist departure")
			}
		},
	})

	deps := api.Dependencies{
		Scorer:    scoring.NewScorer(logger),
		Queue:     manager,
		History:   store,
		Notifier:  &hubNotifier{hub: hub},
		Audit:     trail,
		WSHandler: hub.HandleConnect,
		DBHealth:  dbHealth,
	}

	if cfg.Cache.ResultLRUSize > 0 {
		results, err := cache.NewResultCache(cfg.Cache.ResultLRUSize, scoring.ScorerVersion)
		if err != nil {
			return api.Dependencies{}, cleanup, err
		}
		deps.Results = results
	}

	if cfg.Cache.Enabled {
		snapshots, err := cache.NewSnapshotCache(cfg.Cache.RedisURL, cfg.Cache.SnapshotTTL)
		if err != nil {
			return api.Dependencies{}, cleanup, err
		}
		cleanups = append(cleanups, func() { snapshots.Close() })
		deps.Snapshots = snapshots
	}

	if cfg.Advisory.Enabled {
		deps.Advisory = advisory.NewClient(cfg.Advisory)
	}

	return deps, cleanup, nil
}

// buildHistoryStore opens the configured backend and, for PostgreSQL,
// runs pending migrations and establishes the health-check pool.
func buildHistoryStore(ctx context.Context, configManager *config.Manager, cfg *domain.Config, logger *logrus.Logger) (domain.HistoryStore, func(ctx context.Context) error, error) {
	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.MigrationsPath != "" {
			if err := database.Migrate(configManager.GetDatabaseURL(), cfg.Database.MigrationsPath, logger); err != nil {
				return nil, nil, err
			}
		}
		pool, err := database.NewConnection(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		store, err := history.NewPostgresStoreFromURL(configManager.GetDatabaseURL())
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return &pooledStore{PostgresStore: store, pool: pool}, pool.Health, nil
	default:
		store, err := history.NewSQLiteStore(cfg.Database.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}
}

// pooledStore couples the history store with the pgx health-check pool
// so both close together.
type pooledStore struct {
	*history.PostgresStore
	pool *database.DB
}

func (p *pooledStore) Close() error {
	p.pool.Close()
	return p.PostgresStore.Close()
}

// hubNotifier adapts the WebSocket hub to the Notifier interface.
type hubNotifier struct {
	hub *notify.Hub
}

func (n *hubNotifier) Broadcast(snapshot *domain.QueueSnapshot) {
	n.hub.Broadcast(snapshot)
}

func buildLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

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

	if cfg.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(os.Stdout)
	}
	return logger
}
