// Standalone single-kiosk server: env-var configuration, embedded
// SQLite history, no Redis or advisory service.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smart-triage-engine/internal/api"
	"github.com/smart-triage-engine/internal/audit"
	"github.com/smart-triage-engine/internal/cache"
	"github.com/smart-triage-engine/internal/config"
	"github.com/smart-triage-engine/internal/domain"
	"github.com/smart-triage-engine/internal/history"
	"github.com/smart-triage-engine/internal/notify"
	"github.com/smart-triage-engine/internal/queue"
	"github.com/smart-triage-engine/internal/scoring"
)

func main() {
	cfg := config.LoadLiteConfig()
	logger := buildLogger(cfg)

	if err := cfg.EnsureDataDir(); err != nil {
		logger.WithError(err).Fatal("Failed to create data directory")
	}

	store, err := history.NewSQLiteStore(cfg.SQLitePath())
	if err != nil {
		logger.WithError(err).Fatal("Failed to open history store")
	}
	defer store.Close()

	trail := audit.NewTrail(logger, audit.Config{Enabled: true, MaxEntries: cfg.AuditMaxEntries})
	hub := notify.NewHub(logger)

	manager := queue.NewManager(logger, trail, queue.Options{
		AutoSortOnEnqueue: cfg.AutoSortOnEnqueue,
		OnDeparture: func(entry domain.QueueEntry) {
			if err := store.SaveDeparture(context.Background(), &entry); err != nil {
				logger.WithError(err).WithField("entry_id", entry.ID).
					Error("Failed to persist departure")
			}
		},
	})

	results, err := cache.NewResultCache(256, scoring.ScorerVersion)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create result cache")
	}

	serverCfg := &domain.Config{
		Environment: "standalone",
		Server: domain.ServerConfig{
			Host:         "0.0.0.0",
			Port:         cfg.HTTPPort,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Logging: domain.LoggingConfig{
			Level:      cfg.LogLevel,
			Format:     cfg.LogFormat,
			AuditTrail: true,
		},
		Queue: domain.QueueConfig{AutoSortOnEnqueue: cfg.AutoSortOnEnqueue},
	}

	server := api.NewServer(serverCfg, api.Dependencies{
		Scorer:    scoring.NewScorer(logger),
		Queue:     manager,
		History:   store,
		Notifier:  &hubNotifier{hub: hub},
		Results:   results,
		Audit:     trail,
		WSHandler: hub.HandleConnect,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"port":     cfg.HTTPPort,
		"data_dir": cfg.DataDir,
	}).Info("Starting standalone triage engine")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

type hubNotifier struct {
	hub *notify.Hub
}

func (n *hubNotifier) Broadcast(snapshot *domain.QueueSnapshot) {
	n.hub.Broadcast(snapshot)
}

func buildLogger(cfg *config.LiteConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.LogFormat == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
