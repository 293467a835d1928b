// This file contains the lightweight configuration for standalone
// single-kiosk deployments: env vars only, sqlite storage, no redis.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir    string // Base directory for the sqlite history store
	SQLiteFile string // Database file name inside DataDir

	// HTTP settings
	HTTPPort int

	// Queue settings
	AutoSortOnEnqueue bool

	// Audit trail
	AuditMaxEntries int

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".triage-engine")

	return &LiteConfig{
		DataDir:           dataDir,
		SQLiteFile:        "triage.db",
		HTTPPort:          8080,
		AutoSortOnEnqueue: false,
		AuditMaxEntries:   1000,
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("TRIAGE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("TRIAGE_SQLITE_FILE"); v != "" {
		cfg.SQLiteFile = v
	}
	if v := os.Getenv("TRIAGE_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 && port <= 65535 {
			cfg.HTTPPort = port
		}
	}
	if v := os.Getenv("TRIAGE_AUTO_SORT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AutoSortOnEnqueue = b
		}
	}
	if v := os.Getenv("TRIAGE_AUDIT_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AuditMaxEntries = n
		}
	}
	if v := os.Getenv("TRIAGE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TRIAGE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// SQLitePath returns the full path of the sqlite history database.
func (c *LiteConfig) SQLitePath() string {
	return filepath.Join(c.DataDir, c.SQLiteFile)
}

// EnsureDataDir creates the data directory if it does not exist.
func (c *LiteConfig) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o755)
}

// CacheTTLFromEnv reads an optional TTL override used by snapshot
// consumers; zero means no expiry.
func CacheTTLFromEnv() time.Duration {
	if v := os.Getenv("TRIAGE_SNAPSHOT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return 0
}
