package domain

import (
	"context"
)

// RiskScorer maps an assessment's clinical inputs to a triage result.
// Scoring is a pure function of the assessment: no hidden state, fully
// re-entrant, safe to recompute on every field update. Missing optional
// vitals contribute zero. The scorer never fails; validating inputs is
// the caller's responsibility.
type RiskScorer interface {
	Score(assessment *Assessment) *TriageResult
}

// QueueManager maintains the ordered, mutable set of queue entries and
// keeps positions and stats consistent after every operation. All
// mutations are serialized against a single queue instance; every
// mutating operation returns the post-mutation stats snapshot.
type QueueManager interface {
	Enqueue(entry *QueueEntry) (QueueStats, error)
	Remove(id string) (QueueStats, error)
	UpdateEntry(id string, update EntryUpdate) (QueueStats, error)
	MoveUp(id string) (QueueStats, error)
	MoveDown(id string) (QueueStats, error)
	SortByPriority() QueueStats
	Stats() QueueStats
	List() []QueueEntry
	Get(id string) (QueueEntry, error)
	Snapshot() QueueSnapshot
}

// HistoryStore persists finalized assessments and departed queue
// entries for audit and reporting.
type HistoryStore interface {
	SaveAssessment(ctx context.Context, assessment *Assessment) error
	GetAssessment(ctx context.Context, id string) (*Assessment, error)
	ListByPatient(ctx context.Context, patientID string, limit int) ([]*Assessment, error)
	SaveDeparture(ctx context.Context, entry *QueueEntry) error
	Close() error
}

// SnapshotCache publishes the latest queue snapshot so read paths can
// serve listings without touching the queue writer.
type SnapshotCache interface {
	PublishSnapshot(ctx context.Context, snapshot *QueueSnapshot) error
	LatestSnapshot(ctx context.Context) (*QueueSnapshot, error)
}

// Notifier fans a post-mutation snapshot out to connected dashboards.
type Notifier interface {
	Broadcast(snapshot *QueueSnapshot)
}

// ConfigManager exposes runtime configuration to the engine's wiring.
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDatabaseConfig() *DatabaseConfig
	GetCacheConfig() *CacheConfig
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
	IsProduction() bool
}
