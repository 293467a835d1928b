// Package history persists finalized assessments and departed queue
// entries. Two backends are provided: an embedded SQLite store for
// standalone kiosks and a PostgreSQL store for clinic deployments.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/smart-triage-engine/internal/domain"
)

// SQLiteStore implements the HistoryStore interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite history store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency between the writer and readers.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSQLiteSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS assessments (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		triage_score INTEGER NOT NULL DEFAULT 0,
		priority TEXT NOT NULL DEFAULT '',
		estimated_wait INTEGER NOT NULL DEFAULT 0,
		payload TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_assessments_patient ON assessments(patient_id, created_at);

	CREATE TABLE IF NOT EXISTS departures (
		entry_id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		patient_name TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL,
		status TEXT NOT NULL,
		checked_in_at TIMESTAMP NOT NULL,
		departed_at TIMESTAMP NOT NULL,
		room_assigned TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_departures_patient ON departures(patient_id, departed_at);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveAssessment stores or replaces a finalized assessment.
func (s *SQLiteStore) SaveAssessment(ctx context.Context, assessment *domain.Assessment) error {
	payload, err := json.Marshal(assessment)
	if err != nil {
		return fmt.Errorf("failed to marshal assessment: %w", err)
	}

	score, priority, wait := derivedColumns(assessment)
	createdAt := assessment.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
	INSERT INTO assessments (id, patient_id, triage_score, priority, estimated_wait, payload, created_at, completed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		triage_score = excluded.triage_score,
		priority = excluded.priority,
		estimated_wait = excluded.estimated_wait,
		payload = excluded.payload,
		completed_at = excluded.completed_at`

	_, err = s.db.ExecContext(ctx, query,
		assessment.ID, assessment.PatientID, score, priority, wait,
		string(payload), createdAt, assessment.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to save assessment: %w", err)
	}
	return nil
}

// GetAssessment retrieves an assessment by id.
func (s *SQLiteStore) GetAssessment(ctx context.Context, id string) (*domain.Assessment, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM assessments WHERE id = ?", id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assessment %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	return unmarshalAssessment(payload)
}

// ListByPatient returns the patient's assessments, newest first.
func (s *SQLiteStore) ListByPatient(ctx context.Context, patientID string, limit int) ([]*domain.Assessment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT payload FROM assessments WHERE patient_id = ? ORDER BY created_at DESC LIMIT ?",
		patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer rows.Close()

	var out []*domain.Assessment
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		a, err := unmarshalAssessment(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SaveDeparture records the final state of a queue entry that left the
// active queue via completion, no-show, or removal.
func (s *SQLiteStore) SaveDeparture(ctx context.Context, entry *domain.QueueEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal queue entry: %w", err)
	}

	query := `
	INSERT INTO departures (entry_id, patient_id, patient_name, priority, status, checked_in_at, departed_at, room_assigned, payload)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(entry_id) DO UPDATE SET
		status = excluded.status,
		departed_at = excluded.departed_at,
		room_assigned = excluded.room_assigned,
		payload = excluded.payload`

	_, err = s.db.ExecContext(ctx, query,
		entry.ID, entry.PatientID, entry.PatientName, entry.Priority.String(),
		entry.Status.String(), entry.CheckedInAt, time.Now().UTC(),
		entry.RoomAssigned, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save departure: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func derivedColumns(a *domain.Assessment) (score int, priority string, wait int) {
	if a.Result == nil {
		return 0, "", 0
	}
	return a.Result.Score, a.Result.Priority.String(), a.Result.EstimatedWaitTime
}

func unmarshalAssessment(payload string) (*domain.Assessment, error) {
	a := &domain.Assessment{}
	if err := json.Unmarshal([]byte(payload), a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal assessment: %w", err)
	}
	return a, nil
}
