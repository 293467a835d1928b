package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/smart-triage-engine/internal/domain"
)

// PostgresStore implements the HistoryStore interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL history store. It expects
// the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL history store from a
// connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// SaveAssessment stores or replaces a finalized assessment.
func (s *PostgresStore) SaveAssessment(ctx context.Context, assessment *domain.Assessment) error {
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
		INSERT INTO assessments (
			id, patient_id, triage_score, priority, estimated_wait,
			payload, created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			triage_score = EXCLUDED.triage_score,
			priority = EXCLUDED.priority,
			estimated_wait = EXCLUDED.estimated_wait,
			payload = EXCLUDED.payload,
			completed_at = EXCLUDED.completed_at`

	_, err = s.db.ExecContext(ctx, query,
		assessment.ID, assessment.PatientID, score, priority, wait,
		string(payload), createdAt, assessment.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to save assessment: %w", err)
	}
	return nil
}

// GetAssessment retrieves an assessment by id.
func (s *PostgresStore) GetAssessment(ctx context.Context, id string) (*domain.Assessment, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM assessments WHERE id = $1", id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assessment %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	return unmarshalAssessment(payload)
}

// ListByPatient returns the patient's assessments, newest first.
func (s *PostgresStore) ListByPatient(ctx context.Context, patientID string, limit int) ([]*domain.Assessment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT payload FROM assessments WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2",
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

// SaveDeparture records the final state of a departed queue entry.
func (s *PostgresStore) SaveDeparture(ctx context.Context, entry *domain.QueueEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal queue entry: %w", err)
	}

	query := `
		INSERT INTO departures (
			entry_id, patient_id, patient_name, priority, status,
			checked_in_at, departed_at, room_assigned, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (entry_id) DO UPDATE SET
			status = EXCLUDED.status,
			departed_at = EXCLUDED.departed_at,
			room_assigned = EXCLUDED.room_assigned,
			payload = EXCLUDED.payload`

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
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
