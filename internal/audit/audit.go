// Package audit provides the structured audit trail of the triage
// engine: every scoring run and queue mutation is logged with stable
// fields and kept in a bounded in-memory ring for inspection.
package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/smart-triage-engine/internal/domain"
)

// Entry is one recorded audit event.
type Entry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Operation string         `json:"operation"`
	EntryID   string         `json:"entry_id,omitempty"`
	PatientID string         `json:"patient_id,omitempty"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Config configures the audit trail.
type Config struct {
	// MaxEntries bounds the in-memory ring. Oldest entries are dropped
	// first once the bound is reached.
	MaxEntries int
	// Enabled turns the trail off entirely when false; mutations are
	// still logged at debug level by their owners.
	Enabled bool
}

// Trail records scoring runs and queue mutations. Safe for concurrent
// use.
type Trail struct {
	logger  *logrus.Logger
	config  Config
	mu      sync.Mutex
	entries []Entry
}

// NewTrail creates a new audit trail backed by the given logger.
func NewTrail(logger *logrus.Logger, config Config) *Trail {
	if config.MaxEntries <= 0 {
		config.MaxEntries = 1000
	}
	return &Trail{
		logger:  logger,
		config:  config,
		entries: make([]Entry, 0, config.MaxEntries),
	}
}

// RecordMutation records one queue mutation. Implements the queue
// manager's AuditRecorder.
func (t *Trail) RecordMutation(op string, entry *domain.QueueEntry, stats domain.QueueStats, err error) {
	if !t.config.Enabled {
		return
	}

	e := Entry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Operation: op,
		Success:   err == nil,
		Fields: map[string]any{
			"total_patients":    stats.TotalPatients,
			"average_wait_time": stats.AverageWaitTime,
		},
	}
	if entry != nil {
		e.EntryID = entry.ID
		e.PatientID = entry.PatientID
		for k, v := range entry.LogFields() {
			e.Fields[k] = v
		}
	}
	if err != nil {
		e.Error = err.Error()
	}

	t.append(e)

	fields := logrus.Fields{
		"audit_id":  e.ID,
		"operation": op,
		"success":   e.Success,
	}
	for k, v := range e.Fields {
		fields[k] = v
	}
	if err != nil {
		t.logger.WithFields(fields).WithError(err).Warn("Queue mutation rejected")
		return
	}
	t.logger.WithFields(fields).Info("Queue mutation recorded")
}

// RecordScore records one scoring run against an assessment.
func (t *Trail) RecordScore(assessment *domain.Assessment, result *domain.TriageResult) {
	if !t.config.Enabled {
		return
	}

	e := Entry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Operation: "score",
		PatientID: assessment.PatientID,
		Success:   true,
		Fields:    result.LogFields(),
	}
	t.append(e)

	t.logger.WithFields(logrus.Fields{
		"audit_id":      e.ID,
		"assessment_id": assessment.ID,
		"patient_id":    assessment.PatientID,
	}).WithFields(logrus.Fields(result.LogFields())).Info("Triage score recorded")
}

// Recent returns up to n audit entries, newest first.
func (t *Trail) Recent(n int) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n <= 0 || n > len(t.entries) {
		n = len(t.entries)
	}
	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		out[i] = t.entries[len(t.entries)-1-i]
	}
	return out
}

// Len returns the number of retained audit entries.
func (t *Trail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Trail) append(e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) >= t.config.MaxEntries {
		copy(t.entries, t.entries[1:])
		t.entries = t.entries[:len(t.entries)-1]
	}
	t.entries = append(t.entries, e)
}
