package audit

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-triage-engine/internal/domain"
)

func newTestTrail(max int) *Trail {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewTrail(logger, Config{MaxEntries: max, Enabled: true})
}

func TestRecordMutation(t *testing.T) {
	trail := newTestTrail(10)

	entry := &domain.QueueEntry{
		ID:        "e-1",
		PatientID: "p-1",
		Priority:  domain.PriorityUrgent,
		Status:    domain.StatusWaiting,
	}
	trail.RecordMutation("enqueue", entry, domain.QueueStats{TotalPatients: 1}, nil)

	recent := trail.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "enqueue", recent[0].Operation)
	assert.Equal(t, "e-1", recent[0].EntryID)
	assert.Equal(t, "p-1", recent[0].PatientID)
	assert.True(t, recent[0].Success)
	assert.NotEmpty(t, recent[0].ID)
}

func TestRecordMutationFailure(t *testing.T) {
	trail := newTestTrail(10)

	trail.RecordMutation("remove", nil, domain.QueueStats{}, errors.New("remove x: queue entry not found"))

	recent := trail.Recent(1)
	require.Len(t, recent, 1)
	assert.False(t, recent[0].Success)
	assert.Contains(t, recent[0].Error, "not found")
}

func TestRecordScore(t *testing.T) {
	trail := newTestTrail(10)

	assessment := &domain.Assessment{ID: "a-1", PatientID: "p-1"}
	result := &domain.TriageResult{
		Score:             12,
		Priority:          domain.PriorityUrgent,
		EstimatedWaitTime: 15,
		ComputedAt:        time.Now(),
	}
	trail.RecordScore(assessment, result)

	recent := trail.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "score", recent[0].Operation)
	assert.Equal(t, "p-1", recent[0].PatientID)
}

func TestTrailBounded(t *testing.T) {
	trail := newTestTrail(5)

	for i := 0; i < 12; i++ {
		entry := &domain.QueueEntry{ID: fmt.Sprintf("e-%d", i), PatientID: "p"}
		trail.RecordMutation("enqueue", entry, domain.QueueStats{}, nil)
	}

	assert.Equal(t, 5, trail.Len())
	recent := trail.Recent(5)
	assert.Equal(t, "e-11", recent[0].EntryID, "newest first")
	assert.Equal(t, "e-7", recent[4].EntryID, "oldest retained")
}

func TestDisabledTrailRecordsNothing(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	trail := NewTrail(logger, Config{MaxEntries: 5, Enabled: false})

	trail.RecordMutation("enqueue", &domain.QueueEntry{ID: "e"}, domain.QueueStats{}, nil)
	trail.RecordScore(&domain.Assessment{PatientID: "p"}, &domain.TriageResult{})

	assert.Equal(t, 0, trail.Len())
}
