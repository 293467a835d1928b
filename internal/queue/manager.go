// Package queue implements the priority queue manager: the ordered,
// mutable set of waiting patients, with dense 1..N positions, manual
// staff overrides, deterministic priority sorting, and derived stats
// recomputed after every mutation.
package queue

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smart-triage-engine/internal/domain"
)

// Mutation operation names used in the audit trail.
const (
	OpEnqueue  = "enqueue"
	OpRemove   = "remove"
	OpUpdate   = "update"
	OpMoveUp   = "move_up"
	OpMoveDown = "move_down"
	OpSort     = "sort_by_priority"
)

// AuditRecorder receives every queue mutation for the audit trail.
type AuditRecorder interface {
	RecordMutation(op string, entry *domain.QueueEntry, stats domain.QueueStats, err error)
}

// Options configures a queue manager instance.
type Options struct {
	// AutoSortOnEnqueue re-sorts by priority after every check-in.
	AutoSortOnEnqueue bool
	// OnDeparture is invoked (outside the write path's return value,
	// still under serialization) with the final state of an entry that
	// left the active ordering via completion, no-show, or removal.
	OnDeparture func(entry domain.QueueEntry)
}

// Manager is the single authoritative owner of one care queue. All
// mutations are serialized by an internal mutex: a writer in progress
// blocks subsequent writers, and reads serve a consistent view. The
// dense 1..N position invariant holds on every return.
type Manager struct {
	mu      sync.RWMutex
	entries []domain.QueueEntry
	index   map[string]int // entry id -> slice index
	stats   domain.QueueStats
	seq     uint64

	opts   Options
	logger *logrus.Logger
	audit  AuditRecorder
}

// NewManager creates an empty queue manager.
func NewManager(logger *logrus.Logger, audit AuditRecorder, opts Options) *Manager {
	m := &Manager{
		index:  make(map[string]int),
		opts:   opts,
		logger: logger,
		audit:  audit,
	}
	m.stats = m.computeStatsLocked()
	return m
}

// Enqueue appends the entry at position count+1. Duplicate ids are
// rejected with ErrDuplicateEntry: the kiosk mints a fresh id per
// check-in, so a colliding id always signals a caller bug.
func (m *Manager) Enqueue(entry *domain.QueueEntry) (domain.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.index[entry.ID]; exists {
		err := fmt.Errorf("enqueue %s: %w", entry.ID, domain.ErrDuplicateEntry)
		m.record(OpEnqueue, entry, err)
		return m.stats, err
	}

	stored := *entry
	if stored.Status == "" {
		stored.Status = domain.StatusWaiting
	}
	if stored.CheckedInAt.IsZero() {
		stored.CheckedInAt = time.Now().UTC()
	}
	stored.QueuePosition = len(m.entries) + 1

	m.entries = append(m.entries, stored)
	m.index[stored.ID] = len(m.entries) - 1

	if m.opts.AutoSortOnEnqueue {
		m.sortLocked()
	}
	m.commitLocked()
	entry.QueuePosition = m.entries[m.index[stored.ID]].QueuePosition
	entry.Status = stored.Status
	entry.CheckedInAt = stored.CheckedInAt

	m.record(OpEnqueue, &stored, nil)
	return m.stats, nil
}

// Remove deletes the entry, preserving the relative order of the rest
// and renumbering to a dense 1..N sequence.
func (m *Manager) Remove(id string) (domain.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.index[id]
	if !ok {
		err := fmt.Errorf("remove %s: %w", id, domain.ErrNotFound)
		m.record(OpRemove, nil, err)
		return m.stats, err
	}

	departed := m.entries[i]
	m.deleteAtLocked(i)
	m.commitLocked()

	m.record(OpRemove, &departed, nil)
	if m.opts.OnDeparture != nil {
		m.opts.OnDeparture(departed)
	}
	return m.stats, nil
}

// UpdateEntry merges the partial update into the entry. A status change
// to completed or missed takes the entry out of the active ordering;
// its final state is handed to the departure callback.
func (m *Manager) UpdateEntry(id string, update domain.EntryUpdate) (domain.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.index[id]
	if !ok {
		err := fmt.Errorf("update %s: %w", id, domain.ErrNotFound)
		m.record(OpUpdate, nil, err)
		return m.stats, err
	}

	entry := &m.entries[i]
	if update.Status != nil {
		entry.Status = *update.Status
	}
	if update.RoomAssigned != nil {
		entry.RoomAssigned = *update.RoomAssigned
	}
	if update.Priority != nil {
		entry.Priority = *update.Priority
	}
	if update.EstimatedWaitTime != nil {
		entry.EstimatedWaitTime = *update.EstimatedWaitTime
	}
	if update.TriageCompletedAt != nil {
		entry.TriageCompletedAt = update.TriageCompletedAt
	}

	var departed *domain.QueueEntry
	if !entry.Status.Active() {
		final := *entry
		final.QueuePosition = 0
		m.deleteAtLocked(i)
		departed = &final
	}
	m.commitLocked()

	if departed != nil {
		m.record(OpUpdate, departed, nil)
		if m.opts.OnDeparture != nil {
			m.opts.OnDeparture(*departed)
		}
	} else {
		updated := m.entries[m.index[id]]
		m.record(OpUpdate, &updated, nil)
	}
	return m.stats, nil
}

// MoveUp swaps the entry with its predecessor in list order. A manual
// staff override: it intentionally breaks priority ordering until the
// next explicit sort. Moving the first entry up is a no-op.
func (m *Manager) MoveUp(id string) (domain.QueueStats, error) {
	return m.move(id, OpMoveUp, -1)
}

// MoveDown swaps the entry with its successor in list order. Moving the
// last entry down is a no-op.
func (m *Manager) MoveDown(id string) (domain.QueueStats, error) {
	return m.move(id, OpMoveDown, +1)
}

func (m *Manager) move(id, op string, delta int) (domain.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.index[id]
	if !ok {
		err := fmt.Errorf("%s %s: %w", op, id, domain.ErrNotFound)
		m.record(op, nil, err)
		return m.stats, err
	}

	j := i + delta
	if j < 0 || j >= len(m.entries) {
		// Boundary: no-op, not an error.
		return m.stats, nil
	}

	m.entries[i], m.entries[j] = m.entries[j], m.entries[i]
	m.commitLocked()

	moved := m.entries[j]
	m.record(op, &moved, nil)
	return m.stats, nil
}

// SortByPriority deterministically re-sorts the queue: ascending tier
// rank first, earlier check-in breaking ties, stable otherwise.
func (m *Manager) SortByPriority() domain.QueueStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sortLocked()
	m.commitLocked()

	m.record(OpSort, nil, nil)
	return m.stats
}

// Stats returns the stats derived from the current queue contents.
// Recomputed after every mutation, never stale.
func (m *Manager) Stats() domain.QueueStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// List returns a copy of the entries in queue order.
func (m *Manager) List() []domain.QueueEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.QueueEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Get returns a copy of the entry with the given id.
func (m *Manager) Get(id string) (domain.QueueEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[id]
	if !ok {
		return domain.QueueEntry{}, fmt.Errorf("get %s: %w", id, domain.ErrNotFound)
	}
	return m.entries[i], nil
}

// Snapshot captures an immutable read-side view of the queue for
// transports and caches. The sequence number increases with every
// mutation, letting consumers discard stale snapshots.
func (m *Manager) Snapshot() domain.QueueSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]domain.QueueEntry, len(m.entries))
	copy(entries, m.entries)
	return domain.QueueSnapshot{
		Entries:    entries,
		Stats:      m.stats,
		Sequence:   m.seq,
		CapturedAt: time.Now().UTC(),
	}
}

// sortLocked stable-sorts by (tier rank, checkedInAt).
func (m *Manager) sortLocked() {
	sort.SliceStable(m.entries, func(i, j int) bool {
		ri, rj := m.entries[i].Priority.Rank(), m.entries[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return m.entries[i].CheckedInAt.Before(m.entries[j].CheckedInAt)
	})
}

// deleteAtLocked removes the entry at index i preserving order.
func (m *Manager) deleteAtLocked(i int) {
	delete(m.index, m.entries[i].ID)
	m.entries = append(m.entries[:i], m.entries[i+1:]...)
}

// commitLocked restores the dense position invariant, rebuilds the id
// index, recomputes stats, and advances the snapshot sequence. Called
// at the end of every mutation.
func (m *Manager) commitLocked() {
	for i := range m.entries {
		m.entries[i].QueuePosition = i + 1
		m.index[m.entries[i].ID] = i
	}
	m.stats = m.computeStatsLocked()
	m.seq++
}

// computeStatsLocked derives QueueStats as a pure function of the
// current entries.
func (m *Manager) computeStatsLocked() domain.QueueStats {
	stats := domain.QueueStats{
		TotalPatients: len(m.entries),
		ByPriority: map[domain.Priority]int{
			domain.PriorityCritical:   0,
			domain.PriorityUrgent:     0,
			domain.PrioritySemiUrgent: 0,
			domain.PriorityNonUrgent:  0,
		},
	}

	totalWait := 0
	for i := range m.entries {
		e := &m.entries[i]
		totalWait += e.EstimatedWaitTime
		stats.ByPriority[e.Priority]++
		switch e.Status {
		case domain.StatusWaiting:
			stats.Waiting++
		case domain.StatusInProgress:
			stats.InProgress++
		}
	}
	if len(m.entries) > 0 {
		stats.AverageWaitTime = float64(totalWait) / float64(len(m.entries))
	}
	return stats
}

// record forwards the mutation to the audit trail and debug log.
func (m *Manager) record(op string, entry *domain.QueueEntry, err error) {
	if m.audit != nil {
		m.audit.RecordMutation(op, entry, m.stats, err)
	}
	if m.logger == nil {
		return
	}
	fields := logrus.Fields{"op": op, "total_patients": m.stats.TotalPatients}
	if entry != nil {
		for k, v := range entry.LogFields() {
			fields[k] = v
		}
	}
	if err != nil {
		m.logger.WithFields(fields).WithError(err).Warn("Queue mutation failed")
		return
	}
	m.logger.WithFields(fields).Debug("Queue mutation applied")
}
