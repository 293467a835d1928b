package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-triage-engine/internal/audit"
	"github.com/smart-triage-engine/internal/domain"
	"github.com/smart-triage-engine/internal/queue"
	"github.com/smart-triage-engine/internal/scoring"
)

// fakeHistory is an in-memory HistoryStore for handler tests.
type fakeHistory struct {
	assessments map[string]*domain.Assessment
	departures  []domain.QueueEntry
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{assessments: make(map[string]*domain.Assessment)}
}

func (f *fakeHistory) SaveAssessment(_ context.Context, a *domain.Assessment) error {
	f.assessments[a.ID] = a
	return nil
}

func (f *fakeHistory) GetAssessment(_ context.Context, id string) (*domain.Assessment, error) {
	a, ok := f.assessments[id]
	if !ok {
		return nil, fmt.Errorf("assessment %s: %w", id, domain.ErrNotFound)
	}
	return a, nil
}

func (f *fakeHistory) ListByPatient(_ context.Context, patientID string, limit int) ([]*domain.Assessment, error) {
	var out []*domain.Assessment
	for _, a := range f.assessments {
		if a.PatientID == patientID && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeHistory) SaveDeparture(_ context.Context, entry *domain.QueueEntry) error {
	f.departures = append(f.departures, *entry)
	return nil
}

func (f *fakeHistory) Close() error { return nil }

func newTestServer(t *testing.T) (*Server, *fakeHistory) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	history := newFakeHistory()
	trail := audit.NewTrail(logger, audit.Config{Enabled: true, MaxEntries: 100})
	manager := queue.NewManager(logger, trail, queue.Options{})

	cfg := &domain.Config{
		Environment: "test",
		Server:      domain.ServerConfig{Host: "127.0.0.1", Port: 0},
		Logging:     domain.LoggingConfig{Level: "info"},
	}

	server := NewServer(cfg, Dependencies{
		Scorer:  scoring.NewScorer(logger),
		Queue:   manager,
		History: history,
		Audit:   trail,
	}, logger)
	return server, history
}

func doJSON(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func checkIn(t *testing.T, server *Server, patientID string, priority domain.Priority) domain.QueueEntry {
	t.Helper()
	rec := doJSON(t, server, http.MethodPost, "/api/v1/queue", gin.H{
		"patient_id": patientID,
		"priority":   priority,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Entry domain.QueueEntry `json:"entry"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Entry
}

func TestHandleHealth(t *testing.T) {
	server, _ := newTestServer(t)
	rec := doJSON(t, server, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestHandleScore(t *testing.T) {
	server, history := newTestServer(t)

	hr := 110
	spo2 := 90.0
	rec := doJSON(t, server, http.MethodPost, "/api/v1/triage/score", gin.H{
		"patient_id": "p-1",
		"vitals": gin.H{
			"heart_rate":        hr,
			"oxygen_saturation": spo2,
		},
		"consciousness_level": "alert",
		"risk_factors":        gin.H{"age": 40},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got domain.Assessment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.Result)
	assert.Equal(t, 6, got.Result.Score)
	assert.Equal(t, domain.PrioritySemiUrgent, got.Result.Priority)
	assert.Equal(t, 60, got.Result.EstimatedWaitTime)

	// Persisted to history under the minted id.
	_, err := history.GetAssessment(context.Background(), got.ID)
	assert.NoError(t, err)
}

func TestHandleScore_MissingPatientID(t *testing.T) {
	server, _ := newTestServer(t)
	rec := doJSON(t, server, http.MethodPost, "/api/v1/triage/score", gin.H{
		"pain_score": 3,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.CodeInvalidInput)
}

func TestHandleScore_InvalidPainScore(t *testing.T) {
	server, _ := newTestServer(t)
	rec := doJSON(t, server, http.MethodPost, "/api/v1/triage/score", gin.H{
		"patient_id": "p-1",
		"pain_score": 14,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.CodeInvalidInput)
}

func TestHandleCheckIn(t *testing.T) {
	server, _ := newTestServer(t)

	entry := checkIn(t, server, "p-1", domain.PriorityUrgent)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, 1, entry.QueuePosition)
	assert.Equal(t, domain.StatusWaiting, entry.Status)
	assert.Equal(t, 15, entry.EstimatedWaitTime, "wait defaults from the tier")
}

func TestHandleCheckIn_InvalidPriority(t *testing.T) {
	server, _ := newTestServer(t)
	rec := doJSON(t, server, http.MethodPost, "/api/v1/queue", gin.H{
		"patient_id": "p-1",
		"priority":   "extreme",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.CodeInvalidInput)
}

func TestHandleListQueue(t *testing.T) {
	server, _ := newTestServer(t)
	checkIn(t, server, "p-1", domain.PriorityNonUrgent)
	checkIn(t, server, "p-2", domain.PriorityCritical)

	rec := doJSON(t, server, http.MethodGet, "/api/v1/queue", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot domain.QueueSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	require.Len(t, snapshot.Entries, 2)
	assert.Equal(t, 2, snapshot.Stats.TotalPatients)
	assert.Equal(t, 1, snapshot.Entries[0].QueuePosition)
	assert.Equal(t, 2, snapshot.Entries[1].QueuePosition)
}

// fakeSnapshots is an in-memory SnapshotCache for handler tests.
type fakeSnapshots struct {
	latest *domain.QueueSnapshot
}

func (f *fakeSnapshots) PublishSnapshot(_ context.Context, s *domain.QueueSnapshot) error {
	f.latest = s
	return nil
}

func (f *fakeSnapshots) LatestSnapshot(_ context.Context) (*domain.QueueSnapshot, error) {
	return f.latest, nil
}

func TestHandleCachedQueue(t *testing.T) {
	server, _ := newTestServer(t)
	snapshots := &fakeSnapshots{}
	server.deps.Snapshots = snapshots

	// Cold cache falls back to the live queue.
	rec := doJSON(t, server, http.MethodGet, "/api/v1/queue/cached", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cold domain.QueueSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cold))
	assert.Empty(t, cold.Entries)

	// Mutations publish to the cache; reads then serve the cached copy.
	checkIn(t, server, "p-1", domain.PriorityUrgent)
	require.NotNil(t, snapshots.latest)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/queue/cached", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var warm domain.QueueSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &warm))
	require.Len(t, warm.Entries, 1)
	assert.Equal(t, "p-1", warm.Entries[0].PatientID)
}

func TestHandleQueueStats(t *testing.T) {
	server, _ := newTestServer(t)
	checkIn(t, server, "p-1", domain.PriorityUrgent)

	rec := doJSON(t, server, http.MethodGet, "/api/v1/queue/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats domain.QueueStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalPatients)
	assert.Equal(t, 1, stats.ByPriority[domain.PriorityUrgent])
}

func TestHandleSortQueue(t *testing.T) {
	server, _ := newTestServer(t)
	routine := checkIn(t, server, "p-routine", domain.PriorityNonUrgent)
	critical := checkIn(t, server, "p-critical", domain.PriorityCritical)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/queue/sort", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	listRec := doJSON(t, server, http.MethodGet, "/api/v1/queue", nil)
	var snapshot domain.QueueSnapshot
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &snapshot))
	assert.Equal(t, critical.ID, snapshot.Entries[0].ID)
	assert.Equal(t, routine.ID, snapshot.Entries[1].ID)
}

func TestHandleGetEntry(t *testing.T) {
	server, _ := newTestServer(t)
	entry := checkIn(t, server, "p-1", domain.PriorityUrgent)

	rec := doJSON(t, server, http.MethodGet, "/api/v1/queue/"+entry.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.QueueEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "p-1", got.PatientID)

	missing := doJSON(t, server, http.MethodGet, "/api/v1/queue/ghost", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Contains(t, missing.Body.String(), domain.CodeNotFound)
}

func TestHandleUpdateEntry(t *testing.T) {
	server, _ := newTestServer(t)
	entry := checkIn(t, server, "p-1", domain.PriorityUrgent)

	rec := doJSON(t, server, http.MethodPatch, "/api/v1/queue/"+entry.ID, gin.H{
		"status":        "in-progress",
		"room_assigned": "exam-3",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	getRec := doJSON(t, server, http.MethodGet, "/api/v1/queue/"+entry.ID, nil)
	var got domain.QueueEntry
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &got))
	assert.Equal(t, domain.StatusInProgress, got.Status)
	assert.Equal(t, "exam-3", got.RoomAssigned)
}

func TestHandleUpdateEntry_CompletionRemovesFromQueue(t *testing.T) {
	server, _ := newTestServer(t)
	entry := checkIn(t, server, "p-1", domain.PriorityUrgent)

	rec := doJSON(t, server, http.MethodPatch, "/api/v1/queue/"+entry.ID, gin.H{
		"status": "completed",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	getRec := doJSON(t, server, http.MethodGet, "/api/v1/queue/"+entry.ID, nil)
	assert.Equal(t, http.StatusNotFound, getRec.Code)
}

func TestHandleUpdateEntry_InvalidStatus(t *testing.T) {
	server, _ := newTestServer(t)
	entry := checkIn(t, server, "p-1", domain.PriorityUrgent)

	rec := doJSON(t, server, http.MethodPatch, "/api/v1/queue/"+entry.ID, gin.H{
		"status": "vanished",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.CodeInvalidInput)
}

func TestHandleRemoveEntry(t *testing.T) {
	server, _ := newTestServer(t)
	first := checkIn(t, server, "p-1", domain.PriorityUrgent)
	second := checkIn(t, server, "p-2", domain.PriorityUrgent)

	rec := doJSON(t, server, http.MethodDelete, "/api/v1/queue/"+first.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	listRec := doJSON(t, server, http.MethodGet, "/api/v1/queue", nil)
	var snapshot domain.QueueSnapshot
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &snapshot))
	require.Len(t, snapshot.Entries, 1)
	assert.Equal(t, second.ID, snapshot.Entries[0].ID)
	assert.Equal(t, 1, snapshot.Entries[0].QueuePosition, "positions renumber after removal")

	missing := doJSON(t, server, http.MethodDelete, "/api/v1/queue/"+first.ID, nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestHandleMove(t *testing.T) {
	server, _ := newTestServer(t)
	first := checkIn(t, server, "p-1", domain.PriorityUrgent)
	second := checkIn(t, server, "p-2", domain.PriorityUrgent)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/queue/"+second.ID+"/move-up", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	listRec := doJSON(t, server, http.MethodGet, "/api/v1/queue", nil)
	var snapshot domain.QueueSnapshot
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &snapshot))
	assert.Equal(t, second.ID, snapshot.Entries[0].ID)
	assert.Equal(t, first.ID, snapshot.Entries[1].ID)

	// Boundary move is a no-op, not an error.
	boundary := doJSON(t, server, http.MethodPost, "/api/v1/queue/"+second.ID+"/move-up", nil)
	assert.Equal(t, http.StatusOK, boundary.Code)
}

func TestHandleGetAssessment(t *testing.T) {
	server, history := newTestServer(t)
	history.assessments["a-1"] = &domain.Assessment{
		ID:        "a-1",
		PatientID: "p-1",
		CreatedAt: time.Now().UTC(),
	}

	rec := doJSON(t, server, http.MethodGet, "/api/v1/assessments/a-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	missing := doJSON(t, server, http.MethodGet, "/api/v1/assessments/ghost", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestHandleListAssessments(t *testing.T) {
	server, history := newTestServer(t)
	history.assessments["a-1"] = &domain.Assessment{ID: "a-1", PatientID: "p-1"}
	history.assessments["a-2"] = &domain.Assessment{ID: "a-2", PatientID: "p-1"}
	history.assessments["a-3"] = &domain.Assessment{ID: "a-3", PatientID: "p-other"}

	rec := doJSON(t, server, http.MethodGet, "/api/v1/patients/p-1/assessments", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Assessments []*domain.Assessment `json:"assessments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Assessments, 2)
}

func TestHandleAuditTrail(t *testing.T) {
	server, _ := newTestServer(t)
	checkIn(t, server, "p-1", domain.PriorityUrgent)

	rec := doJSON(t, server, http.MethodGet, "/api/v1/audit?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Entries []audit.Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Entries)
	assert.Equal(t, queue.OpEnqueue, resp.Entries[0].Operation)
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(rateLimitMiddleware(1, 2))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Contains(t, codes, http.StatusTooManyRequests)
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/queue", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
