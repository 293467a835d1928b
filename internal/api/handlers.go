package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/smart-triage-engine/internal/domain"
	"github.com/smart-triage-engine/pkg/advisory"
)

// scoreRequest carries the clinical inputs of one triage evaluation.
type scoreRequest struct {
	PatientID          string                    `json:"patient_id" binding:"required"`
	Symptoms           []domain.Symptom          `json:"symptoms"`
	Vitals             *domain.VitalSigns        `json:"vitals"`
	PainScore          int                       `json:"pain_score"`
	ConsciousnessLevel domain.ConsciousnessLevel `json:"consciousness_level"`
	Mobility           domain.Mobility           `json:"mobility"`
	RiskFactors        domain.RiskFactors        `json:"risk_factors"`
}

// handleScore runs the risk scorer over the submitted assessment,
// persists it to history, and returns the scored assessment.
func (s *Server) handleScore(c *gin.Context) {
	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest,
			fmt.Errorf("%w: %v", domain.ErrInvalidInput, err), "malformed request body")
		return
	}

	assessment := &domain.Assessment{
		ID:                 uuid.NewString(),
		PatientID:          req.PatientID,
		Symptoms:           req.Symptoms,
		Vitals:             req.Vitals,
		PainScore:          req.PainScore,
		ConsciousnessLevel: req.ConsciousnessLevel,
		Mobility:           req.Mobility,
		RiskFactors:        req.RiskFactors,
		CreatedAt:          time.Now().UTC(),
	}
	if err := assessment.Validate(); err != nil {
		s.respondError(c, http.StatusBadRequest,
			fmt.Errorf("%w: %v", domain.ErrInvalidInput, err), "assessment failed validation")
		return
	}

	var result *domain.TriageResult
	if s.deps.Results != nil {
		if cached, ok := s.deps.Results.Get(assessment); ok {
			result = cached
		}
	}
	if result == nil {
		result = s.deps.Scorer.Score(assessment)
		if s.deps.Results != nil {
			s.deps.Results.Put(assessment, result)
		}
	}
	assessment.Result = result

	if s.deps.Audit != nil {
		s.deps.Audit.RecordScore(assessment, result)
	}

	if err := s.deps.History.SaveAssessment(c.Request.Context(), assessment); err != nil {
		// Scoring stands even if persistence is down; the kiosk must
		// keep triaging patients.
		s.log.WithError(err).WithField("assessment_id", assessment.ID).
			Error("Failed to persist assessment")
	}

	if s.deps.Advisory != nil {
		go s.requestSecondOpinion(assessment, result)
	}

	c.JSON(http.StatusOK, assessment)
}

// requestSecondOpinion asks the advisory service off the request path.
// The deterministic result has already been returned; a disagreement is
// only logged for clinician review.
func (s *Server) requestSecondOpinion(assessment *domain.Assessment, result *domain.TriageResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	opinion, err := s.deps.Advisory.SecondOpinion(ctx, assessment, result)
	if err != nil {
		if err != advisory.ErrUnavailable {
			s.log.WithError(err).Debug("Advisory second opinion failed")
		}
		return
	}

	fields := map[string]any{
		"assessment_id":      assessment.ID,
		"priority":           result.Priority.String(),
		"suggested_priority": opinion.SuggestedPriority,
		"confidence":         opinion.Confidence,
		"model_version":      opinion.ModelVersion,
	}
	if opinion.SuggestedPriority != result.Priority.String() {
		s.log.WithFields(fields).Warn("Advisory disagrees with deterministic triage")
		return
	}
	s.log.WithFields(fields).Debug("Advisory agrees with deterministic triage")
}

// checkInRequest admits a triaged patient to the care queue.
type checkInRequest struct {
	PatientID         string          `json:"patient_id" binding:"required"`
	PatientName       string          `json:"patient_name"`
	Priority          domain.Priority `json:"priority" binding:"required"`
	EstimatedWaitTime *int            `json:"estimated_wait_time"`
	TriageCompletedAt *time.Time      `json:"triage_completed_at"`
}

// handleCheckIn creates a queue entry and appends it to the queue.
func (s *Server) handleCheckIn(c *gin.Context) {
	var req checkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest,
			fmt.Errorf("%w: %v", domain.ErrInvalidInput, err), "malformed request body")
		return
	}

	entry := domain.QueueEntry{
		ID:                uuid.NewString(),
		PatientID:         req.PatientID,
		PatientName:       req.PatientName,
		Priority:          req.Priority,
		CheckedInAt:       time.Now().UTC(),
		TriageCompletedAt: req.TriageCompletedAt,
		Status:            domain.StatusWaiting,
	}
	if req.EstimatedWaitTime != nil {
		entry.EstimatedWaitTime = *req.EstimatedWaitTime
	} else {
		entry.EstimatedWaitTime = req.Priority.EstimatedWait()
	}
	if err := entry.Validate(); err != nil {
		s.respondError(c, http.StatusBadRequest,
			fmt.Errorf("%w: %v", domain.ErrInvalidInput, err), "queue entry failed validation")
		return
	}

	stats, err := s.deps.Queue.Enqueue(&entry)
	if err != nil {
		s.respondError(c, statusForError(err), err, "check-in rejected")
		return
	}
	s.publishUpdate(c.Request.Context())

	c.JSON(http.StatusCreated, gin.H{"entry": entry, "stats": stats})
}

// handleListQueue returns the ordered queue with derived stats.
func (s *Server) handleListQueue(c *gin.Context) {
	snapshot := s.deps.Queue.Snapshot()
	c.JSON(http.StatusOK, snapshot)
}

// handleCachedQueue serves the last published snapshot from the cache.
// Display boards poll this endpoint so reads scale without touching
// the queue writer; it falls back to the live queue when the cache is
// cold or absent.
func (s *Server) handleCachedQueue(c *gin.Context) {
	if s.deps.Snapshots != nil {
		snapshot, err := s.deps.Snapshots.LatestSnapshot(c.Request.Context())
		if err != nil {
			s.log.WithError(err).Warn("Snapshot cache read failed, serving live queue")
		} else if snapshot != nil {
			c.JSON(http.StatusOK, snapshot)
			return
		}
	}
	c.JSON(http.StatusOK, s.deps.Queue.Snapshot())
}

// handleQueueStats returns the current queue stats.
func (s *Server) handleQueueStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Queue.Stats())
}

// handleSortQueue re-sorts the queue by priority tier and arrival.
func (s *Server) handleSortQueue(c *gin.Context) {
	stats := s.deps.Queue.SortByPriority()
	s.publishUpdate(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// handleGetEntry returns a single queue entry.
func (s *Server) handleGetEntry(c *gin.Context) {
	entry, err := s.deps.Queue.Get(c.Param("id"))
	if err != nil {
		s.respondError(c, statusForError(err), err, "queue entry lookup failed")
		return
	}
	c.JSON(http.StatusOK, entry)
}

// handleUpdateEntry merges a partial update into a queue entry.
func (s *Server) handleUpdateEntry(c *gin.Context) {
	var update domain.EntryUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		s.respondError(c, http.StatusBadRequest,
			fmt.Errorf("%w: %v", domain.ErrInvalidInput, err), "malformed request body")
		return
	}
	if err := update.Validate(); err != nil {
		s.respondError(c, http.StatusBadRequest,
			fmt.Errorf("%w: %v", domain.ErrInvalidInput, err), "entry update failed validation")
		return
	}

	stats, err := s.deps.Queue.UpdateEntry(c.Param("id"), update)
	if err != nil {
		s.respondError(c, statusForError(err), err, "entry update failed")
		return
	}
	s.publishUpdate(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// handleRemoveEntry deletes a queue entry.
func (s *Server) handleRemoveEntry(c *gin.Context) {
	stats, err := s.deps.Queue.Remove(c.Param("id"))
	if err != nil {
		s.respondError(c, statusForError(err), err, "entry removal failed")
		return
	}
	s.publishUpdate(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// handleMoveUp swaps the entry with its predecessor.
func (s *Server) handleMoveUp(c *gin.Context) {
	stats, err := s.deps.Queue.MoveUp(c.Param("id"))
	if err != nil {
		s.respondError(c, statusForError(err), err, "move up failed")
		return
	}
	s.publishUpdate(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// handleMoveDown swaps the entry with its successor.
func (s *Server) handleMoveDown(c *gin.Context) {
	stats, err := s.deps.Queue.MoveDown(c.Param("id"))
	if err != nil {
		s.respondError(c, statusForError(err), err, "move down failed")
		return
	}
	s.publishUpdate(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// handleGetAssessment returns a persisted assessment by id.
func (s *Server) handleGetAssessment(c *gin.Context) {
	assessment, err := s.deps.History.GetAssessment(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, statusForError(err), err, "assessment lookup failed")
		return
	}
	c.JSON(http.StatusOK, assessment)
}

// handleListAssessments returns a patient's assessments, newest first.
func (s *Server) handleListAssessments(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 50)
	assessments, err := s.deps.History.ListByPatient(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		s.respondError(c, statusForError(err), err, "assessment listing failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"assessments": assessments})
}

// handleAuditTrail returns recent audit entries, newest first.
func (s *Server) handleAuditTrail(c *gin.Context) {
	if s.deps.Audit == nil {
		c.JSON(http.StatusOK, gin.H{"entries": []any{}})
		return
	}
	limit := parseLimit(c.Query("limit"), 100)
	c.JSON(http.StatusOK, gin.H{"entries": s.deps.Audit.Recent(limit)})
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
