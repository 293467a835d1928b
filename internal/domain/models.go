package domain

import (
	"errors"
	"fmt"
	"time"
)

// Symptom is a single recorded symptom. Symptoms are immutable once
// captured and owned by the assessment that recorded them.
type Symptom struct {
	ID       string          `json:"id"`
	Name     string          `json:"name" validate:"required"`
	Severity int             `json:"severity" validate:"min=0,max=10"`
	Duration string          `json:"duration,omitempty"`
	Category SymptomCategory `json:"category"`
}

// Validate ensures the symptom record is usable for triage.
func (s *Symptom) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("symptom validation: %w", errors.New("name is required"))
	}
	if s.Severity < 0 || s.Severity > 10 {
		return fmt.Errorf("symptom validation: severity %d outside 0-10", s.Severity)
	}
	if s.Category != "" && !s.Category.IsValid() {
		return fmt.Errorf("symptom validation: %w", ErrInvalidCategory)
	}
	return nil
}

// BloodPressure is a paired systolic/diastolic reading in mmHg.
type BloodPressure struct {
	Systolic  int `json:"systolic"`
	Diastolic int `json:"diastolic"`
}

// VitalSigns is the latest snapshot of device readings for a patient.
// Every field is independently optional; a kiosk device may supply any
// subset. Snapshots are appended, never mutated in place.
type VitalSigns struct {
	HeartRate        *int           `json:"heart_rate,omitempty"`        // BPM
	BloodPressure    *BloodPressure `json:"blood_pressure,omitempty"`    // mmHg
	Temperature      *float64       `json:"temperature,omitempty"`       // Celsius
	OxygenSaturation *float64       `json:"oxygen_saturation,omitempty"` // Percentage
	RespiratoryRate  *int           `json:"respiratory_rate,omitempty"`  // Per minute
	MeasuredAt       time.Time      `json:"measured_at,omitempty"`
}

// Normal vital ranges used for abnormality flagging. These mirror the
// reference ranges used by the device layer, not the scoring thresholds.
const (
	normalHeartRateMin   = 60
	normalHeartRateMax   = 100
	normalSystolicMin    = 90
	normalSystolicMax    = 140
	normalDiastolicMin   = 60
	normalDiastolicMax   = 90
	normalTemperatureMin = 36.1
	normalTemperatureMax = 37.2
	normalSpO2Min        = 95.0
	normalRespRateMin    = 12
	normalRespRateMax    = 20
)

// AbnormalVitals returns the names of vitals outside their normal range.
// Missing readings are not reported; absence is not assumed normal or
// abnormal.
func (v *VitalSigns) AbnormalVitals() []string {
	if v == nil {
		return nil
	}
	var abnormal []string
	if v.HeartRate != nil && (*v.HeartRate < normalHeartRateMin || *v.HeartRate > normalHeartRateMax) {
		abnormal = append(abnormal, "heart_rate")
	}
	if v.BloodPressure != nil {
		if v.BloodPressure.Systolic < normalSystolicMin || v.BloodPressure.Systolic > normalSystolicMax {
			abnormal = append(abnormal, "systolic_bp")
		}
		if v.BloodPressure.Diastolic < normalDiastolicMin || v.BloodPressure.Diastolic > normalDiastolicMax {
			abnormal = append(abnormal, "diastolic_bp")
		}
	}
	if v.Temperature != nil && (*v.Temperature < normalTemperatureMin || *v.Temperature > normalTemperatureMax) {
		abnormal = append(abnormal, "temperature")
	}
	if v.OxygenSaturation != nil && *v.OxygenSaturation < normalSpO2Min {
		abnormal = append(abnormal, "oxygen_saturation")
	}
	if v.RespiratoryRate != nil && (*v.RespiratoryRate < normalRespRateMin || *v.RespiratoryRate > normalRespRateMax) {
		abnormal = append(abnormal, "respiratory_rate")
	}
	return abnormal
}

// RiskFactors captures patient background relevant to risk scoring.
type RiskFactors struct {
	Age                int      `json:"age"`
	Pregnancy          bool     `json:"pregnancy"`
	ChronicConditions  []string `json:"chronic_conditions,omitempty"`
	CurrentMedications []string `json:"current_medications,omitempty"`
	Allergies          []string `json:"allergies,omitempty"`
}

// Assessment aggregates the clinical inputs of one triage evaluation.
// Derived fields (Result) are overwritten every time the scorer runs and
// frozen once the assessment completes and is appended to history.
type Assessment struct {
	ID                 string             `json:"id"`
	PatientID          string             `json:"patient_id" validate:"required"`
	Symptoms           []Symptom          `json:"symptoms,omitempty"`
	Vitals             *VitalSigns        `json:"vitals,omitempty"`
	PainScore          int                `json:"pain_score" validate:"min=0,max=10"`
	ConsciousnessLevel ConsciousnessLevel `json:"consciousness_level"`
	Mobility           Mobility           `json:"mobility"`
	RiskFactors        RiskFactors        `json:"risk_factors"`

	// Derived by the risk scorer
	Result *TriageResult `json:"result,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Validate ensures the assessment is well-formed for queue admission.
// The scorer itself never validates; it accepts inputs as-is.
func (a *Assessment) Validate() error {
	if a.PatientID == "" {
		return fmt.Errorf("assessment validation: %w", errors.New("patient ID is required"))
	}
	if a.PainScore < 0 || a.PainScore > 10 {
		return fmt.Errorf("assessment validation: pain score %d outside 0-10", a.PainScore)
	}
	if a.ConsciousnessLevel != "" && !a.ConsciousnessLevel.IsValid() {
		return fmt.Errorf("assessment validation: %w", ErrInvalidConsciousness)
	}
	if a.Mobility != "" && !a.Mobility.IsValid() {
		return fmt.Errorf("assessment validation: %w", ErrInvalidMobility)
	}
	for i := range a.Symptoms {
		if err := a.Symptoms[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// MaxSymptomSeverity returns the highest severity across recorded
// symptoms, 0 if none.
func (a *Assessment) MaxSymptomSeverity() int {
	max := 0
	for i := range a.Symptoms {
		if a.Symptoms[i].Severity > max {
			max = a.Symptoms[i].Severity
		}
	}
	return max
}

// RuleContribution records a single scoring rule's contribution to the
// total triage score, kept for the audit trail.
type RuleContribution struct {
	Rule   string `json:"rule"`
	Points int    `json:"points"`
	Reason string `json:"reason"`
}

// TriageResult is the derived output of the risk scorer for one
// assessment: numeric score, priority tier, and target wait time.
type TriageResult struct {
	Score             int                `json:"triage_score"`
	Priority          Priority           `json:"priority"`
	EstimatedWaitTime int                `json:"estimated_wait_time"` // minutes
	Breakdown         []RuleContribution `json:"breakdown,omitempty"`
	RedFlags          []string           `json:"red_flags,omitempty"`
	NEWSScore         int                `json:"news_score"`
	ComputedAt        time.Time          `json:"computed_at"`
	ScorerVersion     string             `json:"scorer_version"`
}

// LogFields returns structured logging fields for the audit trail.
func (r *TriageResult) LogFields() map[string]any {
	return map[string]any{
		"triage_score":        r.Score,
		"priority":            r.Priority.String(),
		"estimated_wait_min":  r.EstimatedWaitTime,
		"red_flag_count":      len(r.RedFlags),
		"news_score":          r.NEWSScore,
		"scorer_version":      r.ScorerVersion,
		"immediate_attention": r.Priority.RequiresImmediateAttention(),
	}
}

// QueueEntry is one patient's place in the care queue. QueuePosition is
// a dense 1..N rank over all waiting/in-progress entries; the queue
// manager renumbers it after every mutation.
type QueueEntry struct {
	ID                string      `json:"id"`
	PatientID         string      `json:"patient_id"`
	PatientName       string      `json:"patient_name"`
	Priority          Priority    `json:"priority"`
	EstimatedWaitTime int         `json:"estimated_wait_time"` // minutes
	CheckedInAt       time.Time   `json:"checked_in_at"`
	TriageCompletedAt *time.Time  `json:"triage_completed_at,omitempty"`
	Status            EntryStatus `json:"status"`
	QueuePosition     int         `json:"queue_position"`
	RoomAssigned      string      `json:"room_assigned,omitempty"`
}

// Validate ensures the entry is admissible to the queue.
func (e *QueueEntry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("queue entry validation: %w", errors.New("ID is required"))
	}
	if e.PatientID == "" {
		return fmt.Errorf("queue entry validation: %w", errors.New("patient ID is required"))
	}
	if !e.Priority.IsValid() {
		return fmt.Errorf("queue entry validation: %w", ErrInvalidPriority)
	}
	if e.Status != "" && !e.Status.IsValid() {
		return fmt.Errorf("queue entry validation: %w", ErrInvalidStatus)
	}
	return nil
}

// LogFields returns structured logging fields for queue audit trails.
func (e *QueueEntry) LogFields() map[string]any {
	return map[string]any{
		"entry_id":       e.ID,
		"patient_id":     e.PatientID,
		"priority":       e.Priority.String(),
		"status":         e.Status.String(),
		"queue_position": e.QueuePosition,
	}
}

// EntryUpdate carries the partial fields merged into a queue entry by
// UpdateEntry. Nil fields are left untouched.
type EntryUpdate struct {
	Status            *EntryStatus `json:"status,omitempty"`
	RoomAssigned      *string      `json:"room_assigned,omitempty"`
	Priority          *Priority    `json:"priority,omitempty"`
	EstimatedWaitTime *int         `json:"estimated_wait_time,omitempty"`
	TriageCompletedAt *time.Time   `json:"triage_completed_at,omitempty"`
}

// Validate rejects updates carrying invalid enum values.
func (u *EntryUpdate) Validate() error {
	if u.Status != nil && !u.Status.IsValid() {
		return fmt.Errorf("entry update validation: %w", ErrInvalidStatus)
	}
	if u.Priority != nil && !u.Priority.IsValid() {
		return fmt.Errorf("entry update validation: %w", ErrInvalidPriority)
	}
	return nil
}

// QueueStats is derived after every queue mutation. It is always a pure
// function of the current queue contents and never mutated directly.
type QueueStats struct {
	TotalPatients   int              `json:"total_patients"`
	AverageWaitTime float64          `json:"average_wait_time"` // minutes
	ByPriority      map[Priority]int `json:"by_priority"`
	Waiting         int              `json:"waiting"`
	InProgress      int              `json:"in_progress"`
}

// QueueSnapshot is the immutable read-side view published to dashboards
// and caches after every mutation.
type QueueSnapshot struct {
	Entries    []QueueEntry `json:"entries"`
	Stats      QueueStats   `json:"stats"`
	Sequence   uint64       `json:"sequence"`
	CapturedAt time.Time    `json:"captured_at"`
}
