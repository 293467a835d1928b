// Package domain contains the core entities and types of the triage scoring
// and queue prioritization engine: clinical assessment inputs, the derived
// triage result, and the waiting-queue entries ordered by priority tier.
package domain

import (
	"errors"
)

// Priority represents the triage priority tier assigned to an assessment.
// Tiers are ranked critical < urgent < semi-urgent < non-urgent; comparison
// must go through Rank(), never through string ordering.
type Priority string

const (
	PriorityCritical   Priority = "critical"
	PriorityUrgent     Priority = "urgent"
	PrioritySemiUrgent Priority = "semi-urgent"
	PriorityNonUrgent  Priority = "non-urgent"
)

// Validation errors for triage data integrity
var (
	ErrInvalidPriority      = errors.New("invalid priority tier")
	ErrInvalidStatus        = errors.New("invalid queue entry status")
	ErrInvalidConsciousness = errors.New("invalid consciousness level")
	ErrInvalidMobility      = errors.New("invalid mobility status")
	ErrInvalidCategory      = errors.New("invalid symptom category")
)

// Rank returns the total-order rank of the tier, most urgent first.
// Unknown tiers sort last so a malformed entry can never jump the queue.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityUrgent:
		return 1
	case PrioritySemiUrgent:
		return 2
	case PriorityNonUrgent:
		return 3
	default:
		return 4
	}
}

// EstimatedWait returns the target wait time in minutes for the tier.
func (p Priority) EstimatedWait() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityUrgent:
		return 15
	case PrioritySemiUrgent:
		return 60
	default:
		return 120
	}
}

// Color returns the display colour used by the dashboard for this tier.
func (p Priority) Color() string {
	switch p {
	case PriorityCritical:
		return "#FF0000"
	case PriorityUrgent:
		return "#FF8000"
	case PrioritySemiUrgent:
		return "#FFFF00"
	case PriorityNonUrgent:
		return "#00FF00"
	default:
		return "#808080"
	}
}

// IsValid validates the priority tier.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityCritical, PriorityUrgent, PrioritySemiUrgent, PriorityNonUrgent:
		return true
	default:
		return false
	}
}

// String returns the string representation of the tier.
func (p Priority) String() string {
	return string(p)
}

// RequiresImmediateAttention reports whether the tier mandates immediate care.
func (p Priority) RequiresImmediateAttention() bool {
	return p == PriorityCritical
}

// LogFields returns structured logging fields for audit trails.
func (p Priority) LogFields() map[string]any {
	return map[string]any{
		"priority":            string(p),
		"priority_rank":       p.Rank(),
		"estimated_wait_min":  p.EstimatedWait(),
		"immediate_attention": p.RequiresImmediateAttention(),
	}
}

// EntryStatus represents the lifecycle state of a queue entry.
// Transitions are driven by explicit care-desk actions: waiting ->
// in-progress -> completed, with waiting -> missed for no-shows.
type EntryStatus string

const (
	StatusWaiting    EntryStatus = "waiting"
	StatusInProgress EntryStatus = "in-progress"
	StatusCompleted  EntryStatus = "completed"
	StatusMissed     EntryStatus = "missed"
)

// IsValid validates the entry status.
func (s EntryStatus) IsValid() bool {
	switch s {
	case StatusWaiting, StatusInProgress, StatusCompleted, StatusMissed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status.
func (s EntryStatus) String() string {
	return string(s)
}

// Active reports whether the entry still occupies a queue position.
// Completed and missed entries leave the ordered set.
func (s EntryStatus) Active() bool {
	return s == StatusWaiting || s == StatusInProgress
}

// ConsciousnessLevel follows the AVPU scale recorded at intake.
type ConsciousnessLevel string

const (
	ConsciousnessAlert        ConsciousnessLevel = "alert"
	ConsciousnessVerbal       ConsciousnessLevel = "verbal"
	ConsciousnessPain         ConsciousnessLevel = "pain"
	ConsciousnessUnresponsive ConsciousnessLevel = "unresponsive"
)

// IsValid validates the consciousness level.
func (c ConsciousnessLevel) IsValid() bool {
	switch c {
	case ConsciousnessAlert, ConsciousnessVerbal, ConsciousnessPain, ConsciousnessUnresponsive:
		return true
	default:
		return false
	}
}

// String returns the string representation of the level.
func (c ConsciousnessLevel) String() string {
	return string(c)
}

// Mobility describes how the patient moves through the facility.
type Mobility string

const (
	MobilityIndependent Mobility = "independent"
	MobilityAssisted    Mobility = "assisted"
	MobilityWheelchair  Mobility = "wheelchair"
	MobilityStretcher   Mobility = "stretcher"
)

// IsValid validates the mobility status.
func (m Mobility) IsValid() bool {
	switch m {
	case MobilityIndependent, MobilityAssisted, MobilityWheelchair, MobilityStretcher:
		return true
	default:
		return false
	}
}

// String returns the string representation of the mobility status.
func (m Mobility) String() string {
	return string(m)
}

// SymptomCategory groups recorded symptoms by body system.
type SymptomCategory string

const (
	CategoryPain             SymptomCategory = "pain"
	CategoryRespiratory      SymptomCategory = "respiratory"
	CategoryCardiovascular   SymptomCategory = "cardiovascular"
	CategoryNeurological     SymptomCategory = "neurological"
	CategoryGastrointestinal SymptomCategory = "gastrointestinal"
	CategoryOther            SymptomCategory = "other"
)

// IsValid validates the symptom category.
func (sc SymptomCategory) IsValid() bool {
	switch sc {
	case CategoryPain, CategoryRespiratory, CategoryCardiovascular,
		CategoryNeurological, CategoryGastrointestinal, CategoryOther:
		return true
	default:
		return false
	}
}

// String returns the string representation of the category.
func (sc SymptomCategory) String() string {
	return string(sc)
}

// PriorityFromScore maps a total triage score onto a priority tier,
// evaluated high to low, first match wins.
func PriorityFromScore(score int) Priority {
	switch {
	case score >= 15:
		return PriorityCritical
	case score >= 10:
		return PriorityUrgent
	case score >= 5:
		return PrioritySemiUrgent
	default:
		return PriorityNonUrgent
	}
}
