// Package scoring implements the deterministic triage risk scorer: an
// additive point system over vitals, symptoms, and risk factors that
// maps an assessment to a numeric score, priority tier, and target
// wait time.
package scoring

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smart-triage-engine/internal/domain"
)

// ScorerVersion identifies the scoring formula revision recorded on
// every result for the audit trail.
const ScorerVersion = "1.0.0"

// Scoring thresholds of the additive point system.
const (
	heartRateHigh   = 100
	heartRateLow    = 60
	systolicHigh    = 140
	systolicLow     = 90
	feverThreshold  = 38.0
	spo2Threshold   = 95.0
	elderlyAge      = 65
	infantAge       = 2
	consciousPoints = 5
	vitalHRPoints   = 2
	vitalBPPoints   = 2
	feverPoints     = 3
	spo2Points      = 4
	elderlyPoints   = 2
	infantPoints    = 3
)

// scoringRule is one named rule of the additive system. Rules are
// evaluated in a fixed order so the breakdown is stable across runs.
type scoringRule struct {
	Name     string
	Evaluate func(a *domain.Assessment) (points int, reason string)
}

// Scorer maps assessments to triage results. Scoring is a pure
// function of the assessment: no hidden state, never fails, safe to
// recompute on every field update. Malformed inputs are accepted
// as-is; validation belongs to the caller.
type Scorer struct {
	logger *logrus.Logger
	rules  []scoringRule
}

// NewScorer creates a new risk scorer.
func NewScorer(logger *logrus.Logger) *Scorer {
	s := &Scorer{logger: logger}
	s.initializeRules()
	return s
}

// Score computes the triage result for the assessment. Missing
// optional vitals contribute nothing; absence is neither penalized nor
// assumed normal.
func (s *Scorer) Score(a *domain.Assessment) *domain.TriageResult {
	total := 0
	breakdown := make([]domain.RuleContribution, 0, len(s.rules))

	for _, rule := range s.rules {
		points, reason := rule.Evaluate(a)
		if points == 0 {
			continue
		}
		total += points
		breakdown = append(breakdown, domain.RuleContribution{
			Rule:   rule.Name,
			Points: points,
			Reason: reason,
		})
	}

	priority := domain.PriorityFromScore(total)
	result := &domain.TriageResult{
		Score:             total,
		Priority:          priority,
		EstimatedWaitTime: priority.EstimatedWait(),
		Breakdown:         breakdown,
		RedFlags:          detectRedFlags(a),
		NEWSScore:         NEWSScore(a),
		ComputedAt:        time.Now().UTC(),
		ScorerVersion:     ScorerVersion,
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"assessment_id": a.ID,
			"patient_id":    a.PatientID,
			"rules_applied": len(breakdown),
		}).WithFields(result.LogFields()).Debug("Computed triage score")
	}

	return result
}

// initializeRules builds the rule table. Order matters only for the
// breakdown presentation; contributions are commutative.
func (s *Scorer) initializeRules() {
	s.rules = []scoringRule{
		{
			Name: "heart_rate",
			Evaluate: func(a *domain.Assessment) (int, string) {
				if a.Vitals == nil || a.Vitals.HeartRate == nil {
					return 0, ""
				}
				hr := *a.Vitals.HeartRate
				if hr > heartRateHigh {
					return vitalHRPoints, "tachycardia"
				}
				if hr < heartRateLow {
					return vitalHRPoints, "bradycardia"
				}
				return 0, ""
			},
		},
		{
			Name: "blood_pressure",
			Evaluate: func(a *domain.Assessment) (int, string) {
				if a.Vitals == nil || a.Vitals.BloodPressure == nil {
					return 0, ""
				}
				sys := a.Vitals.BloodPressure.Systolic
				if sys > systolicHigh {
					return vitalBPPoints, "hypertension"
				}
				if sys < systolicLow {
					return vitalBPPoints, "hypotension"
				}
				return 0, ""
			},
		},
		{
			Name: "temperature",
			Evaluate: func(a *domain.Assessment) (int, string) {
				if a.Vitals == nil || a.Vitals.Temperature == nil {
					return 0, ""
				}
				if *a.Vitals.Temperature > feverThreshold {
					return feverPoints, "fever"
				}
				return 0, ""
			},
		},
		{
			Name: "oxygen_saturation",
			Evaluate: func(a *domain.Assessment) (int, string) {
				if a.Vitals == nil || a.Vitals.OxygenSaturation == nil {
					return 0, ""
				}
				if *a.Vitals.OxygenSaturation < spo2Threshold {
					return spo2Points, "hypoxia"
				}
				return 0, ""
			},
		},
		{
			Name: "symptom_severity",
			Evaluate: func(a *domain.Assessment) (int, string) {
				if max := a.MaxSymptomSeverity(); max > 0 {
					return max, "maximum reported symptom severity"
				}
				return 0, ""
			},
		},
		{
			Name: "pain_score",
			Evaluate: func(a *domain.Assessment) (int, string) {
				if a.PainScore > 0 {
					return a.PainScore, "self-reported pain"
				}
				return 0, ""
			},
		},
		{
			Name: "consciousness",
			Evaluate: func(a *domain.Assessment) (int, string) {
				if a.ConsciousnessLevel != "" && a.ConsciousnessLevel != domain.ConsciousnessAlert {
					return consciousPoints, "reduced consciousness (" + a.ConsciousnessLevel.String() + ")"
				}
				return 0, ""
			},
		},
		// The two age brackets are evaluated independently, matching
		// the clinical formula as deployed. No age triggers both.
		{
			Name: "age_over_65",
			Evaluate: func(a *domain.Assessment) (int, string) {
				if a.RiskFactors.Age > elderlyAge {
					return elderlyPoints, "elderly patient"
				}
				return 0, ""
			},
		},
		{
			Name: "age_under_2",
			Evaluate: func(a *domain.Assessment) (int, string) {
				if a.RiskFactors.Age < infantAge {
					return infantPoints, "infant patient"
				}
				return 0, ""
			},
		},
	}
}
