package scoring

import (
	"github.com/smart-triage-engine/internal/domain"
)

// NEWSScore computes the National Early Warning Score (NEWS2) from the
// assessment's vitals and consciousness level. It is reported alongside
// the triage score as a secondary clinical indicator and does not feed
// the tier mapping.
func NEWSScore(a *domain.Assessment) int {
	score := 0
	v := a.Vitals

	if v != nil && v.RespiratoryRate != nil {
		switch rr := *v.RespiratoryRate; {
		case rr <= 8:
			score += 3
		case rr <= 11:
			score += 1
		case rr <= 20:
			// normal band
		case rr <= 24:
			score += 2
		default:
			score += 3
		}
	}

	if v != nil && v.OxygenSaturation != nil {
		switch spo2 := *v.OxygenSaturation; {
		case spo2 <= 91:
			score += 3
		case spo2 <= 93:
			score += 2
		case spo2 <= 95:
			score += 1
		}
	}

	if v != nil && v.BloodPressure != nil {
		switch sys := v.BloodPressure.Systolic; {
		case sys <= 90:
			score += 3
		case sys <= 100:
			score += 2
		case sys <= 110:
			score += 1
		case sys >= 220:
			score += 3
		}
	}

	if v != nil && v.HeartRate != nil {
		switch hr := *v.HeartRate; {
		case hr <= 40:
			score += 3
		case hr <= 50:
			score += 1
		case hr <= 90:
			// normal band
		case hr <= 110:
			score += 1
		case hr <= 130:
			score += 2
		default:
			score += 3
		}
	}

	if v != nil && v.Temperature != nil {
		switch t := *v.Temperature; {
		case t <= 35.0:
			score += 3
		case t <= 36.0:
			score += 1
		case t <= 38.0:
			// normal band
		case t <= 39.0:
			score += 1
		default:
			score += 2
		}
	}

	if a.ConsciousnessLevel != "" && a.ConsciousnessLevel != domain.ConsciousnessAlert {
		score += 3
	}

	return score
}

// Red flag thresholds: findings that warrant a staff alert regardless
// of the aggregate score.
const (
	redFlagSpO2     = 90.0
	redFlagSystolic = 80
	redFlagSeverity = 9
)

// detectRedFlags scans the assessment for findings that the dashboard
// surfaces as alerts independent of the tier.
func detectRedFlags(a *domain.Assessment) []string {
	var flags []string

	if a.Vitals != nil {
		if a.Vitals.OxygenSaturation != nil && *a.Vitals.OxygenSaturation < redFlagSpO2 {
			flags = append(flags, "severe_hypoxia")
		}
		if a.Vitals.BloodPressure != nil && a.Vitals.BloodPressure.Systolic < redFlagSystolic {
			flags = append(flags, "severe_hypotension")
		}
	}
	if a.ConsciousnessLevel == domain.ConsciousnessUnresponsive {
		flags = append(flags, "unresponsive")
	}
	for i := range a.Symptoms {
		if a.Symptoms[i].Severity >= redFlagSeverity {
			flags = append(flags, "critical_symptom_severity")
			break
		}
	}

	return flags
}
