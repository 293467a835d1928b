package domain

import (
	"testing"
	"time"
)

func intPtr(v int) *int          { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestVitalSignsAbnormalVitals(t *testing.T) {
	tests := []struct {
		name     string
		vitals   *VitalSigns
		expected []string
	}{
		{
			name:     "nil vitals",
			vitals:   nil,
			expected: nil,
		},
		{
			name:     "empty vitals report nothing",
			vitals:   &VitalSigns{},
			expected: nil,
		},
		{
			name: "all normal",
			vitals: &VitalSigns{
				HeartRate:        intPtr(72),
				BloodPressure:    &BloodPressure{Systolic: 120, Diastolic: 80},
				Temperature:      floatPtr(36.8),
				OxygenSaturation: floatPtr(98),
				RespiratoryRate:  intPtr(16),
			},
			expected: nil,
		},
		{
			name: "tachycardia and hypoxia",
			vitals: &VitalSigns{
				HeartRate:        intPtr(130),
				OxygenSaturation: floatPtr(90),
			},
			expected: []string{"heart_rate", "oxygen_saturation"},
		},
		{
			name: "hypertensive with fever",
			vitals: &VitalSigns{
				BloodPressure: &BloodPressure{Systolic: 160, Diastolic: 95},
				Temperature:   floatPtr(39.2),
			},
			expected: []string{"systolic_bp", "diastolic_bp", "temperature"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.vitals.AbnormalVitals()
			if len(got) != len(tt.expected) {
				t.Fatalf("Expected %v, got %v", tt.expected, got)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("Expected %v, got %v", tt.expected, got)
				}
			}
		})
	}
}

func TestAssessmentMaxSymptomSeverity(t *testing.T) {
	a := &Assessment{}
	if got := a.MaxSymptomSeverity(); got != 0 {
		t.Errorf("Expected 0 for no symptoms, got %d", got)
	}

	a.Symptoms = []Symptom{
		{Name: "headache", Severity: 3, Category: CategoryNeurological},
		{Name: "chest pain", Severity: 8, Category: CategoryCardiovascular},
		{Name: "nausea", Severity: 2, Category: CategoryGastrointestinal},
	}
	if got := a.MaxSymptomSeverity(); got != 8 {
		t.Errorf("Expected 8, got %d", got)
	}
}

func TestAssessmentValidate(t *testing.T) {
	tests := []struct {
		name       string
		assessment Assessment
		wantErr    bool
	}{
		{
			name: "valid",
			assessment: Assessment{
				PatientID:          "p-1",
				PainScore:          4,
				ConsciousnessLevel: ConsciousnessAlert,
				Mobility:           MobilityIndependent,
			},
			wantErr: false,
		},
		{
			name:       "missing patient id",
			assessment: Assessment{PainScore: 4},
			wantErr:    true,
		},
		{
			name:       "pain score out of range",
			assessment: Assessment{PatientID: "p-1", PainScore: 11},
			wantErr:    true,
		},
		{
			name: "invalid consciousness",
			assessment: Assessment{
				PatientID:          "p-1",
				ConsciousnessLevel: ConsciousnessLevel("comatose"),
			},
			wantErr: true,
		},
		{
			name: "invalid symptom severity",
			assessment: Assessment{
				PatientID: "p-1",
				Symptoms:  []Symptom{{Name: "pain", Severity: 12}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.assessment.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestQueueEntryValidate(t *testing.T) {
	valid := QueueEntry{
		ID:          "e-1",
		PatientID:   "p-1",
		Priority:    PriorityUrgent,
		Status:      StatusWaiting,
		CheckedInAt: time.Now(),
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Expected valid entry, got %v", err)
	}

	missing := valid
	missing.ID = ""
	if err := missing.Validate(); err == nil {
		t.Error("Expected error for missing ID")
	}

	badTier := valid
	badTier.Priority = Priority("red")
	if err := badTier.Validate(); err == nil {
		t.Error("Expected error for invalid priority")
	}
}

func TestEntryUpdateValidate(t *testing.T) {
	good := StatusInProgress
	if err := (&EntryUpdate{Status: &good}).Validate(); err != nil {
		t.Errorf("Expected valid update, got %v", err)
	}

	bad := EntryStatus("teleported")
	if err := (&EntryUpdate{Status: &bad}).Validate(); err == nil {
		t.Error("Expected error for invalid status")
	}
}
