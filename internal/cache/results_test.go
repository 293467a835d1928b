package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-triage-engine/internal/domain"
)

func testAssessment(id string, painScore int) *domain.Assessment {
	hr := 110
	return &domain.Assessment{
		ID:        id,
		PatientID: "p-1",
		Vitals:    &domain.VitalSigns{HeartRate: &hr},
		Symptoms: []domain.Symptom{
			{Name: "cough", Severity: 4, Category: domain.CategoryRespiratory},
		},
		PainScore:          painScore,
		ConsciousnessLevel: domain.ConsciousnessAlert,
		RiskFactors:        domain.RiskFactors{Age: 45},
		CreatedAt:          time.Now().UTC(),
	}
}

func TestResultCache_PutAndGet(t *testing.T) {
	c, err := NewResultCache(16, "1.0.0")
	require.NoError(t, err)

	a := testAssessment("a-1", 2)
	result := &domain.TriageResult{Score: 8, Priority: domain.PrioritySemiUrgent}
	c.Put(a, result)

	got, ok := c.Get(a)
	require.True(t, ok)
	assert.Equal(t, 8, got.Score)
}

func TestResultCache_KeyIgnoresIdentity(t *testing.T) {
	c, err := NewResultCache(16, "1.0.0")
	require.NoError(t, err)

	a := testAssessment("a-1", 2)
	b := testAssessment("a-2", 2)
	b.CreatedAt = a.CreatedAt.Add(time.Hour)

	assert.Equal(t, c.Key(a), c.Key(b), "same clinical inputs share a key")
}

func TestResultCache_KeyDependsOnInputs(t *testing.T) {
	c, err := NewResultCache(16, "1.0.0")
	require.NoError(t, err)

	a := testAssessment("a-1", 2)
	b := testAssessment("a-1", 9)

	assert.NotEqual(t, c.Key(a), c.Key(b))
}

func TestResultCache_KeyDependsOnVersion(t *testing.T) {
	c1, err := NewResultCache(16, "1.0.0")
	require.NoError(t, err)
	c2, err := NewResultCache(16, "2.0.0")
	require.NoError(t, err)

	a := testAssessment("a-1", 2)
	assert.NotEqual(t, c1.Key(a), c2.Key(a))
}

func TestResultCache_Bounded(t *testing.T) {
	c, err := NewResultCache(4, "1.0.0")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		a := testAssessment(fmt.Sprintf("a-%d", i), i)
		c.Put(a, &domain.TriageResult{Score: i})
	}
	assert.Equal(t, 4, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
}
