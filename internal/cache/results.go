package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/smart-triage-engine/internal/domain"
)

// ResultCache keeps recently computed triage results in memory, keyed
// by the content of the assessment. Scoring is deterministic for a
// given scorer version, so identical inputs can safely share a result.
type ResultCache struct {
	lru     *lru.Cache[string, *domain.TriageResult]
	version string
}

// NewResultCache creates a result cache bounded to size entries.
func NewResultCache(size int, scorerVersion string) (*ResultCache, error) {
	if size <= 0 {
		size = 256
	}
	c, err := lru.New[string, *domain.TriageResult](size)
	if err != nil {
		return nil, err
	}
	return &ResultCache{lru: c, version: scorerVersion}, nil
}

// Key derives the cache key from the scoring inputs. The assessment id
// and timestamps are excluded so re-submissions of the same clinical
// picture hit the cache.
func (c *ResultCache) Key(a *domain.Assessment) string {
	inputs := struct {
		Symptoms      []domain.Symptom          `json:"symptoms"`
		Vitals        *domain.VitalSigns        `json:"vitals"`
		PainScore     int                       `json:"pain_score"`
		Consciousness domain.ConsciousnessLevel `json:"consciousness"`
		RiskFactors   domain.RiskFactors        `json:"risk_factors"`
		Version       string                    `json:"version"`
	}{
		Symptoms:      a.Symptoms,
		Vitals:        a.Vitals,
		PainScore:     a.PainScore,
		Consciousness: a.ConsciousnessLevel,
		RiskFactors:   a.RiskFactors,
		Version:       c.version,
	}
	data, _ := json.Marshal(inputs)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

// Get returns a cached result for the assessment's inputs.
func (c *ResultCache) Get(a *domain.Assessment) (*domain.TriageResult, bool) {
	return c.lru.Get(c.Key(a))
}

// Put stores a computed result.
func (c *ResultCache) Put(a *domain.Assessment, result *domain.TriageResult) {
	c.lru.Add(c.Key(a), result)
}

// Len reports the number of cached results.
func (c *ResultCache) Len() int {
	return c.lru.Len()
}

// Purge drops all cached results. Called when the scorer version
// changes at runtime.
func (c *ResultCache) Purge() {
	c.lru.Purge()
}
