package service

import (
	"math"
	"time"

	"github.com/hindsight-ai/hindsight/internal/domain"
)

const (
	// baseLevelDecay is the ACT-R decay exponent d.
	baseLevelDecay = 0.5

	// wmSessionBoost is the short-term boost for candidates accessed within
	// the current session window.
	wmSessionBoost = 0.15

	// wmWindow is how far back an access still counts as working memory.
	wmWindow = 30 * time.Minute

	// probeSpreadWeight scales spreading activation from query entities.
	probeSpreadWeight = 0.2
)

// baseLevelActivation computes the ACT-R base level Σ t_i^(−d) over a
// memory's access history. The store keeps count and last-access rather than
// the full history, so the sum is approximated as count presentations at the
// last-access age.
func baseLevelActivation(m *domain.MemoryUnit, now time.Time) float64 {
	if m.AccessCount == 0 || m.LastAccessed == nil {
		return 0
	}
	age := now.Sub(*m.LastAccessed).Seconds()
	if age < 1 {
		age = 1
	}
	return float64(m.AccessCount) * math.Pow(age, -baseLevelDecay)
}

// wmBoost is nonzero when the memory was accessed within the current session
// window.
func wmBoost(m *domain.MemoryUnit, now time.Time) float64 {
	if m.LastAccessed == nil {
		return 0
	}
	if now.Sub(*m.LastAccessed) <= wmWindow {
		return wmSessionBoost
	}
	return 0
}

// probeActivation spreads activation from query-anchored entities: the share
// of the candidate's entities that the query mentions.
func probeActivation(queryEntities map[string]bool, memoryEntities []domain.Entity) float64 {
	if len(queryEntities) == 0 || len(memoryEntities) == 0 {
		return 0
	}
	hits := 0
	for _, e := range memoryEntities {
		if queryEntities[e.CanonicalName] {
			hits++
		}
	}
	return probeSpreadWeight * float64(hits) / float64(len(memoryEntities))
}
