package service

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/hindsight-ai/hindsight/internal/domain"
)

// rrfK is the Reciprocal Rank Fusion constant.
const rrfK = 60

// rankedList is one strategy's ordered result.
type rankedList struct {
	method domain.Method
	ids    []uuid.UUID
}

// fusedCandidate is a memory id with its RRF accounting.
type fusedCandidate struct {
	id       uuid.UUID
	rrfScore float64
	sources  []domain.Method
}

// fuseRRF merges ranked lists with Reciprocal Rank Fusion:
// RRF(m) = Σ_s 1/(k + rank_s(m)). Ties break by contributing source count
// descending, then id ascending, so the ordering is total and two
// invocations on identical inputs agree exactly.
func fuseRRF(lists []rankedList) []fusedCandidate {
	byID := make(map[uuid.UUID]*fusedCandidate)

	for _, list := range lists {
		for rank, id := range list.ids {
			c, ok := byID[id]
			if !ok {
				c = &fusedCandidate{id: id}
				byID[id] = c
			}
			c.rrfScore += 1.0 / float64(rrfK+rank+1)
			c.sources = append(c.sources, list.method)
		}
	}

	fused := make([]fusedCandidate, 0, len(byID))
	for _, c := range byID {
		fused = append(fused, *c)
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].rrfScore != fused[j].rrfScore {
			return fused[i].rrfScore > fused[j].rrfScore
		}
		if len(fused[i].sources) != len(fused[j].sources) {
			return len(fused[i].sources) > len(fused[j].sources)
		}
		return fused[i].id.String() < fused[j].id.String()
	})
	return fused
}

// minMaxNormalize rescales scores into [0,1]. A constant input maps to 1.
func minMaxNormalize(scores map[uuid.UUID]float64) map[uuid.UUID]float64 {
	if len(scores) == 0 {
		return scores
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range scores {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	out := make(map[uuid.UUID]float64, len(scores))
	for id, s := range scores {
		if hi == lo {
			out[id] = 1
		} else {
			out[id] = (s - lo) / (hi - lo)
		}
	}
	return out
}

// sigmoid squashes a logit into (0,1).
func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
