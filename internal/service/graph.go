package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/hindsight-ai/hindsight/internal/domain"
)

// graphExpander runs meta-path forward propagation from a seed set: each
// meta-path is an ordered (linkType, direction, decay) hop sequence; scores
// accumulate across paths weighted by the path weight. Edges are loaded
// lazily per (memory, linkType, direction) and cached for the lifetime of
// one recall invocation.
type graphExpander struct {
	linkStore domain.LinkStore
	metaPaths []domain.MetaPath
	edgeCache map[edgeCacheKey][]domain.MemoryLink
}

type edgeCacheKey struct {
	memoryID  uuid.UUID
	linkType  domain.LinkType
	direction domain.Direction
}

func newGraphExpander(linkStore domain.LinkStore, metaPaths []domain.MetaPath) *graphExpander {
	if len(metaPaths) == 0 {
		metaPaths = domain.DefaultMetaPaths()
	}
	return &graphExpander{
		linkStore: linkStore,
		metaPaths: metaPaths,
		edgeCache: make(map[edgeCacheKey][]domain.MemoryLink),
	}
}

func (g *graphExpander) neighbors(ctx context.Context, memoryID uuid.UUID, linkType domain.LinkType, direction domain.Direction) ([]domain.MemoryLink, error) {
	key := edgeCacheKey{memoryID: memoryID, linkType: linkType, direction: direction}
	if edges, ok := g.edgeCache[key]; ok {
		return edges, nil
	}
	edges, err := g.linkStore.Neighbors(ctx, memoryID, linkType, direction)
	if err != nil {
		return nil, err
	}
	g.edgeCache[key] = edges
	return edges, nil
}

// expand propagates activation from the seeds through every meta-path and
// returns per-memory aggregate scores, min-max normalised into [0,1]. Seeds
// themselves are excluded from the result.
func (g *graphExpander) expand(ctx context.Context, seeds []domain.ScoredID) (map[uuid.UUID]float64, error) {
	seedSet := make(map[uuid.UUID]bool, len(seeds))
	for _, s := range seeds {
		seedSet[s.ID] = true
	}

	aggregate := make(map[uuid.UUID]float64)

	for _, path := range g.metaPaths {
		// frontier carries activation per memory for the current step.
		frontier := make(map[uuid.UUID]float64, len(seeds))
		for _, s := range seeds {
			frontier[s.ID] = s.Score
		}

		for _, step := range path.Steps {
			next := make(map[uuid.UUID]float64)
			for id, activation := range frontier {
				edges, err := g.neighbors(ctx, id, step.LinkType, step.Direction)
				if err != nil {
					return nil, err
				}
				for _, e := range edges {
					target := e.TargetID
					if target == id {
						target = e.SourceID
					}
					propagated := activation * e.Weight * step.Decay
					if propagated > next[target] {
						next[target] = propagated
					}
				}
			}
			frontier = next
			for id, activation := range frontier {
				if seedSet[id] {
					continue
				}
				aggregate[id] += activation * path.Weight
			}
			if len(frontier) == 0 {
				break
			}
		}
	}

	return minMaxNormalize(aggregate), nil
}
