package domain

import (
	"time"

	"github.com/google/uuid"
)

type LinkType string

const (
	LinkEntity      LinkType = "entity"
	LinkTemporal    LinkType = "temporal"
	LinkCausedBy    LinkType = "caused_by"
	LinkObservation LinkType = "observation_of"
	LinkSemantic    LinkType = "semantic"
)

// MemoryLink is a typed edge between two memory units.
type MemoryLink struct {
	ID        uuid.UUID `json:"id"`
	BankID    uuid.UUID `json:"bank_id"`
	SourceID  uuid.UUID `json:"source_id"`
	TargetID  uuid.UUID `json:"target_id"`
	LinkType  LinkType  `json:"link_type"`
	Weight    float64   `json:"weight"`
	CreatedAt time.Time `json:"created_at"`
}

type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
	DirectionBoth     Direction = "both"
)

// MetaPathStep is one hop of a graph-retrieval meta-path: which link type to
// follow, in which direction, and how much the accumulated score decays.
type MetaPathStep struct {
	LinkType  LinkType
	Direction Direction
	Decay     float64
}

// MetaPath is an ordered hop sequence with an overall contribution weight.
type MetaPath struct {
	Name   string
	Steps  []MetaPathStep
	Weight float64
}

// DefaultMetaPaths is the expansion used by the graph strategy: 1–2 hops over
// entity, causal, and observation links with 0.5 decay per hop.
func DefaultMetaPaths() []MetaPath {
	return []MetaPath{
		{
			Name:   "shared-entity",
			Weight: 1.0,
			Steps: []MetaPathStep{
				{LinkType: LinkEntity, Direction: DirectionBoth, Decay: 0.5},
			},
		},
		{
			Name:   "causal-chain",
			Weight: 0.9,
			Steps: []MetaPathStep{
				{LinkType: LinkCausedBy, Direction: DirectionBoth, Decay: 0.5},
				{LinkType: LinkCausedBy, Direction: DirectionBoth, Decay: 0.5},
			},
		},
		{
			Name:   "observation",
			Weight: 0.8,
			Steps: []MetaPathStep{
				{LinkType: LinkObservation, Direction: DirectionBoth, Decay: 0.5},
			},
		},
	}
}
