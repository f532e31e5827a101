package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type LocationPath struct {
	ID             uuid.UUID `json:"id"`
	BankID         uuid.UUID `json:"bank_id"`
	RawPath        string    `json:"raw_path"`
	NormalizedPath string    `json:"normalized_path"`
	Profile        string    `json:"profile"`
	Project        string    `json:"project"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type ActivityType string

const (
	ActivityAccess ActivityType = "access"
	ActivityRetain ActivityType = "retain"
	ActivityRecall ActivityType = "recall"
)

// LocationAccessContext is an append-only record of a memory touching a path.
type LocationAccessContext struct {
	ID           uuid.UUID    `json:"id"`
	BankID       uuid.UUID    `json:"bank_id"`
	PathID       uuid.UUID    `json:"path_id"`
	MemoryID     uuid.UUID    `json:"memory_id"`
	Session      *string      `json:"session,omitempty"`
	ActivityType ActivityType `json:"activity_type"`
	AccessedAt   time.Time    `json:"accessed_at"`
}

// LocationAssociation is a co-access edge between two paths. Rows are stored
// once per unordered pair with SourcePathID < RelatedPathID.
type LocationAssociation struct {
	ID            uuid.UUID `json:"id"`
	BankID        uuid.UUID `json:"bank_id"`
	SourcePathID  uuid.UUID `json:"source_path_id"`
	RelatedPathID uuid.UUID `json:"related_path_id"`
	CoAccessCount int       `json:"co_access_count"`
	Strength      float64   `json:"strength"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AssociationStrength maps a co-access count into (0,1).
func AssociationStrength(count int) float64 {
	l := math.Log1p(float64(count))
	return l / (1 + l)
}

// OrderPathPair returns the canonical (source, related) ordering for an
// association row.
func OrderPathPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() < b.String() {
		return a, b
	}
	return b, a
}
