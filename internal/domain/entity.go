package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type EntityType string

const (
	EntityTypePerson       EntityType = "person"
	EntityTypeOrganization EntityType = "organization"
	EntityTypePlace        EntityType = "place"
	EntityTypeConcept      EntityType = "concept"
	EntityTypeOther        EntityType = "other"
)

func ValidEntityType(t string) bool {
	switch EntityType(t) {
	case EntityTypePerson, EntityTypeOrganization, EntityTypePlace, EntityTypeConcept, EntityTypeOther:
		return true
	}
	return false
}

type Entity struct {
	ID            uuid.UUID  `json:"id"`
	BankID        uuid.UUID  `json:"bank_id"`
	Name          string     `json:"name"`
	CanonicalName string     `json:"canonical_name"`
	EntityType    EntityType `json:"entity_type"`
	Description   string     `json:"description,omitempty"`
	MentionCount  int        `json:"mention_count"`
	FirstSeen     time.Time  `json:"first_seen"`
	LastUpdated   time.Time  `json:"last_updated"`
}

// MemoryEntity is the memory↔entity junction row.
type MemoryEntity struct {
	MemoryID uuid.UUID `json:"memory_id"`
	EntityID uuid.UUID `json:"entity_id"`
}

// ExtractedEntity is an entity mention as emitted by fact extraction.
type ExtractedEntity struct {
	Name       string     `json:"name"`
	EntityType EntityType `json:"entity_type"`
}

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	numericRE    = regexp.MustCompile(`^[+-]?\d+(\.\d+)?$`)
)

// CanonicalEntityName normalises an entity name for (bankId, name)
// uniqueness: trim, lowercase, collapse whitespace, canonicalise decimal
// numeric strings by stripping trailing fractional zeros and then a bare
// trailing point ("3.50" -> "3.5", "42.0" -> "42").
func CanonicalEntityName(name string) string {
	n := strings.TrimSpace(strings.ToLower(name))
	n = whitespaceRE.ReplaceAllString(n, " ")
	if numericRE.MatchString(n) {
		if i := strings.IndexByte(n, '.'); i >= 0 {
			n = strings.TrimRight(n, "0")
			n = strings.TrimSuffix(n, ".")
		}
	}
	return n
}
