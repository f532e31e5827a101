package domain

import (
	"time"

	"github.com/google/uuid"
)

type FactType string

const (
	FactTypeExperience  FactType = "experience"
	FactTypeWorld       FactType = "world"
	FactTypeOpinion     FactType = "opinion"
	FactTypeObservation FactType = "observation"
)

func ValidFactType(t string) bool {
	switch FactType(t) {
	case FactTypeExperience, FactTypeWorld, FactTypeOpinion, FactTypeObservation:
		return true
	}
	return false
}

// MemoryUnit is a single extracted fact.
type MemoryUnit struct {
	ID               uuid.UUID  `json:"id"`
	BankID           uuid.UUID  `json:"bank_id"`
	Content          string     `json:"content"`
	FactType         FactType   `json:"fact_type"`
	Confidence       float64    `json:"confidence"`
	Tags             []string   `json:"tags,omitempty"`
	ScopeProfile     *string    `json:"scope_profile,omitempty"`
	ScopeProject     *string    `json:"scope_project,omitempty"`
	ScopeSession     *string    `json:"scope_session,omitempty"`
	DocumentID       *string    `json:"document_id,omitempty"`
	EventDate        *time.Time `json:"event_date,omitempty"`
	MentionedAt      time.Time  `json:"mentioned_at"`
	OccurredStart    *time.Time `json:"occurred_start,omitempty"`
	OccurredEnd      *time.Time `json:"occurred_end,omitempty"`
	Gist             *string    `json:"gist,omitempty"`
	Metadata         string     `json:"metadata,omitempty"`
	EncodingStrength float64    `json:"encoding_strength"`
	AccessCount      int        `json:"access_count"`
	LastAccessed     *time.Time `json:"last_accessed,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// MemoryVersion is the immutable snapshot written on every reconsolidation.
type MemoryVersion struct {
	ID                uuid.UUID `json:"id"`
	BankID            uuid.UUID `json:"bank_id"`
	VersionedMemoryID uuid.UUID `json:"versioned_memory_id"`
	PreviousContent   string    `json:"previous_content"`
	NewContent        string    `json:"new_content"`
	Reason            string    `json:"reason"`
	CreatedAt         time.Time `json:"created_at"`
}

// CausalRelation links a fact back to an earlier fact in the same retain
// call. TargetIndex refers to the target fact's position in the input list.
type CausalRelation struct {
	TargetIndex  int     `json:"target_index"`
	RelationType string  `json:"relation_type"`
	Strength     float64 `json:"strength"`
}

// Fact is one extracted (or caller-supplied) unit of content before it is
// routed into the store.
type Fact struct {
	Content         string            `json:"content"`
	FactType        FactType          `json:"fact_type,omitempty"`
	Confidence      float64           `json:"confidence,omitempty"`
	Entities        []ExtractedEntity `json:"entities,omitempty"`
	Tags            []string          `json:"tags,omitempty"`
	CausalRelations []CausalRelation  `json:"causal_relations,omitempty"`
	OccurredStart   *time.Time        `json:"occurred_start,omitempty"`
	OccurredEnd     *time.Time        `json:"occurred_end,omitempty"`
}

// Turn is one message of a conversation transcript.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RetainInput is a tagged variant: plain text or a transcript.
type RetainInput struct {
	Text       string `json:"text,omitempty"`
	Transcript []Turn `json:"transcript,omitempty"`
}

func (in RetainInput) IsEmpty() bool {
	return in.Text == "" && len(in.Transcript) == 0
}
