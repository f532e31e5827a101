package domain

import (
	"time"

	"github.com/google/uuid"
)

// VisualMemory is a description of a visual artifact stored alongside the
// textual memory units and retrieved through an independent index.
type VisualMemory struct {
	ID          uuid.UUID `json:"id"`
	BankID      uuid.UUID `json:"bank_id"`
	Description string    `json:"description"`
	SourceURI   string    `json:"source_uri,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// VisualAccess is an append-only record of a visual memory being returned
// from recall.
type VisualAccess struct {
	ID         uuid.UUID `json:"id"`
	BankID     uuid.UUID `json:"bank_id"`
	VisualID   uuid.UUID `json:"visual_id"`
	AccessedAt time.Time `json:"accessed_at"`
}
