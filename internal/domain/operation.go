package domain

import (
	"time"

	"github.com/google/uuid"
)

type OperationKind string

const (
	OpRetain             OperationKind = "retain"
	OpConsolidation      OperationKind = "consolidation"
	OpRefreshMentalModel OperationKind = "refresh_mental_model"
	OpGist               OperationKind = "gist"
)

type OperationStatus string

const (
	OpPending    OperationStatus = "pending"
	OpProcessing OperationStatus = "processing"
	OpCompleted  OperationStatus = "completed"
	OpFailed     OperationStatus = "failed"
	OpCancelled  OperationStatus = "cancelled"
)

// Terminal reports whether an operation has reached a final state.
func (s OperationStatus) Terminal() bool {
	switch s {
	case OpCompleted, OpFailed, OpCancelled:
		return true
	}
	return false
}

// AsyncOperation is one queued work item.
type AsyncOperation struct {
	ID          uuid.UUID       `json:"id"`
	BankID      uuid.UUID       `json:"bank_id"`
	Kind        OperationKind   `json:"kind"`
	DedupKey    string          `json:"dedup_key,omitempty"`
	Status      OperationStatus `json:"status"`
	Error       string          `json:"error,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}
