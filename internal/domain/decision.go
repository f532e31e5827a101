package domain

import (
	"time"

	"github.com/google/uuid"
)

type ReconRoute string

const (
	RouteReinforce     ReconRoute = "reinforce"
	RouteReconsolidate ReconRoute = "reconsolidate"
	RouteNewTrace      ReconRoute = "new_trace"
)

// PolicyVersion identifies the routing decision table in effect.
const PolicyVersion = "v1"

// ReconsolidationDecision is the audit row written for every ingest routing
// decision, exactly one per incoming fact.
type ReconsolidationDecision struct {
	ID                uuid.UUID  `json:"id"`
	BankID            uuid.UUID  `json:"bank_id"`
	MemoryHash        string     `json:"memory_hash"`
	CandidateMemoryID *uuid.UUID `json:"candidate_memory_id,omitempty"`
	CandidateScore    *float64   `json:"candidate_score,omitempty"`
	Route             ReconRoute `json:"route"`
	ConflictDetected  bool       `json:"conflict_detected"`
	ConflictKeys      []string   `json:"conflict_keys,omitempty"`
	PolicyVersion     string     `json:"policy_version"`
	AppliedMemoryID   uuid.UUID  `json:"applied_memory_id"`
	CreatedAt         time.Time  `json:"created_at"`
}
