package domain

import (
	"time"

	"github.com/google/uuid"
)

// StrategyTrace records one retrieval strategy's contribution.
type StrategyTrace struct {
	Method   Method        `json:"method"`
	Duration time.Duration `json:"duration"`
	Ranked   []uuid.UUID   `json:"ranked"`
}

// PhaseMetric times one recall pipeline phase.
type PhaseMetric struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// RecallTrace is the full diagnostic record of one recall invocation.
type RecallTrace struct {
	Strategies    []StrategyTrace `json:"strategies"`
	Phases        []PhaseMetric   `json:"phases"`
	Candidates    []ScoredMemory  `json:"candidates"`
	SelectedIDs   []uuid.UUID     `json:"selected_ids"`
	TotalDuration time.Duration   `json:"total_duration"`
}

// TraceEvent is delivered to the instance-level trace callback after every
// core operation.
type TraceEvent struct {
	Operation string         `json:"operation"`
	BankID    uuid.UUID      `json:"bank_id"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TraceCallback receives a TraceEvent on completion of each core operation.
type TraceCallback func(TraceEvent)
