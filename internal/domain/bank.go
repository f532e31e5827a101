package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExtractionMode controls how facts are extracted from retained content.
type ExtractionMode string

const (
	ExtractionConcise ExtractionMode = "concise"
	ExtractionVerbose ExtractionMode = "verbose"
	ExtractionCustom  ExtractionMode = "custom"
)

// ValidExtractionMode reports whether s is one of the known extraction modes.
func ValidExtractionMode(s string) bool {
	switch ExtractionMode(s) {
	case ExtractionConcise, ExtractionVerbose, ExtractionCustom:
		return true
	default:
		return false
	}
}

// ReflectBudget controls how much effort reflection spends on a bank.
type ReflectBudget string

const (
	ReflectBudgetLow  ReflectBudget = "low"
	ReflectBudgetMid  ReflectBudget = "mid"
	ReflectBudgetHigh ReflectBudget = "high"
)

// ValidReflectBudget reports whether s is one of the known reflect budgets.
func ValidReflectBudget(s string) bool {
	switch ReflectBudget(s) {
	case ReflectBudgetLow, ReflectBudgetMid, ReflectBudgetHigh:
		return true
	default:
		return false
	}
}

// DefaultDedupThreshold is used when a bank does not specify one.
const DefaultDedupThreshold = 0.92

// Disposition holds a bank's personality knobs.
type Disposition struct {
	Skepticism int `json:"skepticism"`
	Literalism int `json:"literalism"`
	Empathy    int `json:"empathy"`
}

// Bank is the top-level container for a user's memories.
type Bank struct {
	ID                  uuid.UUID      `json:"id"`
	Name                string         `json:"name"`
	ExtractionMode      ExtractionMode `json:"extraction_mode"`
	DedupThreshold      float64        `json:"dedup_threshold"`
	ReflectBudget       ReflectBudget  `json:"reflect_budget"`
	EnableConsolidation bool           `json:"enable_consolidation"`
	CustomGuidelines    string         `json:"custom_guidelines"`
	Disposition         Disposition    `json:"disposition"`
	Mission             string         `json:"mission"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// BankStats summarizes the size of a bank's contents.
type BankStats struct {
	MemoryCount   int `json:"memory_count"`
	EntityCount   int `json:"entity_count"`
	LinkCount     int `json:"link_count"`
	VersionCount  int `json:"version_count"`
	DecisionCount int `json:"decision_count"`
}
