package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type BankStore interface {
	Create(ctx context.Context, b *Bank) error
	GetByID(ctx context.Context, id uuid.UUID) (*Bank, error)
	List(ctx context.Context) ([]Bank, error)
	Update(ctx context.Context, b *Bank) error
	// Delete cascades through every table keyed by bank id.
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context, id uuid.UUID) (*BankStats, error)
}

// MemoryListOpts filters ListByBank.
type MemoryListOpts struct {
	FactType *FactType
	Limit    int
	Offset   int
}

// ScoredID is a bare (id, score) pair returned by index lookups.
type ScoredID struct {
	ID    uuid.UUID
	Score float64
}

type MemoryStore interface {
	Create(ctx context.Context, m *MemoryUnit) error
	GetByID(ctx context.Context, id uuid.UUID, bankID uuid.UUID) (*MemoryUnit, error)
	GetMany(ctx context.Context, bankID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*MemoryUnit, error)
	ListByBank(ctx context.Context, bankID uuid.UUID, opts MemoryListOpts) ([]MemoryUnit, error)
	Delete(ctx context.Context, id uuid.UUID, bankID uuid.UUID) error
	CountByBank(ctx context.Context, bankID uuid.UUID) (int, error)

	// Reinforce bumps access_count, last_accessed, and encoding_strength on
	// the candidate without touching content.
	Reinforce(ctx context.Context, id uuid.UUID, strengthBoost float64) error
	// UpdateCanonical rewrites the canonical memory during reconsolidation.
	UpdateCanonical(ctx context.Context, m *MemoryUnit) error
	// RecordAccess bumps access bookkeeping when a memory is recalled.
	RecordAccess(ctx context.Context, id uuid.UUID) error
	SetGist(ctx context.Context, id uuid.UUID, gist string) error

	// Fulltext runs a ranked full-text query over memory content, optionally
	// pre-filtered by tags.
	Fulltext(ctx context.Context, bankID uuid.UUID, query string, tags []string, limit int) ([]ScoredID, error)
	// ByTimeRange returns memories whose mentioned_at falls in [from, to],
	// newest first.
	ByTimeRange(ctx context.Context, bankID uuid.UUID, from, to time.Time, limit int) ([]MemoryUnit, error)
	// RecentSince returns memories mentioned in [since, until] for temporal
	// link derivation.
	RecentSince(ctx context.Context, bankID uuid.UUID, since, until time.Time, limit int) ([]MemoryUnit, error)
}

type VersionStore interface {
	Create(ctx context.Context, v *MemoryVersion) error
	ListByMemory(ctx context.Context, memoryID uuid.UUID) ([]MemoryVersion, error)
	CountByBank(ctx context.Context, bankID uuid.UUID) (int, error)
}

type DecisionStore interface {
	Create(ctx context.Context, d *ReconsolidationDecision) error
	ListByBank(ctx context.Context, bankID uuid.UUID, limit int) ([]ReconsolidationDecision, error)
}

type EntityStore interface {
	// Upsert finds or creates by (bank, canonical name), increments
	// mention_count, and refreshes last_updated. FirstSeen never moves.
	Upsert(ctx context.Context, e *Entity) error
	GetByID(ctx context.Context, id uuid.UUID, bankID uuid.UUID) (*Entity, error)
	GetByCanonical(ctx context.Context, bankID uuid.UUID, canonical string) (*Entity, error)
	ListByBank(ctx context.Context, bankID uuid.UUID, limit int) ([]Entity, error)
	Update(ctx context.Context, e *Entity) error

	LinkMemory(ctx context.Context, memoryID, entityID uuid.UUID) error
	UnlinkMemory(ctx context.Context, memoryID uuid.UUID) error
	EntitiesForMemory(ctx context.Context, memoryID uuid.UUID) ([]Entity, error)
	MemoryIDsForEntity(ctx context.Context, entityID uuid.UUID, limit int) ([]uuid.UUID, error)
	// SharedEntityCounts returns, for each other memory sharing at least one
	// entity with memoryID, the number of shared entities.
	SharedEntityCounts(ctx context.Context, memoryID uuid.UUID) (map[uuid.UUID]int, error)
}

type LinkStore interface {
	Create(ctx context.Context, l *MemoryLink) error
	ListBySource(ctx context.Context, sourceID uuid.UUID) ([]MemoryLink, error)
	// Neighbors returns edges of the given type touching memoryID in the
	// given direction.
	Neighbors(ctx context.Context, memoryID uuid.UUID, linkType LinkType, direction Direction) ([]MemoryLink, error)
	CountBySourceAndType(ctx context.Context, sourceID uuid.UUID, linkType LinkType) (int, error)
	DeleteForMemory(ctx context.Context, memoryID uuid.UUID) error
}

// EmbeddingStore is the vector index keyed by memory id. Dimension
// violations are fatal for the call.
type EmbeddingStore interface {
	Upsert(ctx context.Context, id uuid.UUID, vec []float32) error
	UpsertBatch(ctx context.Context, ids []uuid.UUID, vecs [][]float32) error
	Search(ctx context.Context, bankID uuid.UUID, vec []float32, k int) ([]ScoredID, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Dimension() int
}

// PathAccessStats aggregates access history of one memory on one path.
type PathAccessStats struct {
	PathID       uuid.UUID
	AccessCount  int
	LastAccessed time.Time
}

type LocationStore interface {
	UpsertPath(ctx context.Context, p *LocationPath) error
	GetPath(ctx context.Context, id uuid.UUID) (*LocationPath, error)
	FindPathExact(ctx context.Context, bankID uuid.UUID, normalized, profile, project string) (*LocationPath, error)
	FindPathsBySuffix(ctx context.Context, bankID uuid.UUID, suffix string, limit int) ([]LocationPath, error)

	RecordAccess(ctx context.Context, a *LocationAccessContext) error
	// StatsForMemory returns per-path access frequency and recency for one
	// memory.
	StatsForMemory(ctx context.Context, memoryID uuid.UUID) ([]PathAccessStats, error)
	// PathsForMemory returns the distinct paths a memory has touched.
	PathsForMemory(ctx context.Context, memoryID uuid.UUID) ([]uuid.UUID, error)
	// SessionPaths returns distinct paths touched in the given session since
	// the window start.
	SessionPaths(ctx context.Context, bankID uuid.UUID, session string, since time.Time) ([]uuid.UUID, error)

	// IncrementAssociation upserts the canonical pair row, bumps the
	// co-access count, and returns the post-update count.
	IncrementAssociation(ctx context.Context, bankID uuid.UUID, source, related uuid.UUID) (int, error)
	SetAssociationStrength(ctx context.Context, bankID uuid.UUID, source, related uuid.UUID, strength float64) error
	AssociationsForPaths(ctx context.Context, bankID uuid.UUID, pathIDs []uuid.UUID) ([]LocationAssociation, error)
}

type VisualStore interface {
	Create(ctx context.Context, v *VisualMemory) error
	Search(ctx context.Context, bankID uuid.UUID, vec []float32, limit int) ([]VisualMemory, error)
	RecordAccess(ctx context.Context, a *VisualAccess) error
}

type OperationStore interface {
	Create(ctx context.Context, op *AsyncOperation) error
	GetByID(ctx context.Context, id uuid.UUID) (*AsyncOperation, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status OperationStatus, errMsg string) error
	FindPendingByDedupKey(ctx context.Context, bankID uuid.UUID, kind OperationKind, dedupKey string) (*AsyncOperation, error)
	ListPending(ctx context.Context, limit int) ([]AsyncOperation, error)
}

// RetainStores bundles the stores a per-fact application writes through.
// Inside a TxRunner callback every member is scoped to the same
// transaction.
type RetainStores struct {
	Memories   MemoryStore
	Versions   VersionStore
	Decisions  DecisionStore
	Entities   EntityStore
	Links      LinkStore
	Embeddings EmbeddingStore
}

// TxRunner runs fn against transaction-scoped stores. An error from fn
// rolls every write back; nothing commits until fn returns nil.
type TxRunner interface {
	InTx(ctx context.Context, fn func(st RetainStores) error) error
}

// EmbeddingClient is the external embedding runtime.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// RerankClient is the optional cross-encoder runtime. Scores are raw logits.
type RerankClient interface {
	Rerank(ctx context.Context, query string, docs []string) ([]float64, error)
}

// LLMClient is the opaque text generator used by extraction and gisting.
type LLMClient interface {
	ExtractFacts(ctx context.Context, content string, mode ExtractionMode, guidelines string) ([]Fact, error)
	GenerateGist(ctx context.Context, content string) (string, error)
}
