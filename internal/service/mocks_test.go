package service

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hindsight-ai/hindsight/internal/domain"
	"github.com/hindsight-ai/hindsight/internal/store"
)

// mockBankStore implements domain.BankStore for testing.
type mockBankStore struct {
	banks map[uuid.UUID]*domain.Bank
}

func newMockBankStore() *mockBankStore {
	return &mockBankStore{banks: make(map[uuid.UUID]*domain.Bank)}
}

func (m *mockBankStore) Create(ctx context.Context, b *domain.Bank) error {
	b.ID = uuid.New()
	if b.DedupThreshold == 0 {
		b.DedupThreshold = domain.DefaultDedupThreshold
	}
	if b.ExtractionMode == "" {
		b.ExtractionMode = domain.ExtractionConcise
	}
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	m.banks[b.ID] = b
	return nil
}

func (m *mockBankStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Bank, error) {
	b, ok := m.banks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (m *mockBankStore) List(ctx context.Context) ([]domain.Bank, error) {
	var banks []domain.Bank
	for _, b := range m.banks {
		banks = append(banks, *b)
	}
	return banks, nil
}

func (m *mockBankStore) Update(ctx context.Context, b *domain.Bank) error {
	if _, ok := m.banks[b.ID]; !ok {
		return store.ErrNotFound
	}
	m.banks[b.ID] = b
	return nil
}

func (m *mockBankStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.banks[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.banks, id)
	return nil
}

func (m *mockBankStore) Stats(ctx context.Context, id uuid.UUID) (*domain.BankStats, error) {
	return &domain.BankStats{}, nil
}

// mockMemoryStore implements domain.MemoryStore for testing.
type mockMemoryStore struct {
	mu       sync.Mutex
	memories map[uuid.UUID]*domain.MemoryUnit
}

func newMockMemoryStore() *mockMemoryStore {
	return &mockMemoryStore{memories: make(map[uuid.UUID]*domain.MemoryUnit)}
}

func (m *mockMemoryStore) Create(ctx context.Context, mem *domain.MemoryUnit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem.ID = uuid.New()
	mem.CreatedAt = time.Now()
	mem.UpdatedAt = mem.CreatedAt
	if mem.EncodingStrength == 0 {
		mem.EncodingStrength = 1.0
	}
	mem.AccessCount = 1
	copied := *mem
	m.memories[mem.ID] = &copied
	return nil
}

func (m *mockMemoryStore) GetByID(ctx context.Context, id uuid.UUID, bankID uuid.UUID) (*domain.MemoryUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.memories[id]
	if !ok || mem.BankID != bankID {
		return nil, store.ErrNotFound
	}
	copied := *mem
	return &copied, nil
}

func (m *mockMemoryStore) GetMany(ctx context.Context, bankID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*domain.MemoryUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make(map[uuid.UUID]*domain.MemoryUnit)
	for _, id := range ids {
		if mem, ok := m.memories[id]; ok && mem.BankID == bankID {
			copied := *mem
			result[id] = &copied
		}
	}
	return result, nil
}

func (m *mockMemoryStore) ListByBank(ctx context.Context, bankID uuid.UUID, opts domain.MemoryListOpts) ([]domain.MemoryUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var results []domain.MemoryUnit
	for _, mem := range m.memories {
		if mem.BankID != bankID {
			continue
		}
		if opts.FactType != nil && mem.FactType != *opts.FactType {
			continue
		}
		results = append(results, *mem)
	}
	return results, nil
}

func (m *mockMemoryStore) Delete(ctx context.Context, id uuid.UUID, bankID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.memories[id]
	if !ok || mem.BankID != bankID {
		return store.ErrNotFound
	}
	delete(m.memories, id)
	return nil
}

func (m *mockMemoryStore) CountByBank(ctx context.Context, bankID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, mem := range m.memories {
		if mem.BankID == bankID {
			count++
		}
	}
	return count, nil
}

func (m *mockMemoryStore) Reinforce(ctx context.Context, id uuid.UUID, strengthBoost float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.memories[id]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	mem.AccessCount++
	mem.LastAccessed = &now
	mem.EncodingStrength += strengthBoost
	mem.UpdatedAt = now
	return nil
}

func (m *mockMemoryStore) UpdateCanonical(ctx context.Context, mem *domain.MemoryUnit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.memories[mem.ID]
	if !ok {
		return store.ErrNotFound
	}
	existing.Content = mem.Content
	existing.FactType = mem.FactType
	existing.Confidence = mem.Confidence
	existing.Tags = mem.Tags
	existing.OccurredStart = mem.OccurredStart
	existing.OccurredEnd = mem.OccurredEnd
	existing.Gist = nil
	existing.UpdatedAt = time.Now()
	return nil
}

func (m *mockMemoryStore) RecordAccess(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.memories[id]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	mem.AccessCount++
	mem.LastAccessed = &now
	return nil
}

func (m *mockMemoryStore) SetGist(ctx context.Context, id uuid.UUID, gist string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.memories[id]
	if !ok {
		return store.ErrNotFound
	}
	mem.Gist = &gist
	return nil
}

func (m *mockMemoryStore) Fulltext(ctx context.Context, bankID uuid.UUID, query string, tags []string, limit int) ([]domain.ScoredID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	words := strings.Fields(strings.ToLower(query))
	var results []domain.ScoredID
	for _, mem := range m.memories {
		if mem.BankID != bankID {
			continue
		}
		if len(tags) > 0 && !anyTagOverlap(mem.Tags, tags) {
			continue
		}
		content := strings.ToLower(mem.Content)
		score := 0.0
		for _, w := range words {
			if strings.Contains(content, w) {
				score++
			}
		}
		if score > 0 {
			results = append(results, domain.ScoredID{ID: mem.ID, Score: score})
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID.String() < results[j].ID.String()
	})
	if len(results) > limit && limit > 0 {
		results = results[:limit]
	}
	return results, nil
}

func anyTagOverlap(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func (m *mockMemoryStore) ByTimeRange(ctx context.Context, bankID uuid.UUID, from, to time.Time, limit int) ([]domain.MemoryUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var results []domain.MemoryUnit
	for _, mem := range m.memories {
		if mem.BankID != bankID {
			continue
		}
		if mem.MentionedAt.Before(from) || mem.MentionedAt.After(to) {
			continue
		}
		results = append(results, *mem)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].MentionedAt.After(results[j].MentionedAt) })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *mockMemoryStore) RecentSince(ctx context.Context, bankID uuid.UUID, since, until time.Time, limit int) ([]domain.MemoryUnit, error) {
	return m.ByTimeRange(ctx, bankID, since, until, limit)
}

// mockVersionStore implements domain.VersionStore for testing.
type mockVersionStore struct {
	versions []domain.MemoryVersion
}

func newMockVersionStore() *mockVersionStore {
	return &mockVersionStore{}
}

func (m *mockVersionStore) Create(ctx context.Context, v *domain.MemoryVersion) error {
	v.ID = uuid.New()
	v.CreatedAt = time.Now()
	m.versions = append(m.versions, *v)
	return nil
}

func (m *mockVersionStore) ListByMemory(ctx context.Context, memoryID uuid.UUID) ([]domain.MemoryVersion, error) {
	var results []domain.MemoryVersion
	for _, v := range m.versions {
		if v.VersionedMemoryID == memoryID {
			results = append(results, v)
		}
	}
	return results, nil
}

func (m *mockVersionStore) CountByBank(ctx context.Context, bankID uuid.UUID) (int, error) {
	count := 0
	for _, v := range m.versions {
		if v.BankID == bankID {
			count++
		}
	}
	return count, nil
}

// mockDecisionStore implements domain.DecisionStore for testing.
type mockDecisionStore struct {
	decisions []domain.ReconsolidationDecision
}

func newMockDecisionStore() *mockDecisionStore {
	return &mockDecisionStore{}
}

func (m *mockDecisionStore) Create(ctx context.Context, d *domain.ReconsolidationDecision) error {
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	if d.PolicyVersion == "" {
		d.PolicyVersion = domain.PolicyVersion
	}
	m.decisions = append(m.decisions, *d)
	return nil
}

func (m *mockDecisionStore) ListByBank(ctx context.Context, bankID uuid.UUID, limit int) ([]domain.ReconsolidationDecision, error) {
	var results []domain.ReconsolidationDecision
	for _, d := range m.decisions {
		if d.BankID == bankID {
			results = append(results, d)
		}
	}
	return results, nil
}

// mockEntityStore implements domain.EntityStore for testing.
type mockEntityStore struct {
	entities  map[uuid.UUID]*domain.Entity
	junctions map[uuid.UUID]map[uuid.UUID]bool // memoryID -> entityIDs
}

func newMockEntityStore() *mockEntityStore {
	return &mockEntityStore{
		entities:  make(map[uuid.UUID]*domain.Entity),
		junctions: make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func (m *mockEntityStore) Upsert(ctx context.Context, e *domain.Entity) error {
	if e.CanonicalName == "" {
		e.CanonicalName = domain.CanonicalEntityName(e.Name)
	}
	if e.EntityType == "" {
		e.EntityType = domain.EntityTypeOther
	}
	for _, existing := range m.entities {
		if existing.BankID == e.BankID && existing.CanonicalName == e.CanonicalName {
			existing.MentionCount++
			existing.LastUpdated = time.Now()
			*e = *existing
			return nil
		}
	}
	e.ID = uuid.New()
	e.MentionCount = 1
	e.FirstSeen = time.Now()
	e.LastUpdated = e.FirstSeen
	copied := *e
	m.entities[e.ID] = &copied
	return nil
}

func (m *mockEntityStore) GetByID(ctx context.Context, id uuid.UUID, bankID uuid.UUID) (*domain.Entity, error) {
	e, ok := m.entities[id]
	if !ok || e.BankID != bankID {
		return nil, store.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (m *mockEntityStore) GetByCanonical(ctx context.Context, bankID uuid.UUID, canonical string) (*domain.Entity, error) {
	for _, e := range m.entities {
		if e.BankID == bankID && e.CanonicalName == canonical {
			copied := *e
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockEntityStore) ListByBank(ctx context.Context, bankID uuid.UUID, limit int) ([]domain.Entity, error) {
	var results []domain.Entity
	for _, e := range m.entities {
		if e.BankID == bankID {
			results = append(results, *e)
		}
	}
	return results, nil
}

func (m *mockEntityStore) Update(ctx context.Context, e *domain.Entity) error {
	if _, ok := m.entities[e.ID]; !ok {
		return store.ErrNotFound
	}
	m.entities[e.ID] = e
	return nil
}

func (m *mockEntityStore) LinkMemory(ctx context.Context, memoryID, entityID uuid.UUID) error {
	if m.junctions[memoryID] == nil {
		m.junctions[memoryID] = make(map[uuid.UUID]bool)
	}
	m.junctions[memoryID][entityID] = true
	return nil
}

func (m *mockEntityStore) UnlinkMemory(ctx context.Context, memoryID uuid.UUID) error {
	delete(m.junctions, memoryID)
	return nil
}

func (m *mockEntityStore) EntitiesForMemory(ctx context.Context, memoryID uuid.UUID) ([]domain.Entity, error) {
	var results []domain.Entity
	for entityID := range m.junctions[memoryID] {
		if e, ok := m.entities[entityID]; ok {
			results = append(results, *e)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].CanonicalName < results[j].CanonicalName })
	return results, nil
}

func (m *mockEntityStore) MemoryIDsForEntity(ctx context.Context, entityID uuid.UUID, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for memoryID, entities := range m.junctions {
		if entities[entityID] {
			ids = append(ids, memoryID)
		}
	}
	return ids, nil
}

func (m *mockEntityStore) SharedEntityCounts(ctx context.Context, memoryID uuid.UUID) (map[uuid.UUID]int, error) {
	own := m.junctions[memoryID]
	counts := make(map[uuid.UUID]int)
	for otherID, entities := range m.junctions {
		if otherID == memoryID {
			continue
		}
		for entityID := range entities {
			if own[entityID] {
				counts[otherID]++
			}
		}
	}
	return counts, nil
}

// mockLinkStore implements domain.LinkStore for testing.
type mockLinkStore struct {
	links []domain.MemoryLink
}

func newMockLinkStore() *mockLinkStore {
	return &mockLinkStore{}
}

func (m *mockLinkStore) Create(ctx context.Context, l *domain.MemoryLink) error {
	l.ID = uuid.New()
	l.CreatedAt = time.Now()
	m.links = append(m.links, *l)
	return nil
}

func (m *mockLinkStore) ListBySource(ctx context.Context, sourceID uuid.UUID) ([]domain.MemoryLink, error) {
	var results []domain.MemoryLink
	for _, l := range m.links {
		if l.SourceID == sourceID {
			results = append(results, l)
		}
	}
	return results, nil
}

func (m *mockLinkStore) Neighbors(ctx context.Context, memoryID uuid.UUID, linkType domain.LinkType, direction domain.Direction) ([]domain.MemoryLink, error) {
	var results []domain.MemoryLink
	for _, l := range m.links {
		if l.LinkType != linkType {
			continue
		}
		switch direction {
		case domain.DirectionForward:
			if l.SourceID == memoryID {
				results = append(results, l)
			}
		case domain.DirectionBackward:
			if l.TargetID == memoryID {
				results = append(results, l)
			}
		default:
			if l.SourceID == memoryID || l.TargetID == memoryID {
				results = append(results, l)
			}
		}
	}
	return results, nil
}

func (m *mockLinkStore) CountBySourceAndType(ctx context.Context, sourceID uuid.UUID, linkType domain.LinkType) (int, error) {
	count := 0
	for _, l := range m.links {
		if l.SourceID == sourceID && l.LinkType == linkType {
			count++
		}
	}
	return count, nil
}

func (m *mockLinkStore) DeleteForMemory(ctx context.Context, memoryID uuid.UUID) error {
	kept := m.links[:0]
	for _, l := range m.links {
		if l.SourceID != memoryID && l.TargetID != memoryID {
			kept = append(kept, l)
		}
	}
	m.links = kept
	return nil
}

// mockEmbeddingStore implements domain.EmbeddingStore over in-memory cosine
// search.
type mockEmbeddingStore struct {
	mu        sync.Mutex
	dimension int
	vectors   map[uuid.UUID][]float32
	memories  *mockMemoryStore
}

func newMockEmbeddingStore(dimension int, memories *mockMemoryStore) *mockEmbeddingStore {
	return &mockEmbeddingStore{
		dimension: dimension,
		vectors:   make(map[uuid.UUID][]float32),
		memories:  memories,
	}
}

func (m *mockEmbeddingStore) Dimension() int { return m.dimension }

func (m *mockEmbeddingStore) Upsert(ctx context.Context, id uuid.UUID, vec []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(vec) != m.dimension {
		return store.ErrDimensionMismatch
	}
	m.vectors[id] = vec
	return nil
}

func (m *mockEmbeddingStore) UpsertBatch(ctx context.Context, ids []uuid.UUID, vecs [][]float32) error {
	for i, id := range ids {
		if err := m.Upsert(ctx, id, vecs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockEmbeddingStore) Search(ctx context.Context, bankID uuid.UUID, vec []float32, k int) ([]domain.ScoredID, error) {
	if len(vec) != m.dimension {
		return nil, store.ErrDimensionMismatch
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memories.mu.Lock()
	defer m.memories.mu.Unlock()

	var results []domain.ScoredID
	for id, stored := range m.vectors {
		mem, ok := m.memories.memories[id]
		if !ok || mem.BankID != bankID {
			continue
		}
		results = append(results, domain.ScoredID{ID: id, Score: cosine(vec, stored)})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID.String() < results[j].ID.String()
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (m *mockEmbeddingStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vectors, id)
	return nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// mockLocationStore implements domain.LocationStore for testing.
type mockLocationStore struct {
	paths        map[uuid.UUID]*domain.LocationPath
	accesses     []domain.LocationAccessContext
	associations map[[2]uuid.UUID]*domain.LocationAssociation
}

func newMockLocationStore() *mockLocationStore {
	return &mockLocationStore{
		paths:        make(map[uuid.UUID]*domain.LocationPath),
		associations: make(map[[2]uuid.UUID]*domain.LocationAssociation),
	}
}

func (m *mockLocationStore) UpsertPath(ctx context.Context, p *domain.LocationPath) error {
	for _, existing := range m.paths {
		if existing.BankID == p.BankID && existing.NormalizedPath == p.NormalizedPath &&
			existing.Profile == p.Profile && existing.Project == p.Project {
			existing.RawPath = p.RawPath
			existing.UpdatedAt = time.Now()
			*p = *existing
			return nil
		}
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	copied := *p
	m.paths[p.ID] = &copied
	return nil
}

func (m *mockLocationStore) GetPath(ctx context.Context, id uuid.UUID) (*domain.LocationPath, error) {
	p, ok := m.paths[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *mockLocationStore) FindPathExact(ctx context.Context, bankID uuid.UUID, normalized, profile, project string) (*domain.LocationPath, error) {
	for _, p := range m.paths {
		if p.BankID == bankID && p.NormalizedPath == normalized && p.Profile == profile && p.Project == project {
			copied := *p
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockLocationStore) FindPathsBySuffix(ctx context.Context, bankID uuid.UUID, suffix string, limit int) ([]domain.LocationPath, error) {
	var results []domain.LocationPath
	for _, p := range m.paths {
		if p.BankID == bankID && strings.HasSuffix(p.NormalizedPath, "/"+suffix) {
			results = append(results, *p)
			if len(results) >= limit {
				break
			}
		}
	}
	return results, nil
}

func (m *mockLocationStore) RecordAccess(ctx context.Context, a *domain.LocationAccessContext) error {
	a.ID = uuid.New()
	if a.AccessedAt.IsZero() {
		a.AccessedAt = time.Now()
	}
	m.accesses = append(m.accesses, *a)
	return nil
}

func (m *mockLocationStore) StatsForMemory(ctx context.Context, memoryID uuid.UUID) ([]domain.PathAccessStats, error) {
	byPath := make(map[uuid.UUID]*domain.PathAccessStats)
	for _, a := range m.accesses {
		if a.MemoryID != memoryID {
			continue
		}
		st, ok := byPath[a.PathID]
		if !ok {
			st = &domain.PathAccessStats{PathID: a.PathID}
			byPath[a.PathID] = st
		}
		st.AccessCount++
		if a.AccessedAt.After(st.LastAccessed) {
			st.LastAccessed = a.AccessedAt
		}
	}
	var results []domain.PathAccessStats
	for _, st := range byPath {
		results = append(results, *st)
	}
	return results, nil
}

func (m *mockLocationStore) PathsForMemory(ctx context.Context, memoryID uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, a := range m.accesses {
		if a.MemoryID == memoryID && !seen[a.PathID] {
			seen[a.PathID] = true
			ids = append(ids, a.PathID)
		}
	}
	return ids, nil
}

func (m *mockLocationStore) SessionPaths(ctx context.Context, bankID uuid.UUID, session string, since time.Time) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, a := range m.accesses {
		if a.BankID != bankID || a.Session == nil || *a.Session != session || a.AccessedAt.Before(since) {
			continue
		}
		if !seen[a.PathID] {
			seen[a.PathID] = true
			ids = append(ids, a.PathID)
		}
	}
	return ids, nil
}

func (m *mockLocationStore) IncrementAssociation(ctx context.Context, bankID uuid.UUID, source, related uuid.UUID) (int, error) {
	source, related = domain.OrderPathPair(source, related)
	key := [2]uuid.UUID{source, related}
	a, ok := m.associations[key]
	if !ok {
		a = &domain.LocationAssociation{
			ID:            uuid.New(),
			BankID:        bankID,
			SourcePathID:  source,
			RelatedPathID: related,
		}
		m.associations[key] = a
	}
	a.CoAccessCount++
	a.UpdatedAt = time.Now()
	return a.CoAccessCount, nil
}

func (m *mockLocationStore) SetAssociationStrength(ctx context.Context, bankID uuid.UUID, source, related uuid.UUID, strength float64) error {
	source, related = domain.OrderPathPair(source, related)
	a, ok := m.associations[[2]uuid.UUID{source, related}]
	if !ok {
		return store.ErrNotFound
	}
	a.Strength = strength
	return nil
}

func (m *mockLocationStore) AssociationsForPaths(ctx context.Context, bankID uuid.UUID, pathIDs []uuid.UUID) ([]domain.LocationAssociation, error) {
	wanted := make(map[uuid.UUID]bool)
	for _, id := range pathIDs {
		wanted[id] = true
	}
	var results []domain.LocationAssociation
	for _, a := range m.associations {
		if a.BankID == bankID && (wanted[a.SourcePathID] || wanted[a.RelatedPathID]) {
			results = append(results, *a)
		}
	}
	return results, nil
}

// mockVisualStore implements domain.VisualStore for testing.
type mockVisualStore struct {
	visuals  []domain.VisualMemory
	accesses []domain.VisualAccess
}

func newMockVisualStore() *mockVisualStore {
	return &mockVisualStore{}
}

func (m *mockVisualStore) Create(ctx context.Context, v *domain.VisualMemory) error {
	v.ID = uuid.New()
	v.CreatedAt = time.Now()
	m.visuals = append(m.visuals, *v)
	return nil
}

func (m *mockVisualStore) Search(ctx context.Context, bankID uuid.UUID, vec []float32, limit int) ([]domain.VisualMemory, error) {
	var results []domain.VisualMemory
	for _, v := range m.visuals {
		if v.BankID == bankID {
			results = append(results, v)
			if len(results) >= limit {
				break
			}
		}
	}
	return results, nil
}

func (m *mockVisualStore) RecordAccess(ctx context.Context, a *domain.VisualAccess) error {
	a.ID = uuid.New()
	a.AccessedAt = time.Now()
	m.accesses = append(m.accesses, *a)
	return nil
}

// mockOperationStore implements domain.OperationStore for testing.
type mockOperationStore struct {
	mu  sync.Mutex
	ops map[uuid.UUID]*domain.AsyncOperation
}

func newMockOperationStore() *mockOperationStore {
	return &mockOperationStore{ops: make(map[uuid.UUID]*domain.AsyncOperation)}
}

func (m *mockOperationStore) Create(ctx context.Context, op *domain.AsyncOperation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	op.ID = uuid.New()
	op.SubmittedAt = time.Now()
	if op.Status == "" {
		op.Status = domain.OpPending
	}
	copied := *op
	m.ops[op.ID] = &copied
	return nil
}

func (m *mockOperationStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.AsyncOperation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *op
	return &copied, nil
}

func (m *mockOperationStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OperationStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[id]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	op.Status = status
	op.Error = errMsg
	switch status {
	case domain.OpProcessing:
		op.StartedAt = &now
	case domain.OpCompleted, domain.OpFailed, domain.OpCancelled:
		op.FinishedAt = &now
	}
	return nil
}

func (m *mockOperationStore) FindPendingByDedupKey(ctx context.Context, bankID uuid.UUID, kind domain.OperationKind, dedupKey string) (*domain.AsyncOperation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range m.ops {
		if op.BankID == bankID && op.Kind == kind && op.DedupKey == dedupKey && op.Status == domain.OpPending {
			copied := *op
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockOperationStore) ListPending(ctx context.Context, limit int) ([]domain.AsyncOperation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var results []domain.AsyncOperation
	for _, op := range m.ops {
		if op.Status == domain.OpPending {
			results = append(results, *op)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].SubmittedAt.Before(results[j].SubmittedAt) })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// mockTxRunner hands the callback the same in-memory stores; set err to make
// InTx fail before the callback runs, so nothing is applied (the in-memory
// stores do not roll back a callback that has already run).
type mockTxRunner struct {
	stores domain.RetainStores
	calls  int
	err    error
}

func (m *mockTxRunner) InTx(ctx context.Context, fn func(st domain.RetainStores) error) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	return fn(m.stores)
}

// mockRerankClient returns configurable logits.
type mockRerankClient struct {
	fn    func(query string, docs []string) []float64
	err   error
	calls int
}

func (m *mockRerankClient) Rerank(ctx context.Context, query string, docs []string) ([]float64, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.fn(query, docs), nil
}
