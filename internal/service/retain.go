package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hindsight-ai/hindsight/internal/domain"
	"github.com/hindsight-ai/hindsight/internal/store"
	"go.uber.org/zap"
)

var (
	ErrBankNotFound      = errors.New("bank not found")
	ErrEmptyContent      = errors.New("content is required when no pre-extracted facts are supplied")
	ErrNoEmbeddingClient = errors.New("embedding client not configured")
)

const (
	// ReconsolidateThreshold is the fixed lower bound of the reconsolidate
	// band; the upper bound is the bank's dedup threshold.
	ReconsolidateThreshold = 0.78

	// reinforceStrengthBoost is added to encoding_strength on each
	// reinforcement.
	reinforceStrengthBoost = 0.1

	// temporalLinkWindow bounds temporal link candidates.
	temporalLinkWindow = 24 * time.Hour

	// temporalLinkFloor is the minimum temporal link weight.
	temporalLinkFloor = 0.3

	// maxTemporalLinks caps temporal edges per source memory.
	maxTemporalLinks = 10
)

// RetainService runs the ingest pipeline: extraction, routing, application,
// link derivation, and entity upkeep. Facts within one call apply strictly
// in order, so causal indices and mentionedAt monotonicity hold without
// locks.
type RetainService struct {
	bankStore       domain.BankStore
	memoryStore     domain.MemoryStore
	versionStore    domain.VersionStore
	decisionStore   domain.DecisionStore
	entityStore     domain.EntityStore
	linkStore       domain.LinkStore
	embeddingStore  domain.EmbeddingStore
	txRunner        domain.TxRunner
	embeddingClient domain.EmbeddingClient
	llmClient       domain.LLMClient
	logger          *zap.Logger

	// anchorMu serialises mentionedAt offset assignment across batch items
	// so two documents never overlap.
	anchorMu     sync.Mutex
	anchorBase   time.Time
	anchorOffset int
}

func NewRetainService(
	bankStore domain.BankStore,
	memoryStore domain.MemoryStore,
	versionStore domain.VersionStore,
	decisionStore domain.DecisionStore,
	entityStore domain.EntityStore,
	linkStore domain.LinkStore,
	embeddingStore domain.EmbeddingStore,
	txRunner domain.TxRunner,
	embeddingClient domain.EmbeddingClient,
	llmClient domain.LLMClient,
	logger *zap.Logger,
) *RetainService {
	return &RetainService{
		bankStore:       bankStore,
		memoryStore:     memoryStore,
		versionStore:    versionStore,
		decisionStore:   decisionStore,
		entityStore:     entityStore,
		linkStore:       linkStore,
		embeddingStore:  embeddingStore,
		txRunner:        txRunner,
		embeddingClient: embeddingClient,
		llmClient:       llmClient,
		logger:          logger,
	}
}

func (s *RetainService) Retain(ctx context.Context, bankID uuid.UUID, input domain.RetainInput, opts domain.RetainOptions) (*domain.RetainResult, error) {
	bank, err := s.bankStore.GetByID(ctx, bankID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBankNotFound
		}
		return nil, err
	}
	if s.embeddingClient == nil {
		return nil, ErrNoEmbeddingClient
	}

	scope := domain.ResolveScope(opts.Scope, opts.Context)

	facts, err := s.resolveFacts(ctx, bank, input, opts)
	if err != nil {
		return nil, err
	}
	if len(facts) == 0 {
		return &domain.RetainResult{Memories: []domain.MemoryUnit{}, Entities: []domain.Entity{}, Links: []domain.MemoryLink{}}, nil
	}

	anchor := s.claimAnchor(opts.EventDate, len(facts))

	vectors, err := s.embedFacts(ctx, facts)
	if err != nil {
		return nil, err
	}

	threshold := bank.DedupThreshold
	if opts.DedupThreshold != nil {
		threshold = *opts.DedupThreshold
	}

	result := &domain.RetainResult{}
	entitySeen := make(map[uuid.UUID]bool)
	// applied holds the memory each fact resolved to, indexed like facts,
	// for causal link targets.
	applied := make([]*domain.MemoryUnit, len(facts))

	for i, fact := range facts {
		mentionedAt := anchor.Add(time.Duration(i) * time.Millisecond)

		mem, links, entities, err := s.applyFact(ctx, bank, fact, vectors[i], mentionedAt, scope, opts, threshold, applied[:i])
		if err != nil {
			return nil, fmt.Errorf("apply fact %d: %w", i, err)
		}
		applied[i] = mem

		result.Memories = append(result.Memories, *mem)
		result.Links = append(result.Links, links...)
		for _, e := range entities {
			if !entitySeen[e.ID] {
				entitySeen[e.ID] = true
				result.Entities = append(result.Entities, e)
			}
		}
	}

	return result, nil
}

// RetainBatch pipelines items sequentially; a single item's failure is
// captured per item and does not fail the batch.
func (s *RetainService) RetainBatch(ctx context.Context, bankID uuid.UUID, items []domain.RetainItem) []domain.RetainItemResult {
	results := make([]domain.RetainItemResult, len(items))
	for i, item := range items {
		res, err := s.Retain(ctx, bankID, item.Input, item.Options)
		if err != nil {
			results[i] = domain.RetainItemResult{Err: err.Error()}
			continue
		}
		results[i] = domain.RetainItemResult{Result: res}
	}
	return results
}

// claimAnchor reserves a run of per-fact millisecond offsets. With an
// explicit event date the anchor is that instant; otherwise the shared
// monotonic offset advances so batch items occupy disjoint ranges.
func (s *RetainService) claimAnchor(eventDate *time.Time, factCount int) time.Time {
	if eventDate != nil {
		return *eventDate
	}

	s.anchorMu.Lock()
	defer s.anchorMu.Unlock()

	now := time.Now()
	if s.anchorBase.IsZero() || now.Sub(s.anchorBase) > time.Second {
		s.anchorBase = now
		s.anchorOffset = 0
	}
	anchor := s.anchorBase.Add(time.Duration(s.anchorOffset) * time.Millisecond)
	s.anchorOffset += factCount
	return anchor
}

func (s *RetainService) resolveFacts(ctx context.Context, bank *domain.Bank, input domain.RetainInput, opts domain.RetainOptions) ([]domain.Fact, error) {
	var facts []domain.Fact
	if len(opts.Facts) > 0 {
		facts = opts.Facts
	} else {
		if input.IsEmpty() {
			return nil, ErrEmptyContent
		}
		if s.llmClient == nil {
			return nil, errors.New("LLM client not configured and no pre-extracted facts supplied")
		}

		mode := bank.ExtractionMode
		if opts.Mode != "" {
			mode = opts.Mode
		}
		extracted, err := s.llmClient.ExtractFacts(ctx, renderInput(input), mode, bank.CustomGuidelines)
		if err != nil {
			return nil, err
		}
		facts = extracted
	}

	// Drop self-referencing, forward-looking, and out-of-bounds causal
	// relations; keep the facts themselves.
	for i := range facts {
		kept := facts[i].CausalRelations[:0]
		for _, rel := range facts[i].CausalRelations {
			if rel.TargetIndex < 0 || rel.TargetIndex >= i {
				continue
			}
			kept = append(kept, rel)
		}
		facts[i].CausalRelations = kept

		if facts[i].FactType == "" {
			facts[i].FactType = domain.FactTypeWorld
		}
		if facts[i].Confidence == 0 {
			facts[i].Confidence = 1.0
		}
		facts[i].Tags = append(facts[i].Tags, opts.Tags...)
	}
	return facts, nil
}

func (s *RetainService) embedFacts(ctx context.Context, facts []domain.Fact) ([][]float32, error) {
	texts := make([]string, len(facts))
	for i, f := range facts {
		texts[i] = f.Content
	}

	vectors, err := s.embeddingClient.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	dim := s.embeddingStore.Dimension()
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: fact %d embedded to dimension %d, expected %d", store.ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return vectors, nil
}

// applyFact routes one fact and applies the decision, emitting exactly one
// decision row. The routing reads run against live store state; every write
// of the application runs inside one transaction, so a mid-apply failure
// rolls the fact back whole.
func (s *RetainService) applyFact(
	ctx context.Context,
	bank *domain.Bank,
	fact domain.Fact,
	vector []float32,
	mentionedAt time.Time,
	scope domain.Scope,
	opts domain.RetainOptions,
	threshold float64,
	priorApplied []*domain.MemoryUnit,
) (*domain.MemoryUnit, []domain.MemoryLink, []domain.Entity, error) {
	route, candidate, score, conflictKeys, err := s.route(ctx, bank.ID, fact, vector, threshold)
	if err != nil {
		return nil, nil, nil, err
	}

	decision := &domain.ReconsolidationDecision{
		BankID:           bank.ID,
		MemoryHash:       contentHash(fact.Content),
		Route:            route,
		ConflictDetected: len(conflictKeys) > 0,
		ConflictKeys:     conflictKeys,
		PolicyVersion:    domain.PolicyVersion,
	}
	if candidate != nil {
		decision.CandidateMemoryID = &candidate.ID
		decision.CandidateScore = &score
	}

	var mem *domain.MemoryUnit
	var links []domain.MemoryLink
	var entities []domain.Entity

	err = s.txRunner.InTx(ctx, func(st domain.RetainStores) error {
		switch route {
		case domain.RouteReinforce:
			if err := st.Memories.Reinforce(ctx, candidate.ID, reinforceStrengthBoost); err != nil {
				return err
			}
			var err error
			mem, err = st.Memories.GetByID(ctx, candidate.ID, bank.ID)
			if err != nil {
				return err
			}

		case domain.RouteReconsolidate:
			version := &domain.MemoryVersion{
				BankID:            bank.ID,
				VersionedMemoryID: candidate.ID,
				PreviousContent:   candidate.Content,
				NewContent:        fact.Content,
				Reason:            reconsolidateReason(score, conflictKeys),
			}
			if err := st.Versions.Create(ctx, version); err != nil {
				return err
			}

			candidate.Content = fact.Content
			candidate.FactType = fact.FactType
			candidate.Confidence = fact.Confidence
			candidate.Tags = mergeTags(candidate.Tags, fact.Tags)
			candidate.OccurredStart = fact.OccurredStart
			candidate.OccurredEnd = fact.OccurredEnd
			if err := st.Memories.UpdateCanonical(ctx, candidate); err != nil {
				return err
			}
			if err := st.Embeddings.Upsert(ctx, candidate.ID, vector); err != nil {
				return err
			}
			if err := st.Entities.UnlinkMemory(ctx, candidate.ID); err != nil {
				return err
			}
			var err error
			entities, err = upsertEntities(ctx, st, bank.ID, candidate.ID, fact.Entities)
			if err != nil {
				return err
			}
			mem = candidate

			links, err = deriveLinks(ctx, st, bank.ID, mem, fact, priorApplied)
			if err != nil {
				return err
			}

		case domain.RouteNewTrace:
			mem = &domain.MemoryUnit{
				BankID:        bank.ID,
				Content:       fact.Content,
				FactType:      fact.FactType,
				Confidence:    fact.Confidence,
				Tags:          fact.Tags,
				ScopeProfile:  &scope.Profile,
				ScopeProject:  &scope.Project,
				ScopeSession:  scope.Session,
				DocumentID:    opts.DocumentID,
				EventDate:     opts.EventDate,
				MentionedAt:   mentionedAt,
				OccurredStart: fact.OccurredStart,
				OccurredEnd:   fact.OccurredEnd,
				Metadata:      opts.Metadata,
			}
			if err := st.Memories.Create(ctx, mem); err != nil {
				return err
			}
			if err := st.Embeddings.Upsert(ctx, mem.ID, vector); err != nil {
				return err
			}
			var err error
			entities, err = upsertEntities(ctx, st, bank.ID, mem.ID, fact.Entities)
			if err != nil {
				return err
			}

			links, err = deriveLinks(ctx, st, bank.ID, mem, fact, priorApplied)
			if err != nil {
				return err
			}
		}

		decision.AppliedMemoryID = mem.ID
		return st.Decisions.Create(ctx, decision)
	})
	if err != nil {
		return nil, nil, nil, err
	}

	return mem, links, entities, nil
}

// route classifies one fact against its top semantic neighbour. The
// classification is deterministic: identical inputs over identical store
// state produce the same route.
func (s *RetainService) route(ctx context.Context, bankID uuid.UUID, fact domain.Fact, vector []float32, threshold float64) (domain.ReconRoute, *domain.MemoryUnit, float64, []string, error) {
	neighbours, err := s.embeddingStore.Search(ctx, bankID, vector, 1)
	if err != nil {
		return "", nil, 0, nil, err
	}
	if len(neighbours) == 0 {
		return domain.RouteNewTrace, nil, 0, nil, nil
	}

	candidate, err := s.memoryStore.GetByID(ctx, neighbours[0].ID, bankID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.RouteNewTrace, nil, 0, nil, nil
		}
		return "", nil, 0, nil, err
	}
	score := neighbours[0].Score

	candidateEntities, err := s.entityStore.EntitiesForMemory(ctx, candidate.ID)
	if err != nil {
		return "", nil, 0, nil, err
	}
	conflictKeys := entityConflicts(candidateEntities, fact.Entities)

	var route domain.ReconRoute
	switch {
	case score >= threshold && len(conflictKeys) == 0:
		route = domain.RouteReinforce
	case score >= threshold:
		route = domain.RouteReconsolidate
	case score >= ReconsolidateThreshold:
		route = domain.RouteReconsolidate
	case len(conflictKeys) > 0:
		route = domain.RouteReconsolidate
	default:
		route = domain.RouteNewTrace
	}
	return route, candidate, score, conflictKeys, nil
}

// entityConflicts normalises both entity sets and reports names appearing
// with a different entity type on each side.
func entityConflicts(candidate []domain.Entity, incoming []domain.ExtractedEntity) []string {
	candidateTypes := make(map[string]domain.EntityType, len(candidate))
	for _, e := range candidate {
		candidateTypes[e.CanonicalName] = e.EntityType
	}

	var keys []string
	seen := make(map[string]bool)
	for _, e := range incoming {
		canonical := domain.CanonicalEntityName(e.Name)
		existing, ok := candidateTypes[canonical]
		if !ok || seen[canonical] {
			continue
		}
		incomingType := e.EntityType
		if incomingType == "" {
			incomingType = domain.EntityTypeOther
		}
		if existing != incomingType {
			seen[canonical] = true
			keys = append(keys, canonical)
		}
	}
	sort.Strings(keys)
	return keys
}

func upsertEntities(ctx context.Context, st domain.RetainStores, bankID, memoryID uuid.UUID, extracted []domain.ExtractedEntity) ([]domain.Entity, error) {
	var entities []domain.Entity
	seen := make(map[string]bool)

	for _, ex := range extracted {
		canonical := domain.CanonicalEntityName(ex.Name)
		if canonical == "" || seen[canonical] {
			continue
		}
		seen[canonical] = true

		entity := &domain.Entity{
			BankID:        bankID,
			Name:          ex.Name,
			CanonicalName: canonical,
			EntityType:    ex.EntityType,
		}
		if err := st.Entities.Upsert(ctx, entity); err != nil {
			return nil, err
		}
		if err := st.Entities.LinkMemory(ctx, memoryID, entity.ID); err != nil {
			return nil, err
		}
		entities = append(entities, *entity)
	}
	return entities, nil
}

// deriveLinks computes entity, temporal, and causal edges for a freshly
// written memory.
func deriveLinks(ctx context.Context, st domain.RetainStores, bankID uuid.UUID, mem *domain.MemoryUnit, fact domain.Fact, priorApplied []*domain.MemoryUnit) ([]domain.MemoryLink, error) {
	var links []domain.MemoryLink

	// Entity links: one edge per memory sharing at least one entity, weight
	// proportional to co-mention count.
	shared, err := st.Entities.SharedEntityCounts(ctx, mem.ID)
	if err != nil {
		return nil, err
	}
	sharedWith := make(map[uuid.UUID]bool, len(shared))
	ownEntityCount := len(fact.Entities)
	for otherID, count := range shared {
		sharedWith[otherID] = true
		weight := 1.0
		if ownEntityCount > 0 {
			weight = float64(count) / float64(ownEntityCount)
		}
		if weight > 1 {
			weight = 1
		}
		link := domain.MemoryLink{
			BankID:   bankID,
			SourceID: mem.ID,
			TargetID: otherID,
			LinkType: domain.LinkEntity,
			Weight:   weight,
		}
		if err := st.Links.Create(ctx, &link); err != nil {
			return nil, err
		}
		links = append(links, link)
	}

	// Temporal links: recent memories sharing no entities, weighted by
	// proximity, floor 0.3, top 10.
	now := mem.MentionedAt
	recent, err := st.Memories.RecentSince(ctx, bankID, now.Add(-temporalLinkWindow), now, 100)
	if err != nil {
		return nil, err
	}

	type weighted struct {
		id     uuid.UUID
		weight float64
	}
	var temporal []weighted
	for _, other := range recent {
		if other.ID == mem.ID || sharedWith[other.ID] {
			continue
		}
		dt := now.Sub(other.MentionedAt)
		if dt < 0 {
			dt = -dt
		}
		w := 1 - dt.Seconds()/temporalLinkWindow.Seconds()
		if w < temporalLinkFloor {
			w = temporalLinkFloor
		}
		temporal = append(temporal, weighted{id: other.ID, weight: w})
	}
	sort.SliceStable(temporal, func(i, j int) bool { return temporal[i].weight > temporal[j].weight })

	existing, err := st.Links.CountBySourceAndType(ctx, mem.ID, domain.LinkTemporal)
	if err != nil {
		return nil, err
	}
	budget := maxTemporalLinks - existing
	for i, t := range temporal {
		if i >= budget || budget <= 0 {
			break
		}
		link := domain.MemoryLink{
			BankID:   bankID,
			SourceID: mem.ID,
			TargetID: t.id,
			LinkType: domain.LinkTemporal,
			Weight:   t.weight,
		}
		if err := st.Links.Create(ctx, &link); err != nil {
			return nil, err
		}
		links = append(links, link)
	}

	// Causal links: backward-looking within this retain call only.
	for _, rel := range fact.CausalRelations {
		if rel.TargetIndex < 0 || rel.TargetIndex >= len(priorApplied) {
			continue
		}
		target := priorApplied[rel.TargetIndex]
		if target == nil || target.ID == mem.ID {
			continue
		}
		weight := rel.Strength
		if weight < 0 {
			weight = 0
		}
		if weight > 1 {
			weight = 1
		}
		link := domain.MemoryLink{
			BankID:   bankID,
			SourceID: mem.ID,
			TargetID: target.ID,
			LinkType: domain.LinkCausedBy,
			Weight:   weight,
		}
		if err := st.Links.Create(ctx, &link); err != nil {
			return nil, err
		}
		links = append(links, link)
	}

	return links, nil
}

func renderInput(input domain.RetainInput) string {
	if input.Text != "" {
		return input.Text
	}
	var sb strings.Builder
	for _, turn := range input.Transcript {
		sb.WriteString(turn.Role)
		sb.WriteString(": ")
		sb.WriteString(turn.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func reconsolidateReason(score float64, conflictKeys []string) string {
	if len(conflictKeys) > 0 {
		return fmt.Sprintf("entity conflict on %s at similarity %.3f", strings.Join(conflictKeys, ", "), score)
	}
	return fmt.Sprintf("similar content at similarity %.3f", score)
}

func mergeTags(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var merged []string
	for _, t := range append(append([]string{}, a...), b...) {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		merged = append(merged, t)
	}
	return merged
}
