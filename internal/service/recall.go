package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hindsight-ai/hindsight/internal/domain"
	"github.com/hindsight-ai/hindsight/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrRecallQueryEmpty = errors.New("query is required")

const (
	// candidateMultiplier widens per-strategy retrieval so fusion has
	// material to work with.
	candidateMultiplier = 3

	// temporalWeight and recencyWeight fold the temporal signals into the
	// combined score without displacing fusion order.
	temporalWeight = 0.05
	recencyWeight  = 0.05

	// recencyScale is the decay horizon of the recency signal.
	recencyScale = 30 * 24 * time.Hour

	defaultMaxChunkTokens = 120
)

// RecallService merges up to four retrieval strategies into a bounded,
// optionally packed candidate set.
type RecallService struct {
	bankStore       domain.BankStore
	memoryStore     domain.MemoryStore
	entityStore     domain.EntityStore
	linkStore       domain.LinkStore
	embeddingStore  domain.EmbeddingStore
	visualStore     domain.VisualStore
	embeddingClient domain.EmbeddingClient
	rerankClient    domain.RerankClient
	locationSvc     *LocationService
	temporal        *TemporalExtractor
	logger          *zap.Logger
}

func NewRecallService(
	bankStore domain.BankStore,
	memoryStore domain.MemoryStore,
	entityStore domain.EntityStore,
	linkStore domain.LinkStore,
	embeddingStore domain.EmbeddingStore,
	visualStore domain.VisualStore,
	embeddingClient domain.EmbeddingClient,
	rerankClient domain.RerankClient,
	locationSvc *LocationService,
	logger *zap.Logger,
) *RecallService {
	return &RecallService{
		bankStore:       bankStore,
		memoryStore:     memoryStore,
		entityStore:     entityStore,
		linkStore:       linkStore,
		embeddingStore:  embeddingStore,
		visualStore:     visualStore,
		embeddingClient: embeddingClient,
		rerankClient:    rerankClient,
		locationSvc:     locationSvc,
		temporal:        NewTemporalExtractor(),
		logger:          logger,
	}
}

func (s *RecallService) Recall(ctx context.Context, bankID uuid.UUID, query string, opts domain.RecallOptions) (*domain.RecallResult, error) {
	started := time.Now()

	if query == "" {
		return nil, ErrRecallQueryEmpty
	}
	if _, err := s.bankStore.GetByID(ctx, bankID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBankNotFound
		}
		return nil, err
	}
	if s.embeddingClient == nil {
		return nil, ErrNoEmbeddingClient
	}

	if opts.Limit <= 0 {
		opts.Limit = domain.DefaultRecallLimit
	}
	if len(opts.Methods) == 0 {
		opts.Methods = domain.AllMethods()
	}
	if opts.TagsMatch == "" {
		opts.TagsMatch = domain.TagsAny
	}
	if opts.ScopeMode == "" {
		opts.ScopeMode = domain.ScopeStrict
	}
	if opts.Mode == "" {
		opts.Mode = domain.ScoringHybrid
	}

	// Temporal auto-extraction feeds only the temporal strategy.
	timeRange := opts.TimeRange
	if timeRange == nil {
		timeRange = s.temporal.Extract(query, started)
	}

	queryVec, err := s.embeddingClient.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	candidateLimit := candidateMultiplier * opts.Limit

	lists, temporalScores, recencyScores, traces, err := s.runStrategies(ctx, bankID, query, queryVec, opts, timeRange, candidateLimit, started)
	if err != nil {
		return nil, err
	}

	fusionStart := time.Now()
	fused := fuseRRF(lists)
	rrfScores := make(map[uuid.UUID]float64, len(fused))
	for _, c := range fused {
		rrfScores[c.id] = c.rrfScore
	}
	rrfNormalized := minMaxNormalize(rrfScores)
	fusionDur := time.Since(fusionStart)

	// Hydrate every survivor up front; rerank and post-filtering both need
	// the rows.
	ids := make([]uuid.UUID, len(fused))
	for i, c := range fused {
		ids[i] = c.id
	}
	rows, err := s.memoryStore.GetMany(ctx, bankID, ids)
	if err != nil {
		return nil, err
	}

	rerankStart := time.Now()
	ceScores, err := s.rerank(ctx, query, fused, rows)
	if err != nil {
		return nil, err
	}
	rerankDur := time.Since(rerankStart)

	ordered := orderCandidates(fused, ceScores)

	scope := domain.ResolveScope(opts.Scope, nil)
	queryPaths := s.resolveQueryPaths(ctx, bankID, query, scope)
	queryEntities := queryEntitySet(query, opts.Entities)

	budget := opts.TokenBudget
	if budget <= 0 {
		budget = opts.MaxTokens
	}

	filterStart := time.Now()
	var selected []domain.ScoredMemory
	tokensUsed := 0

	for _, c := range ordered {
		mem, ok := rows[c.id]
		if !ok {
			continue
		}
		if !domain.ScopeMatches(mem.ScopeProfile, mem.ScopeProject, scope, opts.ScopeMode) {
			continue
		}
		if opts.MinConfidence > 0 && mem.Confidence < opts.MinConfidence {
			continue
		}
		if len(opts.FactTypes) > 0 && !containsFactType(opts.FactTypes, mem.FactType) {
			continue
		}
		if !matchTags(mem.Tags, opts.Tags, opts.TagsMatch) {
			continue
		}

		memEntities, err := s.entityStore.EntitiesForMemory(ctx, mem.ID)
		if err != nil {
			return nil, err
		}
		if len(opts.Entities) > 0 && !matchEntities(memEntities, opts.Entities) {
			continue
		}

		sm := domain.ScoredMemory{
			MemoryUnit:    *mem,
			Sources:       c.sources,
			RRFScore:      c.rrfScore,
			RRFNormalized: rrfNormalized[c.id],
			Temporal:      temporalScores[c.id],
			Recency:       recencyScores[c.id],
		}

		base := sm.RRFNormalized
		if ce, ok := ceScores[c.id]; ok {
			sm.CrossEncoderScoreNormalized = &ce
			base = ce
		}

		if s.locationSvc != nil && len(queryPaths) > 0 {
			boost, err := s.locationSvc.Boost(ctx, bankID, mem.ID, queryPaths, started)
			if err != nil {
				return nil, err
			}
			sm.LocationBoost = boost
		}

		sm.Combined = base + temporalWeight*sm.Temporal + recencyWeight*sm.Recency
		if sm.LocationBoost != nil {
			sm.Combined += sm.LocationBoost.Total()
		}

		if opts.Mode == domain.ScoringCognitive {
			sm.ProbeActivation = probeActivation(queryEntities, memEntities)
			sm.BaseLevelActivation = baseLevelActivation(mem, started)
			sm.WMBoost = wmBoost(mem, started)
			sm.Combined += sm.ProbeActivation + sm.WMBoost + 0.1*math.Tanh(sm.BaseLevelActivation)
		}
		sm.Score = sm.Combined

		if budget > 0 {
			t := EstimateTokens(mem.Content)
			if tokensUsed+t > budget {
				break
			}
			tokensUsed += t
		}

		selected = append(selected, sm)
	}
	filterDur := time.Since(filterStart)

	// Location and cognitive boosts can promote a candidate past the raw
	// CE/RRF cutoff, so membership in the top-N is decided by the boosted
	// score: sort everything that survived filtering, then truncate.
	sort.SliceStable(selected, func(i, j int) bool {
		if selected[i].Combined != selected[j].Combined {
			return selected[i].Combined > selected[j].Combined
		}
		return selected[i].ID.String() < selected[j].ID.String()
	})
	if len(selected) > opts.Limit {
		selected = selected[:opts.Limit]
	}

	result := &domain.RecallResult{Memories: selected, Query: query}

	if opts.IncludeEntities {
		result.Entities = s.entityStates(ctx, selected)
	}
	if opts.IncludeChunks {
		result.Chunks = buildChunks(selected, opts.MaxChunkTokens)
	}
	if opts.IncludeVisual {
		visuals, err := s.spliceVisual(ctx, bankID, queryVec, opts)
		if err != nil {
			s.logger.Warn("visual retrieval failed", zap.Error(err))
		} else {
			result.VisualMemories = visuals
		}
	}

	// Access bookkeeping is an append-only side effect; it never blocks the
	// response.
	for _, sm := range selected {
		go func(id uuid.UUID) {
			if err := s.memoryStore.RecordAccess(context.Background(), id); err != nil {
				s.logger.Debug("failed to record memory access", zap.String("memory_id", id.String()), zap.Error(err))
			}
		}(sm.ID)
	}

	if opts.EnableTrace {
		selectedIDs := make([]uuid.UUID, len(selected))
		for i, sm := range selected {
			selectedIDs[i] = sm.ID
		}
		result.Trace = &domain.RecallTrace{
			Strategies: traces,
			Phases: []domain.PhaseMetric{
				{Name: "fusion", Duration: fusionDur},
				{Name: "rerank", Duration: rerankDur},
				{Name: "filter", Duration: filterDur},
			},
			Candidates:    selected,
			SelectedIDs:   selectedIDs,
			TotalDuration: time.Since(started),
		}
	}

	return result, nil
}

// runStrategies dispatches the enabled strategies. Semantic, fulltext, and
// temporal fan out concurrently; graph expands afterwards from the semantic
// seeds (or the temporal hits when a time range was given).
func (s *RecallService) runStrategies(
	ctx context.Context,
	bankID uuid.UUID,
	query string,
	queryVec []float32,
	opts domain.RecallOptions,
	timeRange *domain.TimeRange,
	candidateLimit int,
	now time.Time,
) ([]rankedList, map[uuid.UUID]float64, map[uuid.UUID]float64, []domain.StrategyTrace, error) {
	enabled := make(map[domain.Method]bool, len(opts.Methods))
	for _, m := range opts.Methods {
		enabled[m] = true
	}

	var (
		semanticHits []domain.ScoredID
		fulltextHits []domain.ScoredID
		temporalHits []domain.MemoryUnit

		semanticDur, fulltextDur, temporalDur time.Duration
	)

	g, gctx := errgroup.WithContext(ctx)

	if enabled[domain.MethodSemantic] || enabled[domain.MethodGraph] {
		g.Go(func() error {
			t := time.Now()
			hits, err := s.embeddingStore.Search(gctx, bankID, queryVec, candidateLimit)
			if err != nil {
				return err
			}
			semanticHits = hits
			semanticDur = time.Since(t)
			return nil
		})
	}
	if enabled[domain.MethodFulltext] {
		g.Go(func() error {
			t := time.Now()
			hits, err := s.memoryStore.Fulltext(gctx, bankID, query, opts.Tags, candidateLimit)
			if err != nil {
				return err
			}
			fulltextHits = hits
			fulltextDur = time.Since(t)
			return nil
		})
	}
	if enabled[domain.MethodTemporal] && timeRange != nil && timeRange.From != nil && timeRange.To != nil {
		g.Go(func() error {
			t := time.Now()
			hits, err := s.memoryStore.ByTimeRange(gctx, bankID, *timeRange.From, *timeRange.To, candidateLimit)
			if err != nil {
				return err
			}
			temporalHits = hits
			temporalDur = time.Since(t)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, nil, err
	}

	temporalScores := make(map[uuid.UUID]float64)
	recencyScores := make(map[uuid.UUID]float64)

	var lists []rankedList
	var traces []domain.StrategyTrace

	if enabled[domain.MethodSemantic] {
		ids := make([]uuid.UUID, len(semanticHits))
		for i, h := range semanticHits {
			ids[i] = h.ID
		}
		lists = append(lists, rankedList{method: domain.MethodSemantic, ids: ids})
		traces = append(traces, domain.StrategyTrace{Method: domain.MethodSemantic, Duration: semanticDur, Ranked: ids})
	}
	if enabled[domain.MethodFulltext] {
		ids := make([]uuid.UUID, len(fulltextHits))
		for i, h := range fulltextHits {
			ids[i] = h.ID
		}
		lists = append(lists, rankedList{method: domain.MethodFulltext, ids: ids})
		traces = append(traces, domain.StrategyTrace{Method: domain.MethodFulltext, Duration: fulltextDur, Ranked: ids})
	}
	if enabled[domain.MethodTemporal] && len(temporalHits) > 0 {
		ids := make([]uuid.UUID, len(temporalHits))
		for i, m := range temporalHits {
			ids[i] = m.ID
			// Rank position doubles as the temporal score; recency decays
			// from mentioned_at age.
			temporalScores[m.ID] = 1 - float64(i)/float64(len(temporalHits))
			age := now.Sub(m.MentionedAt)
			if age < 0 {
				age = 0
			}
			recencyScores[m.ID] = math.Exp(-age.Seconds() / recencyScale.Seconds())
		}
		lists = append(lists, rankedList{method: domain.MethodTemporal, ids: ids})
		traces = append(traces, domain.StrategyTrace{Method: domain.MethodTemporal, Duration: temporalDur, Ranked: ids})
	}

	if enabled[domain.MethodGraph] {
		t := time.Now()

		seeds := semanticHits
		if len(temporalHits) > 0 {
			seeds = make([]domain.ScoredID, len(temporalHits))
			for i, m := range temporalHits {
				seeds[i] = domain.ScoredID{ID: m.ID, Score: temporalScores[m.ID]}
			}
		}

		expander := newGraphExpander(s.linkStore, nil)
		scores, err := expander.expand(ctx, seeds)
		if err != nil {
			return nil, nil, nil, nil, err
		}

		type scored struct {
			id    uuid.UUID
			score float64
		}
		ranked := make([]scored, 0, len(scores))
		for id, sc := range scores {
			ranked = append(ranked, scored{id: id, score: sc})
		}
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].score != ranked[j].score {
				return ranked[i].score > ranked[j].score
			}
			return ranked[i].id.String() < ranked[j].id.String()
		})
		if len(ranked) > candidateLimit {
			ranked = ranked[:candidateLimit]
		}

		ids := make([]uuid.UUID, len(ranked))
		for i, r := range ranked {
			ids[i] = r.id
		}
		lists = append(lists, rankedList{method: domain.MethodGraph, ids: ids})
		traces = append(traces, domain.StrategyTrace{Method: domain.MethodGraph, Duration: time.Since(t), Ranked: ids})
	}

	return lists, temporalScores, recencyScores, traces, nil
}

// rerank scores RRF survivors with the cross-encoder when one is
// configured. Candidates whose content is gone are dropped by the caller;
// a rerank failure fails the recall.
func (s *RecallService) rerank(ctx context.Context, query string, fused []fusedCandidate, rows map[uuid.UUID]*domain.MemoryUnit) (map[uuid.UUID]float64, error) {
	if s.rerankClient == nil || len(fused) == 0 {
		return nil, nil
	}

	var ids []uuid.UUID
	var docs []string
	for _, c := range fused {
		mem, ok := rows[c.id]
		if !ok {
			continue
		}
		ids = append(ids, c.id)
		docs = append(docs, mem.Content)
	}
	if len(docs) == 0 {
		return map[uuid.UUID]float64{}, nil
	}

	logits, err := s.rerankClient.Rerank(ctx, query, docs)
	if err != nil {
		return nil, err
	}

	scores := make(map[uuid.UUID]float64, len(ids))
	for i, id := range ids {
		scores[id] = sigmoid(logits[i])
	}
	return scores, nil
}

// orderCandidates applies the cross-encoder ordering when present, falling
// back to the RRF order. Candidates missing from the rerank scores (deleted
// memories) are dropped when a reranker ran.
func orderCandidates(fused []fusedCandidate, ceScores map[uuid.UUID]float64) []fusedCandidate {
	if ceScores == nil {
		return fused
	}
	ordered := make([]fusedCandidate, 0, len(fused))
	for _, c := range fused {
		if _, ok := ceScores[c.id]; ok {
			ordered = append(ordered, c)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		si, sj := ceScores[ordered[i].id], ceScores[ordered[j].id]
		if si != sj {
			return si > sj
		}
		return ordered[i].id.String() < ordered[j].id.String()
	})
	return ordered
}

func (s *RecallService) resolveQueryPaths(ctx context.Context, bankID uuid.UUID, query string, scope domain.Scope) []uuid.UUID {
	if s.locationSvc == nil {
		return nil
	}
	signals := DetectLocationSignals(query)
	if len(signals) == 0 {
		return nil
	}
	resolved, err := s.locationSvc.ResolveSignalsToPaths(ctx, bankID, signals, scope)
	if err != nil {
		s.logger.Warn("location signal resolution failed", zap.Error(err))
		return nil
	}
	var paths []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for _, ids := range resolved {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				paths = append(paths, id)
			}
		}
	}
	return paths
}

func (s *RecallService) entityStates(ctx context.Context, selected []domain.ScoredMemory) map[string]domain.EntityState {
	states := make(map[string]domain.EntityState)
	for _, sm := range selected {
		entities, err := s.entityStore.EntitiesForMemory(ctx, sm.ID)
		if err != nil {
			s.logger.Debug("entity hydration failed", zap.String("memory_id", sm.ID.String()), zap.Error(err))
			continue
		}
		for _, e := range entities {
			key := e.ID.String()
			state, ok := states[key]
			if !ok {
				state = domain.EntityState{Entity: e}
			}
			state.MemoryIDs = append(state.MemoryIDs, sm.ID.String())
			states[key] = state
		}
	}
	return states
}

func (s *RecallService) spliceVisual(ctx context.Context, bankID uuid.UUID, queryVec []float32, opts domain.RecallOptions) ([]domain.VisualMemory, error) {
	share := opts.VisualMaxShare
	if share <= 0 || share > domain.VisualShareCap {
		share = domain.VisualShareCap
	}
	maxVisual := int(float64(opts.Limit) * share)
	if maxVisual == 0 {
		return nil, nil
	}

	visuals, err := s.visualStore.Search(ctx, bankID, queryVec, maxVisual)
	if err != nil {
		return nil, err
	}

	for _, v := range visuals {
		access := &domain.VisualAccess{BankID: bankID, VisualID: v.ID}
		if err := s.visualStore.RecordAccess(ctx, access); err != nil {
			s.logger.Debug("failed to record visual access", zap.String("visual_id", v.ID.String()), zap.Error(err))
		}
	}
	return visuals, nil
}

// matchTags applies the four tag filter modes. Untagged memories pass the
// non-strict modes.
func matchTags(memTags, filter []string, mode domain.TagsMatch) bool {
	if len(filter) == 0 {
		return true
	}
	tagged := len(memTags) > 0
	memSet := make(map[string]bool, len(memTags))
	for _, t := range memTags {
		memSet[t] = true
	}

	intersects := false
	subset := true
	for _, t := range filter {
		if memSet[t] {
			intersects = true
		} else {
			subset = false
		}
	}

	switch mode {
	case domain.TagsAll:
		return !tagged || subset
	case domain.TagsAnyStrict:
		return tagged && intersects
	case domain.TagsAllStrict:
		return tagged && subset
	default: // TagsAny
		return !tagged || intersects
	}
}

func matchEntities(memEntities []domain.Entity, filter []string) bool {
	for _, f := range filter {
		lf := strings.ToLower(strings.TrimSpace(f))
		for _, e := range memEntities {
			if strings.ToLower(e.Name) == lf || e.CanonicalName == lf {
				return true
			}
		}
	}
	return false
}

func containsFactType(types []domain.FactType, t domain.FactType) bool {
	for _, ft := range types {
		if ft == t {
			return true
		}
	}
	return false
}

func queryEntitySet(query string, explicit []string) map[string]bool {
	set := make(map[string]bool)
	for _, e := range explicit {
		set[domain.CanonicalEntityName(e)] = true
	}
	for _, word := range strings.Fields(query) {
		set[domain.CanonicalEntityName(word)] = true
	}
	return set
}

func buildChunks(selected []domain.ScoredMemory, maxChunkTokens int) []domain.Chunk {
	if maxChunkTokens <= 0 {
		maxChunkTokens = defaultMaxChunkTokens
	}
	maxChars := maxChunkTokens * 4

	var chunks []domain.Chunk
	for _, sm := range selected {
		content := sm.Content
		for len(content) > 0 {
			end := minInt(len(content), maxChars)
			piece := content[:end]
			chunks = append(chunks, domain.Chunk{
				MemoryID: sm.ID.String(),
				Content:  piece,
				Tokens:   EstimateTokens(piece),
			})
			content = content[end:]
		}
	}
	return chunks
}
