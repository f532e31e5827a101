package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hindsight-ai/hindsight/internal/domain"
	"github.com/hindsight-ai/hindsight/internal/embedding"
	"github.com/hindsight-ai/hindsight/internal/llm"
	"go.uber.org/zap"
)

type retainFixture struct {
	svc       *RetainService
	banks     *mockBankStore
	memories  *mockMemoryStore
	versions  *mockVersionStore
	decisions *mockDecisionStore
	entities  *mockEntityStore
	links     *mockLinkStore
	vectors   *mockEmbeddingStore
	tx        *mockTxRunner
	llm       *llm.MockClient
	bank      *domain.Bank
}

func newRetainFixture(t *testing.T) *retainFixture {
	t.Helper()

	banks := newMockBankStore()
	memories := newMockMemoryStore()
	versions := newMockVersionStore()
	decisions := newMockDecisionStore()
	entities := newMockEntityStore()
	links := newMockLinkStore()
	vectors := newMockEmbeddingStore(embedding.DefaultDimension, memories)
	llmClient := llm.NewMockClient()

	bank := &domain.Bank{Name: "test"}
	if err := banks.Create(context.Background(), bank); err != nil {
		t.Fatalf("create bank: %v", err)
	}

	txRunner := &mockTxRunner{stores: domain.RetainStores{
		Memories:   memories,
		Versions:   versions,
		Decisions:  decisions,
		Entities:   entities,
		Links:      links,
		Embeddings: vectors,
	}}

	svc := NewRetainService(
		banks, memories, versions, decisions, entities, links, vectors, txRunner,
		embedding.NewMockClient(embedding.DefaultDimension), llmClient, zap.NewNop(),
	)
	return &retainFixture{
		svc: svc, banks: banks, memories: memories, versions: versions,
		decisions: decisions, entities: entities, links: links, vectors: vectors,
		tx: txRunner, llm: llmClient, bank: bank,
	}
}

func TestRetainReinforceOnDuplicate(t *testing.T) {
	f := newRetainFixture(t)
	ctx := context.Background()

	fact := domain.Fact{Content: "Alice works at Acme Corp", FactType: domain.FactTypeWorld}

	first, err := f.svc.Retain(ctx, f.bank.ID, domain.RetainInput{}, domain.RetainOptions{Facts: []domain.Fact{fact}})
	if err != nil {
		t.Fatalf("first retain: %v", err)
	}
	if len(first.Memories) != 1 {
		t.Fatalf("expected 1 memory, got %d", len(first.Memories))
	}
	strengthBefore := first.Memories[0].EncodingStrength

	second, err := f.svc.Retain(ctx, f.bank.ID, domain.RetainInput{}, domain.RetainOptions{Facts: []domain.Fact{fact}})
	if err != nil {
		t.Fatalf("second retain: %v", err)
	}

	count, _ := f.memories.CountByBank(ctx, f.bank.ID)
	if count != 1 {
		t.Errorf("expected 1 memory unit after duplicate retain, got %d", count)
	}
	if len(f.versions.versions) != 0 {
		t.Errorf("reinforce must not write memory versions, got %d", len(f.versions.versions))
	}
	if len(f.decisions.decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(f.decisions.decisions))
	}
	if f.decisions.decisions[0].Route != domain.RouteNewTrace {
		t.Errorf("first route = %s, want new_trace", f.decisions.decisions[0].Route)
	}
	if f.decisions.decisions[1].Route != domain.RouteReinforce {
		t.Errorf("second route = %s, want reinforce", f.decisions.decisions[1].Route)
	}
	for _, d := range f.decisions.decisions {
		if d.PolicyVersion != "v1" {
			t.Errorf("policy version = %q, want v1", d.PolicyVersion)
		}
		if _, err := f.memories.GetByID(ctx, d.AppliedMemoryID, f.bank.ID); err != nil {
			t.Errorf("applied memory %s does not exist", d.AppliedMemoryID)
		}
	}

	mem := second.Memories[0]
	if mem.AccessCount < 2 {
		t.Errorf("access count = %d, want >= 2", mem.AccessCount)
	}
	if mem.EncodingStrength <= strengthBefore {
		t.Errorf("encoding strength did not increase: %f -> %f", strengthBefore, mem.EncodingStrength)
	}
}

func TestRetainNewTraceOnDissimilarContent(t *testing.T) {
	f := newRetainFixture(t)
	ctx := context.Background()

	_, err := f.svc.Retain(ctx, f.bank.ID, domain.RetainInput{}, domain.RetainOptions{
		Facts: []domain.Fact{{Content: "Alice works at Acme Corp", FactType: domain.FactTypeWorld}},
	})
	if err != nil {
		t.Fatalf("first retain: %v", err)
	}

	_, err = f.svc.Retain(ctx, f.bank.ID, domain.RetainInput{}, domain.RetainOptions{
		Facts: []domain.Fact{{Content: "xyz 123 !@# totally different", FactType: domain.FactTypeExperience}},
	})
	if err != nil {
		t.Fatalf("second retain: %v", err)
	}

	count, _ := f.memories.CountByBank(ctx, f.bank.ID)
	if count != 2 {
		t.Errorf("expected 2 memory units, got %d", count)
	}
	last := f.decisions.decisions[len(f.decisions.decisions)-1]
	if last.Route != domain.RouteNewTrace {
		t.Errorf("latest route = %s, want new_trace", last.Route)
	}
}

func TestRetainCausalChain(t *testing.T) {
	f := newRetainFixture(t)
	ctx := context.Background()

	result, err := f.svc.Retain(ctx, f.bank.ID, domain.RetainInput{}, domain.RetainOptions{
		Facts: []domain.Fact{
			{Content: "It started raining"},
			{Content: "The trail became muddy", CausalRelations: []domain.CausalRelation{
				{TargetIndex: 0, RelationType: "caused_by", Strength: 0.8},
			}},
		},
	})
	if err != nil {
		t.Fatalf("retain: %v", err)
	}
	if len(result.Memories) != 2 {
		t.Fatalf("expected 2 memories, got %d", len(result.Memories))
	}

	var causal []domain.MemoryLink
	for _, l := range f.links.links {
		if l.LinkType == domain.LinkCausedBy {
			causal = append(causal, l)
		}
	}
	if len(causal) != 1 {
		t.Fatalf("expected exactly 1 caused_by link, got %d", len(causal))
	}
	if causal[0].SourceID != result.Memories[1].ID {
		t.Errorf("causal source = %s, want %s", causal[0].SourceID, result.Memories[1].ID)
	}
	if causal[0].TargetID != result.Memories[0].ID {
		t.Errorf("causal target = %s, want %s", causal[0].TargetID, result.Memories[0].ID)
	}
	if causal[0].Weight != 0.8 {
		t.Errorf("causal weight = %f, want 0.8", causal[0].Weight)
	}

	gap := result.Memories[1].MentionedAt.Sub(result.Memories[0].MentionedAt)
	if gap != time.Millisecond {
		t.Errorf("mentionedAt gap = %v, want 1ms", gap)
	}
	if !result.Memories[1].MentionedAt.After(result.Memories[0].MentionedAt) {
		t.Errorf("causal source must be mentioned after its target")
	}
}

func TestRetainDropsInvalidCausalRelations(t *testing.T) {
	f := newRetainFixture(t)
	ctx := context.Background()

	result, err := f.svc.Retain(ctx, f.bank.ID, domain.RetainInput{}, domain.RetainOptions{
		Facts: []domain.Fact{
			{Content: "first fact", CausalRelations: []domain.CausalRelation{
				{TargetIndex: 0, RelationType: "caused_by", Strength: 0.5}, // self-reference
				{TargetIndex: 3, RelationType: "caused_by", Strength: 0.5}, // forward-looking
			}},
			{Content: "second fact", CausalRelations: []domain.CausalRelation{
				{TargetIndex: -1, RelationType: "caused_by", Strength: 0.5}, // out of bounds
			}},
		},
	})
	if err != nil {
		t.Fatalf("retain must not fail on invalid causal relations: %v", err)
	}
	if len(result.Memories) != 2 {
		t.Fatalf("expected both facts retained, got %d", len(result.Memories))
	}
	for _, l := range f.links.links {
		if l.LinkType == domain.LinkCausedBy {
			t.Errorf("no causal link should survive, found %s -> %s", l.SourceID, l.TargetID)
		}
	}
}

func TestRetainReconsolidateOnEntityConflict(t *testing.T) {
	f := newRetainFixture(t)
	ctx := context.Background()

	_, err := f.svc.Retain(ctx, f.bank.ID, domain.RetainInput{}, domain.RetainOptions{
		Facts: []domain.Fact{{
			Content:  "Phoenix shipped the release",
			Entities: []domain.ExtractedEntity{{Name: "Phoenix", EntityType: domain.EntityTypeOrganization}},
		}},
	})
	if err != nil {
		t.Fatalf("first retain: %v", err)
	}

	// Identical content, same entity with a different type: score clears the
	// dedup threshold but the conflict routes to reconsolidate.
	_, err = f.svc.Retain(ctx, f.bank.ID, domain.RetainInput{}, domain.RetainOptions{
		Facts: []domain.Fact{{
			Content:  "Phoenix shipped the release",
			Entities: []domain.ExtractedEntity{{Name: "Phoenix", EntityType: domain.EntityTypePlace}},
		}},
	})
	if err != nil {
		t.Fatalf("second retain: %v", err)
	}

	count, _ := f.memories.CountByBank(ctx, f.bank.ID)
	if count != 1 {
		t.Errorf("reconsolidate must not create a new memory, got %d", count)
	}
	if len(f.versions.versions) != 1 {
		t.Fatalf("expected exactly 1 memory version, got %d", len(f.versions.versions))
	}

	last := f.decisions.decisions[len(f.decisions.decisions)-1]
	if last.Route != domain.RouteReconsolidate {
		t.Errorf("route = %s, want reconsolidate", last.Route)
	}
	if !last.ConflictDetected {
		t.Error("conflict not flagged on decision row")
	}
	if len(last.ConflictKeys) != 1 || last.ConflictKeys[0] != "phoenix" {
		t.Errorf("conflict keys = %v, want [phoenix]", last.ConflictKeys)
	}
}

func TestRetainOneTransactionPerFact(t *testing.T) {
	f := newRetainFixture(t)

	_, err := f.svc.Retain(context.Background(), f.bank.ID, domain.RetainInput{}, domain.RetainOptions{
		Facts: []domain.Fact{{Content: "first tx fact"}, {Content: "second tx fact"}},
	})
	if err != nil {
		t.Fatalf("retain: %v", err)
	}
	if f.tx.calls != 2 {
		t.Errorf("expected one transaction per fact, got %d for 2 facts", f.tx.calls)
	}
}

func TestRetainTransactionFailureFailsTheCall(t *testing.T) {
	f := newRetainFixture(t)
	f.tx.err = errors.New("serialization failure")

	_, err := f.svc.Retain(context.Background(), f.bank.ID, domain.RetainInput{}, domain.RetainOptions{
		Facts: []domain.Fact{{Content: "doomed fact"}},
	})
	if err == nil {
		t.Fatal("expected the store failure to surface")
	}

	// Nothing was applied: no memory rows, no decision rows.
	count, _ := f.memories.CountByBank(context.Background(), f.bank.ID)
	if count != 0 {
		t.Errorf("memory rows written despite failed transaction: %d", count)
	}
	if len(f.decisions.decisions) != 0 {
		t.Errorf("decision rows written despite failed transaction: %d", len(f.decisions.decisions))
	}
}

func TestRetainEmptyContentFails(t *testing.T) {
	f := newRetainFixture(t)

	_, err := f.svc.Retain(context.Background(), f.bank.ID, domain.RetainInput{}, domain.RetainOptions{})
	if err != ErrEmptyContent {
		t.Errorf("expected ErrEmptyContent, got %v", err)
	}
}

func TestRetainBatchCapturesPerItemErrors(t *testing.T) {
	f := newRetainFixture(t)

	results := f.svc.RetainBatch(context.Background(), f.bank.ID, []domain.RetainItem{
		{Options: domain.RetainOptions{Facts: []domain.Fact{{Content: "good fact"}}}},
		{}, // empty: fails
		{Options: domain.RetainOptions{Facts: []domain.Fact{{Content: "another good fact"}}}},
	})

	if results[0].Err != "" || results[0].Result == nil {
		t.Errorf("item 0 should succeed: %+v", results[0])
	}
	if results[1].Err == "" {
		t.Error("item 1 should carry an error")
	}
	if results[2].Err != "" || results[2].Result == nil {
		t.Errorf("item 2 should succeed despite item 1 failing: %+v", results[2])
	}
}

func TestRetainBatchMentionedAtDoesNotOverlap(t *testing.T) {
	f := newRetainFixture(t)

	results := f.svc.RetainBatch(context.Background(), f.bank.ID, []domain.RetainItem{
		{Options: domain.RetainOptions{Facts: []domain.Fact{{Content: "doc one fact one"}, {Content: "doc one fact two"}}}},
		{Options: domain.RetainOptions{Facts: []domain.Fact{{Content: "doc two fact one"}}}},
	})

	var stamps []time.Time
	for _, r := range results {
		if r.Result == nil {
			t.Fatalf("batch item failed: %s", r.Err)
		}
		for _, m := range r.Result.Memories {
			stamps = append(stamps, m.MentionedAt)
		}
	}
	for i := 1; i < len(stamps); i++ {
		if !stamps[i].After(stamps[i-1]) {
			t.Errorf("mentionedAt not strictly increasing at %d: %v then %v", i, stamps[i-1], stamps[i])
		}
	}
}

func TestRetainTemporalLinks(t *testing.T) {
	f := newRetainFixture(t)
	ctx := context.Background()

	// Two facts with no shared entities in one window.
	_, err := f.svc.Retain(ctx, f.bank.ID, domain.RetainInput{}, domain.RetainOptions{
		Facts: []domain.Fact{{Content: "went for a run this morning"}},
	})
	if err != nil {
		t.Fatalf("first retain: %v", err)
	}
	_, err = f.svc.Retain(ctx, f.bank.ID, domain.RetainInput{}, domain.RetainOptions{
		Facts: []domain.Fact{{Content: "completely unrelated topic entirely"}},
	})
	if err != nil {
		t.Fatalf("second retain: %v", err)
	}

	var temporal []domain.MemoryLink
	for _, l := range f.links.links {
		if l.LinkType == domain.LinkTemporal {
			temporal = append(temporal, l)
		}
	}
	if len(temporal) == 0 {
		t.Fatal("expected a temporal link between close-in-time memories")
	}
	for _, l := range temporal {
		if l.Weight < 0.3 {
			t.Errorf("temporal link weight %f below floor 0.3", l.Weight)
		}
		if l.SourceID == l.TargetID {
			t.Error("self-referencing temporal link")
		}
	}
}

func TestRetainEntityUpsertIncrementsMentions(t *testing.T) {
	f := newRetainFixture(t)
	ctx := context.Background()

	opts := func(content string) domain.RetainOptions {
		return domain.RetainOptions{Facts: []domain.Fact{{
			Content:  content,
			Entities: []domain.ExtractedEntity{{Name: "Alice", EntityType: domain.EntityTypePerson}},
		}}}
	}

	if _, err := f.svc.Retain(ctx, f.bank.ID, domain.RetainInput{}, opts("Alice likes hiking in the mountains")); err != nil {
		t.Fatalf("retain: %v", err)
	}
	if _, err := f.svc.Retain(ctx, f.bank.ID, domain.RetainInput{}, opts("completely different second statement here")); err != nil {
		t.Fatalf("retain: %v", err)
	}

	e, err := f.entities.GetByCanonical(ctx, f.bank.ID, "alice")
	if err != nil {
		t.Fatalf("entity not found: %v", err)
	}
	if e.MentionCount != 2 {
		t.Errorf("mention count = %d, want 2", e.MentionCount)
	}

	// Uniqueness: "ALICE " normalises to the same canonical row.
	if _, err := f.svc.Retain(ctx, f.bank.ID, domain.RetainInput{}, domain.RetainOptions{Facts: []domain.Fact{{
		Content:  "a third statement about someone",
		Entities: []domain.ExtractedEntity{{Name: "  ALICE ", EntityType: domain.EntityTypePerson}},
	}}}); err != nil {
		t.Fatalf("retain: %v", err)
	}
	all, _ := f.entities.ListByBank(ctx, f.bank.ID, 0)
	aliceRows := 0
	for _, e := range all {
		if e.CanonicalName == "alice" {
			aliceRows++
		}
	}
	if aliceRows != 1 {
		t.Errorf("expected a single canonical alice row, got %d", aliceRows)
	}
}

func TestRetainScopePersisted(t *testing.T) {
	f := newRetainFixture(t)
	session := "sess-1"

	result, err := f.svc.Retain(context.Background(), f.bank.ID, domain.RetainInput{}, domain.RetainOptions{
		Facts: []domain.Fact{{Content: "scoped fact"}},
		Scope: &domain.ScopeInput{Profile: "alice", Project: "atlas", Session: &session},
	})
	if err != nil {
		t.Fatalf("retain: %v", err)
	}

	m := result.Memories[0]
	if m.ScopeProfile == nil || *m.ScopeProfile != "alice" {
		t.Errorf("scope profile = %v, want alice", m.ScopeProfile)
	}
	if m.ScopeProject == nil || *m.ScopeProject != "atlas" {
		t.Errorf("scope project = %v, want atlas", m.ScopeProject)
	}
	if m.ScopeSession == nil || *m.ScopeSession != "sess-1" {
		t.Errorf("scope session = %v, want sess-1", m.ScopeSession)
	}
}
