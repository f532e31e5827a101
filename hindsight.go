// Package hindsight is an embedded memory engine for conversational agents:
// it stores extracted facts as memory units, links them into a typed graph,
// and serves bounded-context retrieval under a token budget.
package hindsight

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hindsight-ai/hindsight/internal/config"
	"github.com/hindsight-ai/hindsight/internal/domain"
	"github.com/hindsight-ai/hindsight/internal/embedding"
	"github.com/hindsight-ai/hindsight/internal/llm"
	"github.com/hindsight-ai/hindsight/internal/rerank"
	"github.com/hindsight-ai/hindsight/internal/service"
	"github.com/hindsight-ai/hindsight/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Config is the explicit construction-time configuration. Env vars are read
// once, in ConfigFromEnv; nothing reads the environment afterwards.
type Config struct {
	DatabaseURL string

	EmbedProvider      string
	EmbedURL           string
	RerankURL          string
	TEIAPIKey          string
	EmbeddingDimension int

	LLMProvider string
	LLMAPIKey   string

	RerankBatchSize     int
	RerankMaxConcurrent int

	RetainMaxCompletionTokens int
	RetainChunkSize           int

	QueueWorkers int

	OnTrace    domain.TraceCallback
	Extensions *service.Extensions
	Logger     *zap.Logger
}

// ConfigFromEnv loads the .env files and captures every recognised env var.
func ConfigFromEnv() (Config, error) {
	if err := config.Load(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		DatabaseURL:               config.DatabaseURL(),
		EmbedProvider:             embedding.ProviderTEI,
		EmbedURL:                  config.EmbedURL(),
		RerankURL:                 config.RerankURL(),
		TEIAPIKey:                 config.TEIAPIKey(),
		EmbeddingDimension:        embedding.DefaultDimension,
		LLMProvider:               config.LLMProvider(),
		LLMAPIKey:                 config.LLMAPIKey(),
		RerankBatchSize:           config.RerankBatchSize(),
		RerankMaxConcurrent:       config.RerankMaxConcurrent(),
		RetainMaxCompletionTokens: config.RetainMaxCompletionTokens(),
		RetainChunkSize:           config.RetainChunkSize(),
	}
	return cfg, nil
}

// Hindsight is one engine instance: it owns the store handle, the model
// runtime clients, the operation queue, and the extension hooks.
type Hindsight struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	banks    *service.BankService
	memories *service.MemoryService
	entities *service.EntityService
	retainer *service.RetainService
	recaller *service.RecallService
	location *service.LocationService
	gists    *service.GistService
	queue    *service.OperationQueue

	onTrace    domain.TraceCallback
	extensions *service.Extensions
}

// New wires an engine instance. Config violations fail fast.
func New(ctx context.Context, cfg Config) (*Hindsight, error) {
	if err := config.ValidateRetainTokens(cfg.RetainMaxCompletionTokens, cfg.RetainChunkSize); err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	dimension := cfg.EmbeddingDimension
	if dimension <= 0 {
		dimension = embedding.DefaultDimension
	}

	embedClient, err := embedding.NewClient(cfg.EmbedProvider, cfg.EmbedURL, cfg.TEIAPIKey, dimension)
	if err != nil {
		pool.Close()
		return nil, err
	}

	var rerankClient domain.RerankClient
	if cfg.RerankURL != "" {
		rerankClient = rerank.NewTEIClient(cfg.RerankURL, cfg.TEIAPIKey, cfg.RerankBatchSize, cfg.RerankMaxConcurrent)
	}

	llmClient, err := llm.NewClient(cfg.LLMProvider, cfg.LLMAPIKey)
	if err != nil {
		logger.Warn("LLM client initialization failed; extraction and gisting need pre-extracted input", zap.Error(err))
		llmClient = nil
	}

	// Stores
	bankStore := store.NewBankStore(pool)
	memoryStore := store.NewMemoryStore(pool)
	versionStore := store.NewVersionStore(pool)
	decisionStore := store.NewDecisionStore(pool)
	entityStore := store.NewEntityStore(pool)
	linkStore := store.NewLinkStore(pool)
	embeddingStore := store.NewEmbeddingStore(pool, dimension)
	locationStore := store.NewLocationStore(pool)
	visualStore := store.NewVisualStore(pool)
	operationStore := store.NewOperationStore(pool)
	txRunner := store.NewTxRunner(pool, dimension)

	// Services
	locationSvc := service.NewLocationService(locationStore, logger)
	gistSvc := service.NewGistService(llmClient, logger)
	retainSvc := service.NewRetainService(bankStore, memoryStore, versionStore, decisionStore, entityStore, linkStore, embeddingStore, txRunner, embedClient, llmClient, logger)
	recallSvc := service.NewRecallService(bankStore, memoryStore, entityStore, linkStore, embeddingStore, visualStore, embedClient, rerankClient, locationSvc, logger)
	queue := service.NewOperationQueue(operationStore, cfg.QueueWorkers, logger)

	h := &Hindsight{
		pool:       pool,
		logger:     logger,
		banks:      service.NewBankService(bankStore, logger),
		memories:   service.NewMemoryService(memoryStore, entityStore, linkStore, embeddingStore, logger),
		entities:   service.NewEntityService(entityStore),
		retainer:   retainSvc,
		recaller:   recallSvc,
		location:   locationSvc,
		gists:      gistSvc,
		queue:      queue,
		onTrace:    cfg.OnTrace,
		extensions: cfg.Extensions,
	}

	queue.Register(domain.OpRetain, h.handleAsyncRetain)
	queue.Register(domain.OpConsolidation, h.handleAsyncConsolidation)
	queue.Register(domain.OpRefreshMentalModel, h.handleAsyncRefreshMentalModel)

	gistSvc.Start()
	queue.Start()

	return h, nil
}

// Close stops the background pools and releases the store handle.
func (h *Hindsight) Close() {
	h.queue.Stop()
	h.gists.Stop()
	h.pool.Close()
}

func (h *Hindsight) trace(op string, bankID uuid.UUID, startedAt time.Time, metadata map[string]any) {
	if h.onTrace == nil {
		return
	}
	h.onTrace(domain.TraceEvent{
		Operation: op,
		BankID:    bankID,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
		Metadata:  metadata,
	})
}

// Retain ingests content into a bank.
func (h *Hindsight) Retain(ctx context.Context, bankID uuid.UUID, input domain.RetainInput, opts domain.RetainOptions) (*domain.RetainResult, error) {
	started := time.Now()
	ec := service.ExtensionContext{Operation: "retain", BankID: bankID}
	if err := h.extensions.Before(ctx, ec); err != nil {
		return nil, err
	}

	result, err := h.retainer.Retain(ctx, bankID, input, opts)
	if err != nil {
		return nil, err
	}

	h.extensions.After(ctx, ec, result, h.logger)
	h.trace("retain", bankID, started, map[string]any{"memories": len(result.Memories)})
	return result, nil
}

// RetainBatch ingests multiple items; per-item failures do not fail the
// batch.
func (h *Hindsight) RetainBatch(ctx context.Context, bankID uuid.UUID, items []domain.RetainItem) ([]domain.RetainItemResult, error) {
	started := time.Now()
	ec := service.ExtensionContext{Operation: "retain_batch", BankID: bankID}
	if err := h.extensions.Before(ctx, ec); err != nil {
		return nil, err
	}

	results := h.retainer.RetainBatch(ctx, bankID, items)

	h.extensions.After(ctx, ec, results, h.logger)
	h.trace("retain_batch", bankID, started, map[string]any{"items": len(items)})
	return results, nil
}

// Recall retrieves scored memories for a query.
func (h *Hindsight) Recall(ctx context.Context, bankID uuid.UUID, query string, opts domain.RecallOptions) (*domain.RecallResult, error) {
	started := time.Now()
	ec := service.ExtensionContext{Operation: "recall", BankID: bankID}
	if err := h.extensions.Before(ctx, ec); err != nil {
		return nil, err
	}

	result, err := h.recaller.Recall(ctx, bankID, query, opts)
	if err != nil {
		return nil, err
	}

	h.extensions.After(ctx, ec, result, h.logger)
	h.trace("recall", bankID, started, map[string]any{"memories": len(result.Memories)})
	return result, nil
}

// PackContext compresses ranked candidates into a token budget.
func (h *Hindsight) PackContext(candidates []service.PackCandidate, budget int) service.PackResult {
	return service.PackContext(candidates, budget)
}

// Gist produces a packer-ready gist for content; long content gets a
// fallback immediately and the generated gist through onAsyncGist.
func (h *Hindsight) Gist(ctx context.Context, content string, onAsyncGist func(string)) string {
	return h.gists.Gist(ctx, content, onAsyncGist)
}

// RecordLocation appends a path access context and refreshes co-access
// associations.
func (h *Hindsight) RecordLocation(ctx context.Context, bankID uuid.UUID, rawPath string, memoryID uuid.UUID, scope domain.Scope, activity domain.ActivityType) error {
	return h.location.RecordAccess(ctx, bankID, rawPath, memoryID, scope, activity)
}

// Bank CRUD.

func (h *Hindsight) CreateBank(ctx context.Context, b *domain.Bank) error {
	return h.banks.Create(ctx, b)
}

func (h *Hindsight) ListBanks(ctx context.Context) ([]domain.Bank, error) {
	return h.banks.List(ctx)
}

func (h *Hindsight) GetBank(ctx context.Context, id uuid.UUID) (*domain.Bank, error) {
	return h.banks.GetByID(ctx, id)
}

func (h *Hindsight) UpdateBank(ctx context.Context, b *domain.Bank) error {
	return h.banks.Update(ctx, b)
}

func (h *Hindsight) DeleteBank(ctx context.Context, id uuid.UUID) error {
	return h.banks.Delete(ctx, id)
}

func (h *Hindsight) BankStats(ctx context.Context, id uuid.UUID) (*domain.BankStats, error) {
	return h.banks.Stats(ctx, id)
}

// Memory CRUD.

func (h *Hindsight) GetMemory(ctx context.Context, id, bankID uuid.UUID) (*domain.MemoryUnit, error) {
	return h.memories.GetByID(ctx, id, bankID)
}

func (h *Hindsight) ListMemories(ctx context.Context, bankID uuid.UUID, opts domain.MemoryListOpts) ([]domain.MemoryUnit, error) {
	return h.memories.List(ctx, bankID, opts)
}

func (h *Hindsight) DeleteMemory(ctx context.Context, id, bankID uuid.UUID) error {
	return h.memories.Delete(ctx, id, bankID)
}

// Entity CRUD.

func (h *Hindsight) GetEntity(ctx context.Context, id, bankID uuid.UUID) (*domain.Entity, error) {
	return h.entities.GetByID(ctx, id, bankID)
}

func (h *Hindsight) ListEntities(ctx context.Context, bankID uuid.UUID, limit int) ([]domain.Entity, error) {
	return h.entities.List(ctx, bankID, limit)
}

func (h *Hindsight) UpdateEntity(ctx context.Context, e *domain.Entity) error {
	return h.entities.Update(ctx, e)
}

// Async operations.

type asyncRetainPayload struct {
	Input   domain.RetainInput
	Options domain.RetainOptions
}

// SubmitAsyncRetain enqueues a retain; the boolean reports dedup against a
// pending item with the same key.
func (h *Hindsight) SubmitAsyncRetain(ctx context.Context, bankID uuid.UUID, input domain.RetainInput, opts domain.RetainOptions) (uuid.UUID, bool, error) {
	op, deduplicated, err := h.queue.Submit(ctx, bankID, domain.OpRetain, contentDedupKey(input), asyncRetainPayload{Input: input, Options: opts})
	if err != nil {
		return uuid.Nil, false, err
	}
	return op.ID, deduplicated, nil
}

func (h *Hindsight) SubmitAsyncConsolidation(ctx context.Context, bankID uuid.UUID) (uuid.UUID, bool, error) {
	op, deduplicated, err := h.queue.Submit(ctx, bankID, domain.OpConsolidation, "consolidation", nil)
	if err != nil {
		return uuid.Nil, false, err
	}
	return op.ID, deduplicated, nil
}

func (h *Hindsight) SubmitAsyncRefreshMentalModel(ctx context.Context, bankID uuid.UUID, model string) (uuid.UUID, bool, error) {
	op, deduplicated, err := h.queue.Submit(ctx, bankID, domain.OpRefreshMentalModel, model, model)
	if err != nil {
		return uuid.Nil, false, err
	}
	return op.ID, deduplicated, nil
}

func (h *Hindsight) GetOperation(ctx context.Context, id uuid.UUID) (*domain.AsyncOperation, error) {
	return h.queue.Get(ctx, id)
}

func (h *Hindsight) CancelOperation(ctx context.Context, id uuid.UUID) error {
	return h.queue.Cancel(ctx, id)
}

func (h *Hindsight) handleAsyncRetain(ctx context.Context, op *domain.AsyncOperation, payload any) error {
	p, ok := payload.(asyncRetainPayload)
	if !ok {
		return fmt.Errorf("retain operation %s has no payload", op.ID)
	}
	_, err := h.Retain(ctx, op.BankID, p.Input, p.Options)
	return err
}

// Consolidation and mental-model refresh layer above the core; the queue
// carries their lifecycle, and the handlers verify the bank still exists
// before reporting completion.
func (h *Hindsight) handleAsyncConsolidation(ctx context.Context, op *domain.AsyncOperation, _ any) error {
	_, err := h.banks.GetByID(ctx, op.BankID)
	return err
}

func (h *Hindsight) handleAsyncRefreshMentalModel(ctx context.Context, op *domain.AsyncOperation, _ any) error {
	_, err := h.banks.GetByID(ctx, op.BankID)
	return err
}

func contentDedupKey(input domain.RetainInput) string {
	if input.Text != "" {
		return input.Text[:minInt(64, len(input.Text))]
	}
	if len(input.Transcript) > 0 {
		first := input.Transcript[0].Content
		return first[:minInt(64, len(first))]
	}
	return ""
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
