package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/hindsight-ai/hindsight/internal/domain"
	"github.com/hindsight-ai/hindsight/internal/store"
	"go.uber.org/zap"
)

var ErrMemoryNotFound = errors.New("memory not found")

// MemoryService is the read/delete surface over memory units. Writes go
// through the retain pipeline.
type MemoryService struct {
	memoryStore    domain.MemoryStore
	entityStore    domain.EntityStore
	linkStore      domain.LinkStore
	embeddingStore domain.EmbeddingStore
	logger         *zap.Logger
}

func NewMemoryService(ms domain.MemoryStore, es domain.EntityStore, ls domain.LinkStore, embs domain.EmbeddingStore, logger *zap.Logger) *MemoryService {
	return &MemoryService{
		memoryStore:    ms,
		entityStore:    es,
		linkStore:      ls,
		embeddingStore: embs,
		logger:         logger,
	}
}

func (s *MemoryService) GetByID(ctx context.Context, id, bankID uuid.UUID) (*domain.MemoryUnit, error) {
	m, err := s.memoryStore.GetByID(ctx, id, bankID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMemoryNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *MemoryService) List(ctx context.Context, bankID uuid.UUID, opts domain.MemoryListOpts) ([]domain.MemoryUnit, error) {
	return s.memoryStore.ListByBank(ctx, bankID, opts)
}

// Delete removes the memory and its dependents: embedding row, links, and
// junction rows go with it.
func (s *MemoryService) Delete(ctx context.Context, id, bankID uuid.UUID) error {
	if err := s.embeddingStore.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.linkStore.DeleteForMemory(ctx, id); err != nil {
		return err
	}
	if err := s.entityStore.UnlinkMemory(ctx, id); err != nil {
		return err
	}
	err := s.memoryStore.Delete(ctx, id, bankID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrMemoryNotFound
	}
	return err
}
