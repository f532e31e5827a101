package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/hindsight-ai/hindsight/internal/domain"
	"github.com/hindsight-ai/hindsight/internal/store"
)

var ErrEntityNotFound = errors.New("entity not found")

type EntityService struct {
	entityStore domain.EntityStore
}

func NewEntityService(es domain.EntityStore) *EntityService {
	return &EntityService{entityStore: es}
}

func (s *EntityService) GetByID(ctx context.Context, id, bankID uuid.UUID) (*domain.Entity, error) {
	e, err := s.entityStore.GetByID(ctx, id, bankID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEntityNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *EntityService) List(ctx context.Context, bankID uuid.UUID, limit int) ([]domain.Entity, error) {
	return s.entityStore.ListByBank(ctx, bankID, limit)
}

func (s *EntityService) Update(ctx context.Context, e *domain.Entity) error {
	if e.EntityType != "" && !domain.ValidEntityType(string(e.EntityType)) {
		return errors.New("invalid entity_type")
	}
	err := s.entityStore.Update(ctx, e)
	if errors.Is(err, store.ErrNotFound) {
		return ErrEntityNotFound
	}
	return err
}
