package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/hindsight-ai/hindsight/internal/domain"
	"github.com/hindsight-ai/hindsight/internal/store"
	"go.uber.org/zap"
)

var (
	ErrBankNameEmpty       = errors.New("bank name is required")
	ErrInvalidDedup        = errors.New("dedup_threshold must be in [0,1]")
	ErrInvalidMode         = errors.New("invalid extraction_mode")
	ErrInvalidBudget       = errors.New("invalid reflect_budget")
)

type BankService struct {
	bankStore domain.BankStore
	logger    *zap.Logger
}

func NewBankService(bs domain.BankStore, logger *zap.Logger) *BankService {
	return &BankService{bankStore: bs, logger: logger}
}

func (s *BankService) Create(ctx context.Context, b *domain.Bank) error {
	if b.Name == "" {
		return ErrBankNameEmpty
	}
	if b.DedupThreshold < 0 || b.DedupThreshold > 1 {
		return ErrInvalidDedup
	}
	if b.ExtractionMode != "" && !domain.ValidExtractionMode(string(b.ExtractionMode)) {
		return ErrInvalidMode
	}
	if b.ReflectBudget != "" && !domain.ValidReflectBudget(string(b.ReflectBudget)) {
		return ErrInvalidBudget
	}
	return s.bankStore.Create(ctx, b)
}

func (s *BankService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Bank, error) {
	b, err := s.bankStore.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBankNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *BankService) List(ctx context.Context) ([]domain.Bank, error) {
	return s.bankStore.List(ctx)
}

func (s *BankService) Update(ctx context.Context, b *domain.Bank) error {
	if b.DedupThreshold < 0 || b.DedupThreshold > 1 {
		return ErrInvalidDedup
	}
	if b.ExtractionMode != "" && !domain.ValidExtractionMode(string(b.ExtractionMode)) {
		return ErrInvalidMode
	}
	err := s.bankStore.Update(ctx, b)
	if errors.Is(err, store.ErrNotFound) {
		return ErrBankNotFound
	}
	return err
}

func (s *BankService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.bankStore.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrBankNotFound
	}
	return err
}

func (s *BankService) Stats(ctx context.Context, id uuid.UUID) (*domain.BankStats, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.bankStore.Stats(ctx, id)
}
