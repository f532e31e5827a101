package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/hindsight-ai/hindsight/internal/domain"
	"github.com/jackc/pgx/v5"
)

type BankStore struct {
	db DB
}

func NewBankStore(db DB) *BankStore {
	return &BankStore{db: db}
}

func (s *BankStore) Create(ctx context.Context, b *domain.Bank) error {
	if b.ExtractionMode == "" {
		b.ExtractionMode = domain.ExtractionConcise
	}
	if b.DedupThreshold == 0 {
		b.DedupThreshold = domain.DefaultDedupThreshold
	}
	if b.ReflectBudget == "" {
		b.ReflectBudget = domain.ReflectBudgetMid
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO banks (name, extraction_mode, dedup_threshold, reflect_budget, enable_consolidation, custom_guidelines, skepticism, literalism, empathy, mission)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at, updated_at`,
		b.Name, b.ExtractionMode, b.DedupThreshold, b.ReflectBudget, b.EnableConsolidation, b.CustomGuidelines,
		b.Disposition.Skepticism, b.Disposition.Literalism, b.Disposition.Empathy, b.Mission,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

func (s *BankStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Bank, error) {
	b := &domain.Bank{}
	err := s.db.QueryRow(ctx,
		`SELECT id, name, extraction_mode, dedup_threshold, reflect_budget, enable_consolidation, custom_guidelines, skepticism, literalism, empathy, mission, created_at, updated_at
		 FROM banks WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.Name, &b.ExtractionMode, &b.DedupThreshold, &b.ReflectBudget, &b.EnableConsolidation, &b.CustomGuidelines,
		&b.Disposition.Skepticism, &b.Disposition.Literalism, &b.Disposition.Empathy, &b.Mission, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *BankStore) List(ctx context.Context) ([]domain.Bank, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, extraction_mode, dedup_threshold, reflect_budget, enable_consolidation, custom_guidelines, skepticism, literalism, empathy, mission, created_at, updated_at
		 FROM banks ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var banks []domain.Bank
	for rows.Next() {
		var b domain.Bank
		if err := rows.Scan(&b.ID, &b.Name, &b.ExtractionMode, &b.DedupThreshold, &b.ReflectBudget, &b.EnableConsolidation, &b.CustomGuidelines,
			&b.Disposition.Skepticism, &b.Disposition.Literalism, &b.Disposition.Empathy, &b.Mission, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		banks = append(banks, b)
	}
	return banks, rows.Err()
}

func (s *BankStore) Update(ctx context.Context, b *domain.Bank) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE banks
		 SET name = $2, extraction_mode = $3, dedup_threshold = $4, reflect_budget = $5, enable_consolidation = $6,
		     custom_guidelines = $7, skepticism = $8, literalism = $9, empathy = $10, mission = $11, updated_at = NOW()
		 WHERE id = $1`,
		b.ID, b.Name, b.ExtractionMode, b.DedupThreshold, b.ReflectBudget, b.EnableConsolidation,
		b.CustomGuidelines, b.Disposition.Skepticism, b.Disposition.Literalism, b.Disposition.Empathy, b.Mission,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete cascades through every bank-keyed table; child tables declare
// ON DELETE CASCADE on bank_id.
func (s *BankStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM banks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *BankStore) Stats(ctx context.Context, id uuid.UUID) (*domain.BankStats, error) {
	st := &domain.BankStats{}
	err := s.db.QueryRow(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM memory_units WHERE bank_id = $1),
		   (SELECT COUNT(*) FROM entities WHERE bank_id = $1),
		   (SELECT COUNT(*) FROM memory_links WHERE bank_id = $1),
		   (SELECT COUNT(*) FROM memory_versions WHERE bank_id = $1),
		   (SELECT COUNT(*) FROM reconsolidation_decisions WHERE bank_id = $1)`,
		id,
	).Scan(&st.MemoryCount, &st.EntityCount, &st.LinkCount, &st.VersionCount, &st.DecisionCount)
	if err != nil {
		return nil, err
	}
	return st, nil
}
