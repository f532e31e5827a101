package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hindsight-ai/hindsight/internal/domain"
)

type LinkStore struct {
	db DB
}

func NewLinkStore(db DB) *LinkStore {
	return &LinkStore{db: db}
}

func (s *LinkStore) Create(ctx context.Context, l *domain.MemoryLink) error {
	if l.SourceID == l.TargetID {
		return fmt.Errorf("link source and target are the same memory %s", l.SourceID)
	}
	if l.Weight < 0 || l.Weight > 1 {
		return fmt.Errorf("link weight %f out of range [0,1]", l.Weight)
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO memory_links (bank_id, source_id, target_id, link_type, weight)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (source_id, target_id, link_type) DO UPDATE
		 SET weight = GREATEST(memory_links.weight, EXCLUDED.weight)
		 RETURNING id, created_at`,
		l.BankID, l.SourceID, l.TargetID, l.LinkType, l.Weight,
	).Scan(&l.ID, &l.CreatedAt)
}

func (s *LinkStore) ListBySource(ctx context.Context, sourceID uuid.UUID) ([]domain.MemoryLink, error) {
	return s.query(ctx,
		`SELECT id, bank_id, source_id, target_id, link_type, weight, created_at
		 FROM memory_links WHERE source_id = $1 ORDER BY weight DESC`,
		sourceID,
	)
}

func (s *LinkStore) Neighbors(ctx context.Context, memoryID uuid.UUID, linkType domain.LinkType, direction domain.Direction) ([]domain.MemoryLink, error) {
	var cond string
	switch direction {
	case domain.DirectionForward:
		cond = "source_id = $1"
	case domain.DirectionBackward:
		cond = "target_id = $1"
	default:
		cond = "(source_id = $1 OR target_id = $1)"
	}

	return s.query(ctx,
		`SELECT id, bank_id, source_id, target_id, link_type, weight, created_at
		 FROM memory_links WHERE `+cond+` AND link_type = $2
		 ORDER BY weight DESC`,
		memoryID, linkType,
	)
}

func (s *LinkStore) CountBySourceAndType(ctx context.Context, sourceID uuid.UUID, linkType domain.LinkType) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM memory_links WHERE source_id = $1 AND link_type = $2`,
		sourceID, linkType,
	).Scan(&count)
	return count, err
}

func (s *LinkStore) DeleteForMemory(ctx context.Context, memoryID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM memory_links WHERE source_id = $1 OR target_id = $1`,
		memoryID,
	)
	return err
}

func (s *LinkStore) query(ctx context.Context, sql string, args ...any) ([]domain.MemoryLink, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []domain.MemoryLink
	for rows.Next() {
		var l domain.MemoryLink
		if err := rows.Scan(&l.ID, &l.BankID, &l.SourceID, &l.TargetID, &l.LinkType, &l.Weight, &l.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}
