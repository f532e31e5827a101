package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/hindsight-ai/hindsight/internal/domain"
)

type VersionStore struct {
	db DB
}

func NewVersionStore(db DB) *VersionStore {
	return &VersionStore{db: db}
}

func (s *VersionStore) Create(ctx context.Context, v *domain.MemoryVersion) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO memory_versions (bank_id, versioned_memory_id, previous_content, new_content, reason)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		v.BankID, v.VersionedMemoryID, v.PreviousContent, v.NewContent, v.Reason,
	).Scan(&v.ID, &v.CreatedAt)
}

func (s *VersionStore) ListByMemory(ctx context.Context, memoryID uuid.UUID) ([]domain.MemoryVersion, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, bank_id, versioned_memory_id, previous_content, new_content, reason, created_at
		 FROM memory_versions WHERE versioned_memory_id = $1
		 ORDER BY created_at ASC`,
		memoryID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []domain.MemoryVersion
	for rows.Next() {
		var v domain.MemoryVersion
		if err := rows.Scan(&v.ID, &v.BankID, &v.VersionedMemoryID, &v.PreviousContent, &v.NewContent, &v.Reason, &v.CreatedAt); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *VersionStore) CountByBank(ctx context.Context, bankID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM memory_versions WHERE bank_id = $1`,
		bankID,
	).Scan(&count)
	return count, err
}
