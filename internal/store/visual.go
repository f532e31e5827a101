package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/hindsight-ai/hindsight/internal/domain"
	pgvector "github.com/pgvector/pgvector-go"
)

type VisualStore struct {
	db DB
}

func NewVisualStore(db DB) *VisualStore {
	return &VisualStore{db: db}
}

func (s *VisualStore) Create(ctx context.Context, v *domain.VisualMemory) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO visual_memories (bank_id, description, source_uri)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		v.BankID, v.Description, v.SourceURI,
	).Scan(&v.ID, &v.CreatedAt)
}

func (s *VisualStore) SetEmbedding(ctx context.Context, id uuid.UUID, vec []float32) error {
	_, err := s.db.Exec(ctx,
		`UPDATE visual_memories SET embedding = $2 WHERE id = $1`,
		id, pgvector.NewVector(vec),
	)
	return err
}

func (s *VisualStore) Search(ctx context.Context, bankID uuid.UUID, vec []float32, limit int) ([]domain.VisualMemory, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, bank_id, description, source_uri, created_at
		 FROM visual_memories
		 WHERE bank_id = $1 AND embedding IS NOT NULL
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		bankID, pgvector.NewVector(vec), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visuals []domain.VisualMemory
	for rows.Next() {
		var v domain.VisualMemory
		if err := rows.Scan(&v.ID, &v.BankID, &v.Description, &v.SourceURI, &v.CreatedAt); err != nil {
			return nil, err
		}
		visuals = append(visuals, v)
	}
	return visuals, rows.Err()
}

func (s *VisualStore) RecordAccess(ctx context.Context, a *domain.VisualAccess) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO visual_access (bank_id, visual_id)
		 VALUES ($1, $2)
		 RETURNING id, accessed_at`,
		a.BankID, a.VisualID,
	).Scan(&a.ID, &a.AccessedAt)
}
