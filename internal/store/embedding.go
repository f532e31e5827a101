package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hindsight-ai/hindsight/internal/domain"
	pgvector "github.com/pgvector/pgvector-go"
)

// EmbeddingStore is the vector index over memory ids. The underlying index
// has no native upsert; writes are delete-then-insert bracketed by a
// transaction so a concurrent reader never observes a torn row.
type EmbeddingStore struct {
	db        DB
	dimension int
}

func NewEmbeddingStore(db DB, dimension int) *EmbeddingStore {
	return &EmbeddingStore{db: db, dimension: dimension}
}

func (s *EmbeddingStore) Dimension() int {
	return s.dimension
}

func (s *EmbeddingStore) Upsert(ctx context.Context, id uuid.UUID, vec []float32) error {
	return s.UpsertBatch(ctx, []uuid.UUID{id}, [][]float32{vec})
}

func (s *EmbeddingStore) UpsertBatch(ctx context.Context, ids []uuid.UUID, vecs [][]float32) error {
	if len(ids) != len(vecs) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vecs))
	}
	for i, v := range vecs {
		if len(v) != s.dimension {
			return fmt.Errorf("%w: vector for %s has dimension %d, expected %d", ErrDimensionMismatch, ids[i], len(v), s.dimension)
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, id := range ids {
		if _, err := tx.Exec(ctx, `DELETE FROM memory_embeddings WHERE id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO memory_embeddings (id, embedding) VALUES ($1, $2)`,
			id, pgvector.NewVector(vecs[i]),
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *EmbeddingStore) Search(ctx context.Context, bankID uuid.UUID, vec []float32, k int) ([]domain.ScoredID, error) {
	if len(vec) != s.dimension {
		return nil, fmt.Errorf("%w: query vector has dimension %d, expected %d", ErrDimensionMismatch, len(vec), s.dimension)
	}
	if k <= 0 {
		k = 10
	}

	rows, err := s.db.Query(ctx,
		`SELECT e.id, 1 - (e.embedding <=> $2) AS score
		 FROM memory_embeddings e
		 JOIN memory_units m ON m.id = e.id
		 WHERE m.bank_id = $1
		 ORDER BY e.embedding <=> $2
		 LIMIT $3`,
		bankID, pgvector.NewVector(vec), k,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var results []domain.ScoredID
	for rows.Next() {
		var r domain.ScoredID
		if err := rows.Scan(&r.ID, &r.Score); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *EmbeddingStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM memory_embeddings WHERE id = $1`, id)
	return err
}
