package store

import (
	"context"

	"github.com/hindsight-ai/hindsight/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRunner opens one transaction per callback and hands the callback stores
// bound to it. The embedding store's internal delete-then-insert bracket
// nests as a savepoint inside the outer transaction.
type TxRunner struct {
	pool      *pgxpool.Pool
	dimension int
}

func NewTxRunner(pool *pgxpool.Pool, dimension int) *TxRunner {
	return &TxRunner{pool: pool, dimension: dimension}
}

func (r *TxRunner) InTx(ctx context.Context, fn func(st domain.RetainStores) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	st := domain.RetainStores{
		Memories:   NewMemoryStore(tx),
		Versions:   NewVersionStore(tx),
		Decisions:  NewDecisionStore(tx),
		Entities:   NewEntityStore(tx),
		Links:      NewLinkStore(tx),
		Embeddings: NewEmbeddingStore(tx, r.dimension),
	}

	if err := fn(st); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
