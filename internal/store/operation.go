package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/hindsight-ai/hindsight/internal/domain"
	"github.com/jackc/pgx/v5"
)

type OperationStore struct {
	db DB
}

func NewOperationStore(db DB) *OperationStore {
	return &OperationStore{db: db}
}

func (s *OperationStore) Create(ctx context.Context, op *domain.AsyncOperation) error {
	if op.Status == "" {
		op.Status = domain.OpPending
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO async_operations (bank_id, kind, dedup_key, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, submitted_at`,
		op.BankID, op.Kind, op.DedupKey, op.Status,
	).Scan(&op.ID, &op.SubmittedAt)
}

func (s *OperationStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.AsyncOperation, error) {
	op := &domain.AsyncOperation{}
	err := s.db.QueryRow(ctx,
		`SELECT id, bank_id, kind, dedup_key, status, error, submitted_at, started_at, finished_at
		 FROM async_operations WHERE id = $1`,
		id,
	).Scan(&op.ID, &op.BankID, &op.Kind, &op.DedupKey, &op.Status, &op.Error, &op.SubmittedAt, &op.StartedAt, &op.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return op, nil
}

func (s *OperationStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OperationStatus, errMsg string) error {
	var sql string
	switch status {
	case domain.OpProcessing:
		sql = `UPDATE async_operations SET status = $2, error = $3, started_at = NOW() WHERE id = $1`
	case domain.OpCompleted, domain.OpFailed, domain.OpCancelled:
		sql = `UPDATE async_operations SET status = $2, error = $3, finished_at = NOW() WHERE id = $1`
	default:
		sql = `UPDATE async_operations SET status = $2, error = $3 WHERE id = $1`
	}

	tag, err := s.db.Exec(ctx, sql, id, status, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *OperationStore) FindPendingByDedupKey(ctx context.Context, bankID uuid.UUID, kind domain.OperationKind, dedupKey string) (*domain.AsyncOperation, error) {
	op := &domain.AsyncOperation{}
	err := s.db.QueryRow(ctx,
		`SELECT id, bank_id, kind, dedup_key, status, error, submitted_at, started_at, finished_at
		 FROM async_operations
		 WHERE bank_id = $1 AND kind = $2 AND dedup_key = $3 AND status = 'pending'
		 ORDER BY submitted_at ASC
		 LIMIT 1`,
		bankID, kind, dedupKey,
	).Scan(&op.ID, &op.BankID, &op.Kind, &op.DedupKey, &op.Status, &op.Error, &op.SubmittedAt, &op.StartedAt, &op.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return op, nil
}

func (s *OperationStore) ListPending(ctx context.Context, limit int) ([]domain.AsyncOperation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, bank_id, kind, dedup_key, status, error, submitted_at, started_at, finished_at
		 FROM async_operations WHERE status = 'pending'
		 ORDER BY submitted_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []domain.AsyncOperation
	for rows.Next() {
		var op domain.AsyncOperation
		if err := rows.Scan(&op.ID, &op.BankID, &op.Kind, &op.DedupKey, &op.Status, &op.Error, &op.SubmittedAt, &op.StartedAt, &op.FinishedAt); err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}
