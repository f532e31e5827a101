package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/hindsight-ai/hindsight/internal/domain"
)

type DecisionStore struct {
	db DB
}

func NewDecisionStore(db DB) *DecisionStore {
	return &DecisionStore{db: db}
}

func (s *DecisionStore) Create(ctx context.Context, d *domain.ReconsolidationDecision) error {
	if d.PolicyVersion == "" {
		d.PolicyVersion = domain.PolicyVersion
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO reconsolidation_decisions (bank_id, memory_hash, candidate_memory_id, candidate_score, route, conflict_detected, conflict_keys, policy_version, applied_memory_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at`,
		d.BankID, d.MemoryHash, d.CandidateMemoryID, d.CandidateScore, d.Route, d.ConflictDetected, d.ConflictKeys, d.PolicyVersion, d.AppliedMemoryID,
	).Scan(&d.ID, &d.CreatedAt)
}

func (s *DecisionStore) ListByBank(ctx context.Context, bankID uuid.UUID, limit int) ([]domain.ReconsolidationDecision, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, bank_id, memory_hash, candidate_memory_id, candidate_score, route, conflict_detected, conflict_keys, policy_version, applied_memory_id, created_at
		 FROM reconsolidation_decisions WHERE bank_id = $1
		 ORDER BY created_at ASC
		 LIMIT $2`,
		bankID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []domain.ReconsolidationDecision
	for rows.Next() {
		var d domain.ReconsolidationDecision
		if err := rows.Scan(&d.ID, &d.BankID, &d.MemoryHash, &d.CandidateMemoryID, &d.CandidateScore, &d.Route, &d.ConflictDetected, &d.ConflictKeys, &d.PolicyVersion, &d.AppliedMemoryID, &d.CreatedAt); err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}
