package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hindsight-ai/hindsight/internal/domain"
	"github.com/jackc/pgx/v5"
)

type MemoryStore struct {
	db DB
}

func NewMemoryStore(db DB) *MemoryStore {
	return &MemoryStore{db: db}
}

const memoryColumns = `id, bank_id, content, fact_type, confidence, tags, scope_profile, scope_project, scope_session,
	document_id, event_date, mentioned_at, occurred_start, occurred_end, gist, metadata,
	encoding_strength, access_count, last_accessed, created_at, updated_at`

func scanMemory(row pgx.Row, m *domain.MemoryUnit) error {
	return row.Scan(&m.ID, &m.BankID, &m.Content, &m.FactType, &m.Confidence, &m.Tags,
		&m.ScopeProfile, &m.ScopeProject, &m.ScopeSession,
		&m.DocumentID, &m.EventDate, &m.MentionedAt, &m.OccurredStart, &m.OccurredEnd, &m.Gist, &m.Metadata,
		&m.EncodingStrength, &m.AccessCount, &m.LastAccessed, &m.CreatedAt, &m.UpdatedAt)
}

func (s *MemoryStore) Create(ctx context.Context, m *domain.MemoryUnit) error {
	if m.OccurredStart != nil && m.OccurredEnd != nil && m.OccurredStart.After(*m.OccurredEnd) {
		return fmt.Errorf("occurred_start %s is after occurred_end %s", m.OccurredStart, m.OccurredEnd)
	}
	if m.EncodingStrength == 0 {
		m.EncodingStrength = 1.0
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO memory_units (bank_id, content, fact_type, confidence, tags, scope_profile, scope_project, scope_session,
		                           document_id, event_date, mentioned_at, occurred_start, occurred_end, metadata, encoding_strength, access_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 1)
		 RETURNING id, created_at, updated_at`,
		m.BankID, m.Content, m.FactType, m.Confidence, m.Tags, m.ScopeProfile, m.ScopeProject, m.ScopeSession,
		m.DocumentID, m.EventDate, m.MentionedAt, m.OccurredStart, m.OccurredEnd, m.Metadata, m.EncodingStrength,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

func (s *MemoryStore) GetByID(ctx context.Context, id uuid.UUID, bankID uuid.UUID) (*domain.MemoryUnit, error) {
	m := &domain.MemoryUnit{}
	row := s.db.QueryRow(ctx,
		`SELECT `+memoryColumns+` FROM memory_units WHERE id = $1 AND bank_id = $2`,
		id, bankID,
	)
	if err := scanMemory(row, m); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *MemoryStore) GetMany(ctx context.Context, bankID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*domain.MemoryUnit, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+memoryColumns+` FROM memory_units WHERE bank_id = $1 AND id = ANY($2)`,
		bankID, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[uuid.UUID]*domain.MemoryUnit, len(ids))
	for rows.Next() {
		m := &domain.MemoryUnit{}
		if err := scanMemory(rows, m); err != nil {
			return nil, err
		}
		result[m.ID] = m
	}
	return result, rows.Err()
}

func (s *MemoryStore) ListByBank(ctx context.Context, bankID uuid.UUID, opts domain.MemoryListOpts) ([]domain.MemoryUnit, error) {
	if opts.Limit <= 0 {
		opts.Limit = 100
	}

	query := `SELECT ` + memoryColumns + ` FROM memory_units WHERE bank_id = $1`
	args := []any{bankID}
	if opts.FactType != nil {
		args = append(args, string(*opts.FactType))
		query += fmt.Sprintf(" AND fact_type = $%d", len(args))
	}
	args = append(args, opts.Limit)
	query += fmt.Sprintf(" ORDER BY mentioned_at DESC LIMIT $%d", len(args))
	args = append(args, opts.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []domain.MemoryUnit
	for rows.Next() {
		var m domain.MemoryUnit
		if err := scanMemory(rows, &m); err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID, bankID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM memory_units WHERE id = $1 AND bank_id = $2`,
		id, bankID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MemoryStore) CountByBank(ctx context.Context, bankID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM memory_units WHERE bank_id = $1`,
		bankID,
	).Scan(&count)
	return count, err
}

func (s *MemoryStore) Reinforce(ctx context.Context, id uuid.UUID, strengthBoost float64) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE memory_units
		 SET access_count = access_count + 1,
		     last_accessed = NOW(),
		     encoding_strength = encoding_strength + $2,
		     updated_at = NOW()
		 WHERE id = $1`,
		id, strengthBoost,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MemoryStore) UpdateCanonical(ctx context.Context, m *domain.MemoryUnit) error {
	if m.OccurredStart != nil && m.OccurredEnd != nil && m.OccurredStart.After(*m.OccurredEnd) {
		return fmt.Errorf("occurred_start %s is after occurred_end %s", m.OccurredStart, m.OccurredEnd)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE memory_units
		 SET content = $2, fact_type = $3, confidence = $4, tags = $5,
		     occurred_start = $6, occurred_end = $7, gist = NULL, updated_at = NOW()
		 WHERE id = $1`,
		m.ID, m.Content, m.FactType, m.Confidence, m.Tags, m.OccurredStart, m.OccurredEnd,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MemoryStore) RecordAccess(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`UPDATE memory_units SET access_count = access_count + 1, last_accessed = NOW() WHERE id = $1`,
		id,
	)
	return err
}

func (s *MemoryStore) SetGist(ctx context.Context, id uuid.UUID, gist string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE memory_units SET gist = $2, updated_at = NOW() WHERE id = $1`,
		id, gist,
	)
	return err
}

// Fulltext ranks memories against a websearch query over content. When tags
// are supplied the match is pre-filtered to memories carrying at least one.
func (s *MemoryStore) Fulltext(ctx context.Context, bankID uuid.UUID, query string, tags []string, limit int) ([]domain.ScoredID, error) {
	if limit <= 0 {
		limit = 30
	}

	sql := `SELECT id, ts_rank_cd(to_tsvector('english', content), websearch_to_tsquery('english', $2)) AS rank
	        FROM memory_units
	        WHERE bank_id = $1
	          AND to_tsvector('english', content) @@ websearch_to_tsquery('english', $2)`
	args := []any{bankID, query}
	if len(tags) > 0 {
		args = append(args, tags)
		sql += fmt.Sprintf(" AND tags && $%d", len(args))
	}
	args = append(args, limit)
	sql += fmt.Sprintf(" ORDER BY rank DESC, id ASC LIMIT $%d", len(args))

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("fulltext query: %w", err)
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

func (s *MemoryStore) ByTimeRange(ctx context.Context, bankID uuid.UUID, from, to time.Time, limit int) ([]domain.MemoryUnit, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+memoryColumns+`
		 FROM memory_units
		 WHERE bank_id = $1 AND mentioned_at >= $2 AND mentioned_at <= $3
		 ORDER BY mentioned_at DESC
		 LIMIT $4`,
		bankID, from, to, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []domain.MemoryUnit
	for rows.Next() {
		var m domain.MemoryUnit
		if err := scanMemory(rows, &m); err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

func (s *MemoryStore) RecentSince(ctx context.Context, bankID uuid.UUID, since, until time.Time, limit int) ([]domain.MemoryUnit, error) {
	return s.ByTimeRange(ctx, bankID, since, until, limit)
}
