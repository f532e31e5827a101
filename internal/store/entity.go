package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/hindsight-ai/hindsight/internal/domain"
	"github.com/jackc/pgx/v5"
)

type EntityStore struct {
	db DB
}

func NewEntityStore(db DB) *EntityStore {
	return &EntityStore{db: db}
}

// Upsert finds or creates by (bank_id, canonical_name). On conflict the
// mention count is incremented and last_updated refreshed; first_seen never
// moves.
func (s *EntityStore) Upsert(ctx context.Context, e *domain.Entity) error {
	if e.CanonicalName == "" {
		e.CanonicalName = domain.CanonicalEntityName(e.Name)
	}
	if e.EntityType == "" {
		e.EntityType = domain.EntityTypeOther
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO entities (bank_id, name, canonical_name, entity_type, description, mention_count)
		 VALUES ($1, $2, $3, $4, $5, 1)
		 ON CONFLICT (bank_id, canonical_name) DO UPDATE
		 SET mention_count = entities.mention_count + 1,
		     last_updated = NOW()
		 RETURNING id, mention_count, first_seen, last_updated`,
		e.BankID, e.Name, e.CanonicalName, e.EntityType, e.Description,
	).Scan(&e.ID, &e.MentionCount, &e.FirstSeen, &e.LastUpdated)
}

func (s *EntityStore) GetByID(ctx context.Context, id uuid.UUID, bankID uuid.UUID) (*domain.Entity, error) {
	e := &domain.Entity{}
	err := s.db.QueryRow(ctx,
		`SELECT id, bank_id, name, canonical_name, entity_type, description, mention_count, first_seen, last_updated
		 FROM entities WHERE id = $1 AND bank_id = $2`,
		id, bankID,
	).Scan(&e.ID, &e.BankID, &e.Name, &e.CanonicalName, &e.EntityType, &e.Description, &e.MentionCount, &e.FirstSeen, &e.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *EntityStore) GetByCanonical(ctx context.Context, bankID uuid.UUID, canonical string) (*domain.Entity, error) {
	e := &domain.Entity{}
	err := s.db.QueryRow(ctx,
		`SELECT id, bank_id, name, canonical_name, entity_type, description, mention_count, first_seen, last_updated
		 FROM entities WHERE bank_id = $1 AND canonical_name = $2`,
		bankID, canonical,
	).Scan(&e.ID, &e.BankID, &e.Name, &e.CanonicalName, &e.EntityType, &e.Description, &e.MentionCount, &e.FirstSeen, &e.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *EntityStore) ListByBank(ctx context.Context, bankID uuid.UUID, limit int) ([]domain.Entity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, bank_id, name, canonical_name, entity_type, description, mention_count, first_seen, last_updated
		 FROM entities WHERE bank_id = $1
		 ORDER BY mention_count DESC, first_seen ASC
		 LIMIT $2`,
		bankID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []domain.Entity
	for rows.Next() {
		var e domain.Entity
		if err := rows.Scan(&e.ID, &e.BankID, &e.Name, &e.CanonicalName, &e.EntityType, &e.Description, &e.MentionCount, &e.FirstSeen, &e.LastUpdated); err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func (s *EntityStore) Update(ctx context.Context, e *domain.Entity) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE entities SET name = $3, entity_type = $4, description = $5, last_updated = NOW()
		 WHERE id = $1 AND bank_id = $2`,
		e.ID, e.BankID, e.Name, e.EntityType, e.Description,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *EntityStore) LinkMemory(ctx context.Context, memoryID, entityID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO memory_entities (memory_id, entity_id)
		 VALUES ($1, $2)
		 ON CONFLICT (memory_id, entity_id) DO NOTHING`,
		memoryID, entityID,
	)
	return err
}

func (s *EntityStore) UnlinkMemory(ctx context.Context, memoryID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM memory_entities WHERE memory_id = $1`, memoryID)
	return err
}

func (s *EntityStore) EntitiesForMemory(ctx context.Context, memoryID uuid.UUID) ([]domain.Entity, error) {
	rows, err := s.db.Query(ctx,
		`SELECT e.id, e.bank_id, e.name, e.canonical_name, e.entity_type, e.description, e.mention_count, e.first_seen, e.last_updated
		 FROM entities e
		 JOIN memory_entities me ON me.entity_id = e.id
		 WHERE me.memory_id = $1
		 ORDER BY e.canonical_name ASC`,
		memoryID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []domain.Entity
	for rows.Next() {
		var e domain.Entity
		if err := rows.Scan(&e.ID, &e.BankID, &e.Name, &e.CanonicalName, &e.EntityType, &e.Description, &e.MentionCount, &e.FirstSeen, &e.LastUpdated); err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func (s *EntityStore) MemoryIDsForEntity(ctx context.Context, entityID uuid.UUID, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT memory_id FROM memory_entities WHERE entity_id = $1 LIMIT $2`,
		entityID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *EntityStore) SharedEntityCounts(ctx context.Context, memoryID uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := s.db.Query(ctx,
		`SELECT other.memory_id, COUNT(*)
		 FROM memory_entities own
		 JOIN memory_entities other ON other.entity_id = own.entity_id AND other.memory_id <> own.memory_id
		 WHERE own.memory_id = $1
		 GROUP BY other.memory_id`,
		memoryID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}
