package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hindsight-ai/hindsight/internal/domain"
	"github.com/jackc/pgx/v5"
)

type LocationStore struct {
	db DB
}

func NewLocationStore(db DB) *LocationStore {
	return &LocationStore{db: db}
}

func (s *LocationStore) UpsertPath(ctx context.Context, p *domain.LocationPath) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO location_paths (bank_id, raw_path, normalized_path, profile, project)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (bank_id, normalized_path, profile, project) DO UPDATE
		 SET raw_path = EXCLUDED.raw_path, updated_at = NOW()
		 RETURNING id, created_at, updated_at`,
		p.BankID, p.RawPath, p.NormalizedPath, p.Profile, p.Project,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (s *LocationStore) GetPath(ctx context.Context, id uuid.UUID) (*domain.LocationPath, error) {
	p := &domain.LocationPath{}
	err := s.db.QueryRow(ctx,
		`SELECT id, bank_id, raw_path, normalized_path, profile, project, created_at, updated_at
		 FROM location_paths WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.BankID, &p.RawPath, &p.NormalizedPath, &p.Profile, &p.Project, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *LocationStore) FindPathExact(ctx context.Context, bankID uuid.UUID, normalized, profile, project string) (*domain.LocationPath, error) {
	p := &domain.LocationPath{}
	err := s.db.QueryRow(ctx,
		`SELECT id, bank_id, raw_path, normalized_path, profile, project, created_at, updated_at
		 FROM location_paths
		 WHERE bank_id = $1 AND normalized_path = $2 AND profile = $3 AND project = $4`,
		bankID, normalized, profile, project,
	).Scan(&p.ID, &p.BankID, &p.RawPath, &p.NormalizedPath, &p.Profile, &p.Project, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *LocationStore) FindPathsBySuffix(ctx context.Context, bankID uuid.UUID, suffix string, limit int) ([]domain.LocationPath, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, bank_id, raw_path, normalized_path, profile, project, created_at, updated_at
		 FROM location_paths
		 WHERE bank_id = $1 AND normalized_path LIKE '%/' || $2
		 ORDER BY updated_at DESC
		 LIMIT $3`,
		bankID, suffix, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []domain.LocationPath
	for rows.Next() {
		var p domain.LocationPath
		if err := rows.Scan(&p.ID, &p.BankID, &p.RawPath, &p.NormalizedPath, &p.Profile, &p.Project, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

func (s *LocationStore) RecordAccess(ctx context.Context, a *domain.LocationAccessContext) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO location_access_contexts (bank_id, path_id, memory_id, session, activity_type)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, accessed_at`,
		a.BankID, a.PathID, a.MemoryID, a.Session, a.ActivityType,
	).Scan(&a.ID, &a.AccessedAt)
}

func (s *LocationStore) StatsForMemory(ctx context.Context, memoryID uuid.UUID) ([]domain.PathAccessStats, error) {
	rows, err := s.db.Query(ctx,
		`SELECT path_id, COUNT(*), MAX(accessed_at)
		 FROM location_access_contexts
		 WHERE memory_id = $1
		 GROUP BY path_id`,
		memoryID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []domain.PathAccessStats
	for rows.Next() {
		var st domain.PathAccessStats
		if err := rows.Scan(&st.PathID, &st.AccessCount, &st.LastAccessed); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (s *LocationStore) PathsForMemory(ctx context.Context, memoryID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx,
		`SELECT DISTINCT path_id FROM location_access_contexts WHERE memory_id = $1`,
		memoryID,
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

func (s *LocationStore) SessionPaths(ctx context.Context, bankID uuid.UUID, session string, since time.Time) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx,
		`SELECT DISTINCT path_id
		 FROM location_access_contexts
		 WHERE bank_id = $1 AND session = $2 AND accessed_at >= $3`,
		bankID, session, since,
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

// IncrementAssociation upserts the canonical pair row and returns the
// post-update co-access count. Callers compute the strength from the count
// and write it back with SetAssociationStrength; concurrent first inserts of
// the same pair meet in the ON CONFLICT increment.
func (s *LocationStore) IncrementAssociation(ctx context.Context, bankID uuid.UUID, source, related uuid.UUID) (int, error) {
	source, related = domain.OrderPathPair(source, related)

	var count int
	err := s.db.QueryRow(ctx,
		`INSERT INTO location_associations (bank_id, source_path_id, related_path_id, co_access_count, strength)
		 VALUES ($1, $2, $3, 1, 0)
		 ON CONFLICT (bank_id, source_path_id, related_path_id) DO UPDATE
		 SET co_access_count = location_associations.co_access_count + 1,
		     updated_at = NOW()
		 RETURNING co_access_count`,
		bankID, source, related,
	).Scan(&count)
	return count, err
}

func (s *LocationStore) SetAssociationStrength(ctx context.Context, bankID uuid.UUID, source, related uuid.UUID, strength float64) error {
	source, related = domain.OrderPathPair(source, related)
	_, err := s.db.Exec(ctx,
		`UPDATE location_associations SET strength = $4, updated_at = NOW()
		 WHERE bank_id = $1 AND source_path_id = $2 AND related_path_id = $3`,
		bankID, source, related, strength,
	)
	return err
}

// AssociationsForPaths returns association rows touching any of the given
// paths, searched canonically in both directions.
func (s *LocationStore) AssociationsForPaths(ctx context.Context, bankID uuid.UUID, pathIDs []uuid.UUID) ([]domain.LocationAssociation, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, bank_id, source_path_id, related_path_id, co_access_count, strength, updated_at
		 FROM location_associations
		 WHERE bank_id = $1 AND (source_path_id = ANY($2) OR related_path_id = ANY($2))`,
		bankID, pathIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assocs []domain.LocationAssociation
	for rows.Next() {
		var a domain.LocationAssociation
		if err := rows.Scan(&a.ID, &a.BankID, &a.SourcePathID, &a.RelatedPathID, &a.CoAccessCount, &a.Strength, &a.UpdatedAt); err != nil {
			return nil, err
		}
		assocs = append(assocs, a)
	}
	return assocs, rows.Err()
}
