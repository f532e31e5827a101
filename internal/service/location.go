package service

import (
	"context"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hindsight-ai/hindsight/internal/domain"
	"go.uber.org/zap"
)

const (
	// coAccessWindow is the session window within which touched paths become
	// associated.
	coAccessWindow = 30 * time.Minute

	// suffixMatchLimit caps suffix-resolution fan-out per signal.
	suffixMatchLimit = 5

	pathMatchBoost   = 0.12
	frequencyBoost   = 0.10
	associationBoost = 0.08

	// recencyHalfWindow is the decay scale of the frequency component.
	recencyHalfWindow = 30 * 24 * time.Hour
)

var (
	filePathRE  = regexp.MustCompile(`([./]{0,2}[\w@.\-]+/)+[\w@.\-]+(\.\w+)?`)
	dottedRE    = regexp.MustCompile(`[\w\-]+(\.[\w\-]+)+`)
	sentenceRE  = regexp.MustCompile(`\.[A-Z]`)
	versionRE   = regexp.MustCompile(`^\d+\.\d+(\.\d+)*$`)
	multiSlashRE = regexp.MustCompile(`//+`)
)

// NormalizePath canonicalises a filesystem-ish path: trim, backslashes to
// slashes, collapse slash runs, strip the trailing slash except for root,
// lowercase. Deterministic.
func NormalizePath(raw string) string {
	p := strings.TrimSpace(raw)
	p = strings.ReplaceAll(p, `\`, "/")
	p = multiSlashRE.ReplaceAllString(p, "/")
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return strings.ToLower(p)
}

// DetectLocationSignals extracts path-like and module-like tokens from a
// query: slash-separated file paths and dotted module names, excluding
// sentence boundaries and bare version numbers. Deterministic.
func DetectLocationSignals(query string) []string {
	seen := make(map[string]bool)
	var signals []string

	add := func(tok string) {
		if len(tok) <= 2 || seen[tok] {
			return
		}
		seen[tok] = true
		signals = append(signals, tok)
	}

	for _, tok := range filePathRE.FindAllString(query, -1) {
		add(tok)
	}
	// Module-like tokens are matched against the query with path tokens
	// removed, so a path's basename is not double-counted.
	stripped := filePathRE.ReplaceAllString(query, " ")
	for _, tok := range dottedRE.FindAllString(stripped, -1) {
		if seen[tok] {
			continue
		}
		if versionRE.MatchString(tok) {
			continue
		}
		if sentenceRE.MatchString(tok) {
			continue
		}
		add(tok)
	}
	return signals
}

// LocationService maintains the path graph: normalised paths, append-only
// access contexts, and co-access associations, and computes the recall-side
// location boost.
type LocationService struct {
	locationStore domain.LocationStore
	logger        *zap.Logger
}

func NewLocationService(ls domain.LocationStore, logger *zap.Logger) *LocationService {
	return &LocationService{locationStore: ls, logger: logger}
}

// ResolveSignalsToPaths maps each detected signal to path ids: exact match
// on the normalised path first, suffix match capped at suffixMatchLimit on
// miss.
func (s *LocationService) ResolveSignalsToPaths(ctx context.Context, bankID uuid.UUID, signals []string, scope domain.Scope) (map[string][]uuid.UUID, error) {
	resolved := make(map[string][]uuid.UUID, len(signals))

	for _, sig := range signals {
		normalized := NormalizePath(sig)

		if p, err := s.locationStore.FindPathExact(ctx, bankID, normalized, scope.Profile, scope.Project); err == nil {
			resolved[sig] = []uuid.UUID{p.ID}
			continue
		}

		paths, err := s.locationStore.FindPathsBySuffix(ctx, bankID, normalized, suffixMatchLimit)
		if err != nil {
			return nil, err
		}
		ids := make([]uuid.UUID, 0, len(paths))
		for _, p := range paths {
			ids = append(ids, p.ID)
		}
		if len(ids) > 0 {
			resolved[sig] = ids
		}
	}
	return resolved, nil
}

// RecordAccess upserts the path, appends an access context, and refreshes
// co-access associations against other paths touched in the same session
// window. Association conflicts are logged and skipped; the increment is
// commutative, so concurrent sessions may bump a pair in any order.
func (s *LocationService) RecordAccess(ctx context.Context, bankID uuid.UUID, rawPath string, memoryID uuid.UUID, scope domain.Scope, activity domain.ActivityType) error {
	path := &domain.LocationPath{
		BankID:         bankID,
		RawPath:        rawPath,
		NormalizedPath: NormalizePath(rawPath),
		Profile:        scope.Profile,
		Project:        scope.Project,
	}
	if err := s.locationStore.UpsertPath(ctx, path); err != nil {
		return err
	}

	access := &domain.LocationAccessContext{
		BankID:       bankID,
		PathID:       path.ID,
		MemoryID:     memoryID,
		Session:      scope.Session,
		ActivityType: activity,
	}
	if err := s.locationStore.RecordAccess(ctx, access); err != nil {
		return err
	}

	if scope.Session == nil || *scope.Session == "" {
		return nil
	}

	since := access.AccessedAt.Add(-coAccessWindow)
	sessionPaths, err := s.locationStore.SessionPaths(ctx, bankID, *scope.Session, since)
	if err != nil {
		return err
	}

	for _, other := range sessionPaths {
		if other == path.ID {
			continue
		}
		count, err := s.locationStore.IncrementAssociation(ctx, bankID, path.ID, other)
		if err != nil {
			s.logger.Warn("co-access association update failed",
				zap.String("path_id", path.ID.String()),
				zap.String("related_path_id", other.String()),
				zap.Error(err))
			continue
		}
		strength := domain.AssociationStrength(count)
		if err := s.locationStore.SetAssociationStrength(ctx, bankID, path.ID, other, strength); err != nil {
			s.logger.Warn("association strength update failed",
				zap.String("path_id", path.ID.String()),
				zap.Error(err))
		}
	}
	return nil
}

// Boost computes the additive location boost for one candidate memory given
// the query's resolved path set.
func (s *LocationService) Boost(ctx context.Context, bankID uuid.UUID, memoryID uuid.UUID, queryPaths []uuid.UUID, now time.Time) (*domain.LocationBoostBreakdown, error) {
	if len(queryPaths) == 0 {
		return nil, nil
	}
	queryPathSet := make(map[uuid.UUID]bool, len(queryPaths))
	for _, id := range queryPaths {
		queryPathSet[id] = true
	}

	stats, err := s.locationStore.StatsForMemory(ctx, memoryID)
	if err != nil {
		return nil, err
	}

	breakdown := &domain.LocationBoostBreakdown{}

	// Direct path match plus per-path frequency-recency.
	var maxFreq float64
	candidatePaths := make([]uuid.UUID, 0, len(stats))
	for _, st := range stats {
		candidatePaths = append(candidatePaths, st.PathID)
		if queryPathSet[st.PathID] && breakdown.PathMatch == 0 {
			breakdown.PathMatch = pathMatchBoost
		}
		age := now.Sub(st.LastAccessed)
		if age < 0 {
			age = 0
		}
		f := math.Log1p(float64(st.AccessCount)) * math.Exp(-age.Seconds()/recencyHalfWindow.Seconds())
		if f > maxFreq {
			maxFreq = f
		}
	}
	// Normalise frequency into [0,1]; log1p·exp decays from log1p(count).
	if maxFreq > 0 {
		breakdown.Frequency = frequencyBoost * (maxFreq / (1 + maxFreq))
	}

	if len(candidatePaths) == 0 {
		return breakdown, nil
	}

	assocs, err := s.locationStore.AssociationsForPaths(ctx, bankID, queryPaths)
	if err != nil {
		return nil, err
	}

	candidateSet := make(map[uuid.UUID]bool, len(candidatePaths))
	for _, id := range candidatePaths {
		candidateSet[id] = true
	}

	var best, maxStrength float64
	for _, a := range assocs {
		if a.Strength > maxStrength {
			maxStrength = a.Strength
		}
	}
	for _, a := range assocs {
		// The association row touches a query path on one side; it counts
		// when the other side is one of the candidate's paths.
		if (queryPathSet[a.SourcePathID] && candidateSet[a.RelatedPathID]) ||
			(queryPathSet[a.RelatedPathID] && candidateSet[a.SourcePathID]) {
			if a.Strength > best {
				best = a.Strength
			}
		}
	}
	if maxStrength > 0 {
		breakdown.Association = associationBoost * (best / maxStrength)
	}

	return breakdown, nil
}
