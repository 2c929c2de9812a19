// Package memstore is the keyed artifact cache: compressed schemas, analysis
// signals, accepted insights, and cached query answers. Consumers must check
// the cache before recomputation; the store itself never computes anything.
package memstore

import (
	"errors"
	"sort"
	"sync"

	"datamem/internal/ledger"
	"datamem/pkg/types"
)

// ErrNotFound reports a missing artifact key. Absence is a normal outcome,
// not a fault; callers branch on it with errors.Is.
var ErrNotFound = errors.New("artifact not found")

// ErrSnapshotCorrupt reports an unreadable or schema-invalid durable
// snapshot. Opening over a corrupt snapshot must fail rather than silently
// start empty.
var ErrSnapshotCorrupt = errors.New("snapshot corrupt")

type key struct {
	datasetID string
	// ref is a version for schemas and analyses, a semantic hash for the
	// insight index, and a query hash for cached answers.
	ref string
}

// Store is the in-memory artifact cache with optional JSON persistence.
// All mutations go through a single lock scoped to the whole instance;
// artifact records are small and writes are infrequent relative to reads.
type Store struct {
	mu          sync.RWMutex
	persistPath string

	schemas           map[key]types.SchemaSnapshot
	analyses          map[key]types.AnalysisSignals
	insightsByDataset map[string][]types.Insight
	semanticIndex     map[key]string
	queryCache        map[key]types.QueryCacheEntry
}

// Open creates a store, loading the durable snapshot at persistPath when one
// exists. An unreadable or malformed snapshot is a fatal error: starting
// from silently diverged empty state is worse than refusing to start.
// An empty persistPath disables durability.
func Open(persistPath string) (*Store, error) {
	s := &Store{
		persistPath:       persistPath,
		schemas:           make(map[key]types.SchemaSnapshot),
		analyses:          make(map[key]types.AnalysisSignals),
		insightsByDataset: make(map[string][]types.Insight),
		semanticIndex:     make(map[key]string),
		queryCache:        make(map[key]types.QueryCacheEntry),
	}
	if persistPath != "" {
		if err := s.loadSnapshot(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// PutSchema stores a schema snapshot, overwriting by exact key. Each key is
// written once by version-scoped logic, so last-writer-wins is acceptable.
func (s *Store) PutSchema(snapshot types.SchemaSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemas[key{snapshot.DatasetID, snapshot.Version}] = snapshot
	return s.persistLocked()
}

func (s *Store) GetSchema(datasetID, version string) (types.SchemaSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.schemas[key{datasetID, version}]
	if !ok {
		return types.SchemaSnapshot{}, ErrNotFound
	}
	return snapshot, nil
}

func (s *Store) PutAnalysis(signals types.AnalysisSignals) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses[key{signals.DatasetID, signals.Version}] = signals
	return s.persistLocked()
}

func (s *Store) GetAnalysis(datasetID, version string) (types.AnalysisSignals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	signals, ok := s.analyses[key{datasetID, version}]
	if !ok {
		return types.AnalysisSignals{}, ErrNotFound
	}
	return signals, nil
}

// HasAnalysis tells callers whether recomputation can be skipped. When it
// returns true, GetAnalysis returns a complete previously computed record.
func (s *Store) HasAnalysis(datasetID, version string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.analyses[key{datasetID, version}]
	return ok
}

func (s *Store) PutQuery(entry types.QueryCacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryCache[key{entry.DatasetID, entry.QueryHash}] = entry
	return s.persistLocked()
}

func (s *Store) GetQuery(datasetID, queryHash string) (types.QueryCacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.queryCache[key{datasetID, queryHash}]
	if !ok {
		return types.QueryCacheEntry{}, ErrNotFound
	}
	return entry, nil
}

// SaveInsight stores an insight unless one with the same semantic hash
// already exists for the dataset. First write wins; a duplicate is a
// deterministic no-op that leaves the stored record untouched. The returned
// bool reports whether the insight was stored.
func (s *Store) SaveInsight(insight types.Insight) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{insight.DatasetID, insight.SemanticHash}
	if _, exists := s.semanticIndex[k]; exists {
		return false, nil
	}
	s.semanticIndex[k] = insight.ID
	s.insightsByDataset[insight.DatasetID] = append(s.insightsByDataset[insight.DatasetID], insight)
	return true, s.persistLocked()
}

// InsightExists is the deterministic semantic dedup check, cross-version by
// design: a pattern reported for v1 is not re-reported for v2.
func (s *Store) InsightExists(datasetID, semanticHash string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.semanticIndex[key{datasetID, semanticHash}]
	return ok
}

// ListInsights returns all stored insights for a dataset in insertion order.
func (s *Store) ListInsights(datasetID string) []types.Insight {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Insight, len(s.insightsByDataset[datasetID]))
	copy(out, s.insightsByDataset[datasetID])
	return out
}

// Schemas returns every stored schema snapshot ordered by dataset and
// numeric version, for ledger replay at startup.
func (s *Store) Schemas() []types.SchemaSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.SchemaSnapshot, 0, len(s.schemas))
	for _, snapshot := range s.schemas {
		out = append(out, snapshot)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DatasetID != out[j].DatasetID {
			return out[i].DatasetID < out[j].DatasetID
		}
		ni, _ := ledger.ParseVersion(out[i].Version)
		nj, _ := ledger.ParseVersion(out[j].Version)
		return ni < nj
	})
	return out
}
