package memstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"datamem/internal/ledger"
	"datamem/pkg/schema"
	"datamem/pkg/types"
)

// snapshotPayload is the durable format: one file, four flat arrays.
// The last written snapshot wholly replaces in-memory state on startup.
type snapshotPayload struct {
	Schemas    []types.SchemaSnapshot  `json:"schemas"`
	Analyses   []types.AnalysisSignals `json:"analyses"`
	Insights   []types.Insight         `json:"insights"`
	QueryCache []types.QueryCacheEntry `json:"query_cache"`
}

const snapshotSchema = `{
  "type": "object",
  "required": ["schemas", "analyses", "insights", "query_cache"],
  "properties": {
    "schemas": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["dataset_id", "version", "fingerprint", "columns"]
      }
    },
    "analyses": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["dataset_id", "version", "created_at"]
      }
    },
    "insights": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["insight_id", "dataset_id", "version", "semantic_hash"]
      }
    },
    "query_cache": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["query_hash", "dataset_id", "response", "created_at"]
      }
    }
  }
}`

// persistLocked writes the snapshot after a mutation. Callers hold the write
// lock. The in-memory write stands even when the snapshot write fails; a
// crash between the two is an accepted data-loss window.
func (s *Store) persistLocked() error {
	if s.persistPath == "" {
		return nil
	}
	payload := snapshotPayload{
		Schemas:    make([]types.SchemaSnapshot, 0, len(s.schemas)),
		Analyses:   make([]types.AnalysisSignals, 0, len(s.analyses)),
		Insights:   make([]types.Insight, 0),
		QueryCache: make([]types.QueryCacheEntry, 0, len(s.queryCache)),
	}
	for _, v := range s.schemas {
		payload.Schemas = append(payload.Schemas, v)
	}
	for _, v := range s.analyses {
		payload.Analyses = append(payload.Analyses, v)
	}
	for _, list := range s.insightsByDataset {
		payload.Insights = append(payload.Insights, list...)
	}
	for _, v := range s.queryCache {
		payload.QueryCache = append(payload.QueryCache, v)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.persistPath), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	// Write-then-rename keeps the prior snapshot intact if we crash
	// mid-write.
	tmp := s.persistPath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.persistPath); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func (s *Store) loadSnapshot() error {
	raw, err := os.ReadFile(s.persistPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot %s: %w", s.persistPath, err)
	}

	violations, err := schema.ValidateBytes(snapshotSchema, raw)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w: %w", s.persistPath, ErrSnapshotCorrupt, err)
	}
	if len(violations) > 0 {
		return fmt.Errorf("snapshot %s: %w: %v", s.persistPath, ErrSnapshotCorrupt, violations)
	}

	var payload snapshotPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("snapshot %s: %w: %w", s.persistPath, ErrSnapshotCorrupt, err)
	}

	for _, snapshot := range payload.Schemas {
		if _, err := ledger.ParseVersion(snapshot.Version); err != nil {
			return fmt.Errorf("snapshot %s: %w: %w", s.persistPath, ErrSnapshotCorrupt, err)
		}
		s.schemas[key{snapshot.DatasetID, snapshot.Version}] = snapshot
	}
	for _, signals := range payload.Analyses {
		if _, err := ledger.ParseVersion(signals.Version); err != nil {
			return fmt.Errorf("snapshot %s: %w: %w", s.persistPath, ErrSnapshotCorrupt, err)
		}
		s.analyses[key{signals.DatasetID, signals.Version}] = signals
	}
	for _, insight := range payload.Insights {
		s.insightsByDataset[insight.DatasetID] = append(s.insightsByDataset[insight.DatasetID], insight)
		s.semanticIndex[key{insight.DatasetID, insight.SemanticHash}] = insight.ID
	}
	for _, entry := range payload.QueryCache {
		s.queryCache[key{entry.DatasetID, entry.QueryHash}] = entry
	}
	return nil
}
