package memstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"datamem/pkg/types"
)

func testSchemaSnapshot(datasetID, version, fingerprint string) types.SchemaSnapshot {
	return types.SchemaSnapshot{
		DatasetID:   datasetID,
		Version:     version,
		Fingerprint: fingerprint,
		RowCount:    100,
		ColumnCount: 1,
		CreatedAt:   "2026-03-01T10:00:00Z",
		Columns: map[string]types.ColumnProfile{
			"amount": {
				Name:           "amount",
				Kind:           types.KindNumeric,
				DType:          "float64",
				NullPercentage: 1.5,
				Cardinality:    90,
				UniqueRatio:    0.9,
				Numeric: &types.NumericProfile{
					Mean: 10, Median: 9, Std: 2, Min: 1, Max: 30,
					HistogramBins:   []float64{0, 3, 6, 9, 12, 15, 18, 21, 24, 27, 30},
					HistogramCounts: []int64{1, 2, 10, 30, 25, 15, 9, 4, 2, 2},
				},
			},
		},
	}
}

func testSignals(datasetID, version string) types.AnalysisSignals {
	return types.AnalysisSignals{
		DatasetID:   datasetID,
		Version:     version,
		CreatedAt:   "2026-03-01T10:05:00Z",
		RowCount:    100,
		ColumnCount: 1,
		SampleN:     100,
		Numeric: []types.NumericSignal{{
			Column: "amount", DType: "float64", SampleN: 100,
			Mean: 10, Median: 9, Std: 2, Min: 1, P05: 2, P25: 6, P75: 14, P95: 25, Max: 30,
		}},
		Correlations: []types.CorrelationSignal{},
		Outliers:     []types.OutlierSignal{},
	}
}

func TestSchemaRoundTrip(t *testing.T) {
	s, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	want := testSchemaSnapshot("sales", "v1", "fp1")
	if err := s.PutSchema(want); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetSchema("sales", "v1")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("schema mismatch (-want +got):\n%s", diff)
	}
}

func TestGetSchema_NotFound(t *testing.T) {
	s, _ := Open("")
	_, err := s.GetSchema("unknown", "v1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAnalysis_HasPrecedesGet(t *testing.T) {
	s, _ := Open("")
	if s.HasAnalysis("sales", "v1") {
		t.Error("HasAnalysis should be false before put")
	}
	want := testSignals("sales", "v1")
	if err := s.PutAnalysis(want); err != nil {
		t.Fatal(err)
	}
	if !s.HasAnalysis("sales", "v1") {
		t.Error("HasAnalysis should be true after put")
	}
	got, err := s.GetAnalysis("sales", "v1")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("analysis mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveInsight_FirstWriteWins(t *testing.T) {
	s, _ := Open("")
	first := types.Insight{
		ID: "id-1", DatasetID: "sales", Version: "v1",
		Title: "original", SemanticHash: "hash-a", Confidence: 0.9,
	}
	second := types.Insight{
		ID: "id-2", DatasetID: "sales", Version: "v2",
		Title: "paraphrase of original", SemanticHash: "hash-a", Confidence: 0.5,
	}
	stored, err := s.SaveInsight(first)
	if err != nil || !stored {
		t.Fatalf("first save = (%t, %v), want (true, nil)", stored, err)
	}
	stored, err = s.SaveInsight(second)
	if err != nil || stored {
		t.Fatalf("duplicate save = (%t, %v), want (false, nil)", stored, err)
	}

	insights := s.ListInsights("sales")
	if len(insights) != 1 {
		t.Fatalf("stored insights = %d, want 1", len(insights))
	}
	if insights[0].ID != "id-1" || insights[0].Title != "original" {
		t.Errorf("stored record = %+v, want the first write", insights[0])
	}
}

func TestInsightExists_CrossVersion(t *testing.T) {
	s, _ := Open("")
	s.SaveInsight(types.Insight{ID: "id-1", DatasetID: "sales", Version: "v1", SemanticHash: "h"})
	if !s.InsightExists("sales", "h") {
		t.Error("semantic hash should be indexed for the whole dataset history")
	}
	if s.InsightExists("other", "h") {
		t.Error("index must be scoped per dataset")
	}
}

func TestQueryCache(t *testing.T) {
	s, _ := Open("")
	entry := types.QueryCacheEntry{
		QueryHash: "qh", DatasetID: "sales",
		Response: "the answer", CreatedAt: "2026-03-01T11:00:00Z",
	}
	if err := s.PutQuery(entry); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetQuery("sales", "qh")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(entry, got); diff != "" {
		t.Errorf("query entry mismatch (-want +got):\n%s", diff)
	}
	if _, err := s.GetQuery("sales", "other"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing key err = %v, want ErrNotFound", err)
	}
}

func TestPersistence_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory", "snapshot.json")

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	wantSchema := testSchemaSnapshot("sales", "v1", "fp1")
	wantSignals := testSignals("sales", "v1")
	wantInsight := types.Insight{
		ID: "id-1", DatasetID: "sales", Version: "v1",
		Title: "t", TechnicalSummary: "ts", BusinessImpact: "bi",
		Confidence: 0.8, SemanticHash: "h",
	}
	if err := s.PutSchema(wantSchema); err != nil {
		t.Fatal(err)
	}
	if err := s.PutAnalysis(wantSignals); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveInsight(wantInsight); err != nil {
		t.Fatal(err)
	}
	if err := s.PutQuery(types.QueryCacheEntry{QueryHash: "qh", DatasetID: "sales", Response: "r", CreatedAt: "c"}); err != nil {
		t.Fatal(err)
	}

	reloaded, err := Open(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	gotSchema, err := reloaded.GetSchema("sales", "v1")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(wantSchema, gotSchema); diff != "" {
		t.Errorf("schema after reload (-want +got):\n%s", diff)
	}
	if !reloaded.HasAnalysis("sales", "v1") {
		t.Error("analysis should survive reload")
	}
	gotSignals, err := reloaded.GetAnalysis("sales", "v1")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(wantSignals, gotSignals); diff != "" {
		t.Errorf("analysis after reload (-want +got):\n%s", diff)
	}
	if !reloaded.InsightExists("sales", "h") {
		t.Error("semantic index should be rebuilt on load")
	}
	if _, err := reloaded.GetQuery("sales", "qh"); err != nil {
		t.Errorf("query cache should survive reload: %v", err)
	}

	// Dedup still holds against the reloaded index.
	stored, err := reloaded.SaveInsight(types.Insight{ID: "id-9", DatasetID: "sales", SemanticHash: "h"})
	if err != nil || stored {
		t.Errorf("duplicate after reload = (%t, %v), want (false, nil)", stored, err)
	}
}

func TestPersistence_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.PutSchema(testSchemaSnapshot("sales", "v1", "fp1")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("snapshot missing: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary snapshot file should be renamed away")
	}
}

func TestOpen_CorruptSnapshotFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	if err := os.WriteFile(path, []byte(`{"schemas": "not an array"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); !errors.Is(err, ErrSnapshotCorrupt) {
		t.Fatalf("corrupt snapshot must fail startup with ErrSnapshotCorrupt, got %v", err)
	}
}

func TestOpen_TruncatedSnapshotFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	if err := os.WriteFile(path, []byte(`{"schemas":[{"dat`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("truncated snapshot must fail startup")
	}
}

func TestOpen_RejectsNonConformingVersionTag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	raw := `{"schemas":[{"dataset_id":"sales","version":"2024-01-01","fingerprint":"fp","columns":{}}],"analyses":[],"insights":[],"query_cache":[]}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("snapshot with non-conforming version tag must fail startup")
	}
}

func TestOpen_MissingSnapshotIsEmptyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.json")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.ListInsights("sales"); len(got) != 0 {
		t.Errorf("fresh store should be empty, got %d insights", len(got))
	}
}

func TestSchemas_SortedNumerically(t *testing.T) {
	s, _ := Open("")
	s.PutSchema(testSchemaSnapshot("sales", "v10", "fp10"))
	s.PutSchema(testSchemaSnapshot("sales", "v2", "fp2"))
	s.PutSchema(testSchemaSnapshot("ads", "v1", "fp1"))

	got := s.Schemas()
	order := []string{}
	for _, snapshot := range got {
		order = append(order, snapshot.DatasetID+"/"+snapshot.Version)
	}
	want := []string{"ads/v1", "sales/v2", "sales/v10"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("ordering mismatch (-want +got):\n%s", diff)
	}
}
