package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"datamem/internal/ledger"
	"datamem/internal/memstore"
	"datamem/internal/profile"
)

// scriptedOracle returns canned completions in order. Embed reports the
// capability as absent so dedup exercises the hash and judgment tiers.
type scriptedOracle struct {
	replies       []string
	completeErr   error
	completeCalls int
}

func (o *scriptedOracle) Complete(_ context.Context, _ string) (string, error) {
	o.completeCalls++
	if o.completeErr != nil {
		return "", o.completeErr
	}
	if len(o.replies) == 0 {
		return `{"insights":[]}`, nil
	}
	reply := o.replies[0]
	o.replies = o.replies[1:]
	return reply, nil
}

func (o *scriptedOracle) Embed(_ context.Context, _ []string) ([][]float64, error) {
	return nil, nil
}

func insightReply(title, dedupKey string) string {
	return fmt.Sprintf(
		`{"insights":[{"title":%q,"technical_summary":"Signal summary.","business_impact":"Matters.","confidence":0.7,"dedup_key":%q}]}`,
		title, dedupKey)
}

func writeDataset(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
}

func numericCSV(base int) string {
	var sb strings.Builder
	sb.WriteString("amount\n")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&sb, "%d\n", base+i)
	}
	return sb.String()
}

func newTestService(t *testing.T, storePath string, orc *scriptedOracle) *Service {
	t.Helper()
	store, err := memstore.Open(storePath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	svc, err := New(store, ledger.New(), orc, profile.New(profile.Options{}), Options{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestIngestAssignsAndReusesVersions(t *testing.T) {
	svc := newTestService(t, "", &scriptedOracle{})
	path := filepath.Join(t.TempDir(), "sales.csv")
	writeDataset(t, path, numericCSV(10))

	first, err := svc.Ingest("sales", path)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if first.Version != "v1" || first.Reused {
		t.Fatalf("first ingest: %+v", first)
	}
	if first.RowCount != 30 || first.ColumnCount != 1 {
		t.Errorf("counts: %+v", first)
	}

	again, err := svc.Ingest("sales", path)
	if err != nil {
		t.Fatalf("re-ingest: %v", err)
	}
	if again.Version != "v1" || !again.Reused {
		t.Errorf("identical content should reuse v1: %+v", again)
	}

	writeDataset(t, path, numericCSV(500))
	changed, err := svc.Ingest("sales", path)
	if err != nil {
		t.Fatalf("ingest changed: %v", err)
	}
	if changed.Version != "v2" || changed.Reused {
		t.Errorf("changed content should get v2: %+v", changed)
	}
}

func TestIngestMissingFile(t *testing.T) {
	svc := newTestService(t, "", &scriptedOracle{})
	if _, err := svc.Ingest("sales", filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatal("expected error")
	}
}

func TestIngestAll(t *testing.T) {
	svc := newTestService(t, "", &scriptedOracle{})
	dir := t.TempDir()

	var specs []IngestSpec
	for i := 0; i < 4; i++ {
		path := filepath.Join(dir, fmt.Sprintf("d%d.csv", i))
		writeDataset(t, path, numericCSV(i*100))
		specs = append(specs, IngestSpec{DatasetID: fmt.Sprintf("d%d", i), Path: path})
	}

	results, err := svc.IngestAll(context.Background(), specs)
	if err != nil {
		t.Fatalf("IngestAll: %v", err)
	}
	for i, res := range results {
		if res.DatasetID != specs[i].DatasetID || res.Version != "v1" {
			t.Errorf("result %d: %+v", i, res)
		}
	}

	specs = append(specs, IngestSpec{DatasetID: "broken", Path: filepath.Join(dir, "missing.csv")})
	if _, err := svc.IngestAll(context.Background(), specs); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestAnalyzeSynthesizesOncePerVersion(t *testing.T) {
	orc := &scriptedOracle{replies: []string{insightReply("Amounts cluster low", "amount cluster")}}
	svc := newTestService(t, "", orc)
	path := filepath.Join(t.TempDir(), "sales.csv")
	writeDataset(t, path, numericCSV(10))
	if _, err := svc.Ingest("sales", path); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	res, err := svc.Analyze(context.Background(), "sales", "")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !res.Synthesized || res.NewInsights != 1 || res.RunID == "" {
		t.Fatalf("first analyze: %+v", res)
	}
	if res.Version != "v1" {
		t.Errorf("empty version should resolve to latest, got %s", res.Version)
	}
	if len(res.Signals.Numeric) != 1 {
		t.Errorf("signals missing: %+v", res.Signals)
	}

	calls := orc.completeCalls
	cached, err := svc.Analyze(context.Background(), "sales", "v1")
	if err != nil {
		t.Fatalf("second analyze: %v", err)
	}
	if cached.Synthesized || cached.NewInsights != 0 {
		t.Errorf("second analyze should return cached insights: %+v", cached)
	}
	if len(cached.Insights) != 1 || orc.completeCalls != calls {
		t.Errorf("cached analyze must not call the oracle")
	}
}

func TestAnalyzeDeduplicatesAcrossVersions(t *testing.T) {
	orc := &scriptedOracle{replies: []string{
		insightReply("Amounts cluster low", "amount cluster"),
		insightReply("Amount values form a cluster", "Amount   CLUSTER!"),
	}}
	svc := newTestService(t, "", orc)
	path := filepath.Join(t.TempDir(), "sales.csv")

	writeDataset(t, path, numericCSV(10))
	if _, err := svc.Ingest("sales", path); err != nil {
		t.Fatalf("ingest v1: %v", err)
	}
	if _, err := svc.Analyze(context.Background(), "sales", ""); err != nil {
		t.Fatalf("analyze v1: %v", err)
	}

	writeDataset(t, path, numericCSV(500))
	if _, err := svc.Ingest("sales", path); err != nil {
		t.Fatalf("ingest v2: %v", err)
	}
	res, err := svc.Analyze(context.Background(), "sales", "")
	if err != nil {
		t.Fatalf("analyze v2: %v", err)
	}
	if res.NewInsights != 0 || res.DuplicatesSkipped != 1 {
		t.Errorf("paraphrased dedup key should collapse onto the v1 insight: %+v", res)
	}
	if got := len(svc.Insights("sales")); got != 1 {
		t.Errorf("stored insights = %d, want 1", got)
	}
}

func TestAnalyzeAbortsWhenOracleFails(t *testing.T) {
	orc := &scriptedOracle{completeErr: errors.New("backend down")}
	svc := newTestService(t, "", orc)
	path := filepath.Join(t.TempDir(), "sales.csv")
	writeDataset(t, path, numericCSV(10))
	if _, err := svc.Ingest("sales", path); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if _, err := svc.Analyze(context.Background(), "sales", ""); err == nil {
		t.Fatal("expected synthesis failure")
	}
	if got := len(svc.Insights("sales")); got != 0 {
		t.Errorf("failed synthesis must not persist insights, found %d", got)
	}
}

func TestAnalyzeUnknownDataset(t *testing.T) {
	svc := newTestService(t, "", &scriptedOracle{})
	if _, err := svc.Analyze(context.Background(), "ghost", ""); err == nil {
		t.Fatal("expected error for dataset without versions")
	}
}

func TestQueryCachesPerVersion(t *testing.T) {
	orc := &scriptedOracle{replies: []string{
		`{"insights":[]}`,
		`{"answer":"30 rows.","used":["schema"],"limitations":""}`,
		`{"answer":"Also 30 rows.","used":["schema"],"limitations":""}`,
	}}
	svc := newTestService(t, "", orc)
	path := filepath.Join(t.TempDir(), "sales.csv")
	writeDataset(t, path, numericCSV(10))
	if _, err := svc.Ingest("sales", path); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if _, err := svc.Analyze(context.Background(), "sales", ""); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	first, err := svc.Query(context.Background(), "sales", "", "How many rows?")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if first.Cached || first.Answer != "30 rows." {
		t.Fatalf("first query: %+v", first)
	}

	calls := orc.completeCalls
	repeat, err := svc.Query(context.Background(), "sales", "", "How many rows?")
	if err != nil {
		t.Fatalf("repeat query: %v", err)
	}
	if !repeat.Cached || repeat.Answer != "30 rows." || orc.completeCalls != calls {
		t.Errorf("repeat query should hit the cache: %+v", repeat)
	}

	writeDataset(t, path, numericCSV(500))
	if _, err := svc.Ingest("sales", path); err != nil {
		t.Fatalf("ingest v2: %v", err)
	}
	fresh, err := svc.Query(context.Background(), "sales", "v2", "How many rows?")
	if err != nil {
		t.Fatalf("v2 query: %v", err)
	}
	if fresh.Cached {
		t.Errorf("a new version must not serve the old version's answer")
	}
}

func TestCompareReportsDrift(t *testing.T) {
	svc := newTestService(t, "", &scriptedOracle{})
	dir := t.TempDir()
	path := filepath.Join(dir, "sales.csv")

	writeDataset(t, path, numericCSV(10))
	if _, err := svc.Ingest("sales", path); err != nil {
		t.Fatalf("ingest v1: %v", err)
	}

	var sb strings.Builder
	sb.WriteString("amount,region\n")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&sb, "%d,north\n", 5000+i*100)
	}
	writeDataset(t, path, sb.String())
	if _, err := svc.Ingest("sales", path); err != nil {
		t.Fatalf("ingest v2: %v", err)
	}

	report, err := svc.Compare("sales", "v1", "v2")
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if report.BaseVersion != "v1" || report.CompareVersion != "v2" {
		t.Errorf("report versions: %+v", report)
	}
	if len(report.Schema.AddedColumns) != 1 || report.Schema.AddedColumns[0] != "region" {
		t.Errorf("added columns: %v", report.Schema.AddedColumns)
	}
	if report.OverallDriftScore <= 0 {
		t.Errorf("drift score should be positive, got %v", report.OverallDriftScore)
	}

	if _, err := svc.Compare("sales", "v1", "v9"); err == nil {
		t.Error("expected error for unknown version")
	}
}

func TestNewRestoresLedgerFromSnapshot(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "memory.json")
	path := filepath.Join(dir, "sales.csv")

	svc := newTestService(t, storePath, &scriptedOracle{})
	writeDataset(t, path, numericCSV(10))
	if _, err := svc.Ingest("sales", path); err != nil {
		t.Fatalf("ingest v1: %v", err)
	}
	writeDataset(t, path, numericCSV(500))
	if _, err := svc.Ingest("sales", path); err != nil {
		t.Fatalf("ingest v2: %v", err)
	}

	reopened := newTestService(t, storePath, &scriptedOracle{})
	if got := reopened.Versions("sales"); len(got) != 2 || got[1] != "v2" {
		t.Fatalf("restored versions = %v", got)
	}

	writeDataset(t, path, numericCSV(9000))
	res, err := reopened.Ingest("sales", path)
	if err != nil {
		t.Fatalf("ingest after restart: %v", err)
	}
	if res.Version != "v3" {
		t.Errorf("allocation should continue at v3, got %s", res.Version)
	}

	reused, err := reopened.Ingest("sales", path)
	if err != nil {
		t.Fatalf("re-ingest after restart: %v", err)
	}
	if !reused.Reused || reused.Version != "v3" {
		t.Errorf("restored fingerprints should still dedupe: %+v", reused)
	}
}
