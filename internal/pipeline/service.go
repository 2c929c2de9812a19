// Package pipeline wires the memory layers into the four user-facing
// operations: ingest, analyze, query, compare. All collaborators are
// injected; the service owns orchestration and nothing else.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"datamem/internal/dedup"
	"datamem/internal/drift"
	"datamem/internal/identity"
	"datamem/internal/ledger"
	"datamem/internal/memstore"
	"datamem/internal/oracle"
	"datamem/pkg/types"
)

// Profiler computes the per-version artifacts from a dataset file.
type Profiler interface {
	ProfileFile(path, datasetID, version, fingerprint string) (types.SchemaSnapshot, types.AnalysisSignals, error)
}

// Options tune the service. Zero values select defaults.
type Options struct {
	DedupThreshold float64
	MaxNewInsights int
	// Compressor optionally shrinks prompts before completion calls.
	// Compression failures fall back to the uncompressed prompt.
	Compressor oracle.Compressor
}

const defaultMaxNewInsights = 8

type Service struct {
	store      *memstore.Store
	ledger     *ledger.Ledger
	oracle     oracle.Oracle
	dedup      *dedup.Deduplicator
	profiler   Profiler
	compressor oracle.Compressor
	maxNew     int
}

// New builds the service and replays the store's schemas into the version
// ledger so allocation continues where the last process stopped.
func New(store *memstore.Store, ldg *ledger.Ledger, orc oracle.Oracle, profiler Profiler, opts Options) (*Service, error) {
	maxNew := opts.MaxNewInsights
	if maxNew <= 0 {
		maxNew = defaultMaxNewInsights
	}

	for _, snapshot := range store.Schemas() {
		if err := ldg.Restore(snapshot.DatasetID, snapshot.Version, snapshot.Fingerprint); err != nil {
			return nil, fmt.Errorf("restore ledger: %w", err)
		}
	}

	return &Service{
		store:      store,
		ledger:     ldg,
		oracle:     orc,
		dedup:      dedup.New(orc, opts.DedupThreshold),
		profiler:   profiler,
		compressor: opts.Compressor,
		maxNew:     maxNew,
	}, nil
}

// IngestResult reports where a dataset file landed in the version history.
type IngestResult struct {
	DatasetID   string
	Version     string
	Fingerprint string
	// Reused is true when the file's content already had a version; nothing
	// was recomputed or written.
	Reused      bool
	RowCount    int64
	ColumnCount int
}

// Ingest registers one dataset file. Identical content maps onto its
// existing version; new content gets the next version and a fresh schema
// snapshot.
func (s *Service) Ingest(datasetID, path string) (IngestResult, error) {
	digest, _, err := identity.DigestFile(path)
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest %s: %w", datasetID, err)
	}

	version, isNew := s.ledger.AssignOrReuse(datasetID, digest)
	if !isNew {
		if snapshot, err := s.store.GetSchema(datasetID, version); err == nil {
			return IngestResult{
				DatasetID:   datasetID,
				Version:     version,
				Fingerprint: digest,
				Reused:      true,
				RowCount:    snapshot.RowCount,
				ColumnCount: snapshot.ColumnCount,
			}, nil
		}
		// Ledger knows the version but the snapshot is gone; fall through
		// and rebuild it.
	}

	snapshot, signals, err := s.profiler.ProfileFile(path, datasetID, version, digest)
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest %s: %w", datasetID, err)
	}
	if err := s.store.PutSchema(snapshot); err != nil {
		return IngestResult{}, fmt.Errorf("ingest %s: %w", datasetID, err)
	}
	if err := s.store.PutAnalysis(signals); err != nil {
		return IngestResult{}, fmt.Errorf("ingest %s: %w", datasetID, err)
	}

	return IngestResult{
		DatasetID:   datasetID,
		Version:     version,
		Fingerprint: digest,
		RowCount:    snapshot.RowCount,
		ColumnCount: snapshot.ColumnCount,
	}, nil
}

// IngestSpec names one dataset file for IngestAll.
type IngestSpec struct {
	DatasetID string
	Path      string
}

// IngestAll ingests several datasets concurrently. The first failure cancels
// the rest and is returned; results are positionally aligned with specs.
func (s *Service) IngestAll(ctx context.Context, specs []IngestSpec) ([]IngestResult, error) {
	results := make([]IngestResult, len(specs))

	g, ctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := s.Ingest(spec.DatasetID, spec.Path)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// AnalyzeResult carries the analysis artifacts plus what the synthesis round
// did, if one ran.
type AnalyzeResult struct {
	DatasetID string
	Version   string
	// RunID identifies one synthesis round in logs; empty when synthesis
	// was skipped.
	RunID    string
	Signals  types.AnalysisSignals
	Insights []types.Insight
	// Synthesized is false when the version already had insights and the
	// cached ones were returned as-is.
	Synthesized       bool
	NewInsights       int
	DuplicatesSkipped int
}

// Analyze produces signals and insights for one version (latest when version
// is empty). Signals are cached per version; synthesis runs only for
// versions with no insights yet. New insights are deduplicated against the
// dataset's whole history and saved only after the full batch succeeds, so a
// mid-batch failure writes nothing.
func (s *Service) Analyze(ctx context.Context, datasetID, version string) (AnalyzeResult, error) {
	version, err := s.resolveVersion(datasetID, version)
	if err != nil {
		return AnalyzeResult{}, err
	}
	snapshot, err := s.store.GetSchema(datasetID, version)
	if err != nil {
		return AnalyzeResult{}, fmt.Errorf("analyze %s %s: %w", datasetID, version, err)
	}

	signals, err := s.signalsFor(snapshot)
	if err != nil {
		return AnalyzeResult{}, err
	}

	result := AnalyzeResult{DatasetID: datasetID, Version: version, Signals: signals}

	if existing := s.insightsForVersion(datasetID, version); len(existing) > 0 {
		result.Insights = existing
		return result, nil
	}

	accepted, skipped, err := s.synthesize(ctx, snapshot, signals)
	if err != nil {
		return AnalyzeResult{}, fmt.Errorf("analyze %s %s: %w", datasetID, version, err)
	}
	for _, insight := range accepted {
		saved, err := s.store.SaveInsight(insight)
		if err != nil {
			return AnalyzeResult{}, fmt.Errorf("analyze %s %s: %w", datasetID, version, err)
		}
		if saved {
			result.NewInsights++
		}
	}

	result.RunID = uuid.NewString()
	result.Synthesized = true
	result.DuplicatesSkipped = skipped
	result.Insights = s.insightsForVersion(datasetID, version)
	return result, nil
}

// signalsFor returns cached signals for the snapshot's version, recomputing
// from the source file only on a miss.
func (s *Service) signalsFor(snapshot types.SchemaSnapshot) (types.AnalysisSignals, error) {
	if s.store.HasAnalysis(snapshot.DatasetID, snapshot.Version) {
		return s.store.GetAnalysis(snapshot.DatasetID, snapshot.Version)
	}

	_, signals, err := s.profiler.ProfileFile(snapshot.SourcePath, snapshot.DatasetID, snapshot.Version, snapshot.Fingerprint)
	if err != nil {
		return types.AnalysisSignals{}, fmt.Errorf("compute signals for %s %s: %w", snapshot.DatasetID, snapshot.Version, err)
	}
	if err := s.store.PutAnalysis(signals); err != nil {
		return types.AnalysisSignals{}, fmt.Errorf("cache signals for %s %s: %w", snapshot.DatasetID, snapshot.Version, err)
	}
	return signals, nil
}

// synthesize runs one completion round and filters the candidates through
// dedup. Nothing is persisted here; the caller saves the accepted batch.
func (s *Service) synthesize(ctx context.Context, snapshot types.SchemaSnapshot, signals types.AnalysisSignals) (accepted []types.Insight, skipped int, err error) {
	existing := s.store.ListInsights(snapshot.DatasetID)
	summaries := make([]string, 0, len(existing))
	for _, insight := range existing {
		summaries = append(summaries, insight.Summary())
	}

	prompt := s.compress(ctx, oracle.BuildSynthesisPrompt(snapshot, signals, summaries, s.maxNew))
	reply, err := s.oracle.Complete(ctx, prompt)
	if err != nil {
		return nil, 0, fmt.Errorf("synthesis: %w", err)
	}

	candidates := oracle.ParseInsights(reply)
	if len(candidates) > s.maxNew {
		candidates = candidates[:s.maxNew]
	}

	batchHashes := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		hash := identity.SemanticHash(candidate.DedupKey)
		insight := types.Insight{
			ID:               identity.InsightID(snapshot.DatasetID, snapshot.Version, hash),
			DatasetID:        snapshot.DatasetID,
			Version:          snapshot.Version,
			Title:            candidate.Title,
			TechnicalSummary: candidate.TechnicalSummary,
			BusinessImpact:   candidate.BusinessImpact,
			Confidence:       candidate.Confidence,
			SemanticHash:     hash,
		}

		verdict, err := s.dedup.Check(ctx, insight, batchHashes, existing)
		if err != nil {
			return nil, 0, err
		}
		if verdict.Duplicate {
			skipped++
			continue
		}
		batchHashes[hash] = struct{}{}
		accepted = append(accepted, insight)
	}
	return accepted, skipped, nil
}

// QueryResult is a natural-language answer over stored artifacts.
type QueryResult struct {
	DatasetID string
	Version   string
	Answer    string
	Cached    bool
}

// Query answers a question about one version from stored context only.
// Answers are cached by (dataset, version, question); repeated questions
// never reach the oracle again.
func (s *Service) Query(ctx context.Context, datasetID, version, question string) (QueryResult, error) {
	version, err := s.resolveVersion(datasetID, version)
	if err != nil {
		return QueryResult{}, err
	}

	queryHash := identity.QueryHash(datasetID, version, question)
	if entry, err := s.store.GetQuery(datasetID, queryHash); err == nil {
		return QueryResult{DatasetID: datasetID, Version: version, Answer: entry.Response, Cached: true}, nil
	}

	snapshot, err := s.store.GetSchema(datasetID, version)
	if err != nil {
		return QueryResult{}, fmt.Errorf("query %s %s: %w", datasetID, version, err)
	}

	var analysis *types.AnalysisSignals
	if s.store.HasAnalysis(datasetID, version) {
		signals, err := s.store.GetAnalysis(datasetID, version)
		if err == nil {
			analysis = &signals
		}
	}

	insights := s.insightsForVersion(datasetID, version)
	summaries := make([]string, 0, len(insights))
	for _, insight := range insights {
		summaries = append(summaries, insight.Summary())
	}

	prompt := s.compress(ctx, oracle.BuildQueryPrompt(snapshot, analysis, question, summaries))
	reply, err := s.oracle.Complete(ctx, prompt)
	if err != nil {
		return QueryResult{}, fmt.Errorf("query %s %s: %w", datasetID, version, err)
	}
	answer := oracle.ParseAnswer(reply)

	entry := types.QueryCacheEntry{
		QueryHash: queryHash,
		DatasetID: datasetID,
		Response:  answer,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.store.PutQuery(entry); err != nil {
		return QueryResult{}, fmt.Errorf("query %s %s: %w", datasetID, version, err)
	}
	return QueryResult{DatasetID: datasetID, Version: version, Answer: answer}, nil
}

// Compare builds a drift report between two stored versions using their
// compressed snapshots.
func (s *Service) Compare(datasetID, baseVersion, compareVersion string) (drift.Report, error) {
	base, err := s.store.GetSchema(datasetID, baseVersion)
	if err != nil {
		return drift.Report{}, fmt.Errorf("compare %s: base %s: %w", datasetID, baseVersion, err)
	}
	comp, err := s.store.GetSchema(datasetID, compareVersion)
	if err != nil {
		return drift.Report{}, fmt.Errorf("compare %s: compare %s: %w", datasetID, compareVersion, err)
	}
	return drift.FullReport(base, comp, nil), nil
}

// Versions lists the known version tags of a dataset in numeric order.
func (s *Service) Versions(datasetID string) []string {
	return s.ledger.List(datasetID)
}

// Insights lists all stored insights for a dataset across versions.
func (s *Service) Insights(datasetID string) []types.Insight {
	return s.store.ListInsights(datasetID)
}

func (s *Service) resolveVersion(datasetID, version string) (string, error) {
	if version != "" {
		return version, nil
	}
	latest, ok := s.ledger.Latest(datasetID)
	if !ok {
		return "", fmt.Errorf("dataset %s has no versions", datasetID)
	}
	return latest, nil
}

func (s *Service) insightsForVersion(datasetID, version string) []types.Insight {
	var out []types.Insight
	for _, insight := range s.store.ListInsights(datasetID) {
		if insight.Version == version {
			out = append(out, insight)
		}
	}
	return out
}

func (s *Service) compress(ctx context.Context, prompt string) string {
	if s.compressor == nil {
		return prompt
	}
	compressed, err := s.compressor.Compress(ctx, prompt)
	if err != nil {
		return prompt
	}
	return compressed
}
