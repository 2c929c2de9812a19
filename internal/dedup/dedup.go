// Package dedup decides whether a freshly synthesized insight repeats one
// the store already holds. Checks run cheapest-first: exact semantic-hash
// collision, then embedding similarity, then an oracle judgment when the
// backend has no embedding support.
package dedup

import (
	"context"
	"fmt"
	"math"

	"datamem/internal/oracle"
	"datamem/pkg/types"
)

// DefaultThreshold is the embedding cosine similarity at or above which two
// insights count as the same finding.
const DefaultThreshold = 0.88

// Method names the tier that produced a verdict.
type Method string

const (
	MethodNone      Method = "none"
	MethodHash      Method = "semantic_hash"
	MethodEmbedding Method = "embedding"
	MethodOracle    Method = "oracle"
)

// Verdict reports the duplicate decision and how it was reached. Similarity
// is only set for embedding verdicts.
type Verdict struct {
	Duplicate  bool
	Method     Method
	Similarity float64
}

// Deduplicator holds the oracle handle and similarity threshold.
type Deduplicator struct {
	oracle    oracle.Oracle
	threshold float64
}

// New builds a Deduplicator. A threshold of 0 selects DefaultThreshold.
func New(o oracle.Oracle, threshold float64) *Deduplicator {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Deduplicator{oracle: o, threshold: threshold}
}

// Check decides whether candidate duplicates anything in batchHashes (hashes
// already accepted in the current synthesis batch) or existing (persisted
// insights for the dataset). Embedding failures propagate; an absent
// embedding capability falls through to the oracle tier.
func (d *Deduplicator) Check(ctx context.Context, candidate types.Insight, batchHashes map[string]struct{}, existing []types.Insight) (Verdict, error) {
	if _, collides := batchHashes[candidate.SemanticHash]; collides {
		return Verdict{Duplicate: true, Method: MethodHash}, nil
	}
	for _, prior := range existing {
		if prior.SemanticHash == candidate.SemanticHash {
			return Verdict{Duplicate: true, Method: MethodHash}, nil
		}
	}
	if len(existing) == 0 {
		return Verdict{Method: MethodNone}, nil
	}

	verdict, checked, err := d.checkEmbeddings(ctx, candidate, existing)
	if err != nil {
		return Verdict{}, err
	}
	if checked {
		return verdict, nil
	}
	return d.checkOracle(ctx, candidate, existing)
}

// checkEmbeddings embeds the candidate and all existing insights in one call
// and compares pairwise. The second return is false when the backend has no
// embedding support.
func (d *Deduplicator) checkEmbeddings(ctx context.Context, candidate types.Insight, existing []types.Insight) (Verdict, bool, error) {
	texts := make([]string, 0, len(existing)+1)
	texts = append(texts, embeddingText(candidate))
	for _, prior := range existing {
		texts = append(texts, embeddingText(prior))
	}

	vectors, err := d.oracle.Embed(ctx, texts)
	if err != nil {
		return Verdict{}, false, fmt.Errorf("embed insights: %w", err)
	}
	if vectors == nil {
		return Verdict{}, false, nil
	}
	if len(vectors) != len(texts) {
		return Verdict{}, false, fmt.Errorf("embed insights: got %d vectors for %d texts", len(vectors), len(texts))
	}

	best := 0.0
	for _, prior := range vectors[1:] {
		if sim := cosine(vectors[0], prior); sim > best {
			best = sim
		}
	}
	return Verdict{
		Duplicate:  best >= d.threshold,
		Method:     MethodEmbedding,
		Similarity: best,
	}, true, nil
}

func (d *Deduplicator) checkOracle(ctx context.Context, candidate types.Insight, existing []types.Insight) (Verdict, error) {
	summaries := make([]string, 0, len(existing))
	for _, prior := range existing {
		summaries = append(summaries, prior.Summary())
	}

	reply, err := d.oracle.Complete(ctx, oracle.BuildDedupPrompt(candidate, summaries))
	if err != nil {
		return Verdict{}, fmt.Errorf("dedup judgment: %w", err)
	}
	return Verdict{
		Duplicate: oracle.ParseDuplicateVerdict(reply),
		Method:    MethodOracle,
	}, nil
}

func embeddingText(in types.Insight) string {
	return in.Title + " " + in.TechnicalSummary
}

func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
