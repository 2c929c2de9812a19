package types

import "fmt"

// Insight is a synthesized finding. SemanticHash is a digest of a normalized
// dedup key, not of the raw text, so paraphrases collapse to one hash.
// Insights are immutable once accepted.
type Insight struct {
	ID               string  `json:"insight_id"`
	DatasetID        string  `json:"dataset_id"`
	Version          string  `json:"version"`
	Title            string  `json:"title"`
	TechnicalSummary string  `json:"technical_summary"`
	BusinessImpact   string  `json:"business_impact"`
	Confidence       float64 `json:"confidence"`
	SemanticHash     string  `json:"semantic_hash"`
}

// Summary is the compact form passed back into later synthesis calls.
func (i Insight) Summary() string {
	summary := i.TechnicalSummary
	if len(summary) > 240 {
		summary = summary[:240]
	}
	return fmt.Sprintf("%s :: %s", i.Title, summary)
}

// QueryCacheEntry is a cached natural-language answer. Entries are immutable
// and never invalidated; the key digest includes the version so newer data
// gets a fresh entry.
type QueryCacheEntry struct {
	QueryHash string `json:"query_hash"`
	DatasetID string `json:"dataset_id"`
	Response  string `json:"response"`
	CreatedAt string `json:"created_at"`
}
