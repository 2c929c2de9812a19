package oracle

import (
	"encoding/json"
	"fmt"

	"datamem/pkg/types"
)

// Prompt-size discipline: existing insights are passed as short summaries
// only, hard-capped per prompt kind.
const (
	synthesisSummaryCap = 50
	dedupSampleCap      = 20
	querySummaryCap     = 80
)

const systemRules = `You are an expert data analyst.
You must ONLY use the provided context. Do not invent data.
Do NOT compute statistics. Treat all numbers in the context as given.
Return valid JSON only, with no markdown, no commentary.`

type synthesisPayload struct {
	DatasetID        string                `json:"dataset_id"`
	Version          string                `json:"version"`
	Schema           types.SchemaSnapshot  `json:"schema"`
	Analysis         types.AnalysisSignals `json:"analysis"`
	ExistingInsights []string              `json:"existing_insights"`
	Constraints      map[string]any        `json:"constraints"`
}

// BuildSynthesisPrompt produces the one-shot insight synthesis prompt from
// compressed context only.
func BuildSynthesisPrompt(schema types.SchemaSnapshot, analysis types.AnalysisSignals, existingSummaries []string, maxNewInsights int) string {
	payload := synthesisPayload{
		DatasetID:        schema.DatasetID,
		Version:          schema.Version,
		Schema:           schema,
		Analysis:         analysis,
		ExistingInsights: capStrings(existingSummaries, synthesisSummaryCap),
		Constraints: map[string]any{
			"max_new_insights":    maxNewInsights,
			"no_new_statistics":   true,
			"no_dataframe_access": true,
		},
	}
	context := mustCompactJSON(payload)

	return fmt.Sprintf(`%s

Task:
Synthesize up to %d non-redundant insights by combining multiple signals when appropriate.

Each insight must include:
- title: short, specific
- technical_summary: explain signals and how they connect
- business_impact: why it matters in business terms (no made-up metrics)
- confidence: float 0..1 based on support/consistency/strength in provided signals
- dedup_key: a short normalized phrase capturing the semantic core

Avoid duplicates vs existing_insights. Deduplicate semantically (not string equality).

Return JSON in this exact shape:
{"insights":[{"title":..., "technical_summary":..., "business_impact":..., "confidence":..., "dedup_key":...}, ...]}

Context (JSON):
%s
`, systemRules, maxNewInsights, context)
}

type dedupPayload struct {
	Candidate map[string]string `json:"candidate"`
	Existing  []string          `json:"existing"`
}

// BuildDedupPrompt is the fallback semantic duplicate check used when
// embeddings are unavailable. Kept tiny: one candidate against a bounded
// sample of existing summaries.
func BuildDedupPrompt(candidate types.Insight, existingSummaries []string) string {
	payload := dedupPayload{
		Candidate: map[string]string{
			"title":             candidate.Title,
			"technical_summary": candidate.TechnicalSummary,
			"business_impact":   candidate.BusinessImpact,
		},
		Existing: capStrings(existingSummaries, dedupSampleCap),
	}
	return fmt.Sprintf(`%s

Task:
Decide if candidate is semantically redundant with any existing item.
Return JSON: {"is_duplicate":true/false,"reason":string}

Context:
%s
`, systemRules, mustCompactJSON(payload))
}

type queryPayload struct {
	DatasetID string                 `json:"dataset_id"`
	Version   string                 `json:"version"`
	Question  string                 `json:"question"`
	Schema    types.SchemaSnapshot   `json:"schema"`
	Analysis  *types.AnalysisSignals `json:"analysis"`
	Insights  []string               `json:"insights"`
}

// BuildQueryPrompt asks the oracle to answer a question from compressed
// stored context alone. Analysis may be nil; some questions need only the
// schema.
func BuildQueryPrompt(schema types.SchemaSnapshot, analysis *types.AnalysisSignals, question string, insightSummaries []string) string {
	payload := queryPayload{
		DatasetID: schema.DatasetID,
		Version:   schema.Version,
		Question:  question,
		Schema:    schema,
		Analysis:  analysis,
		Insights:  capStrings(insightSummaries, querySummaryCap),
	}
	return fmt.Sprintf(`%s

Task:
Answer the user's question using ONLY the provided context.
If the context is insufficient, say what is missing and suggest the minimum additional analysis needed.
Do NOT compute new statistics or invent values.

Return JSON in this shape:
{"answer":string,"used":["schema"|"analysis"|"insights"],"limitations":string}

Context (JSON):
%s
`, systemRules, mustCompactJSON(payload))
}

func capStrings(in []string, cap int) []string {
	if len(in) > cap {
		in = in[:cap]
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func mustCompactJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		// Payload structs marshal deterministically; this cannot fire for
		// well-formed artifacts.
		return "{}"
	}
	return string(raw)
}
