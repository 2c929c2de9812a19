package oracle

import (
	"encoding/json"
	"strings"
)

// InsightCandidate is one raw synthesis result before IDs and semantic
// hashes are assigned.
type InsightCandidate struct {
	Title            string  `json:"title"`
	TechnicalSummary string  `json:"technical_summary"`
	BusinessImpact   string  `json:"business_impact"`
	Confidence       float64 `json:"confidence"`
	DedupKey         string  `json:"dedup_key"`
}

// ParseObject extracts a JSON object from model output. Models sometimes
// wrap the object in extra prose; the first '{' to last '}' substring is
// tried before giving up. A nil result means no object could be recovered.
func ParseObject(text string) map[string]any {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil {
		return obj
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err == nil {
			return obj
		}
	}
	return nil
}

// ParseInsights pulls the insights list out of a synthesis reply. Malformed
// or non-JSON replies degrade to an empty list rather than raising.
func ParseInsights(text string) []InsightCandidate {
	obj := ParseObject(text)
	if obj == nil {
		return nil
	}
	items, ok := obj["insights"].([]any)
	if !ok {
		return nil
	}

	out := make([]InsightCandidate, 0, len(items))
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		c := InsightCandidate{
			Title:            asString(fields["title"]),
			TechnicalSummary: asString(fields["technical_summary"]),
			BusinessImpact:   asString(fields["business_impact"]),
			Confidence:       clamp01(asFloat(fields["confidence"], 0.5)),
			DedupKey:         asString(fields["dedup_key"]),
		}
		if c.DedupKey == "" {
			c.DedupKey = c.Title
		}
		if c.Title == "" && c.TechnicalSummary == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ParseAnswer extracts the answer field from a query reply; a missing field
// falls back to the raw oracle output so the response stays usable and
// cacheable.
func ParseAnswer(text string) string {
	if obj := ParseObject(text); obj != nil {
		if answer := strings.TrimSpace(asString(obj["answer"])); answer != "" {
			return answer
		}
	}
	return strings.TrimSpace(text)
}

// ParseDuplicateVerdict reads the fallback dedup decision; anything
// unparseable counts as "not a duplicate" so a flaky reply never suppresses
// a novel insight.
func ParseDuplicateVerdict(text string) bool {
	obj := ParseObject(text)
	if obj == nil {
		return false
	}
	verdict, _ := obj["is_duplicate"].(bool)
	return verdict
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func asFloat(v any, fallback float64) float64 {
	f, ok := v.(float64)
	if !ok {
		return fallback
	}
	return f
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
