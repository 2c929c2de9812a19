package identity

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	punctRe      = regexp.MustCompile(`[^\w\s\-]`)
)

// NormalizeDedupKey lowercases, collapses whitespace, and strips most
// punctuation so minor rephrasings of the same dedup key hash identically.
func NormalizeDedupKey(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = whitespaceRe.ReplaceAllString(text, " ")
	return punctRe.ReplaceAllString(text, "")
}

// SemanticHash is the deterministic digest of a normalized dedup key.
func SemanticHash(dedupKey string) string {
	return DigestText(NormalizeDedupKey(dedupKey))
}

// InsightID derives a stable insight identifier: re-running synthesis for the
// same dataset, version, and semantic core yields the same ID.
func InsightID(datasetID, version, semanticHash string) string {
	return DigestText(fmt.Sprintf("%s|%s|%s", datasetID, version, semanticHash))[:16]
}

// QueryHash keys the query cache by dataset, version, and question text so a
// new version never serves an older version's answer.
func QueryHash(datasetID, version, question string) string {
	return DigestText(fmt.Sprintf("%s|%s|%s", datasetID, version, question))
}
