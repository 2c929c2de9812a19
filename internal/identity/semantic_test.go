package identity

import "testing"

func TestNormalizeDedupKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Revenue dropped in Q3", "revenue dropped in q3"},
		{"  Revenue   dropped\tin Q3!  ", "revenue dropped in q3"},
		{"revenue-dropped, in (Q3)", "revenue-dropped in q3"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeDedupKey(c.in); got != c.want {
			t.Errorf("NormalizeDedupKey(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSemanticHash_ParaphrasesCollapse(t *testing.T) {
	a := SemanticHash("High null rate in email column")
	b := SemanticHash("  high NULL rate in email column!! ")
	if a != b {
		t.Errorf("normalized variants hashed differently: %q vs %q", a, b)
	}
	c := SemanticHash("high null rate in phone column")
	if a == c {
		t.Error("distinct keys should not collide")
	}
}

func TestInsightID_StableAndScoped(t *testing.T) {
	h := SemanticHash("churn risk from rising nulls")
	id1 := InsightID("sales", "v2", h)
	id2 := InsightID("sales", "v2", h)
	if id1 != id2 {
		t.Error("insight ID must be stable across runs")
	}
	if len(id1) != 16 {
		t.Errorf("insight ID length = %d, want 16", len(id1))
	}
	if InsightID("sales", "v3", h) == id1 {
		t.Error("different versions must yield different IDs")
	}
}

func TestQueryHash_VersionScoped(t *testing.T) {
	q1 := QueryHash("sales", "v1", "what changed?")
	q2 := QueryHash("sales", "v2", "what changed?")
	if q1 == q2 {
		t.Error("query hash must include the version")
	}
	if q1 != QueryHash("sales", "v1", "what changed?") {
		t.Error("query hash must be deterministic")
	}
}
