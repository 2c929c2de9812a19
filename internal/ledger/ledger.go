// Package ledger assigns monotonically increasing version tags to dataset
// content fingerprints. Tags always follow the v<N> convention; the ledger is
// the only allocator, so lexicographic fallbacks never apply.
package ledger

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

type entry struct {
	version     string
	number      int
	fingerprint string
}

// Ledger maps a dataset identifier to its ordered version history.
// Assignment is append-only: a version is created exactly once, at first
// sight of a new fingerprint, and never mutated or reused.
type Ledger struct {
	mu       sync.Mutex
	datasets map[string][]entry
}

func New() *Ledger {
	return &Ledger{datasets: make(map[string][]entry)}
}

// ParseVersion validates the strict v<N> convention (N >= 1, no leading
// zeros) and returns N.
func ParseVersion(tag string) (int, error) {
	rest, ok := strings.CutPrefix(tag, "v")
	if !ok || rest == "" {
		return 0, fmt.Errorf("version %q does not follow v<N> convention", tag)
	}
	if rest[0] == '0' {
		return 0, fmt.Errorf("version %q does not follow v<N> convention", tag)
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("version %q does not follow v<N> convention", tag)
	}
	return n, nil
}

// AssignOrReuse returns the existing version carrying this exact fingerprint,
// or allocates the next tag. Re-ingesting identical content is a no-op.
func (l *Ledger) AssignOrReuse(datasetID, fingerprint string) (version string, isNew bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.datasets[datasetID]
	for _, e := range entries {
		if e.fingerprint == fingerprint {
			return e.version, false
		}
	}

	next := 1
	if len(entries) > 0 {
		next = entries[len(entries)-1].number + 1
	}
	tag := fmt.Sprintf("v%d", next)
	l.datasets[datasetID] = append(entries, entry{version: tag, number: next, fingerprint: fingerprint})
	return tag, true
}

// Latest returns the highest-numbered version. Absence of history is a
// normal state: unknown datasets return ok=false, never an error.
func (l *Ledger) Latest(datasetID string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.datasets[datasetID]
	if len(entries) == 0 {
		return "", false
	}
	return entries[len(entries)-1].version, true
}

// List returns all versions for a dataset sorted ascending; empty if the
// dataset is unknown.
func (l *Ledger) List(datasetID string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.datasets[datasetID]
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.version)
	}
	return out
}

// FindByFingerprint resolves the version already assigned to a fingerprint.
func (l *Ledger) FindByFingerprint(datasetID, fingerprint string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.datasets[datasetID] {
		if e.fingerprint == fingerprint {
			return e.version, true
		}
	}
	return "", false
}

// Restore replays a persisted assignment. Tags must conform to v<N>; a
// non-conforming or duplicate tag means the durable state is corrupt.
func (l *Ledger) Restore(datasetID, version, fingerprint string) error {
	n, err := ParseVersion(version)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.datasets[datasetID]
	for _, e := range entries {
		if e.number == n {
			return fmt.Errorf("duplicate version %s for dataset %s", version, datasetID)
		}
	}
	entries = append(entries, entry{version: version, number: n, fingerprint: fingerprint})
	sort.Slice(entries, func(i, j int) bool { return entries[i].number < entries[j].number })
	l.datasets[datasetID] = entries
	return nil
}
