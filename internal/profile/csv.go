package profile

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"datamem/pkg/types"
)

// Column is one parsed CSV column. Values and Missing are row-aligned;
// Numeric and Times hold the parsed non-missing values in row order for the
// kinds that have them.
type Column struct {
	Name    string
	Kind    types.ColumnKind
	DType   string
	Values  []string
	Missing []bool
	Numeric []float64
	Times   []time.Time
}

// NonMissing returns the raw values with missing cells dropped.
func (c *Column) NonMissing() []string {
	out := make([]string, 0, len(c.Values))
	for i, v := range c.Values {
		if !c.Missing[i] {
			out = append(out, v)
		}
	}
	return out
}

// Table is a loaded dataset with per-column kinds already inferred.
type Table struct {
	Rows    int
	Columns []Column
}

var missingMarkers = map[string]bool{
	"":     true,
	"na":   true,
	"n/a":  true,
	"nan":  true,
	"null": true,
	"none": true,
}

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
}

// ReadCSV loads path into a Table. The first record is the header; every
// data row must have the same width. Column kinds are inferred from the
// non-missing values.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse csv: %s has no header row", path)
	}

	header := records[0]
	rows := records[1:]

	t := &Table{Rows: len(rows), Columns: make([]Column, len(header))}
	for i, name := range header {
		col := Column{
			Name:    strings.TrimSpace(name),
			Values:  make([]string, len(rows)),
			Missing: make([]bool, len(rows)),
		}
		for j, row := range rows {
			cell := strings.TrimSpace(row[i])
			col.Values[j] = cell
			col.Missing[j] = missingMarkers[strings.ToLower(cell)]
		}
		inferKind(&col)
		t.Columns[i] = col
	}
	return t, nil
}

// Column returns the named column, or nil when absent.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// Sample returns a deterministic subset of at most n rows, preserving row
// order. The same table and n always select the same rows.
func (t *Table) Sample(n int, seed int64) *Table {
	if n <= 0 || t.Rows <= n {
		return t
	}

	keep := sampleIndices(t.Rows, n, seed)
	out := &Table{Rows: n, Columns: make([]Column, len(t.Columns))}
	for i := range t.Columns {
		src := &t.Columns[i]
		col := Column{
			Name:    src.Name,
			Values:  make([]string, 0, n),
			Missing: make([]bool, 0, n),
		}
		for _, idx := range keep {
			col.Values = append(col.Values, src.Values[idx])
			col.Missing = append(col.Missing, src.Missing[idx])
		}
		inferKind(&col)
		out.Columns[i] = col
	}
	return out
}

// inferKind classifies a column and fills the typed value slices. All
// non-missing values must parse for a kind to apply; mixed columns fall back
// to categorical.
func inferKind(col *Column) {
	allInt, allFloat, allTime := true, true, true
	nonMissing := 0

	floats := make([]float64, 0, len(col.Values))
	times := make([]time.Time, 0, len(col.Values))

	for i, raw := range col.Values {
		if col.Missing[i] {
			continue
		}
		nonMissing++

		if allInt {
			if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				allFloat = false
			} else {
				floats = append(floats, f)
			}
		}
		if allTime {
			ts, ok := parseDatetime(raw)
			if !ok {
				allTime = false
			} else {
				times = append(times, ts)
			}
		}
	}

	switch {
	case nonMissing > 0 && allFloat:
		col.Kind = types.KindNumeric
		col.Numeric = floats
		if allInt {
			col.DType = "int64"
		} else {
			col.DType = "float64"
		}
	case nonMissing > 0 && allTime:
		col.Kind = types.KindDatetime
		col.Times = times
		col.DType = "datetime"
	default:
		col.Kind = types.KindCategorical
		col.DType = "string"
	}
}

func parseDatetime(raw string) (time.Time, bool) {
	for _, layout := range datetimeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// sampleIndices picks n distinct row indices from [0, rows) using a seeded
// Fisher-Yates prefix, then sorts them to keep row order stable.
func sampleIndices(rows, n int, seed int64) []int {
	idx := make([]int, rows)
	for i := range idx {
		idx[i] = i
	}
	state := uint64(seed)
	if state == 0 {
		state = 1
	}
	for i := 0; i < n; i++ {
		// xorshift64 keeps the selection deterministic across runs.
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		j := i + int(state%uint64(rows-i))
		idx[i], idx[j] = idx[j], idx[i]
	}
	keep := idx[:n]
	sort.Ints(keep)
	return keep
}
