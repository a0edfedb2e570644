// Package memory provides an in-memory worksheet used by tests, shadow
// previews and deployments without a configured spreadsheet.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"fireledger/internal/core"
	"fireledger/internal/sheets"
)

// Worksheet is a grid of cells stored as entered, so formula text keeps
// its leading "=". It implements the sheets.Store ports.
type Worksheet struct {
	mu      sync.Mutex
	name    string
	rows    [][]string
	applied []sheets.CellUpdate
	batches int
}

var _ sheets.Store = (*Worksheet)(nil)

// New builds a worksheet from initial rows. The rows are copied.
func New(name string, rows [][]string) *Worksheet {
	cp := make([][]string, len(rows))
	for i, r := range rows {
		cp[i] = append([]string(nil), r...)
	}
	return &Worksheet{name: name, rows: cp}
}

// NewLedger builds a worksheet seeded with the standard ledger header:
// a date column followed by the canonical category columns and the
// summary buckets.
func NewLedger(name string) *Worksheet {
	header := append([]string{"Date"}, core.SheetColumns...)
	header = append(header, core.BucketNecessary, core.BucketDiscretionary,
		core.BucketExcess, core.BucketTotals)
	return New(name, [][]string{header})
}

// Name returns the worksheet name used to validate incoming cell refs.
func (w *Worksheet) Name() string { return w.name }

// ReadColumn returns the text values of a 1-based column, one entry per
// existing row.
func (w *Worksheet) ReadColumn(_ context.Context, index int) ([]string, error) {
	if index < 1 {
		return nil, fmt.Errorf("column index %d out of range", index)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.rows))
	for i, row := range w.rows {
		if index-1 < len(row) {
			out[i] = row[index-1]
		}
	}
	return out, nil
}

// ReadRow returns a 1-based row. The grid stores values as entered, so
// formula rendering is the identity here; a row beyond the grid reads as
// empty, matching a brand-new sheet row.
func (w *Worksheet) ReadRow(_ context.Context, index int, _ bool) ([]string, error) {
	if index < 1 {
		return nil, fmt.Errorf("row index %d out of range", index)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if index-1 >= len(w.rows) {
		return nil, nil
	}
	return append([]string(nil), w.rows[index-1]...), nil
}

// BatchWrite applies each (ref, value) pair to the grid, growing it as
// needed, and records the batch for test assertions.
func (w *Worksheet) BatchWrite(_ context.Context, updates []sheets.CellUpdate) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, u := range updates {
		if u.Ref.Sheet != w.name {
			return fmt.Errorf("unknown worksheet %q", u.Ref.Sheet)
		}
		if u.Ref.Row < 1 || u.Ref.Col < 1 {
			return fmt.Errorf("invalid cell ref %s", u.Ref.A1())
		}
		for len(w.rows) < u.Ref.Row {
			w.rows = append(w.rows, nil)
		}
		row := w.rows[u.Ref.Row-1]
		for len(row) < u.Ref.Col {
			row = append(row, "")
		}
		row[u.Ref.Col-1] = renderValue(u.Value)
		w.rows[u.Ref.Row-1] = row
	}
	w.applied = append(w.applied, updates...)
	w.batches++
	return nil
}

// Cell returns the stored text of a 1-based cell, empty when unset.
func (w *Worksheet) Cell(row, col int) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if row-1 >= len(w.rows) || row < 1 || col < 1 {
		return ""
	}
	r := w.rows[row-1]
	if col-1 >= len(r) {
		return ""
	}
	return r[col-1]
}

// Applied returns every cell update received so far.
func (w *Worksheet) Applied() []sheets.CellUpdate {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]sheets.CellUpdate(nil), w.applied...)
}

// Batches returns the number of BatchWrite calls received.
func (w *Worksheet) Batches() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.batches
}

func renderValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	default:
		return fmt.Sprint(val)
	}
}
