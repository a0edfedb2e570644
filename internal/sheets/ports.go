// Package sheets defines the ports the reconciliation pipeline needs from
// a tabular store, plus A1-notation helpers shared by its adapters.
package sheets

import (
	"context"
	"strconv"
)

type (
	// ColumnReader returns the full text values of one 1-based column.
	ColumnReader interface {
		ReadColumn(ctx context.Context, index int) ([]string, error)
	}

	// RowReader returns one 1-based row. With renderFormulas the cells
	// come back as entered, so formula cells keep their leading "=".
	RowReader interface {
		ReadRow(ctx context.Context, index int, renderFormulas bool) ([]string, error)
	}

	// BatchWriter applies a set of single-cell updates in one call. The
	// store applies the pairs independently; there is no multi-cell
	// atomicity guarantee.
	BatchWriter interface {
		BatchWrite(ctx context.Context, updates []CellUpdate) error
	}

	// Store is the capability bundle the reconciler works against.
	Store interface {
		ColumnReader
		RowReader
		BatchWriter
	}
)

// CellUpdate is one (range, value) pair of a batch write. Values must be
// native Go types; numeric cells are float64, labels are strings.
type CellUpdate struct {
	Ref   CellRef
	Value any
}

// CellRef identifies a single cell by worksheet, 1-based column and
// 1-based row.
type CellRef struct {
	Sheet string
	Col   int
	Row   int
}

// A1 renders the reference in A1 notation, e.g. "Out!C2".
func (c CellRef) A1() string {
	return c.Sheet + "!" + ColumnLetters(c.Col) + strconv.Itoa(c.Row)
}

// ColumnLetters converts a 1-based column number to spreadsheet letters:
// 1 -> A, 26 -> Z, 27 -> AA.
func ColumnLetters(n int) string {
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		n--
		i--
		buf[i] = byte('A' + n%26)
		n /= 26
	}
	return string(buf[i:])
}
