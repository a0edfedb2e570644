// Package reconcile diffs aggregated month rows against the ledger sheet
// and emits a minimal batch of cell updates, never touching formula cells.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"fireledger/internal/core"
	applog "fireledger/internal/log"
	"fireledger/internal/sheets"
)

// Action describes what the reconciler decided for one aggregate row.
type Action string

const (
	ActionSkipped  Action = "skipped"
	ActionUpdated  Action = "updated"
	ActionAppended Action = "appended"
)

// Outcome is the per-row result of a sync call.
type Outcome struct {
	Period          core.Period
	Action          Action
	Row             int
	CellsWritten    int
	FormulasSkipped int
}

// Reconciler matches aggregate rows against the sheet by calendar month
// and writes the difference in one batch.
type Reconciler struct {
	store     sheets.Store
	worksheet string
}

func New(store sheets.Store, worksheet string) *Reconciler {
	return &Reconciler{store: store, worksheet: worksheet}
}

// LastRecordedPeriod probes the sheet for its most recent month label,
// scanning the date column bottom-up. The tri-state result keeps "no
// parseable date" distinguishable from "could not ask the store".
func (r *Reconciler) LastRecordedPeriod(ctx context.Context) core.DateProbe {
	dates, err := r.store.ReadColumn(ctx, 1)
	if err != nil {
		return core.ProbeError(fmt.Errorf("%w: read date column: %v", core.ErrStoreUnreachable, err))
	}
	for i := len(dates) - 1; i >= 0; i-- {
		if p, err := core.ParseMonthLabel(dates[i]); err == nil {
			return core.FoundDate(p)
		}
	}
	return core.NoDate()
}

// monthIndex maps each parseable month label in the date column to its
// 1-based row, keeping the first occurrence when the sheet holds
// duplicate month rows. nextRow tracks the bottom of the sheet so that a
// second new month in the same batch lands below the first.
type monthIndex struct {
	rows    map[core.Period]int
	nextRow int
}

func buildMonthIndex(dates []string) monthIndex {
	idx := monthIndex{rows: make(map[core.Period]int), nextRow: len(dates)}
	for i, val := range dates {
		p, err := core.ParseMonthLabel(val)
		if err != nil {
			continue
		}
		if _, exists := idx.rows[p]; !exists {
			idx.rows[p] = i + 1
		}
	}
	return idx
}

func (m *monthIndex) reserveNextRow() int {
	m.nextRow++
	return m.nextRow
}

func isFormula(cell string) bool {
	return strings.HasPrefix(cell, "=")
}

// Sync reconciles aggregate rows into the sheet. Existing month rows are
// skipped unless override is set; missing months are appended at the
// bottom. Cells whose formula-rendered value starts with "=" are never
// written. All surviving writes go out in exactly one batch; an empty
// batch performs no network call.
func (r *Reconciler) Sync(ctx context.Context, rows []core.MonthlyRow, override bool) ([]Outcome, error) {
	dates, err := r.store.ReadColumn(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: read date column: %v", core.ErrStoreUnreachable, err)
	}
	header, err := r.store.ReadRow(ctx, 1, false)
	if err != nil {
		return nil, fmt.Errorf("%w: read header row: %v", core.ErrStoreUnreachable, err)
	}

	firstCategory := core.SheetColumns[0]
	startCol := -1
	for i, name := range header {
		if name == firstCategory {
			startCol = i
			break
		}
	}
	if startCol == -1 {
		return nil, fmt.Errorf("%w: column %q not found in sheet header", core.ErrSchemaMismatch, firstCategory)
	}

	idx := buildMonthIndex(dates)
	var (
		updates  []sheets.CellUpdate
		outcomes []Outcome
	)

	for _, row := range rows {
		period := row.Period()
		targetRow, matched := idx.rows[period]

		if matched && !override {
			slog.InfoContext(ctx, "month already in sheet, skipping",
				applog.FieldPeriod, period.Label(), applog.FieldRow, targetRow)
			outcomes = append(outcomes, Outcome{Period: period, Action: ActionSkipped, Row: targetRow})
			continue
		}

		action := ActionUpdated
		if !matched {
			targetRow = idx.reserveNextRow()
			action = ActionAppended
		}

		// Formula-rendered view of the target row; empty for a brand-new
		// row, meaning no formulas to preserve.
		existing, err := r.store.ReadRow(ctx, targetRow, true)
		if err != nil {
			return nil, fmt.Errorf("%w: read row %d for %s: %v",
				core.ErrStoreUnreachable, targetRow, period.Label(), err)
		}

		outcome := Outcome{Period: period, Action: action, Row: targetRow}

		// Date cell: the month label, unless the sheet computes it.
		if len(existing) > 0 && isFormula(existing[0]) {
			outcome.FormulasSkipped++
		} else {
			updates = append(updates, sheets.CellUpdate{
				Ref:   sheets.CellRef{Sheet: r.worksheet, Col: 1, Row: targetRow},
				Value: period.Label(),
			})
			outcome.CellsWritten++
		}

		// Category and bucket cells follow the sheet's own header order.
		// A header column unknown to the pipeline gets 0.0.
		for col := startCol; col < len(header); col++ {
			if col < len(existing) && isFormula(existing[col]) {
				outcome.FormulasSkipped++
				continue
			}
			value, ok := row.ColumnValue(header[col])
			if !ok {
				value = 0.0
			}
			updates = append(updates, sheets.CellUpdate{
				Ref:   sheets.CellRef{Sheet: r.worksheet, Col: col + 1, Row: targetRow},
				Value: value,
			})
			outcome.CellsWritten++
		}

		slog.InfoContext(ctx, "reconciled month row",
			applog.FieldPeriod, period.Label(),
			"action", string(action),
			applog.FieldRow, targetRow,
			applog.FieldCellsWritten, outcome.CellsWritten,
			applog.FieldFormulasSkipped, outcome.FormulasSkipped)
		outcomes = append(outcomes, outcome)
	}

	if len(updates) > 0 {
		if err := r.store.BatchWrite(ctx, updates); err != nil {
			return nil, fmt.Errorf("%w: batch write %d cells: %v",
				core.ErrStoreUnreachable, len(updates), err)
		}
	}
	return outcomes, nil
}
