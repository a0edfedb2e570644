package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"fireledger/internal/core"
	"fireledger/internal/sheets/memory"
)

const testSheet = "Out"

func ledgerHeader() []string {
	header := append([]string{"Date"}, core.SheetColumns...)
	return append(header,
		core.BucketNecessary, core.BucketDiscretionary,
		core.BucketExcess, core.BucketTotals)
}

func monthRow(year int, month time.Month, values map[string]float64) core.MonthlyRow {
	row := core.MonthlyRow{
		Month:  time.Date(year, month, 1, 0, 0, 0, 0, time.UTC),
		Values: make(map[string]float64, len(core.SheetColumns)),
	}
	for _, cat := range core.SheetColumns {
		row.Values[cat] = values[cat]
	}
	for _, cat := range core.NecessaryColumns {
		row.Necessary += row.Values[cat]
	}
	for _, cat := range core.DiscretionaryColumns {
		row.Discretionary += row.Values[cat]
	}
	for _, cat := range core.ExcessColumns {
		row.Excess += row.Values[cat]
	}
	row.Totals = row.Necessary + row.Discretionary + row.Excess
	return row
}

func TestLastRecordedPeriod(t *testing.T) {
	t.Run("bottom-most parseable label wins", func(t *testing.T) {
		ws := memory.New(testSheet, [][]string{
			ledgerHeader(),
			{"Oct, 24"},
			{"Nov, 24"},
			{"Totals"},
		})
		probe := New(ws, testSheet).LastRecordedPeriod(context.Background())
		if probe.State != core.ProbeFound {
			t.Fatalf("probe state = %v, want ProbeFound", probe.State)
		}
		want := core.Period{Year: 2024, Month: time.November}
		if probe.Period != want {
			t.Errorf("probe period = %v, want %v", probe.Period, want)
		}
	})

	t.Run("no parseable label", func(t *testing.T) {
		ws := memory.New(testSheet, [][]string{ledgerHeader()})
		probe := New(ws, testSheet).LastRecordedPeriod(context.Background())
		if probe.State != core.ProbeUnavailable {
			t.Errorf("probe state = %v, want ProbeUnavailable", probe.State)
		}
	})
}

func TestSync_AppendsNewMonth(t *testing.T) {
	ws := memory.New(testSheet, [][]string{ledgerHeader()})
	rec := New(ws, testSheet)

	row := monthRow(2024, time.May, map[string]float64{"Groceries": 120.5, "Holiday": 60})
	outcomes, err := rec.Sync(context.Background(), []core.MonthlyRow{row}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 1 || outcomes[0].Action != ActionAppended {
		t.Fatalf("outcomes = %+v, want one append", outcomes)
	}
	if outcomes[0].Row != 2 {
		t.Errorf("appended at row %d, want 2", outcomes[0].Row)
	}
	if got := ws.Cell(2, 1); got != "May, 24" {
		t.Errorf("date cell = %q, want May, 24", got)
	}
	if got := ws.Cell(2, 3); got != "120.5" { // Groceries is the 2nd category column
		t.Errorf("groceries cell = %q, want 120.5", got)
	}
	if got := ws.Cell(2, len(core.SheetColumns)+5); got != "180.5" { // Totals
		t.Errorf("totals cell = %q, want 180.5", got)
	}
	if ws.Batches() != 1 {
		t.Errorf("BatchWrite called %d times, want 1", ws.Batches())
	}
}

func TestSync_TwoNewMonthsLandOnSuccessiveRows(t *testing.T) {
	ws := memory.New(testSheet, [][]string{ledgerHeader(), {"Mar, 24"}})
	rec := New(ws, testSheet)

	rows := []core.MonthlyRow{
		monthRow(2024, time.April, map[string]float64{"Groceries": 10}),
		monthRow(2024, time.May, map[string]float64{"Groceries": 20}),
	}
	outcomes, err := rec.Sync(context.Background(), rows, false)
	if err != nil {
		t.Fatal(err)
	}
	if outcomes[0].Row != 3 || outcomes[1].Row != 4 {
		t.Errorf("rows = %d and %d, want 3 and 4", outcomes[0].Row, outcomes[1].Row)
	}
}

func TestSync_SkipsExistingMonthWithoutOverride(t *testing.T) {
	ws := memory.New(testSheet, [][]string{ledgerHeader(), {"May, 24", "99"}})
	rec := New(ws, testSheet)

	row := monthRow(2024, time.May, map[string]float64{"Groceries": 120})
	outcomes, err := rec.Sync(context.Background(), []core.MonthlyRow{row}, false)
	if err != nil {
		t.Fatal(err)
	}
	if outcomes[0].Action != ActionSkipped || outcomes[0].CellsWritten != 0 {
		t.Errorf("outcome = %+v, want untouched skip", outcomes[0])
	}
	if ws.Batches() != 0 {
		t.Errorf("BatchWrite called %d times, want 0 for an all-skip sync", ws.Batches())
	}
	if got := ws.Cell(2, 2); got != "99" {
		t.Errorf("existing cell rewritten to %q", got)
	}
}

func TestSync_OverrideRewritesExistingMonth(t *testing.T) {
	ws := memory.New(testSheet, [][]string{ledgerHeader(), {"May, 24", "99"}})
	rec := New(ws, testSheet)

	row := monthRow(2024, time.May, map[string]float64{"Groceries": 120})
	outcomes, err := rec.Sync(context.Background(), []core.MonthlyRow{row}, true)
	if err != nil {
		t.Fatal(err)
	}
	if outcomes[0].Action != ActionUpdated || outcomes[0].Row != 2 {
		t.Errorf("outcome = %+v, want update of row 2", outcomes[0])
	}
	if got := ws.Cell(2, 3); got != "120" {
		t.Errorf("groceries cell = %q, want 120", got)
	}
}

func TestSync_NeverTouchesFormulaCells(t *testing.T) {
	existing := make([]string, len(ledgerHeader()))
	existing[0] = "May, 24"
	existing[1] = "=SUM(B2:B10)"          // first category column holds a formula
	existing[2] = "50"                    // plain value, fair game
	ws := memory.New(testSheet, [][]string{ledgerHeader(), existing})
	rec := New(ws, testSheet)

	row := monthRow(2024, time.May, map[string]float64{
		"Bank, Legal, Tax": 7,
		"Groceries":        120,
	})
	outcomes, err := rec.Sync(context.Background(), []core.MonthlyRow{row}, true)
	if err != nil {
		t.Fatal(err)
	}
	if outcomes[0].FormulasSkipped == 0 {
		t.Error("no formulas reported skipped")
	}
	if got := ws.Cell(2, 2); got != "=SUM(B2:B10)" {
		t.Errorf("formula cell overwritten: %q", got)
	}
	if got := ws.Cell(2, 3); got != "120" {
		t.Errorf("plain cell = %q, want 120", got)
	}
}

func TestSync_FormulaDateCellKeepsFormula(t *testing.T) {
	ws := memory.New(testSheet, [][]string{
		ledgerHeader(),
		{"=EOMONTH(A1,1)"},
	})
	rec := New(ws, testSheet)

	// A formula in the date column is unparseable as a month label, so the
	// new month appends below it and the formula cell stays untouched.
	row := monthRow(2024, time.May, map[string]float64{"Groceries": 10})
	outcomes, err := rec.Sync(context.Background(), []core.MonthlyRow{row}, false)
	if err != nil {
		t.Fatal(err)
	}
	if outcomes[0].Action != ActionAppended {
		t.Errorf("action = %v, want append", outcomes[0].Action)
	}
	if got := ws.Cell(2, 1); got != "=EOMONTH(A1,1)" {
		t.Errorf("formula date cell overwritten: %q", got)
	}
}

func TestSync_SchemaMismatch(t *testing.T) {
	ws := memory.New(testSheet, [][]string{{"Date", "Wrong", "Columns"}})
	rec := New(ws, testSheet)

	row := monthRow(2024, time.May, map[string]float64{"Groceries": 10})
	_, err := rec.Sync(context.Background(), []core.MonthlyRow{row}, false)
	if !errors.Is(err, core.ErrSchemaMismatch) {
		t.Errorf("err = %v, want ErrSchemaMismatch", err)
	}
}

func TestSync_RerunIsIdempotent(t *testing.T) {
	ws := memory.New(testSheet, [][]string{ledgerHeader()})
	rec := New(ws, testSheet)
	row := monthRow(2024, time.May, map[string]float64{"Groceries": 120})

	if _, err := rec.Sync(context.Background(), []core.MonthlyRow{row}, false); err != nil {
		t.Fatal(err)
	}
	outcomes, err := rec.Sync(context.Background(), []core.MonthlyRow{row}, false)
	if err != nil {
		t.Fatal(err)
	}
	if outcomes[0].Action != ActionSkipped {
		t.Errorf("second run action = %v, want skip", outcomes[0].Action)
	}
	if ws.Batches() != 1 {
		t.Errorf("BatchWrite called %d times across both runs, want 1", ws.Batches())
	}
}

func TestSync_DuplicateMonthRowsKeepFirst(t *testing.T) {
	ws := memory.New(testSheet, [][]string{
		ledgerHeader(),
		{"May, 24", "1"},
		{"May, 24", "2"},
	})
	rec := New(ws, testSheet)

	row := monthRow(2024, time.May, map[string]float64{"Groceries": 120})
	outcomes, err := rec.Sync(context.Background(), []core.MonthlyRow{row}, true)
	if err != nil {
		t.Fatal(err)
	}
	if outcomes[0].Row != 2 {
		t.Errorf("matched row %d, want the first occurrence at 2", outcomes[0].Row)
	}
	if got := ws.Cell(3, 2); got != "2" {
		t.Errorf("second duplicate row modified: %q", got)
	}
}
