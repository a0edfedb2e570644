package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fireledger/internal/core"
	"fireledger/internal/reconcile"
	"fireledger/internal/sheets"
	"fireledger/internal/sheets/memory"
)

const worksheet = "Out"

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func rulesDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, dir, "user_rules.json", `{
		"category_mapping": {"Eating out": "Restaurant", "Transfers": "EXCLUDE"}
	}`)
	return dir
}

// unreachableStore fails every call, proving a code path never talks to
// the store.
type unreachableStore struct{}

func (unreachableStore) ReadColumn(context.Context, int) ([]string, error) {
	return nil, errors.New("store must not be touched")
}
func (unreachableStore) ReadRow(context.Context, int, bool) ([]string, error) {
	return nil, errors.New("store must not be touched")
}
func (unreachableStore) BatchWrite(context.Context, []sheets.CellUpdate) error {
	return errors.New("store must not be touched")
}

func TestPipeline_EndToEnd(t *testing.T) {
	csv := writeTestFile(t, t.TempDir(), "export.csv", `Date,Amount,Description,Category
2024-05-03,-42.50,TESCO STORES,Groceries
2024-05-08,-18.00,PIZZERIA ROMA,Eating out
2024-05-12,-500.00,TRANSFER TO SAVINGS,Transfers
`)

	ws := memory.NewLedger(worksheet)
	// Seeding April makes May the sheet-derived target.
	apr := core.Period{Year: 2024, Month: time.April}
	if err := ws.BatchWrite(context.Background(), []sheets.CellUpdate{
		{Ref: sheets.CellRef{Sheet: worksheet, Col: 1, Row: 2}, Value: apr.Label()},
	}); err != nil {
		t.Fatal(err)
	}

	p := NewPipeline(ws, worksheet, rulesDir(t))
	result, err := p.Process(context.Background(), ProcessRequest{
		CSVPath:  csv,
		AutoDate: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	if result.Period != (core.Period{Year: 2024, Month: time.May}) {
		t.Errorf("period = %v, want May 2024", result.Period)
	}
	if !result.SheetDerived {
		t.Error("target should be sheet-derived")
	}
	// The transfer maps to the excluded sentinel and disappears.
	if result.Transactions != 2 {
		t.Errorf("transactions = %d, want 2", result.Transactions)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(result.Rows))
	}
	row := result.Rows[0]
	if got := row.Value("Groceries"); got != 42.50 {
		t.Errorf("Groceries = %v, want 42.50", got)
	}
	if got := row.Value("Restaurant"); got != 18.00 {
		t.Errorf("Restaurant = %v, want 18.00", got)
	}

	if len(result.Outcomes) != 1 || result.Outcomes[0].Action != reconcile.ActionAppended {
		t.Fatalf("outcomes = %+v, want one append", result.Outcomes)
	}
	if got := ws.Cell(result.Outcomes[0].Row, 1); got != "May, 24" {
		t.Errorf("appended date cell = %q, want May, 24", got)
	}
}

func TestPipeline_ShadowNeverTouchesStore(t *testing.T) {
	csv := writeTestFile(t, t.TempDir(), "export.csv", `Date,Amount,Description,Category
2024-05-03,-42.50,TESCO STORES,Groceries
`)

	p := NewPipeline(unreachableStore{}, worksheet, rulesDir(t),
		WithClock(func() time.Time {
			return time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)
		}))
	result, err := p.Process(context.Background(), ProcessRequest{
		CSVPath:  csv,
		AutoDate: true,
		Shadow:   true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(result.Rows))
	}
	if len(result.Outcomes) != 0 {
		t.Errorf("shadow run produced outcomes: %+v", result.Outcomes)
	}
}

func TestPipeline_ManualModeRequiresPeriod(t *testing.T) {
	csv := writeTestFile(t, t.TempDir(), "export.csv", `Date,Amount,Description,Category
2024-05-03,-42.50,TESCO STORES,Groceries
`)

	p := NewPipeline(memory.NewLedger(worksheet), worksheet, rulesDir(t))
	_, err := p.Process(context.Background(), ProcessRequest{CSVPath: csv})
	if !errors.Is(err, core.ErrMissingPeriod) {
		t.Errorf("err = %v, want ErrMissingPeriod", err)
	}
}

func TestPipeline_ExplicitPeriod(t *testing.T) {
	csv := writeTestFile(t, t.TempDir(), "export.csv", `Date,Amount,Description,Category
2024-03-03,-10.00,TESCO STORES,Groceries
`)

	ws := memory.NewLedger(worksheet)
	p := NewPipeline(ws, worksheet, rulesDir(t))
	result, err := p.Process(context.Background(), ProcessRequest{
		CSVPath: csv,
		Month:   3,
		Year:    2024,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Period != (core.Period{Year: 2024, Month: time.March}) {
		t.Errorf("period = %v, want March 2024", result.Period)
	}
	if result.SheetDerived {
		t.Error("explicit period must not be sheet-derived")
	}
}

func TestPipeline_EmptyExportIsNothingToDo(t *testing.T) {
	csv := writeTestFile(t, t.TempDir(), "export.csv", "Date,Amount,Description,Category\n")

	ws := memory.NewLedger(worksheet)
	p := NewPipeline(ws, worksheet, rulesDir(t),
		WithClock(func() time.Time {
			return time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)
		}))
	result, err := p.Process(context.Background(), ProcessRequest{
		CSVPath:  csv,
		AutoDate: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.NothingToDo {
		t.Error("expected a nothing-to-do result")
	}
	if ws.Batches() != 0 {
		t.Errorf("BatchWrite called %d times for an empty export", ws.Batches())
	}
}

func TestPipeline_SheetDerivedMonthMissingFromExport(t *testing.T) {
	csv := writeTestFile(t, t.TempDir(), "export.csv", `Date,Amount,Description,Category
2024-03-03,-10.00,TESCO STORES,Groceries
`)

	ws := memory.NewLedger(worksheet)
	apr := core.Period{Year: 2024, Month: time.April}
	if err := ws.BatchWrite(context.Background(), []sheets.CellUpdate{
		{Ref: sheets.CellRef{Sheet: worksheet, Col: 1, Row: 2}, Value: apr.Label()},
	}); err != nil {
		t.Fatal(err)
	}

	p := NewPipeline(ws, worksheet, rulesDir(t))
	_, err := p.Process(context.Background(), ProcessRequest{
		CSVPath:  csv,
		AutoDate: true,
	})
	if !errors.Is(err, core.ErrExpectedPeriodMissing) {
		t.Errorf("err = %v, want ErrExpectedPeriodMissing", err)
	}
}
