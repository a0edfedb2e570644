// Command fireledger runs the processing pipeline once from the command
// line: load a CSV export, categorize, aggregate the target month and
// reconcile it into the ledger sheet.
package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fireledger/internal/config"
	"fireledger/internal/core"
	applog "fireledger/internal/log"
	"fireledger/internal/reconcile"
	"fireledger/internal/services"
	"fireledger/internal/sheets"
	gsheet "fireledger/internal/sheets/google"
	mem "fireledger/internal/sheets/memory"
	"fireledger/internal/storage"
)

// Sample export used by demo mode, so the full pipeline can be tried
// without bank data or credentials.
//
//go:embed demo_export.csv
var demoExport []byte

func main() {
	_ = godotenv.Load()

	applog.SetDefault(applog.New(applog.DefaultConfig()))

	var (
		csvPath  = flag.String("csv", "", "path to the bank CSV export (default: newest file in CSV_DIR)")
		dateFlag = flag.String("date", "", "explicit target month, e.g. may24, may-24, 2024-05, 05/24 or 'May 2024'")
		shadow   = flag.Bool("shadow", false, "preview only, never touch the sheet")
		override = flag.Bool("override", false, "rewrite months that already have a row")
		autoDate = flag.Bool("auto-date", true, "derive the target month from the sheet's last row")
		demo     = flag.Bool("demo", false, "run against an in-memory ledger and print the resulting grid")
	)
	flag.Parse()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var month, year int
	if *dateFlag != "" {
		var err error
		month, year, err = parseDateFlag(*dateFlag)
		if err != nil {
			fatal(err)
		}
	}

	if *csvPath == "" {
		if *demo {
			path := filepath.Join(os.TempDir(), "fireledger-demo.csv")
			if err := os.WriteFile(path, demoExport, 0644); err != nil {
				fatal(fmt.Errorf("write demo export: %w", err))
			}
			*csvPath = path
		} else {
			*csvPath = newestCSV(cfg.CSVDir)
		}
		if *csvPath == "" {
			fatal(fmt.Errorf("no csv file given and none found in %s", cfg.CSVDir))
		}
	}

	var (
		store sheets.Store
		grid  *mem.Worksheet
	)
	switch {
	case *demo:
		grid = mem.NewLedger(cfg.GoogleSheetName)
		store = grid
	case cfg.StoreBackend == "sheets":
		cli, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			fatal(fmt.Errorf("google sheets client: %w", err))
		}
		store = cli
	default:
		grid = mem.NewLedger(cfg.GoogleSheetName)
		store = grid
	}

	var opts []services.Option
	if repo, err := storage.NewRepository(cfg.SQLiteDBPath); err == nil {
		defer repo.Close()
		opts = append(opts, services.WithArchive(repo))
	} else {
		fmt.Fprintf(os.Stderr, "warning: run archive unavailable: %v\n", err)
	}

	pipeline := services.NewPipeline(store, cfg.GoogleSheetName, cfg.RulesDir, opts...)
	result, err := pipeline.Process(ctx, services.ProcessRequest{
		CSVPath:  *csvPath,
		Month:    month,
		Year:     year,
		AutoDate: *autoDate,
		Shadow:   *shadow,
		Override: *override,
	})
	if err != nil {
		fatal(err)
	}

	printResult(result, *shadow)
	if grid != nil && !*shadow {
		printGrid(grid)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

// parseDateFlag accepts the spellings people actually type for a month:
// may24, may-24, 2024-05, 05/24 and "May 2024".
func parseDateFlag(s string) (month, year int, err error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"Jan06", "Jan-06", "2006-01", "01/06", "January 2006", "Jan 2006"} {
		if t, perr := time.Parse(layout, s); perr == nil {
			return int(t.Month()), t.Year(), nil
		}
	}
	return 0, 0, fmt.Errorf("unrecognized date %q (try may24, 2024-05 or 05/24)", s)
}

func newestCSV(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = filepath.Join(dir, e.Name())
			newestMod = info.ModTime()
		}
	}
	return newest
}

func printResult(result services.ProcessResult, shadow bool) {
	if result.NothingToDo {
		fmt.Printf("%s: no transactions to process\n", result.Period.Label())
		return
	}

	for _, row := range result.Rows {
		fmt.Printf("\n%s\n", row.Period().Label())
		for _, cat := range core.SheetColumns {
			if v := row.Value(cat); v != 0 {
				fmt.Printf("  %-20s %10.2f\n", cat, v)
			}
		}
		fmt.Printf("  %-20s %10.2f\n", core.BucketNecessary, row.Necessary)
		fmt.Printf("  %-20s %10.2f\n", core.BucketDiscretionary, row.Discretionary)
		fmt.Printf("  %-20s %10.2f\n", core.BucketExcess, row.Excess)
		fmt.Printf("  %-20s %10.2f\n", core.BucketTotals, row.Totals)
	}

	if shadow {
		fmt.Println("\nshadow mode: nothing was written")
		return
	}
	for _, o := range result.Outcomes {
		switch o.Action {
		case reconcile.ActionSkipped:
			fmt.Printf("%s: already recorded, skipped (use -override to rewrite)\n", o.Period.Label())
		default:
			fmt.Printf("%s: %s row %d (%d cells written, %d formulas kept)\n",
				o.Period.Label(), o.Action, o.Row, o.CellsWritten, o.FormulasSkipped)
		}
	}
}

func printGrid(grid *mem.Worksheet) {
	fmt.Println("\nledger grid:")
	header, _ := grid.ReadRow(context.Background(), 1, false)
	dates, _ := grid.ReadColumn(context.Background(), 1)
	for r := 1; r <= len(dates); r++ {
		row, _ := grid.ReadRow(context.Background(), r, false)
		cells := make([]string, len(header))
		copy(cells, row)
		fmt.Println("  " + strings.Join(cells, " | "))
	}
}
