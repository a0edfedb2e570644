// Package storage persists processing runs and their aggregate rows in a
// local SQLite database, so analytics can be served without re-reading
// the sheet.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"fireledger/internal/core"

	_ "modernc.org/sqlite"
)

// Run records one processing invocation.
type Run struct {
	ID        int64
	StartedAt time.Time
	CSVFile   string
	Period    core.Period
	Shadow    bool
	Override  bool
	Outcome   string
	Detail    string
}

// ArchivedMonth is one calendar month of archived aggregate values,
// keyed by category name (canonical categories plus the summary buckets).
type ArchivedMonth struct {
	Period core.Period
	Values map[string]float64
}

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// RecordRun stores the outcome of one processing invocation.
func (r *Repository) RecordRun(ctx context.Context, run Run) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (csv_file, period, shadow, override, outcome, detail)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.CSVFile, run.Period.String(), boolToInt(run.Shadow), boolToInt(run.Override),
		run.Outcome, run.Detail)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}
	slog.InfoContext(ctx, "run recorded",
		"id", id, "period", run.Period.String(), "outcome", run.Outcome)
	return id, nil
}

// SaveAggregates upserts the archived values for every row, including the
// summary buckets, keyed by (period, category).
func (r *Repository) SaveAggregates(ctx context.Context, rows []core.MonthlyRow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO monthly_aggregates (period, category, amount, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(period, category) DO UPDATE SET
		   amount = excluded.amount,
		   updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		period := row.Period().String()
		for _, cat := range core.SheetColumns {
			if _, err := stmt.ExecContext(ctx, period, cat, row.Values[cat]); err != nil {
				return fmt.Errorf("upsert %s/%s: %w", period, cat, err)
			}
		}
		buckets := map[string]float64{
			core.BucketNecessary:     row.Necessary,
			core.BucketDiscretionary: row.Discretionary,
			core.BucketExcess:        row.Excess,
			core.BucketTotals:        row.Totals,
		}
		for name, amount := range buckets {
			if _, err := stmt.ExecContext(ctx, period, name, amount); err != nil {
				return fmt.Errorf("upsert %s/%s: %w", period, name, err)
			}
		}
	}
	return tx.Commit()
}

// MonthlyHistory returns up to limit most recent archived months, oldest
// first.
func (r *Repository) MonthlyHistory(ctx context.Context, limit int) ([]ArchivedMonth, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT period, category, amount FROM monthly_aggregates
		 WHERE period IN (
		   SELECT DISTINCT period FROM monthly_aggregates
		   ORDER BY period DESC LIMIT ?
		 )`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	byPeriod := make(map[string]map[string]float64)
	for rows.Next() {
		var period, category string
		var amount float64
		if err := rows.Scan(&period, &category, &amount); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if byPeriod[period] == nil {
			byPeriod[period] = make(map[string]float64)
		}
		byPeriod[period][category] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history rows: %w", err)
	}

	out := make([]ArchivedMonth, 0, len(byPeriod))
	for period, values := range byPeriod {
		p, err := parsePeriodKey(period)
		if err != nil {
			continue
		}
		out = append(out, ArchivedMonth{Period: p, Values: values})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Period.Time().Before(out[j].Period.Time())
	})
	return out, nil
}

// RecentRuns returns the latest runs, newest first.
func (r *Repository) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, started_at, csv_file, period, shadow, override, outcome, detail
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			run       Run
			startedAt string
			periodKey string
			shadow    int
			override  int
		)
		if err := rows.Scan(&run.ID, &startedAt, &run.CSVFile, &periodKey,
			&shadow, &override, &run.Outcome, &run.Detail); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if t, err := time.Parse("2006-01-02 15:04:05", startedAt); err == nil {
			run.StartedAt = t
		}
		if p, err := parsePeriodKey(periodKey); err == nil {
			run.Period = p
		}
		run.Shadow = shadow != 0
		run.Override = override != 0
		out = append(out, run)
	}
	return out, rows.Err()
}

func parsePeriodKey(s string) (core.Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return core.Period{}, err
	}
	return core.PeriodOf(t), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
