// Package services orchestrates the processing pipeline: load CSV,
// categorize, resolve the target month, aggregate, then reconcile into
// the tabular store or produce a shadow preview.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fireledger/internal/core"
	"fireledger/internal/loader"
	applog "fireledger/internal/log"
	"fireledger/internal/reconcile"
	"fireledger/internal/rules"
	"fireledger/internal/sheets"
	"fireledger/internal/storage"
)

// ProcessRequest describes one pipeline invocation. Month and Year are
// both zero when no explicit period was supplied.
type ProcessRequest struct {
	CSVPath  string
	Month    int
	Year     int
	AutoDate bool
	Shadow   bool
	Override bool
}

// ProcessResult is what one invocation produced. NothingToDo reports the
// non-error empty outcome: no transactions survived filtering.
type ProcessResult struct {
	Period       core.Period
	SheetDerived bool
	Transactions int
	Rows         []core.MonthlyRow
	Outcomes     []reconcile.Outcome
	NothingToDo  bool
}

// Pipeline wires the pipeline stages to a tabular store and an optional
// local run archive.
type Pipeline struct {
	store     sheets.Store
	worksheet string
	rulesDir  string
	archive   *storage.Repository
	now       func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithArchive records runs and aggregates in the local archive.
func WithArchive(repo *storage.Repository) Option {
	return func(p *Pipeline) { p.archive = repo }
}

// WithClock overrides the wall clock; used by tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func NewPipeline(store sheets.Store, worksheet, rulesDir string, opts ...Option) *Pipeline {
	p := &Pipeline{store: store, worksheet: worksheet, rulesDir: rulesDir, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs the pipeline once. Shadow mode never touches the store:
// neither for date auto-detection nor for writing.
func (p *Pipeline) Process(ctx context.Context, req ProcessRequest) (ProcessResult, error) {
	txs, err := loader.LoadCSV(req.CSVPath)
	if err != nil {
		return ProcessResult{}, err
	}
	slog.InfoContext(ctx, "transactions loaded", applog.FieldCSVFile, req.CSVPath, "count", len(txs))

	ruleSet, err := rules.LoadDir(p.rulesDir)
	if err != nil {
		return ProcessResult{}, err
	}
	categorized := core.Categorize(txs, ruleSet)

	var explicit *core.Period
	if req.Month != 0 && req.Year != 0 {
		explicit = &core.Period{Year: req.Year, Month: time.Month(req.Month)}
	}

	probe := core.NoDate()
	if explicit == nil && req.AutoDate && !req.Shadow {
		rec := reconcile.New(p.store, p.worksheet)
		probe = rec.LastRecordedPeriod(ctx)
		if probe.State == core.ProbeFailed {
			slog.WarnContext(ctx, "could not read last month from sheet, using previous-month fallback",
				applog.FieldError, probe.Err)
		}
	}

	target, err := core.ResolveTarget(explicit, req.AutoDate, probe, p.now())
	if err != nil {
		return ProcessResult{}, err
	}

	filtered, period, err := core.ApplyTarget(categorized, target)
	if err != nil {
		return ProcessResult{}, err
	}
	result := ProcessResult{
		Period:       period,
		SheetDerived: target.SheetDerived,
		Transactions: len(filtered),
	}
	if len(filtered) == 0 {
		slog.InfoContext(ctx, "no transactions to process", applog.FieldPeriod, period.String())
		result.NothingToDo = true
		p.record(ctx, req, period, "empty", "no transactions after filtering")
		return result, nil
	}
	if period != target.Period {
		slog.InfoContext(ctx, "fell back to latest month in csv",
			"requested", target.Period.String(), applog.FieldPeriod, period.String())
	}

	result.Rows = core.Aggregate(filtered)

	if req.Shadow {
		p.record(ctx, req, period, "shadow", fmt.Sprintf("%d rows previewed", len(result.Rows)))
		return result, nil
	}

	rec := reconcile.New(p.store, p.worksheet)
	outcomes, err := rec.Sync(ctx, result.Rows, req.Override)
	if err != nil {
		p.record(ctx, req, period, "error", err.Error())
		return ProcessResult{}, fmt.Errorf("sync %s: %w", period.Label(), err)
	}
	result.Outcomes = outcomes
	p.record(ctx, req, period, "synced", summarize(outcomes))
	p.archiveRows(ctx, result.Rows)
	return result, nil
}

func summarize(outcomes []reconcile.Outcome) string {
	var written, skipped int
	for _, o := range outcomes {
		if o.Action == reconcile.ActionSkipped {
			skipped++
		} else {
			written += o.CellsWritten
		}
	}
	return fmt.Sprintf("%d rows, %d cells written, %d skipped", len(outcomes), written, skipped)
}

// record stores the run outcome in the archive when one is configured.
// Archive failures are logged, never fatal: the sheet is the source of
// truth, the archive is a convenience.
func (p *Pipeline) record(ctx context.Context, req ProcessRequest, period core.Period, outcome, detail string) {
	if p.archive == nil {
		return
	}
	_, err := p.archive.RecordRun(ctx, storage.Run{
		CSVFile:  req.CSVPath,
		Period:   period,
		Shadow:   req.Shadow,
		Override: req.Override,
		Outcome:  outcome,
		Detail:   detail,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to record run", applog.FieldError, err)
	}
}

func (p *Pipeline) archiveRows(ctx context.Context, rows []core.MonthlyRow) {
	if p.archive == nil {
		return
	}
	if err := p.archive.SaveAggregates(ctx, rows); err != nil {
		slog.ErrorContext(ctx, "failed to archive aggregates", applog.FieldError, err)
	}
}
