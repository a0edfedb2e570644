// Package worker runs queued processing requests against the pipeline.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"fireledger/internal/amqp"
	applog "fireledger/internal/log"
	"fireledger/internal/services"
)

// Pipeline is the subset of the processing service the worker needs.
type Pipeline interface {
	Process(ctx context.Context, req services.ProcessRequest) (services.ProcessResult, error)
}

// ProcessWorker turns queue messages into pipeline runs.
type ProcessWorker struct {
	pipeline Pipeline
	csvDir   string
}

func NewProcessWorker(pipeline Pipeline, csvDir string) *ProcessWorker {
	return &ProcessWorker{pipeline: pipeline, csvDir: csvDir}
}

// HandleProcessRequest runs the pipeline for one queued message.
// Returning an error requeues the message, so unrecoverable input
// problems are logged and swallowed instead.
func (w *ProcessWorker) HandleProcessRequest(ctx context.Context, msg *amqp.ProcessRequestMessage) error {
	if msg.CSVFile == "" {
		slog.ErrorContext(ctx, "dropping process request without csv file")
		return nil
	}
	if filepath.Base(msg.CSVFile) != msg.CSVFile {
		slog.ErrorContext(ctx, "dropping process request with path in csv file name",
			applog.FieldCSVFile, msg.CSVFile)
		return nil
	}

	result, err := w.pipeline.Process(ctx, services.ProcessRequest{
		CSVPath:  filepath.Join(w.csvDir, msg.CSVFile),
		Month:    msg.Month,
		Year:     msg.Year,
		AutoDate: msg.AutoDate,
		Shadow:   msg.Shadow,
		Override: msg.Override,
	})
	if err != nil {
		return fmt.Errorf("process %s: %w", msg.CSVFile, err)
	}

	slog.InfoContext(ctx, "queued request processed",
		applog.FieldCSVFile, msg.CSVFile,
		applog.FieldPeriod, result.Period.String(),
		applog.FieldTransactions, result.Transactions,
		"rows", len(result.Rows))
	return nil
}
