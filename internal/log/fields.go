package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldError     = "error"

	FieldPeriod          = "period"
	FieldCSVFile         = "csv_file"
	FieldTransactions    = "transactions"
	FieldRow             = "row"
	FieldCellsWritten    = "cells_written"
	FieldFormulasSkipped = "formulas_skipped"
)

// Components defines standard component names
const (
	ComponentApp    = "app"
	ComponentHTTP   = "http"
	ComponentWorker = "worker"
)
