package core

import "errors"

var (
	// ErrMissingPeriod: manual mode was requested without both month and year.
	ErrMissingPeriod = errors.New("missing period: month and year are required unless auto-detection is enabled")

	// ErrExpectedPeriodMissing: the sheet-derived target month has no
	// transactions in the input set. The caller expected that month to be
	// present, so this is a hard failure rather than a silent no-op.
	ErrExpectedPeriodMissing = errors.New("expected period missing from input")

	// ErrSchemaMismatch: the sheet header row does not contain the first
	// canonical category column.
	ErrSchemaMismatch = errors.New("sheet schema mismatch")

	// ErrStoreUnreachable wraps network or auth failures talking to the
	// tabular store.
	ErrStoreUnreachable = errors.New("store unreachable")
)
