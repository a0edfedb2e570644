package core

import (
	"fmt"
	"time"
)

// ProbeState distinguishes "the store had no usable date" from "the store
// could not be asked", so callers can keep the two apart even though the
// resolver currently folds both into the same fallback.
type ProbeState int

const (
	ProbeFound ProbeState = iota
	ProbeUnavailable
	ProbeFailed
)

// DateProbe is the tri-state result of asking the store for its last
// recorded transaction month.
type DateProbe struct {
	State  ProbeState
	Period Period
	Err    error
}

// FoundDate builds a successful probe.
func FoundDate(p Period) DateProbe { return DateProbe{State: ProbeFound, Period: p} }

// NoDate reports a reachable store with no parseable date.
func NoDate() DateProbe { return DateProbe{State: ProbeUnavailable} }

// ProbeError reports that the store could not be consulted at all.
func ProbeError(err error) DateProbe { return DateProbe{State: ProbeFailed, Err: err} }

// TargetPeriod is a resolved processing month plus its provenance:
// sheet-derived targets are promises the input data must keep.
type TargetPeriod struct {
	Period       Period
	SheetDerived bool
}

// ResolveTarget determines which calendar month to process.
//
// Priority: an explicit month/year always wins (and is required when
// auto-detection is off); with auto-detection, the month after the store's
// last recorded month; failing that, the month before now.
func ResolveTarget(explicit *Period, autoDate bool, probe DateProbe, now time.Time) (TargetPeriod, error) {
	if explicit != nil {
		return TargetPeriod{Period: *explicit}, nil
	}
	if !autoDate {
		return TargetPeriod{}, ErrMissingPeriod
	}
	if probe.State == ProbeFound {
		return TargetPeriod{Period: probe.Period.Next(), SheetDerived: true}, nil
	}
	return TargetPeriod{Period: PeriodOf(now).Prev()}, nil
}

// ApplyTarget filters the categorized set down to the target month.
//
// A sheet-derived target that matches nothing is a hard error naming the
// expected month. The previous-month fallback instead re-targets the
// latest month actually present in the input; a wholly empty input comes
// back as an empty set with no error ("nothing to do").
func ApplyTarget(txs []CategorizedTransaction, target TargetPeriod) ([]CategorizedTransaction, Period, error) {
	filtered := FilterPeriod(txs, target.Period)
	if len(filtered) > 0 {
		return filtered, target.Period, nil
	}
	if target.SheetDerived {
		return nil, target.Period, fmt.Errorf("%w: no transactions for %s", ErrExpectedPeriodMissing, target.Period)
	}
	latest := LatestPeriod(txs)
	if latest.IsZero() {
		return nil, target.Period, nil
	}
	return FilterPeriod(txs, latest), latest, nil
}
