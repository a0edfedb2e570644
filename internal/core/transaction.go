package core

import (
	"fmt"
	"time"
)

// MonthLabelLayout is the wire format used for the date column of the
// ledger sheet, e.g. "Nov, 24". It is both the parse target when reading
// the sheet and the write format when updating it.
const MonthLabelLayout = "Jan, 06"

type (
	// Transaction is a single row from a bank CSV export.
	// Amount keeps the export's sign convention: negative for expenses,
	// positive for refunds and income.
	Transaction struct {
		Date        time.Time
		Amount      float64
		Description string
		Category    string
	}

	// CategorizedTransaction carries the canonical output category assigned
	// after all rule layers have run.
	CategorizedTransaction struct {
		Transaction
		MappedCategory string
	}

	// Period identifies a calendar month.
	Period struct {
		Year  int
		Month time.Month
	}
)

// PeriodOf returns the calendar month a date falls in.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// Time returns the first-of-month timestamp for the period.
func (p Period) Time() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Next returns the following calendar month.
func (p Period) Next() Period {
	return PeriodOf(p.Time().AddDate(0, 1, 0))
}

// Prev returns the preceding calendar month.
func (p Period) Prev() Period {
	return PeriodOf(p.Time().AddDate(0, -1, 0))
}

// Label renders the period in the sheet's month format, e.g. "Nov, 24".
func (p Period) Label() string {
	return p.Time().Format(MonthLabelLayout)
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

func (p Period) String() string {
	if p.IsZero() {
		return "(none)"
	}
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// ParseMonthLabel parses a sheet month label ("Nov, 24") back into a period.
func ParseMonthLabel(s string) (Period, error) {
	t, err := time.Parse(MonthLabelLayout, s)
	if err != nil {
		return Period{}, err
	}
	return PeriodOf(t), nil
}
