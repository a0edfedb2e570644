package core

import (
	"sort"
	"time"
)

// MonthlyRow holds one calendar month of aggregated spending. Values
// carries exactly one entry per canonical category (SheetColumns), with
// net spending positive and net refund/surplus negative. Internal values
// keep full float precision; rounding happens only at presentation and
// write boundaries.
type MonthlyRow struct {
	Month         time.Time
	Values        map[string]float64
	Necessary     float64
	Discretionary float64
	Excess        float64
	Totals        float64
}

// Period returns the calendar month of the row.
func (r MonthlyRow) Period() Period {
	return PeriodOf(r.Month)
}

// Value returns the amount for a canonical category, 0 when absent.
func (r MonthlyRow) Value(category string) float64 {
	return r.Values[category]
}

// Summary bucket column labels as they appear on the ledger sheet.
const (
	BucketNecessary     = "Necessary"
	BucketDiscretionary = "Discretionary"
	BucketExcess        = "Excess"
	BucketTotals        = "Totals"
)

// ColumnValue resolves a sheet column name against the row: canonical
// categories first, then the summary buckets. The second return is false
// for columns the pipeline knows nothing about.
func (r MonthlyRow) ColumnValue(name string) (float64, bool) {
	if v, ok := r.Values[name]; ok {
		return v, true
	}
	switch name {
	case BucketNecessary:
		return r.Necessary, true
	case BucketDiscretionary:
		return r.Discretionary, true
	case BucketExcess:
		return r.Excess, true
	case BucketTotals:
		return r.Totals, true
	}
	return 0, false
}

// Aggregate groups categorized transactions by calendar month, sums signed
// amounts per canonical category, inverts the sign convention and computes
// the Necessary/Discretionary/Excess buckets and grand total. Rows come
// back ordered by month ascending. An empty input yields an empty result
// set with no rows at all, not a zero-filled schema.
func Aggregate(txs []CategorizedTransaction) []MonthlyRow {
	if len(txs) == 0 {
		return nil
	}

	sums := make(map[Period]map[string]float64)
	for _, tx := range txs {
		p := PeriodOf(tx.Date)
		if sums[p] == nil {
			sums[p] = make(map[string]float64)
		}
		sums[p][tx.MappedCategory] += tx.Amount
	}

	rows := make([]MonthlyRow, 0, len(sums))
	for p, byCat := range sums {
		row := MonthlyRow{
			Month:  p.Time(),
			Values: make(map[string]float64, len(SheetColumns)),
		}
		// Reindex onto the canonical column list: categories outside it
		// are dropped, absent ones become zero. Expenses arrive negative,
		// so the sign flip makes spending positive.
		for _, cat := range SheetColumns {
			if v := byCat[cat]; v != 0 {
				row.Values[cat] = -v
			} else {
				row.Values[cat] = 0
			}
		}
		for _, cat := range NecessaryColumns {
			row.Necessary += row.Values[cat]
		}
		for _, cat := range DiscretionaryColumns {
			row.Discretionary += row.Values[cat]
		}
		for _, cat := range ExcessColumns {
			row.Excess += row.Values[cat]
		}
		row.Totals = row.Necessary + row.Discretionary + row.Excess
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Month.Before(rows[j].Month) })
	return rows
}
