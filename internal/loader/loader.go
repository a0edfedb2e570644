// Package loader reads personal-finance transaction exports (CSV).
package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"fireledger/internal/core"
)

// Required header columns, matched case-insensitively and in any order.
var requiredColumns = []string{"DATE", "AMOUNT", "DESCRIPTION", "CATEGORY"}

// Date layouts seen in bank exports. Tried in order; first parse wins.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006",
	"02 Jan 2006",
}

// LoadCSV reads and parses a transaction export from disk.
func LoadCSV(path string) ([]core.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	txs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return txs, nil
}

// Parse reads a transaction export. The header row is mandatory; rows with
// unparseable dates are dropped, rows with unparseable amounts are an
// error (silently skipping them would corrupt the monthly totals).
func Parse(r io.Reader) ([]core.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv is empty, header row required")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToUpper(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("csv missing required column %s", name)
		}
	}

	var (
		txs     []core.Transaction
		dropped int
		line    = 1
	)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line+1, err)
		}
		line++

		date, ok := parseDate(field(record, cols["DATE"]))
		if !ok {
			dropped++
			continue
		}
		amount, err := parseAmount(field(record, cols["AMOUNT"]))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		txs = append(txs, core.Transaction{
			Date:        date,
			Amount:      amount,
			Description: field(record, cols["DESCRIPTION"]),
			Category:    field(record, cols["CATEGORY"]),
		})
	}
	if dropped > 0 {
		slog.Warn("dropped rows with unparseable dates", "count", dropped)
	}
	return txs, nil
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseAmount strips currency symbols and thousands separators before
// parsing the signed decimal.
func parseAmount(s string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return -1
		}
	}, s)
	if cleaned == "" {
		return 0, fmt.Errorf("unparseable amount %q", s)
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable amount %q", s)
	}
	return v, nil
}
