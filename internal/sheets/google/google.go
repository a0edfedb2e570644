// Package google adapts the Google Sheets API to the tabular-store ports.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	ports "fireledger/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// requestTimeout bounds every Sheets API call so no pipeline operation
// blocks indefinitely.
const requestTimeout = 30 * time.Second

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	worksheet     string
}

var _ ports.Store = (*Client)(nil)

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID plus service-account credentials via
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS. Optional: GOOGLE_SHEET_NAME (default "Out").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	worksheet := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if worksheet == "" {
		worksheet = "Out"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, worksheet: worksheet}, nil
}

// New wires an already-constructed Sheets service; used by tests.
func New(svc *gsheet.Service, spreadsheetID, worksheet string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID, worksheet: worksheet}
}

// Worksheet returns the worksheet name this client reads and writes.
func (c *Client) Worksheet() string { return c.worksheet }

// newSheetsService initializes a Sheets service using service-account
// credentials from the environment.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// ReadColumn returns the text values of a 1-based column.
func (c *Client) ReadColumn(ctx context.Context, index int) ([]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	col := ports.ColumnLetters(index)
	rng := fmt.Sprintf("%s!%s:%s", c.worksheet, col, col)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out := make([]string, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) > 0 {
			out[i] = strings.TrimSpace(fmt.Sprint(row[0]))
		}
	}
	return out, nil
}

// ReadRow returns a 1-based row. With renderFormulas the cells come back
// as entered, so formula cells keep their "=" prefix.
func (c *Client) ReadRow(ctx context.Context, index int, renderFormulas bool) ([]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	rng := fmt.Sprintf("%s!%d:%d", c.worksheet, index, index)
	call := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng)
	if renderFormulas {
		call = call.ValueRenderOption("FORMULA")
	}
	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	row := resp.Values[0]
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = strings.TrimSpace(fmt.Sprint(cell))
	}
	return out, nil
}

// BatchWrite submits every cell update in a single values.batchUpdate
// call with USER_ENTERED input. An empty batch performs no network call.
func (c *Client) BatchWrite(ctx context.Context, updates []ports.CellUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	data := make([]*gsheet.ValueRange, 0, len(updates))
	for _, u := range updates {
		data = append(data, &gsheet.ValueRange{
			Range:  u.Ref.A1(),
			Values: [][]any{{u.Value}},
		})
	}
	req := &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             data,
	}
	resp, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("batch update %d cells: %w", len(updates), err)
	}
	slog.InfoContext(ctx, "sheet batch update applied",
		"cells", len(updates),
		"updated_cells", resp.TotalUpdatedCells,
		"worksheet", c.worksheet)
	return nil
}
