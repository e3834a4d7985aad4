package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"wallet/internal/core"
	"wallet/internal/store"
)

// Config selects the spreadsheet and credentials.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// Client stores transactions in a Google Sheet, one row per transaction.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	now           func() time.Time

	// Writes read the sheet to find row numbers and the next id.
	mu sync.Mutex
}

var (
	_ store.TransactionStore = (*Client)(nil)
	_ store.MirrorStore      = (*Client)(nil)
)

// DefaultSheetName is used when GOOGLE_SHEET_NAME is empty.
const DefaultSheetName = "Transactions"

// New creates a Sheets client with service account credentials from cfg.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

// NewWithService wraps an already configured service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = DefaultSheetName
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(spreadsheetID),
		sheetName:     strings.TrimSpace(sheetName),
		now:           time.Now,
	}
}

// NewFromEnv reads GOOGLE_SPREADSHEET_ID, GOOGLE_SHEET_NAME and the
// service account variables from the environment.
func NewFromEnv(ctx context.Context) (*Client, error) {
	return New(ctx, Config{
		SpreadsheetID:      os.Getenv("GOOGLE_SPREADSHEET_ID"),
		SheetName:          os.Getenv("GOOGLE_SHEET_NAME"),
		ServiceAccountJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		ServiceAccountFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	})
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Falls back to GOOGLE_APPLICATION_CREDENTIALS when cfg names none.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var (
		credentialsJSON []byte
		err             error
	)
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) columnsRange() string {
	return fmt.Sprintf("%s!A:G", c.sheetName)
}

func (c *Client) rowRange(row int) string {
	return fmt.Sprintf("%s!A%d:G%d", c.sheetName, row, row)
}

func (c *Client) readRows(ctx context.Context) ([]sheetRow, int, error) {
	if c.svc == nil {
		return nil, 0, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.columnsRange()).Context(ctx).Do()
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", c.columnsRange(), err)
	}
	rows, err := parseRows(resp.Values)
	if err != nil {
		return nil, 0, fmt.Errorf("parse %s: %w", c.sheetName, err)
	}
	return rows, len(resp.Values), nil
}

func (c *Client) List(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, _, err := c.readRows(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Transaction, len(rows))
	for i, r := range rows {
		out[i] = r.Transaction
	}
	return store.NewestFirst(out, limit), nil
}

func (c *Client) Create(ctx context.Context, t core.Transaction) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, used, err := c.readRows(ctx)
	if err != nil {
		return 0, err
	}
	t.ID = nextID(rows)
	t.CreatedAt = c.now().UTC()
	if err := c.appendRow(ctx, t, used); err != nil {
		return 0, err
	}
	return t.ID, nil
}

func (c *Client) Update(ctx context.Context, id int64, p core.Patch) (core.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, _, err := c.readRows(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	r, ok := findRow(rows, id)
	if !ok {
		return core.Transaction{}, store.ErrNotFound
	}
	updated := p.Apply(r.Transaction)
	if err := c.writeRow(ctx, r.Row, updated); err != nil {
		return core.Transaction{}, err
	}
	return updated, nil
}

func (c *Client) Delete(ctx context.Context, id int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, _, err := c.readRows(ctx)
	if err != nil {
		return false, err
	}
	r, ok := findRow(rows, id)
	if !ok {
		return false, nil
	}

	sheetID, err := c.sheetID(ctx)
	if err != nil {
		return false, err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(r.Row - 1),
					EndIndex:   int64(r.Row),
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return false, fmt.Errorf("delete row %d in %s: %w", r.Row, c.sheetName, err)
	}
	return true, nil
}

// Upsert rewrites the row holding t.ID, or appends one.
func (c *Client) Upsert(ctx context.Context, t core.Transaction) error {
	if t.ID <= 0 {
		return errors.New("upsert transaction: missing id")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, used, err := c.readRows(ctx)
	if err != nil {
		return err
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = c.now().UTC()
	}
	if r, ok := findRow(rows, t.ID); ok {
		return c.writeRow(ctx, r.Row, t)
	}
	return c.appendRow(ctx, t, used)
}

// appendRow writes t after the last used row, adding the header to an empty sheet.
func (c *Client) appendRow(ctx context.Context, t core.Transaction, used int) error {
	if used == 0 {
		if err := c.writeValues(ctx, 1, header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		used = 1
	}
	return c.writeRow(ctx, used+1, t)
}

func (c *Client) writeRow(ctx context.Context, row int, t core.Transaction) error {
	return c.writeValues(ctx, row, toValues(t))
}

// writeValues stores raw text so dates and amounts are not reinterpreted by Sheets.
func (c *Client) writeValues(ctx context.Context, row int, values []any) error {
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.rowRange(row), vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", c.rowRange(row), err)
	}
	return nil
}

func (c *Client) sheetID(ctx context.Context) (int64, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == c.sheetName {
			return sh.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", c.sheetName)
}

func findRow(rows []sheetRow, id int64) (sheetRow, bool) {
	for _, r := range rows {
		if r.Transaction.ID == id {
			return r, true
		}
	}
	return sheetRow{}, false
}

func nextID(rows []sheetRow) int64 {
	var max int64
	for _, r := range rows {
		if r.Transaction.ID > max {
			max = r.Transaction.ID
		}
	}
	return max + 1
}
