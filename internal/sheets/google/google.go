// Package google mirrors ledgers into a Google Sheets spreadsheet, one
// sheet per calendar year ("2024 Ledger", "2025 Ledger", ...).
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"budgetwise/internal/core"
	applog "budgetwise/internal/log"
	ports "budgetwise/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	DefaultSheetName = "Ledger"
	valueInputOption = "USER_ENTERED"
)

var _ ports.LedgerExporter = (*Client)(nil)

// Config selects the spreadsheet and the base sheet name.
type Config struct {
	SpreadsheetID string
	SheetName     string
}

// sheetsAPI is the slice of the Sheets API the client needs.
type sheetsAPI interface {
	SheetTitles(ctx context.Context) ([]string, error)
	AddSheet(ctx context.Context, title string) error
	Get(ctx context.Context, rng string) ([][]any, error)
	Append(ctx context.Context, rng string, rows [][]any) error
	Update(ctx context.Context, rng string, rows [][]any) error
	Clear(ctx context.Context, rng string) error
}

// Client serializes its read-modify-write cycles; a single worker process
// owns the spreadsheet.
type Client struct {
	api       sheetsAPI
	sheetBase string
	logger    *slog.Logger

	mu    sync.Mutex
	known map[string]bool
}

// New creates a Sheets client. Without opts the credentials come from the
// environment (see credentialsFromEnv).
func New(ctx context.Context, cfg Config, logger *slog.Logger, opts ...goption.ClientOption) (*Client, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if len(opts) == 0 {
		creds, err := credentialsFromEnv(ctx, logger)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newClient(&serviceAPI{svc: svc, spreadsheetID: id}, cfg.SheetName, logger), nil
}

func newClient(api sheetsAPI, sheetName string, logger *slog.Logger) *Client {
	base := strings.TrimSpace(sheetName)
	if base == "" {
		base = DefaultSheetName
	}
	return &Client{
		api:       api,
		sheetBase: base,
		logger:    logger,
		known:     make(map[string]bool),
	}
}

// credentialsFromEnv reads service account credentials from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS, in that order.
func credentialsFromEnv(ctx context.Context, logger *slog.Logger) ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		logger.DebugContext(ctx, "Using inline service account credentials",
			applog.FieldComponent, applog.ComponentSheets)
		return []byte(inline), nil
	}

	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	logger.DebugContext(ctx, "Read service account credentials",
		applog.FieldComponent, applog.ComponentSheets,
		"path", path)
	return data, nil
}

func (c *Client) AppendTransaction(ctx context.Context, userID string, tx core.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sheet := c.sheetFor(tx)
	rows, err := c.readSheet(ctx, sheet)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if matches(row, userID, tx.ID) {
			c.logger.DebugContext(ctx, "Row already exported",
				applog.FieldComponent, applog.ComponentSheets,
				applog.FieldUserID, userID,
				applog.FieldTransactionID, tx.ID)
			return nil
		}
	}

	var out [][]any
	if len(rows) == 0 {
		out = append(out, headerRow)
	}
	out = append(out, txRow(userID, tx))
	if err := c.api.Append(ctx, a1(sheet, "A:"+lastCol), out); err != nil {
		return fmt.Errorf("append to %s: %w", sheet, err)
	}

	c.logger.InfoContext(ctx, "Transaction exported",
		applog.FieldComponent, applog.ComponentSheets,
		applog.FieldOperation, applog.OpExport,
		applog.FieldUserID, userID,
		applog.FieldTransactionID, tx.ID,
		"sheet", sheet)
	return nil
}

func (c *Client) DeleteTransaction(ctx context.Context, userID string, tx core.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sheet := c.sheetFor(tx)
	rows, err := c.readSheet(ctx, sheet)
	if err != nil {
		return err
	}
	kept := make([][]any, 0, len(rows))
	for _, row := range rows {
		if !matches(row, userID, tx.ID) {
			kept = append(kept, row)
		}
	}
	if len(kept) == len(rows) {
		return nil
	}
	if err := c.rewrite(ctx, sheet, kept); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "Exported transaction removed",
		applog.FieldComponent, applog.ComponentSheets,
		applog.FieldOperation, applog.OpDelete,
		applog.FieldUserID, userID,
		applog.FieldTransactionID, tx.ID,
		"sheet", sheet)
	return nil
}

// ReplaceLedger rewrites the user's rows in each year sheet the ledger
// touches. Other users' rows are kept as they are.
func (c *Client) ReplaceLedger(ctx context.Context, userID string, ledger core.Ledger) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for year, userRows := range rowsByYear(userID, ledger) {
		sheet := yearPrefixedName(c.sheetBase, year)
		rows, err := c.readSheet(ctx, sheet)
		if err != nil {
			return err
		}
		out := [][]any{headerRow}
		for _, row := range rows {
			if !isHeader(row) && !belongsTo(row, userID) {
				out = append(out, row)
			}
		}
		out = append(out, userRows...)
		if err := c.rewrite(ctx, sheet, out); err != nil {
			return err
		}
	}

	c.logger.InfoContext(ctx, "Ledger reconciled",
		applog.FieldComponent, applog.ComponentSheets,
		applog.FieldOperation, applog.OpExport,
		applog.FieldUserID, userID,
		"transactions", len(ledger))
	return nil
}

func (c *Client) sheetFor(tx core.Transaction) string {
	return yearPrefixedName(c.sheetBase, tx.Date.UTC().Year())
}

// readSheet returns every row of sheet, creating the sheet on first use.
func (c *Client) readSheet(ctx context.Context, sheet string) ([][]any, error) {
	if err := c.ensureSheet(ctx, sheet); err != nil {
		return nil, err
	}
	rows, err := c.api.Get(ctx, a1(sheet, "A:"+lastCol))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sheet, err)
	}
	return rows, nil
}

func (c *Client) ensureSheet(ctx context.Context, sheet string) error {
	if c.known[sheet] {
		return nil
	}
	titles, err := c.api.SheetTitles(ctx)
	if err != nil {
		return fmt.Errorf("list sheets: %w", err)
	}
	for _, t := range titles {
		c.known[t] = true
	}
	if c.known[sheet] {
		return nil
	}
	if err := c.api.AddSheet(ctx, sheet); err != nil {
		return fmt.Errorf("add sheet %s: %w", sheet, err)
	}
	c.known[sheet] = true
	c.logger.InfoContext(ctx, "Created sheet",
		applog.FieldComponent, applog.ComponentSheets,
		"sheet", sheet)
	return nil
}

func (c *Client) rewrite(ctx context.Context, sheet string, rows [][]any) error {
	if err := c.api.Clear(ctx, a1(sheet, "A:"+lastCol)); err != nil {
		return fmt.Errorf("clear %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil
	}
	rng := a1(sheet, fmt.Sprintf("A1:%s%d", lastCol, len(rows)))
	if err := c.api.Update(ctx, rng, rows); err != nil {
		return fmt.Errorf("write %s: %w", sheet, err)
	}
	return nil
}

// a1 builds an A1 range, quoting the sheet title.
func a1(sheet, cells string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + cells
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

// serviceAPI adapts *gsheet.Service to sheetsAPI.
type serviceAPI struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (s *serviceAPI) SheetTitles(ctx context.Context) ([]string, error) {
	resp, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		if sh.Properties != nil {
			titles = append(titles, sh.Properties.Title)
		}
	}
	return titles, nil
}

func (s *serviceAPI) AddSheet(ctx context.Context, title string) error {
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	_, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do()
	return err
}

func (s *serviceAPI) Get(ctx context.Context, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s *serviceAPI) Append(ctx context.Context, rng string, rows [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption(valueInputOption).InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}

func (s *serviceAPI) Update(ctx context.Context, rng string, rows [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption(valueInputOption).Context(ctx).Do()
	return err
}

func (s *serviceAPI) Clear(ctx context.Context, rng string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	return err
}
