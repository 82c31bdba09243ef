package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"meufin/internal/core"
	ports "meufin/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const DefaultSheetName = "Meufin"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	year          int
}

// Ensure interface conformance
var _ ports.TransactionMirror = (*Client)(nil)

type Options struct {
	SpreadsheetID string
	// SheetName is the base tab name; the current year is prefixed.
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := loadCredentials(opts)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(creds),
		"scope", gsheet.SpreadsheetsScope)

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, opts.SpreadsheetID, opts.SheetName), nil
}

// NewWithService wraps an existing service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = DefaultSheetName
	}
	year := time.Now().Year()
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(spreadsheetID),
		sheet:         yearPrefixedName(sheetName, year),
		year:          year,
	}
}

func loadCredentials(opts Options) ([]byte, error) {
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		return []byte(opts.CredentialsJSON), nil
	case strings.TrimSpace(opts.CredentialsFile) != "":
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	if path := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

// Sheet is the tab the client writes to.
func (c *Client) Sheet() string { return c.sheet }

// Mirror replaces the contents of the yearly tab with the transactions of
// that year, creating the tab when it does not exist yet.
func (c *Client) Mirror(ctx context.Context, txs []core.Transaction) (ports.MirrorResult, error) {
	if c.svc == nil {
		return ports.MirrorResult{}, errors.New("sheets service not initialized")
	}
	if err := c.ensureSheet(ctx); err != nil {
		return ports.MirrorResult{}, err
	}

	clearRange := fmt.Sprintf("%s!A:%s", c.sheet, lastColumn())
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return ports.MirrorResult{}, fmt.Errorf("clear %s: %w", clearRange, err)
	}

	var current []core.Transaction
	for _, tx := range txs {
		if tx.Date.Year() == c.year {
			current = append(current, tx)
		}
	}
	rows := ports.Rows(current)
	dataRange := fmt.Sprintf("%s!A1:%s%d", c.sheet, lastColumn(), len(rows))
	vr := &gsheet.ValueRange{Values: rows}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return ports.MirrorResult{}, fmt.Errorf("update %s: %w", dataRange, err)
	}

	slog.InfoContext(ctx, "Transactions mirrored to Google Sheets", "sheet", c.sheet, "rows", len(current))
	return ports.MirrorResult{Sheet: c.sheet, Range: dataRange, Rows: len(current)}, nil
}

func (c *Client) ensureSheet(ctx context.Context) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet %s: %w", c.spreadsheetID, err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && strings.EqualFold(strings.TrimSpace(s.Properties.Title), c.sheet) {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: c.sheet}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", c.sheet, err)
	}
	slog.InfoContext(ctx, "Created sheet", "sheet", c.sheet)
	return nil
}

func lastColumn() string {
	return string(rune('A' + len(ports.Header) - 1))
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
