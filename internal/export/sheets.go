// Package export pushes the monthly summary to a Google spreadsheet.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

const defaultSheetName = "Summary"

var ErrNotConfigured = errors.New("sheets export not configured")

type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// Enabled reports whether both a spreadsheet and credentials are set.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.SpreadsheetID) != "" &&
		(strings.TrimSpace(c.CredentialsJSON) != "" || strings.TrimSpace(c.CredentialsFile) != "")
}

// Sheets writes month buckets into one sheet of a spreadsheet.
type Sheets struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	logger        *log.Logger
}

// NewSheets builds the Sheets service from service account credentials.
// Extra options are appended after the credentials.
func NewSheets(ctx context.Context, cfg Config, logger *log.Logger, extra ...goption.ClientOption) (*Sheets, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = log.Discard()
	}
	var opts []goption.ClientOption
	if len(extra) == 0 {
		credentialsJSON, err := readCredentials(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts,
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	}
	opts = append(opts, extra...)

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = defaultSheetName
	}
	return &Sheets{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		sheet:         sheet,
		logger:        logger.WithComponent(log.ComponentExport),
	}, nil
}

func readCredentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(strings.TrimSpace(cfg.CredentialsFile))
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, ErrNotConfigured
}

// Rows renders the header and one row per month: label, income, expense, net.
func Rows(months []core.MonthBucket) [][]any {
	rows := make([][]any, 0, len(months)+1)
	rows = append(rows, []any{"Month", "Income", "Expense", "Net"})
	for _, m := range months {
		rows = append(rows, []any{m.Key.String(), m.Income.String(), m.Expense.String(), m.Net().String()})
	}
	return rows
}

// WriteMonths clears columns A:D of the sheet and writes the summary,
// returning the range written.
func (s *Sheets) WriteMonths(ctx context.Context, months []core.MonthBucket) (string, error) {
	clearRange := fmt.Sprintf("%s!A1:D", s.sheet)
	if _, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", clearRange, err)
	}

	rows := Rows(months)
	rng := fmt.Sprintf("%s!A1:D%d", s.sheet, len(rows))
	vr := &gsheet.ValueRange{Values: rows}
	if _, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("update %s: %w", rng, err)
	}

	s.logger.InfoContext(ctx, "Month summary exported",
		log.FieldOperation, log.OpExport,
		log.FieldSheetRange, rng,
		log.FieldRecords, len(months))
	return rng, nil
}
