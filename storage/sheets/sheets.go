// Package sheets provides the Google Sheets implementation of the sheetsync row store.
//
// The Sheets API has no conditional writes, so Storage is a plain
// sheetsync.RowStore and concurrent read-modify-write cycles on the same row
// can lose an update.
package sheets

import (
	"context"
	"fmt"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/mihaimyh/sheetsync/pkg/sheetsync"
)

// valueInputOption stores values as given; "=..." is never parsed as a formula.
const valueInputOption = "RAW"

// Storage implements sheetsync.RowStore on top of the Sheets v4 values API
type Storage struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
}

// Config holds Google Sheets storage configuration
type Config struct {
	// SpreadsheetID is the id from the spreadsheet URL (required)
	SpreadsheetID string

	// CredentialsJSON is a service-account key (client_email and private_key).
	// Ignored when client options are passed to New.
	CredentialsJSON []byte
}

// New creates a Sheets row store. Without client options, a service-account JWT
// client is built from config.CredentialsJSON.
func New(ctx context.Context, config Config, opts ...option.ClientOption) (*Storage, error) {
	if config.SpreadsheetID == "" {
		return nil, fmt.Errorf("%w: spreadsheet id is required", sheetsync.ErrStoreNotConfigured)
	}

	if len(opts) == 0 {
		if len(config.CredentialsJSON) == 0 {
			return nil, fmt.Errorf("%w: service account credentials are required", sheetsync.ErrStoreNotConfigured)
		}
		jwtConfig, err := google.JWTConfigFromJSON(config.CredentialsJSON, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("failed to parse service account credentials: %w", err)
		}
		opts = append(opts, option.WithHTTPClient(jwtConfig.Client(ctx)))
	}

	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Storage{
		values:        srv.Spreadsheets.Values,
		spreadsheetID: config.SpreadsheetID,
	}, nil
}

// GetRange implements sheetsync.RowStore
func (s *Storage) GetRange(ctx context.Context, rng string) ([][]string, error) {
	resp, err := s.values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", rng, err)
	}
	return toStrings(resp.Values), nil
}

// AppendRow implements sheetsync.RowStore
func (s *Storage) AppendRow(ctx context.Context, rng string, row []string) error {
	body := &sheets.ValueRange{Values: toValues([][]string{row})}
	_, err := s.values.Append(s.spreadsheetID, rng, body).
		ValueInputOption(valueInputOption).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", rng, err)
	}
	return nil
}

// UpdateCells implements sheetsync.RowStore
func (s *Storage) UpdateCells(ctx context.Context, rng string, values [][]string) error {
	body := &sheets.ValueRange{Values: toValues(values)}
	_, err := s.values.Update(s.spreadsheetID, rng, body).
		ValueInputOption(valueInputOption).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", rng, err)
	}
	return nil
}

func toStrings(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		out[i] = make([]string, len(row))
		for j, cell := range row {
			if cell != nil {
				out[i][j] = fmt.Sprint(cell)
			}
		}
	}
	return sheetsync.TrimRows(out)
}

func toValues(rows [][]string) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		out[i] = make([]interface{}, len(row))
		for j, cell := range row {
			out[i][j] = cell
		}
	}
	return out
}
