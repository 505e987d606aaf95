package sheetsync

import (
	"context"
	"fmt"
	"strings"
)

// RowStore is the contract over a remote tabular store addressed with A1 ranges.
// There are no transactions, locks or compare-and-swap at this level.
type RowStore interface {
	// GetRange returns the rows of the range in order. Trailing empty cells and
	// trailing empty rows are omitted.
	GetRange(ctx context.Context, rng string) ([][]string, error)

	// AppendRow inserts row after the last non-empty row of the range.
	// Duplicates are not detected.
	AppendRow(ctx context.Context, rng string, row []string) error

	// UpdateCells overwrites the bounded region rng with values.
	UpdateCells(ctx context.Context, rng string, values [][]string) error
}

// ConditionalRowStore is a RowStore that can reject writes whose read went stale.
// Both methods return ErrConflict when the precondition does not hold.
type ConditionalRowStore interface {
	RowStore

	// AppendRowIfAbsent appends row only if no data row of rng holds key in its
	// first cell (see ContainsKey). Appends for different keys never conflict.
	AppendRowIfAbsent(ctx context.Context, rng string, key string, row []string) error

	// UpdateCellsIf overwrites rng with values only if its current cells equal expected.
	UpdateCellsIf(ctx context.Context, rng string, expected, values [][]string) error
}

// Column positions of the user table.
const (
	ColumnEmail = iota
	ColumnStatus
	ColumnSubscriptionID
	columnCount
)

const (
	// DefaultSheetName is the tab used when none is configured
	DefaultSheetName = "Sheet1"

	headerMarker = "email"
)

// Layout addresses the user table inside a sheet.
type Layout struct {
	// SheetName is the tab holding the table. Default: "Sheet1"
	SheetName string
}

func (l Layout) sheet() string {
	if strings.TrimSpace(l.SheetName) == "" {
		return DefaultSheetName
	}
	return l.SheetName
}

// DataRange is the full three-column range (A:C).
func (l Layout) DataRange() string {
	return QuoteSheet(l.sheet()) + "!A:C"
}

// StatusRange is the status cell of the given 1-based sheet row.
func (l Layout) StatusRange(row int) string {
	return fmt.Sprintf("%s!B%d", QuoteSheet(l.sheet()), row)
}

// StatusAndSubscriptionRange covers the status and subscription cells of a row.
func (l Layout) StatusAndSubscriptionRange(row int) string {
	return fmt.Sprintf("%s!B%d:C%d", QuoteSheet(l.sheet()), row, row)
}

// tableRow is a data row together with its 1-based sheet row number.
type tableRow struct {
	number int
	cells  []string
	record UserRecord
}

// table is a loaded snapshot of the user table.
type table struct {
	rows      []tableRow
	hasHeader bool
}

// isHeader reports whether a first row is a column-label row.
func isHeader(row []string) bool {
	return len(row) > 0 && strings.Contains(strings.ToLower(strings.TrimSpace(row[0])), headerMarker)
}

// newTable builds a snapshot from the rows returned for Layout.DataRange.
// Row i of raw sits on sheet row i+1; a header row is skipped but still counted.
func newTable(raw [][]string) *table {
	t := &table{}
	for i, row := range raw {
		if i == 0 && isHeader(row) {
			t.hasHeader = true
			continue
		}
		t.rows = append(t.rows, tableRow{
			number: i + 1,
			cells:  row,
			record: recordFromRow(row),
		})
	}
	return t
}

func recordFromRow(row []string) UserRecord {
	cell := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	return UserRecord{
		Email:          NormalizeEmail(cell(ColumnEmail)),
		Status:         cell(ColumnStatus),
		SubscriptionID: NormalizeSubscriptionID(cell(ColumnSubscriptionID)),
	}
}

// byEmail returns the first row whose normalized email matches.
func (t *table) byEmail(email string) (tableRow, bool) {
	if email == "" {
		return tableRow{}, false
	}
	for _, r := range t.rows {
		if r.record.Email == email {
			return r, true
		}
	}
	return tableRow{}, false
}

// bySubscription returns the first row whose trimmed subscription id matches exactly.
func (t *table) bySubscription(id string) (tableRow, bool) {
	if id == "" {
		return tableRow{}, false
	}
	for _, r := range t.rows {
		if r.record.SubscriptionID == id {
			return r, true
		}
	}
	return tableRow{}, false
}

// ContainsKey reports whether a data row of rows, as returned for a user table
// range, holds key in its first cell. A header row never matches; emails are
// compared normalized.
func ContainsKey(rows [][]string, key string) bool {
	_, ok := newTable(rows).byEmail(NormalizeEmail(key))
	return ok
}

// observed returns the current cells of columns [from, to] of a row, as read.
func (r tableRow) observed(from, to int) [][]string {
	vals := make([]string, 0, to-from+1)
	for c := from; c <= to; c++ {
		if c < len(r.cells) {
			vals = append(vals, r.cells[c])
		} else {
			vals = append(vals, "")
		}
	}
	return [][]string{TrimRow(vals)}
}
