package sheetsync

import (
	"fmt"
	"strconv"
	"strings"
)

// Range is a parsed A1 range. Columns are 0-based, rows are 1-based sheet rows.
// A zero StartRow or EndRow means the range is unbounded on that side.
type Range struct {
	Sheet    string
	StartCol int
	StartRow int
	EndCol   int
	EndRow   int
}

// ParseRange parses A1 notation such as "Sheet1!A:C", "'My Sheet'!B5:C5" or "Sheet1!B5".
func ParseRange(a1 string) (Range, error) {
	sep := strings.LastIndex(a1, "!")
	if sep <= 0 || sep == len(a1)-1 {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, a1)
	}

	sheet := a1[:sep]
	if len(sheet) >= 2 && strings.HasPrefix(sheet, "'") && strings.HasSuffix(sheet, "'") {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}
	if sheet == "" {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, a1)
	}

	cells := strings.SplitN(a1[sep+1:], ":", 2)
	startCol, startRow, err := parseCell(cells[0])
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, a1)
	}
	endCol, endRow := startCol, startRow
	if len(cells) == 2 {
		endCol, endRow, err = parseCell(cells[1])
		if err != nil {
			return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, a1)
		}
	}
	if endCol < startCol || (endRow != 0 && endRow < startRow) {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, a1)
	}

	return Range{Sheet: sheet, StartCol: startCol, StartRow: startRow, EndCol: endCol, EndRow: endRow}, nil
}

// parseCell parses "B5" or "B" into a 0-based column and a 1-based row (0 when absent).
func parseCell(cell string) (col, row int, err error) {
	cell = strings.ToUpper(strings.TrimSpace(cell))
	i := 0
	for i < len(cell) && cell[i] >= 'A' && cell[i] <= 'Z' {
		col = col*26 + int(cell[i]-'A'+1)
		i++
	}
	if i == 0 {
		return 0, 0, fmt.Errorf("missing column in %q", cell)
	}
	if i < len(cell) {
		row, err = strconv.Atoi(cell[i:])
		if err != nil || row < 1 {
			return 0, 0, fmt.Errorf("bad row in %q", cell)
		}
	}
	return col - 1, row, nil
}

// Width returns the number of columns the range spans.
func (r Range) Width() int {
	return r.EndCol - r.StartCol + 1
}

// FirstRow returns the first sheet row covered by the range.
func (r Range) FirstRow() int {
	if r.StartRow == 0 {
		return 1
	}
	return r.StartRow
}

// Contains reports whether the 1-based sheet row falls inside the range.
func (r Range) Contains(row int) bool {
	return row >= r.FirstRow() && (r.EndRow == 0 || row <= r.EndRow)
}

// String formats the range back into A1 notation.
func (r Range) String() string {
	start := ColumnName(r.StartCol)
	end := ColumnName(r.EndCol)
	if r.StartRow > 0 {
		start += strconv.Itoa(r.StartRow)
	}
	if r.EndRow > 0 {
		end += strconv.Itoa(r.EndRow)
	}
	cells := start
	if start != end {
		cells += ":" + end
	}
	return QuoteSheet(r.Sheet) + "!" + cells
}

// ColumnName converts a 0-based column index to its letters (0 -> A, 26 -> AA).
func ColumnName(col int) string {
	name := ""
	for n := col + 1; n > 0; n = (n - 1) / 26 {
		name = string(rune('A'+(n-1)%26)) + name
	}
	return name
}

// QuoteSheet quotes a sheet name when A1 notation requires it.
func QuoteSheet(sheet string) string {
	for _, r := range sheet {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
		}
	}
	return sheet
}

// SliceRow extracts the range's columns from a full sheet row, without trailing empty cells.
func (r Range) SliceRow(row []string) []string {
	out := make([]string, 0, r.Width())
	for c := r.StartCol; c <= r.EndCol; c++ {
		if c < len(row) {
			out = append(out, row[c])
		} else {
			out = append(out, "")
		}
	}
	return TrimRow(out)
}

// MergeRow writes values into a full sheet row starting at the range's first column.
func (r Range) MergeRow(row []string, values []string) []string {
	end := r.StartCol + len(values)
	if end > len(row) {
		grown := make([]string, end)
		copy(grown, row)
		row = grown
	}
	copy(row[r.StartCol:], values)
	return TrimRow(row)
}

// TrimRow drops trailing empty cells, matching how the Sheets API returns rows.
func TrimRow(row []string) []string {
	n := len(row)
	for n > 0 && row[n-1] == "" {
		n--
	}
	return row[:n]
}

// TrimRows drops trailing empty rows and the trailing empty cells of each row.
func TrimRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = TrimRow(row)
	}
	n := len(out)
	for n > 0 && len(out[n-1]) == 0 {
		n--
	}
	return out[:n]
}

// CellsEqual compares two value grids ignoring trailing empty cells and rows.
func CellsEqual(a, b [][]string) bool {
	a, b = TrimRows(a), TrimRows(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}
