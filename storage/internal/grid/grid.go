// Package grid implements the row store operations over a whole-sheet grid.
// Backends only need to load a sheet and apply a mutation to it atomically.
package grid

import (
	"context"
	"fmt"

	"github.com/mihaimyh/sheetsync/pkg/sheetsync"
)

// Grid holds the rows of one sheet. Row i is sheet row i+1.
type Grid [][]string

// Clone returns a deep copy of g.
func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for i, row := range g {
		out[i] = append([]string(nil), row...)
	}
	return out
}

// Read returns the cells of r, trimmed the way the Sheets API trims them.
func (g Grid) Read(r sheetsync.Range) [][]string {
	out := make([][]string, 0)
	for n := r.FirstRow(); n <= len(g) && r.Contains(n); n++ {
		out = append(out, r.SliceRow(g[n-1]))
	}
	return sheetsync.TrimRows(out)
}

// Append writes row after the last non-empty row of r and returns the new grid.
func (g Grid) Append(r sheetsync.Range, row []string) Grid {
	target := r.FirstRow() + len(g.Read(r))
	out := g.grow(target)
	out[target-1] = r.MergeRow(append([]string(nil), out[target-1]...), row)
	return out
}

// Update overwrites the bounded range r with values and returns the new grid.
func (g Grid) Update(r sheetsync.Range, values [][]string) (Grid, error) {
	if err := CheckBounds(r, values); err != nil {
		return nil, err
	}
	out := g.grow(r.StartRow + len(values) - 1)
	for i, vals := range values {
		n := r.StartRow + i
		out[n-1] = r.MergeRow(append([]string(nil), out[n-1]...), vals)
	}
	return out, nil
}

// CheckBounds verifies that values fit inside the bounded range r.
func CheckBounds(r sheetsync.Range, values [][]string) error {
	if r.StartRow == 0 {
		return fmt.Errorf("%w: update needs a bounded range, got %s", sheetsync.ErrInvalidRange, r)
	}
	for i, vals := range values {
		if len(vals) > r.Width() || (r.EndRow != 0 && r.StartRow+i > r.EndRow) {
			return fmt.Errorf("%w: values do not fit %s", sheetsync.ErrInvalidRange, r)
		}
	}
	return nil
}

// grow returns a shallow copy of g holding at least n rows.
func (g Grid) grow(n int) Grid {
	size := len(g)
	if n > size {
		size = n
	}
	out := make(Grid, size)
	copy(out, g)
	return out
}

// Mutation computes the next grid from the current one. It must not modify its input.
type Mutation func(Grid) (Grid, error)

// Backend persists grids keyed by sheet name.
type Backend interface {
	// Load returns the current grid of sheet, empty when the sheet does not exist.
	Load(ctx context.Context, sheet string) (Grid, error)

	// Mutate applies m to the current grid of sheet and stores the result atomically.
	// Errors returned by m are returned unchanged and nothing is stored.
	Mutate(ctx context.Context, sheet string, m Mutation) error
}

// Store implements sheetsync.ConditionalRowStore on top of a Backend.
type Store struct {
	backend Backend
}

// NewStore wraps backend.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// GetRange implements sheetsync.RowStore
func (s *Store) GetRange(ctx context.Context, rng string) ([][]string, error) {
	r, err := sheetsync.ParseRange(rng)
	if err != nil {
		return nil, err
	}
	g, err := s.backend.Load(ctx, r.Sheet)
	if err != nil {
		return nil, err
	}
	return g.Read(r), nil
}

// AppendRow implements sheetsync.RowStore
func (s *Store) AppendRow(ctx context.Context, rng string, row []string) error {
	r, err := sheetsync.ParseRange(rng)
	if err != nil {
		return err
	}
	return s.backend.Mutate(ctx, r.Sheet, func(g Grid) (Grid, error) {
		return g.Append(r, row), nil
	})
}

// UpdateCells implements sheetsync.RowStore
func (s *Store) UpdateCells(ctx context.Context, rng string, values [][]string) error {
	r, err := sheetsync.ParseRange(rng)
	if err != nil {
		return err
	}
	if err := CheckBounds(r, values); err != nil {
		return err
	}
	return s.backend.Mutate(ctx, r.Sheet, func(g Grid) (Grid, error) {
		return g.Update(r, values)
	})
}

// AppendRowIfAbsent implements sheetsync.ConditionalRowStore
func (s *Store) AppendRowIfAbsent(ctx context.Context, rng string, key string, row []string) error {
	r, err := sheetsync.ParseRange(rng)
	if err != nil {
		return err
	}
	return s.backend.Mutate(ctx, r.Sheet, func(g Grid) (Grid, error) {
		if sheetsync.ContainsKey(g.Read(r), key) {
			return nil, fmt.Errorf("%w: %s already holds %q", sheetsync.ErrConflict, rng, key)
		}
		return g.Append(r, row), nil
	})
}

// UpdateCellsIf implements sheetsync.ConditionalRowStore
func (s *Store) UpdateCellsIf(ctx context.Context, rng string, expected, values [][]string) error {
	r, err := sheetsync.ParseRange(rng)
	if err != nil {
		return err
	}
	if err := CheckBounds(r, values); err != nil {
		return err
	}
	return s.backend.Mutate(ctx, r.Sheet, func(g Grid) (Grid, error) {
		if !sheetsync.CellsEqual(g.Read(r), expected) {
			return nil, fmt.Errorf("%w: %s changed since it was read", sheetsync.ErrConflict, rng)
		}
		return g.Update(r, values)
	})
}
