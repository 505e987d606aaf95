// Package memory provides an in-memory implementation of the sheetsync row store.
// This implementation is primarily intended for testing and development.
package memory

import (
	"context"
	"sync"

	"github.com/mihaimyh/sheetsync/pkg/sheetsync"
	"github.com/mihaimyh/sheetsync/storage/internal/grid"
)

// Storage implements sheetsync.ConditionalRowStore using in-memory grids,
// one per sheet name.
type Storage struct {
	*grid.Store

	mu     sync.RWMutex
	sheets map[string]grid.Grid
}

// New creates a new in-memory row store
func New() *Storage {
	s := &Storage{
		sheets: make(map[string]grid.Grid),
	}
	s.Store = grid.NewStore(s)
	return s
}

// Seed replaces the content of a sheet. Rows are copied.
func (s *Storage) Seed(sheet string, rows [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sheets[sheet] = grid.Grid(rows).Clone()
}

// Rows returns a copy of the content of a sheet without trailing empty cells.
func (s *Storage) Rows(sheet string) [][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sheetsync.TrimRows(s.sheets[sheet].Clone())
}

// Load implements grid.Backend
func (s *Storage) Load(_ context.Context, sheet string) (grid.Grid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sheets[sheet].Clone(), nil
}

// Mutate implements grid.Backend
func (s *Storage) Mutate(_ context.Context, sheet string, m grid.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := m(s.sheets[sheet])
	if err != nil {
		return err
	}
	s.sheets[sheet] = next
	return nil
}
