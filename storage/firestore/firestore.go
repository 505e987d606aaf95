// Package firestore provides a Firestore implementation of the sheetsync row store.
// Each sheet is one document; writes run in a Firestore transaction.
package firestore

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mihaimyh/sheetsync/pkg/sheetsync"
	"github.com/mihaimyh/sheetsync/storage/internal/grid"
)

// Storage implements sheetsync.ConditionalRowStore using Google Cloud Firestore
type Storage struct {
	*grid.Store

	client      *firestore.Client
	collection  string
	maxAttempts int
}

// Config holds Firestore storage configuration
type Config struct {
	// SheetsCollection is the Firestore collection holding one document per sheet
	// Default: "sheetsync_sheets"
	SheetsCollection string

	// MaxAttempts bounds how often a contended transaction is run (default: 32).
	// Every sheet write goes through the same document, so bursts of writers
	// contend even when they touch different rows.
	MaxAttempts int
}

// sheetDoc is the stored form of a sheet. Firestore has no nested arrays,
// so every row is wrapped in a map.
type sheetDoc struct {
	Rows      []rowDoc  `firestore:"rows"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type rowDoc struct {
	Cells []string `firestore:"cells"`
}

// New creates a new Firestore storage adapter
func New(client *firestore.Client, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is required")
	}

	if config.SheetsCollection == "" {
		config.SheetsCollection = "sheetsync_sheets"
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 32
	}

	s := &Storage{
		client:      client,
		collection:  config.SheetsCollection,
		maxAttempts: config.MaxAttempts,
	}
	s.Store = grid.NewStore(s)
	return s, nil
}

// Load implements grid.Backend
func (s *Storage) Load(ctx context.Context, sheet string) (grid.Grid, error) {
	snap, err := s.sheetDoc(sheet).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return grid.Grid{}, nil
		}
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return decodeSnapshot(sheet, snap)
}

// Mutate implements grid.Backend
func (s *Storage) Mutate(ctx context.Context, sheet string, m grid.Mutation) error {
	ref := s.sheetDoc(sheet)
	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		current := grid.Grid{}
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		if err == nil {
			if current, err = decodeSnapshot(sheet, snap); err != nil {
				return err
			}
		}

		next, err := m(current)
		if err != nil {
			return err
		}
		return tx.Set(ref, encodeGrid(next))
	}, firestore.MaxAttempts(s.maxAttempts))
	return transactionError(sheet, err)
}

// transactionError reports a transaction that kept losing to other writers as
// a write conflict, so callers recompute from a fresh read.
func transactionError(sheet string, err error) error {
	if err != nil && status.Code(err) == codes.Aborted {
		return fmt.Errorf("%w: sheet %s: %v", sheetsync.ErrConflict, sheet, err)
	}
	return err
}

// Close closes the Firestore client
func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) sheetDoc(sheet string) *firestore.DocumentRef {
	// Document ids cannot contain '/'.
	return s.client.Collection(s.collection).Doc(url.PathEscape(sheet))
}

func decodeSnapshot(sheet string, snap *firestore.DocumentSnapshot) (grid.Grid, error) {
	if !snap.Exists() {
		return grid.Grid{}, nil
	}
	var doc sheetDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode sheet %s: %w", sheet, err)
	}
	return decodeGrid(doc), nil
}

func decodeGrid(doc sheetDoc) grid.Grid {
	g := make(grid.Grid, len(doc.Rows))
	for i, row := range doc.Rows {
		g[i] = row.Cells
	}
	return g
}

func encodeGrid(g grid.Grid) sheetDoc {
	doc := sheetDoc{Rows: make([]rowDoc, len(g)), UpdatedAt: time.Now().UTC()}
	for i, row := range g {
		cells := row
		if cells == nil {
			cells = []string{}
		}
		doc.Rows[i] = rowDoc{Cells: cells}
	}
	return doc
}
