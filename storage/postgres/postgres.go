// Package postgres provides a PostgreSQL implementation of the sheetsync row store.
// Each sheet is one row holding the grid as JSONB; writes run in a transaction
// that locks the sheet with SELECT FOR UPDATE.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mihaimyh/sheetsync/storage/internal/grid"
)

// Schema creates the table used by Storage.
const Schema = `
CREATE TABLE IF NOT EXISTS sheetsync_sheets (
	sheet      TEXT PRIMARY KEY,
	rows       JSONB NOT NULL DEFAULT '[]'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Storage implements sheetsync.ConditionalRowStore using PostgreSQL
type Storage struct {
	*grid.Store

	pool   *pgxpool.Pool
	config Config
}

// Config holds PostgreSQL storage configuration
type Config struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string

	// Pool configuration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// AutoMigrate creates the sheets table on startup
	AutoMigrate bool
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		AutoMigrate:     true,
	}
}

// New creates a new PostgreSQL storage adapter
func New(ctx context.Context, config Config) (*Storage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Storage{
		pool:   pool,
		config: config,
	}
	s.Store = grid.NewStore(s)

	if config.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return s, nil
}

// Migrate creates the sheets table if it does not exist.
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create sheets table: %w", err)
	}
	return nil
}

// Close closes the PostgreSQL connection pool
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Load implements grid.Backend
func (s *Storage) Load(ctx context.Context, sheet string) (grid.Grid, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT rows FROM sheetsync_sheets WHERE sheet = $1`, sheet).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return grid.Grid{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return decodeGrid(sheet, raw)
}

// Mutate implements grid.Backend
func (s *Storage) Mutate(ctx context.Context, sheet string, m grid.Mutation) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Make sure there is a row to lock, then lock it.
	if _, err := tx.Exec(ctx,
		`INSERT INTO sheetsync_sheets (sheet) VALUES ($1) ON CONFLICT (sheet) DO NOTHING`, sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}
	var raw []byte
	if err := tx.QueryRow(ctx,
		`SELECT rows FROM sheetsync_sheets WHERE sheet = $1 FOR UPDATE`, sheet).Scan(&raw); err != nil {
		return fmt.Errorf("failed to lock sheet %s: %w", sheet, err)
	}

	current, err := decodeGrid(sheet, raw)
	if err != nil {
		return err
	}
	next, err := m(current)
	if err != nil {
		return err
	}
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode sheet %s: %w", sheet, err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE sheetsync_sheets SET rows = $2::jsonb, updated_at = NOW() WHERE sheet = $1`,
		sheet, string(data)); err != nil {
		return fmt.Errorf("failed to write sheet %s: %w", sheet, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit sheet %s: %w", sheet, err)
	}
	return nil
}

func decodeGrid(sheet string, raw []byte) (grid.Grid, error) {
	g := grid.Grid{}
	if len(raw) == 0 {
		return g, nil
	}
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("failed to decode sheet %s: %w", sheet, err)
	}
	return g, nil
}
