package main

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	goredis "github.com/redis/go-redis/v9"

	"github.com/mihaimyh/sheetsync/internal/config"
	"github.com/mihaimyh/sheetsync/pkg/sheetsync"
	firestorestore "github.com/mihaimyh/sheetsync/storage/firestore"
	"github.com/mihaimyh/sheetsync/storage/memory"
	"github.com/mihaimyh/sheetsync/storage/postgres"
	redisstore "github.com/mihaimyh/sheetsync/storage/redis"
	"github.com/mihaimyh/sheetsync/storage/sheets"
)

// openStore opens the backend selected by STORE_BACKEND. Missing credentials
// give an UnconfiguredStore so the process still starts; the returned close
// function is always safe to call.
func openStore(ctx context.Context, cfg config.Config) (sheetsync.RowStore, func(), error) {
	noop := func() {}

	switch cfg.StoreBackend {
	case config.BackendMemory:
		return memory.New(), noop, nil

	case config.BackendSheets:
		if cfg.SheetID == "" {
			return sheetsync.UnconfiguredStore{Reason: "GOOGLE_SHEET_ID"}, noop, nil
		}
		if cfg.ServiceAccountJSON == "" {
			return sheetsync.UnconfiguredStore{Reason: "GOOGLE_SERVICE_ACCOUNT_JSON"}, noop, nil
		}
		store, err := sheets.New(ctx, sheets.Config{
			SpreadsheetID:   cfg.SheetID,
			CredentialsJSON: []byte(cfg.ServiceAccountJSON),
		})
		if err != nil {
			return nil, noop, fmt.Errorf("open sheets store: %w", err)
		}
		return store, noop, nil

	case config.BackendRedis:
		if cfg.RedisURL == "" {
			return sheetsync.UnconfiguredStore{Reason: "REDIS_URL"}, noop, nil
		}
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, noop, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		store, err := redisstore.New(goredis.NewClient(opts), redisstore.DefaultConfig())
		if err != nil {
			return nil, noop, fmt.Errorf("open redis store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil

	case config.BackendPostgres:
		if cfg.DatabaseURL == "" {
			return sheetsync.UnconfiguredStore{Reason: "DATABASE_URL"}, noop, nil
		}
		pgConfig := postgres.DefaultConfig()
		pgConfig.ConnectionString = cfg.DatabaseURL
		store, err := postgres.New(ctx, pgConfig)
		if err != nil {
			return nil, noop, fmt.Errorf("open postgres store: %w", err)
		}
		return store, store.Close, nil

	case config.BackendFirestore:
		if cfg.FirestoreProjectID == "" {
			return sheetsync.UnconfiguredStore{Reason: "FIRESTORE_PROJECT_ID"}, noop, nil
		}
		client, err := firestore.NewClient(ctx, cfg.FirestoreProjectID)
		if err != nil {
			return nil, noop, fmt.Errorf("open firestore client: %w", err)
		}
		store, err := firestorestore.New(client, firestorestore.Config{})
		if err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("open firestore store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	}

	return nil, noop, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
