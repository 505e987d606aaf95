// Package redis provides a Redis implementation of the sheetsync row store.
// Each sheet is a hash holding the JSON-encoded grid and a version counter;
// writes are compare-and-swap on the version through a Lua script.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/mihaimyh/sheetsync/pkg/sheetsync"
	"github.com/mihaimyh/sheetsync/storage/internal/grid"
)

const (
	fieldRows    = "rows"
	fieldVersion = "version"

	defaultMaxRetries = 32
)

// Storage implements sheetsync.ConditionalRowStore using Redis
type Storage struct {
	*grid.Store

	client redis.UniversalClient
	config Config
	swap   *redis.Script
}

// Config holds Redis storage configuration
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "sheetsync:")
	KeyPrefix string

	// MaxRetries is the number of times a write is recomputed after another
	// writer changed the sheet in between (default: 32). Every lost swap means
	// another write landed, so N concurrent writers settle within N-1 retries.
	MaxRetries int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		KeyPrefix:  "sheetsync:",
		MaxRetries: defaultMaxRetries,
	}
}

// New creates a new Redis storage adapter
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring
func New(client redis.UniversalClient, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	if config.KeyPrefix == "" {
		config.KeyPrefix = "sheetsync:"
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaultMaxRetries
	}

	s := &Storage{
		client: client,
		config: config,
		// Store the new grid only if nobody bumped the version since it was read.
		swap: redis.NewScript(`
			local current = redis.call('HGET', KEYS[1], 'version')
			if not current then
				current = '0'
			end
			if current ~= ARGV[1] then
				return 0
			end
			redis.call('HSET', KEYS[1], 'rows', ARGV[2], 'version', tostring(tonumber(current) + 1))
			return 1
		`),
	}
	s.Store = grid.NewStore(s)
	return s, nil
}

// Load implements grid.Backend
func (s *Storage) Load(ctx context.Context, sheet string) (grid.Grid, error) {
	g, _, err := s.load(ctx, sheet)
	return g, err
}

// Mutate implements grid.Backend
func (s *Storage) Mutate(ctx context.Context, sheet string, m grid.Mutation) error {
	key := s.sheetKey(sheet)
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		current, version, err := s.load(ctx, sheet)
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

		swapped, err := s.swap.Run(ctx, s.client, []string{key}, version, string(data)).Int()
		if err != nil {
			return fmt.Errorf("failed to write sheet %s: %w", sheet, err)
		}
		if swapped == 1 {
			return nil
		}
	}
	return fmt.Errorf("%w: sheet %s kept changing", sheetsync.ErrConflict, sheet)
}

// load returns the grid of sheet with its version ("0" when the sheet does not exist).
func (s *Storage) load(ctx context.Context, sheet string) (grid.Grid, string, error) {
	vals, err := s.client.HMGet(ctx, s.sheetKey(sheet), fieldRows, fieldVersion).Result()
	if err != nil {
		return nil, "", fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}

	version := "0"
	if v, ok := vals[1].(string); ok {
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			return nil, "", fmt.Errorf("corrupt version for sheet %s: %q", sheet, v)
		}
		version = v
	}

	raw, ok := vals[0].(string)
	if !ok {
		return grid.Grid{}, version, nil
	}
	var g grid.Grid
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		return nil, "", fmt.Errorf("failed to decode sheet %s: %w", sheet, err)
	}
	return g, version, nil
}

func (s *Storage) sheetKey(sheet string) string {
	return fmt.Sprintf("%ssheet:%s", s.config.KeyPrefix, sheet)
}

// Close closes the Redis client connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
