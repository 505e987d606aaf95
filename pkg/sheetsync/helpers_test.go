package sheetsync_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mihaimyh/sheetsync/pkg/sheetsync"
	"github.com/mihaimyh/sheetsync/storage/memory"
)

const testSheet = "Sheet1"

var errStoreDown = errors.New("connection refused")

// recordingMetrics captures metric calls so tests can assert on outcomes.
type recordingMetrics struct {
	mu          sync.Mutex
	intents     map[string]int
	lookups     map[string]int
	storeOps    map[string]int
	storeErrors map[string]int
	retries     int
	states      []string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		intents:     make(map[string]int),
		lookups:     make(map[string]int),
		storeOps:    make(map[string]int),
		storeErrors: make(map[string]int),
	}
}

func (m *recordingMetrics) RecordIntent(kind string, outcome sheetsync.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intents[kind+"/"+string(outcome)]++
}

func (m *recordingMetrics) RecordStoreOperation(op string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeOps[op]++
	if err != nil {
		m.storeErrors[op]++
	}
}

func (m *recordingMetrics) RecordLookup(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups[result]++
}

func (m *recordingMetrics) RecordConflictRetry(_ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries++
}

func (m *recordingMetrics) RecordCircuitBreakerStateChange(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, state)
}

func (m *recordingMetrics) intent(kind string, outcome sheetsync.Outcome) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.intents[kind+"/"+string(outcome)]
}

func (m *recordingMetrics) lookup(result string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookups[result]
}

// plainStore hides the conditional writes of the memory store, like Google Sheets.
type plainStore struct {
	mem     *memory.Storage
	gets    int
	appends int
	updates int
}

func (s *plainStore) GetRange(ctx context.Context, rng string) ([][]string, error) {
	s.gets++
	return s.mem.GetRange(ctx, rng)
}

func (s *plainStore) AppendRow(ctx context.Context, rng string, row []string) error {
	s.appends++
	return s.mem.AppendRow(ctx, rng, row)
}

func (s *plainStore) UpdateCells(ctx context.Context, rng string, values [][]string) error {
	s.updates++
	return s.mem.UpdateCells(ctx, rng, values)
}

// failingStore fails every call.
type failingStore struct {
	calls int
}

func (s *failingStore) GetRange(context.Context, string) ([][]string, error) {
	s.calls++
	return nil, errStoreDown
}

func (s *failingStore) AppendRow(context.Context, string, []string) error {
	s.calls++
	return errStoreDown
}

func (s *failingStore) UpdateCells(context.Context, string, [][]string) error {
	s.calls++
	return errStoreDown
}

// writeFailingStore reads fine but fails writes.
type writeFailingStore struct {
	*memory.Storage
}

func (s *writeFailingStore) AppendRow(context.Context, string, []string) error {
	return errStoreDown
}

func (s *writeFailingStore) UpdateCells(context.Context, string, [][]string) error {
	return errStoreDown
}

func (s *writeFailingStore) AppendRowIfAbsent(context.Context, string, string, []string) error {
	return errStoreDown
}

func (s *writeFailingStore) UpdateCellsIf(context.Context, string, [][]string, [][]string) error {
	return errStoreDown
}

// racingStore lets another writer slip in between the read and the first
// conditional write of each kind, forcing a conflict.
type racingStore struct {
	*memory.Storage
	beforeAppend func()
	beforeUpdate func()
}

func (s *racingStore) AppendRowIfAbsent(ctx context.Context, rng string, key string, row []string) error {
	if fn := s.beforeAppend; fn != nil {
		s.beforeAppend = nil
		fn()
	}
	return s.Storage.AppendRowIfAbsent(ctx, rng, key, row)
}

func (s *racingStore) UpdateCellsIf(ctx context.Context, rng string, expected, values [][]string) error {
	if fn := s.beforeUpdate; fn != nil {
		s.beforeUpdate = nil
		fn()
	}
	return s.Storage.UpdateCellsIf(ctx, rng, expected, values)
}

// alwaysConflictStore loses every compare-and-swap.
type alwaysConflictStore struct {
	*memory.Storage
	attempts int
}

func (s *alwaysConflictStore) AppendRowIfAbsent(context.Context, string, string, []string) error {
	s.attempts++
	return fmt.Errorf("%w: test", sheetsync.ErrConflict)
}

func (s *alwaysConflictStore) UpdateCellsIf(context.Context, string, [][]string, [][]string) error {
	s.attempts++
	return fmt.Errorf("%w: test", sheetsync.ErrConflict)
}

// slowReadStore pauses after every read, like a store behind a network hop,
// so concurrent intents all read before any of them writes.
type slowReadStore struct {
	*memory.Storage
	delay time.Duration
}

func (s *slowReadStore) GetRange(ctx context.Context, rng string) ([][]string, error) {
	rows, err := s.Storage.GetRange(ctx, rng)
	time.Sleep(s.delay)
	return rows, err
}
