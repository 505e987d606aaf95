package sheetsync

import (
	"context"
	"time"
)

// CircuitBreakerStore wraps a RowStore with circuit breaker protection.
type CircuitBreakerStore struct {
	store RowStore
	cb    CircuitBreaker
}

// conditionalCircuitBreakerStore keeps the conditional writes of the wrapped store.
type conditionalCircuitBreakerStore struct {
	*CircuitBreakerStore
	conditional ConditionalRowStore
}

// NewCircuitBreakerStore wraps store. The result implements ConditionalRowStore
// when store does.
func NewCircuitBreakerStore(store RowStore, cb CircuitBreaker) RowStore {
	s := &CircuitBreakerStore{store: store, cb: cb}
	if cs, ok := store.(ConditionalRowStore); ok {
		return &conditionalCircuitBreakerStore{CircuitBreakerStore: s, conditional: cs}
	}
	return s
}

func (s *CircuitBreakerStore) execute(ctx context.Context, fn func() error) error {
	return s.cb.Execute(ctx, fn)
}

func (s *CircuitBreakerStore) GetRange(ctx context.Context, rng string) ([][]string, error) {
	var rows [][]string
	err := s.execute(ctx, func() error {
		var e error
		rows, e = s.store.GetRange(ctx, rng)
		return e
	})
	return rows, err
}

func (s *CircuitBreakerStore) AppendRow(ctx context.Context, rng string, row []string) error {
	return s.execute(ctx, func() error {
		return s.store.AppendRow(ctx, rng, row)
	})
}

func (s *CircuitBreakerStore) UpdateCells(ctx context.Context, rng string, values [][]string) error {
	return s.execute(ctx, func() error {
		return s.store.UpdateCells(ctx, rng, values)
	})
}

func (s *conditionalCircuitBreakerStore) AppendRowIfAbsent(ctx context.Context, rng string,
	key string, row []string) error {
	return s.execute(ctx, func() error {
		return s.conditional.AppendRowIfAbsent(ctx, rng, key, row)
	})
}

func (s *conditionalCircuitBreakerStore) UpdateCellsIf(ctx context.Context, rng string,
	expected, values [][]string) error {
	return s.execute(ctx, func() error {
		return s.conditional.UpdateCellsIf(ctx, rng, expected, values)
	})
}

// InstrumentedStore records the duration and result of every row store call.
type InstrumentedStore struct {
	store   RowStore
	metrics Metrics
}

type conditionalInstrumentedStore struct {
	*InstrumentedStore
	conditional ConditionalRowStore
}

// NewInstrumentedStore wraps store. The result implements ConditionalRowStore
// when store does.
func NewInstrumentedStore(store RowStore, metrics Metrics) RowStore {
	if metrics == nil {
		metrics = &NoopMetrics{}
	}
	s := &InstrumentedStore{store: store, metrics: metrics}
	if cs, ok := store.(ConditionalRowStore); ok {
		return &conditionalInstrumentedStore{InstrumentedStore: s, conditional: cs}
	}
	return s
}

func (s *InstrumentedStore) record(op string, start time.Time, err error) {
	s.metrics.RecordStoreOperation(op, time.Since(start), err)
}

func (s *InstrumentedStore) GetRange(ctx context.Context, rng string) ([][]string, error) {
	start := time.Now()
	rows, err := s.store.GetRange(ctx, rng)
	s.record("get_range", start, err)
	return rows, err
}

func (s *InstrumentedStore) AppendRow(ctx context.Context, rng string, row []string) error {
	start := time.Now()
	err := s.store.AppendRow(ctx, rng, row)
	s.record("append_row", start, err)
	return err
}

func (s *InstrumentedStore) UpdateCells(ctx context.Context, rng string, values [][]string) error {
	start := time.Now()
	err := s.store.UpdateCells(ctx, rng, values)
	s.record("update_cells", start, err)
	return err
}

func (s *conditionalInstrumentedStore) AppendRowIfAbsent(ctx context.Context, rng string,
	key string, row []string) error {
	start := time.Now()
	err := s.conditional.AppendRowIfAbsent(ctx, rng, key, row)
	s.record("append_row_if_absent", start, err)
	return err
}

func (s *conditionalInstrumentedStore) UpdateCellsIf(ctx context.Context, rng string,
	expected, values [][]string) error {
	start := time.Now()
	err := s.conditional.UpdateCellsIf(ctx, rng, expected, values)
	s.record("update_cells_if", start, err)
	return err
}

// UnconfiguredStore fails every call with ErrStoreNotConfigured. It lets the
// service start without store credentials and fail at call time instead.
type UnconfiguredStore struct {
	// Reason names what is missing, e.g. "GOOGLE_SHEET_ID"
	Reason string
}

func (s UnconfiguredStore) err() error {
	if s.Reason == "" {
		return ErrStoreNotConfigured
	}
	return &notConfiguredError{reason: s.Reason}
}

func (s UnconfiguredStore) GetRange(context.Context, string) ([][]string, error) {
	return nil, s.err()
}

func (s UnconfiguredStore) AppendRow(context.Context, string, []string) error {
	return s.err()
}

func (s UnconfiguredStore) UpdateCells(context.Context, string, [][]string) error {
	return s.err()
}

type notConfiguredError struct {
	reason string
}

func (e *notConfiguredError) Error() string {
	return ErrStoreNotConfigured.Error() + ": " + e.reason
}

func (e *notConfiguredError) Unwrap() error {
	return ErrStoreNotConfigured
}
