package sheetsync_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/sheetsync/pkg/sheetsync"
	"github.com/mihaimyh/sheetsync/storage/memory"
)

func TestCircuitBreakerStore_PreservesConditionalWrites(t *testing.T) {
	cb := sheetsync.NewStoreBreaker(2, time.Minute, nil)

	wrapped := sheetsync.NewCircuitBreakerStore(memory.New(), cb)
	_, ok := wrapped.(sheetsync.ConditionalRowStore)
	assert.True(t, ok, "memory store should stay conditional")

	wrapped = sheetsync.NewCircuitBreakerStore(&plainStore{mem: memory.New()}, cb)
	_, ok = wrapped.(sheetsync.ConditionalRowStore)
	assert.False(t, ok, "plain store should stay plain")
}

func TestCircuitBreakerStore_OpensOnFailures(t *testing.T) {
	ctx := context.Background()
	inner := &failingStore{}
	cb := sheetsync.NewStoreBreaker(2, time.Minute, nil)
	store := sheetsync.NewCircuitBreakerStore(inner, cb)

	_, err := store.GetRange(ctx, "Sheet1!A:C")
	assert.ErrorIs(t, err, errStoreDown)
	err = store.AppendRow(ctx, "Sheet1!A:C", []string{"a@b.com"})
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, sheetsync.BreakerOpen, cb.State())

	err = store.UpdateCells(ctx, "Sheet1!B1", [][]string{{"canceled"}})
	assert.ErrorIs(t, err, sheetsync.ErrCircuitOpen)
	assert.Equal(t, 2, inner.calls)
}

func TestCircuitBreakerStore_ConflictIsNotAFailure(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	mem.Seed("Sheet1", [][]string{{"a@b.com", "active"}})
	cb := sheetsync.NewStoreBreaker(1, time.Minute, nil)
	store := sheetsync.NewCircuitBreakerStore(mem, cb).(sheetsync.ConditionalRowStore)

	err := store.AppendRowIfAbsent(ctx, "Sheet1!A:C", "A@B.com", []string{"a@b.com"})
	assert.ErrorIs(t, err, sheetsync.ErrConflict)
	err = store.UpdateCellsIf(ctx, "Sheet1!B1", [][]string{{"canceled"}}, [][]string{{"active"}})
	assert.ErrorIs(t, err, sheetsync.ErrConflict)
	assert.Equal(t, sheetsync.BreakerClosed, cb.State())

	rows, err := store.GetRange(ctx, "Sheet1!A:C")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a@b.com", "active"}}, rows)
}

func TestInstrumentedStore_RecordsOperations(t *testing.T) {
	ctx := context.Background()
	metrics := newRecordingMetrics()
	store := sheetsync.NewInstrumentedStore(memory.New(), metrics)
	cs, ok := store.(sheetsync.ConditionalRowStore)
	require.True(t, ok)

	_, _ = cs.GetRange(ctx, "Sheet1!A:C")
	_ = cs.AppendRow(ctx, "Sheet1!A:C", []string{"a@b.com", "active"})
	_ = cs.UpdateCells(ctx, "Sheet1!B:C", [][]string{{"x"}})
	_ = cs.AppendRowIfAbsent(ctx, "Sheet1!A:C", "a@b.com", []string{"a@b.com"})
	_ = cs.UpdateCellsIf(ctx, "Sheet1!B1", [][]string{{"active"}}, [][]string{{"canceled"}})

	for _, op := range []string{"get_range", "append_row", "update_cells", "append_row_if_absent", "update_cells_if"} {
		assert.Equal(t, 1, metrics.storeOps[op], op)
	}
	assert.Equal(t, 1, metrics.storeErrors["update_cells"])
	assert.Equal(t, 1, metrics.storeErrors["append_row_if_absent"])
	assert.Zero(t, metrics.storeErrors["update_cells_if"])
}

func TestInstrumentedStore_NilMetrics(t *testing.T) {
	store := sheetsync.NewInstrumentedStore(&plainStore{mem: memory.New()}, nil)
	_, err := store.GetRange(context.Background(), "Sheet1!A:C")
	assert.NoError(t, err)
}

func TestUnconfiguredStore(t *testing.T) {
	ctx := context.Background()

	err := sheetsync.UnconfiguredStore{}.AppendRow(ctx, "Sheet1!A:C", nil)
	assert.Equal(t, sheetsync.ErrStoreNotConfigured, err)

	_, err = sheetsync.UnconfiguredStore{Reason: "GOOGLE_SERVICE_ACCOUNT_JSON"}.GetRange(ctx, "Sheet1!A:C")
	assert.True(t, errors.Is(err, sheetsync.ErrStoreNotConfigured))
	assert.EqualError(t, err, "row store not configured: GOOGLE_SERVICE_ACCOUNT_JSON")
}
