package sheetsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnavailable = errors.New("sheets: 503 service unavailable")

// testClock is a manually advanced clock for breaker tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(threshold int) (*StoreBreaker, *testClock, *[]BreakerState) {
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	var states []BreakerState
	b := NewStoreBreaker(threshold, 30*time.Second, func(s BreakerState) {
		states = append(states, s)
	})
	b.now = clock.Now
	return b, clock, &states
}

func fail(err error) func() error {
	return func() error { return err }
}

func TestStoreBreaker_OpensAfterConsecutiveOutages(t *testing.T) {
	b, _, states := newTestBreaker(3)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, b.Execute(ctx, fail(errUnavailable)), errUnavailable)
	}
	assert.Equal(t, BreakerClosed, b.State())

	assert.ErrorIs(t, b.Execute(ctx, fail(errUnavailable)), errUnavailable)
	assert.Equal(t, BreakerOpen, b.State())
	assert.Equal(t, []BreakerState{BreakerOpen}, *states)

	called := false
	err := b.Execute(ctx, func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open circuit must not reach the store")
}

func TestStoreBreaker_StoreAnswersAreHealthy(t *testing.T) {
	b, _, states := newTestBreaker(2)
	ctx := context.Background()

	answers := []error{
		fmt.Errorf("failed to update Sheet1!B2:C2: %w", ErrConflict),
		fmt.Errorf("%w: bad range", ErrInvalidRange),
		nil,
	}
	for _, answer := range answers {
		require.ErrorIs(t, b.Execute(ctx, fail(errUnavailable)), errUnavailable)
		err := b.Execute(ctx, fail(answer))
		if answer != nil {
			assert.ErrorIs(t, err, answer, "the store's answer is passed through")
		}
		assert.Equal(t, BreakerClosed, b.State(), "%v resets the outage count", answer)
	}
	assert.Empty(t, *states)
}

func TestStoreBreaker_CanceledCallerIsNeutral(t *testing.T) {
	b, _, _ := newTestBreaker(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, b.Execute(context.Background(), fail(errUnavailable)))
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Execute(ctx, fail(ctx.Err())), context.Canceled)
	}
	assert.Equal(t, BreakerClosed, b.State())

	// The count was neither reset nor increased.
	require.Error(t, b.Execute(context.Background(), fail(errUnavailable)))
	assert.Equal(t, BreakerOpen, b.State())
}

func TestStoreBreaker_DeadlineIsAnOutage(t *testing.T) {
	b, _, _ := newTestBreaker(1)
	ctx, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()

	assert.ErrorIs(t, b.Execute(ctx, fail(ctx.Err())), context.DeadlineExceeded)
	assert.Equal(t, BreakerOpen, b.State())
}

func TestStoreBreaker_ProbeAfterCoolDown(t *testing.T) {
	b, clock, states := newTestBreaker(1)
	ctx := context.Background()

	require.Error(t, b.Execute(ctx, fail(errUnavailable)))
	clock.Advance(29 * time.Second)
	assert.Equal(t, BreakerOpen, b.State())
	clock.Advance(time.Second)
	assert.Equal(t, BreakerHalfOpen, b.State())

	// A failed probe opens the circuit for another full cool-down.
	require.ErrorIs(t, b.Execute(ctx, fail(errUnavailable)), errUnavailable)
	assert.Equal(t, BreakerOpen, b.State())
	clock.Advance(29 * time.Second)
	assert.ErrorIs(t, b.Execute(ctx, fail(nil)), ErrCircuitOpen)

	clock.Advance(time.Second)
	require.NoError(t, b.Execute(ctx, fail(nil)))
	assert.Equal(t, BreakerClosed, b.State())

	assert.Equal(t, []BreakerState{
		BreakerOpen, BreakerHalfOpen, BreakerOpen, BreakerHalfOpen, BreakerClosed,
	}, *states)
}

func TestStoreBreaker_SingleProbe(t *testing.T) {
	b, clock, _ := newTestBreaker(1)
	ctx := context.Background()

	require.Error(t, b.Execute(ctx, fail(errUnavailable)))
	clock.Advance(time.Minute)

	probing := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- b.Execute(ctx, func() error {
			close(probing)
			<-release
			return nil
		})
	}()
	<-probing

	assert.ErrorIs(t, b.Execute(ctx, fail(nil)), ErrCircuitOpen, "only one probe at a time")

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, BreakerClosed, b.State())
	assert.NoError(t, b.Execute(ctx, fail(nil)))
}

func TestStoreBreaker_CanceledProbeFreesTheSlot(t *testing.T) {
	b, clock, _ := newTestBreaker(1)
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, b.Execute(context.Background(), fail(errUnavailable)))
	clock.Advance(time.Minute)

	require.ErrorIs(t, b.Execute(canceled, fail(canceled.Err())), context.Canceled)
	assert.Equal(t, BreakerHalfOpen, b.State())

	require.NoError(t, b.Execute(context.Background(), fail(nil)))
	assert.Equal(t, BreakerClosed, b.State())
}

func TestStoreBreaker_ConcurrentCalls(t *testing.T) {
	b := NewStoreBreaker(5, time.Second, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = b.Execute(ctx, fail(nil))
			} else {
				_ = b.Execute(ctx, fail(fmt.Errorf("%w", ErrConflict)))
			}
			_ = b.State()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, BreakerClosed, b.State())
}

func TestNewStoreBreaker_MinimumThreshold(t *testing.T) {
	b, _, _ := newTestBreaker(0)
	require.Error(t, b.Execute(context.Background(), fail(errUnavailable)))
	assert.Equal(t, BreakerOpen, b.State())
}
