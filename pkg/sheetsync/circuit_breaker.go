package sheetsync

import (
	"context"
	"errors"
	"sync"
	"time"
)

// BreakerState is the state of a store circuit breaker.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// CircuitBreaker guards row store calls.
type CircuitBreaker interface {
	// Execute runs fn unless the circuit is open, in which case it returns
	// ErrCircuitOpen without calling fn. fn's own error is returned unchanged.
	Execute(ctx context.Context, fn func() error) error

	// State returns the current state.
	State() BreakerState
}

// verdict is what a finished store call says about the health of the store.
type verdict int

const (
	healthy verdict = iota
	outage
	neutral
)

// judge classifies the result of a store call. A conflict or a rejected range
// is an answer from a reachable store. A call abandoned by its caller says
// nothing either way.
func judge(ctx context.Context, err error) verdict {
	switch {
	case err == nil, errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidRange):
		return healthy
	case errors.Is(err, context.Canceled) && errors.Is(ctx.Err(), context.Canceled):
		return neutral
	default:
		return outage
	}
}

// StoreBreaker opens after a run of consecutive store outages and then fails
// calls fast. Once the cool-down has passed it admits a single probe call; the
// probe's verdict closes the circuit or opens it for another cool-down.
type StoreBreaker struct {
	threshold int
	coolDown  time.Duration
	onChange  func(BreakerState)
	now       func() time.Time

	mu       sync.Mutex
	state    BreakerState
	outages  int
	openedAt time.Time
	probing  bool
}

// NewStoreBreaker creates a breaker that opens after threshold consecutive
// outages (at least 1) and probes again after coolDown. onChange, when set, is
// called on every state transition.
func NewStoreBreaker(threshold int, coolDown time.Duration, onChange func(BreakerState)) *StoreBreaker {
	if threshold < 1 {
		threshold = 1
	}
	return &StoreBreaker{
		threshold: threshold,
		coolDown:  coolDown,
		onChange:  onChange,
		now:       time.Now,
		state:     BreakerClosed,
	}
}

func (b *StoreBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.cooledDown() {
		return BreakerHalfOpen
	}
	return b.state
}

func (b *StoreBreaker) Execute(ctx context.Context, fn func() error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}
	err = fn()
	b.settle(probe, judge(ctx, err))
	return err
}

// admit decides whether a call may reach the store and whether it is the probe.
func (b *StoreBreaker) admit() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return false, nil
	case BreakerOpen:
		if !b.cooledDown() {
			return false, ErrCircuitOpen
		}
		b.transition(BreakerHalfOpen)
	}
	if b.probing {
		return false, ErrCircuitOpen
	}
	b.probing = true
	return true, nil
}

func (b *StoreBreaker) settle(probe bool, v verdict) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.probing = false
	}
	switch v {
	case healthy:
		b.outages = 0
		if probe || b.state == BreakerClosed {
			b.transition(BreakerClosed)
		}
	case outage:
		b.outages++
		if probe || (b.state == BreakerClosed && b.outages >= b.threshold) {
			b.openedAt = b.now()
			b.transition(BreakerOpen)
		}
	}
}

func (b *StoreBreaker) cooledDown() bool {
	return b.now().Sub(b.openedAt) >= b.coolDown
}

func (b *StoreBreaker) transition(to BreakerState) {
	if b.state == to {
		return
	}
	b.state = to
	if b.onChange != nil {
		b.onChange(to)
	}
}
