package sheetsync

import (
	"context"
	"fmt"
)

// Lookup results recorded through Metrics.RecordLookup.
const (
	LookupPaid    = "paid"
	LookupUnpaid  = "unpaid"
	LookupMissing = "missing"
	LookupEmpty   = "empty"
	LookupError   = "error"
)

// Querier answers point lookups against the user table.
type Querier struct {
	store   RowStore
	config  Config
	logger  Logger
	metrics Metrics
}

// NewQuerier creates a querier over store.
func NewQuerier(store RowStore, config *Config) (*Querier, error) {
	if store == nil {
		return nil, fmt.Errorf("row store is required")
	}
	if config != nil {
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}
	cfg := config.withDefaults()
	return &Querier{
		store:   store,
		config:  cfg,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}, nil
}

// Lookup returns the record for email, or nil when no row matches.
// An email that is empty after trimming returns nil without touching the store.
func (q *Querier) Lookup(ctx context.Context, email string) (*UserRecord, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, nil
	}

	if q.config.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.config.StoreTimeout)
		defer cancel()
	}

	raw, err := q.store.GetRange(ctx, q.config.Layout.DataRange())
	if err != nil {
		return nil, fmt.Errorf("failed to read user table: %w", err)
	}

	row, ok := newTable(raw).byEmail(email)
	if !ok {
		return nil, nil
	}
	rec := row.record
	return &rec, nil
}

// PaidStatus answers "is this user paid?". It never fails: store errors are
// logged and reported as not paid, without a status.
func (q *Querier) PaidStatus(ctx context.Context, email string) PaidStatus {
	if NormalizeEmail(email) == "" {
		q.metrics.RecordLookup(LookupEmpty)
		return PaidStatus{Paid: false}
	}

	rec, err := q.Lookup(ctx, email)
	if err != nil {
		q.logger.Error("paid status lookup failed",
			Field{"email", NormalizeEmail(email)}, Field{"error", err.Error()})
		q.metrics.RecordLookup(LookupError)
		return PaidStatus{Paid: false}
	}
	if rec == nil {
		q.metrics.RecordLookup(LookupMissing)
		return PaidStatus{Paid: false}
	}

	res := PaidStatus{Paid: rec.Paid(), Status: rec.EffectiveStatus()}
	if res.Paid {
		q.metrics.RecordLookup(LookupPaid)
	} else {
		q.metrics.RecordLookup(LookupUnpaid)
	}
	return res
}
