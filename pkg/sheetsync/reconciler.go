package sheetsync

import (
	"context"
	"errors"
	"fmt"
)

// Reconciler applies intents to the user table.
//
// Every intent is "read the full range, compute, write a narrow range". With a
// plain RowStore (Google Sheets) nothing makes the read and the write atomic:
// two intents racing on the same row can interleave and one update can be lost.
// Webhook volume per user is low, so that window is accepted. With a
// ConditionalRowStore the write is a compare-and-swap against the cells that were
// read, and a lost race is recomputed from a fresh read. A new row is guarded by
// its email only, so first-time activations of different users never conflict.
type Reconciler struct {
	store       RowStore
	conditional ConditionalRowStore
	config      Config
	logger      Logger
	metrics     Metrics
}

// NewReconciler creates a reconciler over store.
func NewReconciler(store RowStore, config *Config) (*Reconciler, error) {
	if store == nil {
		return nil, fmt.Errorf("row store is required")
	}
	if config != nil {
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}
	cfg := config.withDefaults()

	r := &Reconciler{
		store:   store,
		config:  cfg,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	if cs, ok := store.(ConditionalRowStore); ok {
		r.conditional = cs
	}
	return r, nil
}

// Apply applies one intent and reports what it did. Store failures are returned;
// a status update for an unknown subscription is a no-op, not an error.
func (r *Reconciler) Apply(ctx context.Context, in Intent) (Outcome, error) {
	var (
		outcome Outcome
		err     error
	)

	switch in := in.(type) {
	case Activate:
		outcome, err = r.activate(ctx, in)
	case UpdateStatus:
		outcome, err = r.updateStatus(ctx, in)
	case Ignore:
		outcome = OutcomeIgnored
	default:
		err = fmt.Errorf("%w: unsupported intent %T", ErrInvalidIntent, in)
	}

	kind := "unknown"
	if in != nil {
		kind = in.Kind()
	}
	if err != nil {
		r.metrics.RecordIntent(kind, OutcomeFailed)
		return OutcomeFailed, err
	}
	r.metrics.RecordIntent(kind, outcome)
	return outcome, nil
}

// activate creates the record for the email or re-activates it. Activation always
// wins: status and subscription id are overwritten unconditionally.
func (r *Reconciler) activate(ctx context.Context, in Activate) (Outcome, error) {
	email := NormalizeEmail(in.Email)
	if email == "" {
		return "", fmt.Errorf("%w: activate without email", ErrInvalidIntent)
	}
	sub := NormalizeSubscriptionID(in.SubscriptionID)

	return r.withConflictRetries(ctx, in.Kind(), func(ctx context.Context) (Outcome, error) {
		t, err := r.load(ctx)
		if err != nil {
			return "", err
		}

		if row, ok := t.byEmail(email); ok {
			rng := r.config.Layout.StatusAndSubscriptionRange(row.number)
			expected := row.observed(ColumnStatus, ColumnSubscriptionID)
			if err := r.update(ctx, rng, expected, [][]string{{StatusActive, sub}}); err != nil {
				return "", err
			}
			r.logger.Info("user row activated",
				Field{"email", email}, Field{"subscription_id", sub}, Field{"row", row.number})
			return OutcomeUpdated, nil
		}

		row := make([]string, columnCount)
		row[ColumnEmail] = email
		row[ColumnStatus] = StatusActive
		row[ColumnSubscriptionID] = sub
		if err := r.append(ctx, email, row); err != nil {
			return "", err
		}
		r.logger.Info("user row created", Field{"email", email}, Field{"subscription_id", sub})
		return OutcomeCreated, nil
	})
}

// updateStatus sets the status column of the row holding the subscription id.
func (r *Reconciler) updateStatus(ctx context.Context, in UpdateStatus) (Outcome, error) {
	sub := NormalizeSubscriptionID(in.SubscriptionID)
	if sub == "" {
		return "", fmt.Errorf("%w: status update without subscription id", ErrInvalidIntent)
	}
	// An empty status would turn the row into a legacy (implicitly active) row.
	if in.Status == "" {
		return "", fmt.Errorf("%w: status update without status", ErrInvalidIntent)
	}

	return r.withConflictRetries(ctx, in.Kind(), func(ctx context.Context) (Outcome, error) {
		t, err := r.load(ctx)
		if err != nil {
			return "", err
		}

		row, ok := t.bySubscription(sub)
		if !ok {
			// The subscription event may have raced ahead of the checkout event,
			// or the id was never recorded.
			r.logger.Warn("no user row for subscription",
				Field{"subscription_id", sub}, Field{"status", in.Status})
			return OutcomeNotFound, nil
		}

		rng := r.config.Layout.StatusRange(row.number)
		expected := row.observed(ColumnStatus, ColumnStatus)
		values := [][]string{{in.Status}}
		if r.conditional != nil {
			// Guard the subscription cell as well: a row re-activated under another
			// subscription since the read must not be overwritten. The cell is
			// written back as read.
			rng = r.config.Layout.StatusAndSubscriptionRange(row.number)
			expected = row.observed(ColumnStatus, ColumnSubscriptionID)
			values = [][]string{{in.Status, row.cells[ColumnSubscriptionID]}}
		}
		if err := r.update(ctx, rng, expected, values); err != nil {
			return "", err
		}
		r.logger.Info("user row status updated",
			Field{"email", row.record.Email}, Field{"subscription_id", sub},
			Field{"status", in.Status}, Field{"row", row.number})
		return OutcomeUpdated, nil
	})
}

// withConflictRetries reruns fn from a fresh read when a conditional write conflicts.
func (r *Reconciler) withConflictRetries(ctx context.Context, kind string,
	fn func(context.Context) (Outcome, error)) (Outcome, error) {
	attempts := 1
	if r.conditional != nil {
		attempts += r.config.MaxConflictRetries
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var outcome Outcome
		outcome, err = fn(ctx)
		if err == nil {
			return outcome, nil
		}
		if !errors.Is(err, ErrConflict) {
			return "", err
		}
		if attempt < attempts {
			r.metrics.RecordConflictRetry(kind)
			r.logger.Debug("row store write conflict, retrying",
				Field{"intent", kind}, Field{"attempt", attempt})
		}
	}
	return "", fmt.Errorf("gave up after %d attempts: %w", attempts, err)
}

func (r *Reconciler) load(ctx context.Context) (*table, error) {
	ctx, cancel := r.callContext(ctx)
	defer cancel()

	raw, err := r.store.GetRange(ctx, r.config.Layout.DataRange())
	if err != nil {
		return nil, fmt.Errorf("failed to read user table: %w", err)
	}
	return newTable(raw), nil
}

func (r *Reconciler) update(ctx context.Context, rng string, expected, values [][]string) error {
	ctx, cancel := r.callContext(ctx)
	defer cancel()

	var err error
	if r.conditional != nil {
		err = r.conditional.UpdateCellsIf(ctx, rng, expected, values)
	} else {
		err = r.store.UpdateCells(ctx, rng, values)
	}
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", rng, err)
	}
	return nil
}

func (r *Reconciler) append(ctx context.Context, email string, row []string) error {
	ctx, cancel := r.callContext(ctx)
	defer cancel()

	rng := r.config.Layout.DataRange()
	var err error
	if r.conditional != nil {
		err = r.conditional.AppendRowIfAbsent(ctx, rng, email, row)
	} else {
		err = r.store.AppendRow(ctx, rng, row)
	}
	if err != nil {
		return fmt.Errorf("failed to append user row: %w", err)
	}
	return nil
}

func (r *Reconciler) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.config.StoreTimeout < 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.config.StoreTimeout)
}
