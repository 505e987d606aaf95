package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"

	"github.com/mihaimyh/sheetsync/pkg/billing"
	"github.com/mihaimyh/sheetsync/pkg/billing/internal"
	"github.com/mihaimyh/sheetsync/pkg/sheetsync"
)

// receivedResponse is the body Stripe gets for every accepted event.
var receivedResponse = map[string]bool{"received": true}

// handleWebhook verifies, normalizes and reconciles one Stripe event.
//
// Malformed or unauthenticated requests get 400 and are not retried usefully.
// Verified events that map to Ignore or to a no-op get 200 so Stripe stops
// retrying. A failed store write gets 500 and Stripe's retry is the recovery path.
func (p *Provider) handleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	code, eventType := http.StatusOK, ""
	defer func() {
		p.metrics.RecordDelivery(providerName, eventType, code, time.Since(start))
	}()
	reject := func(status int, reason, msg string) {
		code = status
		p.metrics.RecordRejection(providerName, reason)
		http.Error(w, msg, status)
	}

	internal.SetSecurityHeaders(w)

	if r.Method != http.MethodPost {
		reject(http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	body, err := internal.ReadBodyStrict(w, r, p.maxBodyBytes)
	if err != nil {
		if errors.Is(err, internal.ErrPayloadTooLarge) {
			reject(http.StatusRequestEntityTooLarge, "payload_too_large", "payload too large")
		} else {
			reject(http.StatusBadRequest, "invalid_payload", fmt.Sprintf("invalid payload: %v", err))
		}
		return
	}

	sig := r.Header.Get("Stripe-Signature")
	if sig == "" || p.webhookSecret == "" {
		if p.webhookSecret == "" {
			p.logger.Warn("webhook rejected", field("error", billing.ErrWebhookNotConfigured.Error()))
		}
		reject(http.StatusBadRequest, "auth_failed", "missing signature or secret")
		return
	}

	event, err := p.constructEvent(body, sig)
	if err != nil {
		p.logger.Warn("webhook signature verification failed", field("error", err.Error()))
		reject(http.StatusBadRequest, "auth_failed", fmt.Sprintf("Webhook Error: %v", err))
		return
	}

	eventType = string(event.Type)
	if eventType == "" {
		eventType = "UNKNOWN"
	}

	if err := p.processWebhookEvent(r.Context(), &event); err != nil {
		p.logger.Error("webhook processing failed",
			field("event_id", event.ID), field("type", eventType), field("error", err.Error()))
		reject(http.StatusInternalServerError, "store_failure", "failed to update sheet")
		return
	}

	if err := internal.WriteJSON(w, http.StatusOK, receivedResponse); err != nil {
		p.logger.Debug("failed to write webhook response", field("error", err.Error()))
	}
}

func (p *Provider) constructEvent(body []byte, sig string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(body, sig, p.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                p.config.SignatureTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", billing.ErrInvalidWebhookSignature, err)
	}
	return event, nil
}

// processWebhookEvent normalizes the event and applies the resulting intent.
// Only store failures are returned.
func (p *Provider) processWebhookEvent(ctx context.Context, event *stripe.Event) error {
	intent := p.normalizer.Normalize(event)

	outcome, err := p.reconciler.Apply(ctx, intent)
	if err != nil {
		p.metrics.RecordIntent(providerName, intent.Kind(), string(sheetsync.OutcomeFailed))
		if errors.Is(err, sheetsync.ErrInvalidIntent) {
			// The normalizer only emits keyed intents; treat a rejection as unmappable.
			p.logger.Warn("intent rejected",
				field("event_id", event.ID), field("intent", intent.Kind()), field("error", err.Error()))
			return nil
		}
		return err
	}
	p.metrics.RecordIntent(providerName, intent.Kind(), string(outcome))

	p.logger.Info("stripe event processed",
		field("event_id", event.ID), field("type", string(event.Type)),
		field("intent", intent.Kind()), field("outcome", string(outcome)))

	if p.config.WebhookCallback == nil || outcome == sheetsync.OutcomeIgnored {
		return nil
	}
	cbEvent := billing.WebhookEvent{
		Provider:       providerName,
		EventID:        event.ID,
		EventType:      string(event.Type),
		EventTimestamp: time.Unix(event.Created, 0),
		Intent:         intent,
		Outcome:        outcome,
	}
	if err := p.config.WebhookCallback(ctx, cbEvent); err != nil {
		p.logger.Error("webhook callback failed", field("event_id", event.ID), field("error", err.Error()))
	}
	return nil
}
