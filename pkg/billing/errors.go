package billing

import "errors"

var (
	// ErrProviderNotConfigured is returned when a provider is constructed without a reconciler
	ErrProviderNotConfigured = errors.New("billing provider not configured")

	// ErrWebhookNotConfigured is returned when the webhook secret is missing
	ErrWebhookNotConfigured = errors.New("webhook secret not configured")

	// ErrInvalidWebhookSignature is returned when webhook signature validation fails
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")

	// ErrInvalidWebhookPayload is returned when webhook payload cannot be parsed
	ErrInvalidWebhookPayload = errors.New("invalid webhook payload")
)
