package stripe

import (
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83/webhook"

	"github.com/mihaimyh/sheetsync/pkg/billing"
	"github.com/mihaimyh/sheetsync/pkg/billing/internal"
	"github.com/mihaimyh/sheetsync/pkg/sheetsync"
)

const (
	providerName           = "stripe"
	defaultMaxBodyBytes    = 256 * 1024
	defaultRateLimitWindow = time.Minute
)

// Config extends billing.Config with Stripe-specific options
type Config struct {
	billing.Config // Base config (Reconciler, WebhookSecret, Metrics, ...)

	// EmailFieldKey is the checkout custom field key carrying the user's email
	// (CHECKOUT_EMAIL_FIELD_KEY). When empty the first text custom field is used.
	EmailFieldKey string

	// MaxBodyBytes caps the webhook body size. Default: 256 KiB
	MaxBodyBytes int64

	// SignatureTolerance is how old a signed payload may be. Default: 300s
	// (the stripe-go default).
	SignatureTolerance time.Duration
}

// Provider implements the billing.Provider interface for Stripe
type Provider struct {
	reconciler    billing.Reconciler
	normalizer    *Normalizer
	config        Config
	rateLimiter   *internal.DeliveryLimiter
	webhookSecret string
	maxBodyBytes  int64
	metrics       billing.Metrics
	logger        sheetsync.Logger
}

// NewProvider creates a new Stripe provider. A missing webhook secret is not an
// error: the webhook answers 400 until it is configured.
func NewProvider(config Config) (*Provider, error) {
	if config.Reconciler == nil {
		return nil, billing.ErrProviderNotConfigured
	}

	metrics := config.Metrics
	if metrics == nil {
		metrics = &billing.NoopMetrics{}
	}
	logger := config.Logger
	if logger == nil {
		logger = &sheetsync.NoopLogger{}
	}

	maxBody := config.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	if config.SignatureTolerance <= 0 {
		config.SignatureTolerance = webhook.DefaultTolerance
	}

	var limiter *internal.DeliveryLimiter
	if config.RateLimit > 0 {
		limiter = internal.NewDeliveryLimiter(config.RateLimit, defaultRateLimitWindow, func(client string) {
			metrics.RecordRejection(providerName, "rate_limited")
			logger.Debug("webhook delivery rate limited", field("client", client))
		})
	}

	return &Provider{
		reconciler:    config.Reconciler,
		normalizer:    NewNormalizer(config.EmailFieldKey, logger),
		config:        config,
		rateLimiter:   limiter,
		webhookSecret: strings.TrimSpace(config.WebhookSecret),
		maxBodyBytes:  maxBody,
		metrics:       metrics,
		logger:        logger,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// WebhookHandler returns the HTTP handler for Stripe webhooks
func (p *Provider) WebhookHandler() http.Handler {
	handler := http.HandlerFunc(p.handleWebhook)
	if p.rateLimiter == nil {
		return handler
	}
	return p.rateLimiter.Wrap(handler)
}

// Normalizer returns the event normalizer used by the webhook.
func (p *Provider) Normalizer() *Normalizer {
	return p.normalizer
}
