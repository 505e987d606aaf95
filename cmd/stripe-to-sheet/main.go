// Command stripe-to-sheet relays Stripe subscription webhooks into a spreadsheet
// and answers paid-status queries from it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mihaimyh/sheetsync/internal/config"
	"github.com/mihaimyh/sheetsync/pkg/api"
	billingprom "github.com/mihaimyh/sheetsync/pkg/billing/metrics/prometheus"
	"github.com/mihaimyh/sheetsync/pkg/billing/stripe"
	"github.com/mihaimyh/sheetsync/pkg/server"
	"github.com/mihaimyh/sheetsync/pkg/sheetsync"
	zerolog_adapter "github.com/mihaimyh/sheetsync/pkg/sheetsync/logger/zerolog"
	sheetsyncprom "github.com/mihaimyh/sheetsync/pkg/sheetsync/metrics/prometheus"
)

const (
	metricsNamespace    = "sheetsync"
	shutdownTimeout     = 10 * time.Second
	circuitResetTimeout = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	zlog := newLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zlog); err != nil {
		zlog.Fatal().Err(err).Msg("stripe-to-sheet stopped")
	}
	zlog.Info().Msg("stripe-to-sheet stopped gracefully")
}

// newLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func newLogger(cfg config.Config, out io.Writer) zerolog.Logger {
	if cfg.LogFormat == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("service", api.DefaultServiceName).Logger()
}

// run wires the components and serves until ctx is canceled.
func run(ctx context.Context, cfg config.Config, zlog zerolog.Logger) error {
	logger := zerolog_adapter.NewLogger(&zlog)

	for _, key := range cfg.Missing() {
		zlog.Warn().Str("key", key).Msg("missing configuration, dependent calls will fail")
	}

	var (
		registry       *prometheus.Registry
		storeMetrics   sheetsync.Metrics = &sheetsync.NoopMetrics{}
		webhookMetrics *billingprom.Metrics
	)
	if cfg.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		storeMetrics = sheetsyncprom.NewMetrics(registry, metricsNamespace)
		webhookMetrics = billingprom.NewMetrics(registry, metricsNamespace)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	store = wrapStore(store, cfg, storeMetrics, logger)

	coreConfig := &sheetsync.Config{
		Layout:       sheetsync.Layout{SheetName: cfg.SheetName},
		StoreTimeout: cfg.StoreTimeout,
		Logger:       logger,
		Metrics:      storeMetrics,
	}
	reconciler, err := sheetsync.NewReconciler(store, coreConfig)
	if err != nil {
		return fmt.Errorf("create reconciler: %w", err)
	}
	querier, err := sheetsync.NewQuerier(store, coreConfig)
	if err != nil {
		return fmt.Errorf("create querier: %w", err)
	}

	providerConfig := stripe.Config{EmailFieldKey: cfg.EmailFieldKey}
	providerConfig.Reconciler = reconciler
	providerConfig.WebhookSecret = cfg.StripeWebhookSecret
	providerConfig.RateLimit = cfg.WebhookRateLimit
	providerConfig.Logger = logger
	if webhookMetrics != nil {
		providerConfig.Metrics = webhookMetrics
	}
	provider, err := stripe.NewProvider(providerConfig)
	if err != nil {
		return fmt.Errorf("create stripe provider: %w", err)
	}

	apiHandler, err := api.NewHandler(api.Config{Querier: querier})
	if err != nil {
		return fmt.Errorf("create api handler: %w", err)
	}

	routerConfig := server.Config{API: apiHandler, Webhook: provider.WebhookHandler(), Logger: &zlog}
	if registry != nil {
		routerConfig.Metrics = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}
	router, err := server.NewRouter(routerConfig)
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}

	srv := server.NewHTTPServer(cfg.Addr(), router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zlog.Info().Str("addr", srv.Addr).Str("backend", cfg.StoreBackend).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// wrapStore adds instrumentation and, when configured, a circuit breaker.
func wrapStore(store sheetsync.RowStore, cfg config.Config, metrics sheetsync.Metrics,
	logger sheetsync.Logger) sheetsync.RowStore {
	store = sheetsync.NewInstrumentedStore(store, metrics)
	if cfg.CircuitBreakerThreshold > 0 {
		cb := sheetsync.NewStoreBreaker(cfg.CircuitBreakerThreshold, circuitResetTimeout,
			func(state sheetsync.BreakerState) {
				metrics.RecordCircuitBreakerStateChange(string(state))
				logger.Warn("row store circuit breaker changed state", sheetsync.Field{Key: "state", Value: string(state)})
			})
		store = sheetsync.NewCircuitBreakerStore(store, cb)
	}
	return store
}
