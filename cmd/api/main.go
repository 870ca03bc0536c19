package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dejobratic/storefront/internal/auth"
	"github.com/dejobratic/storefront/internal/config"
	"github.com/dejobratic/storefront/internal/database"
	idempostgres "github.com/dejobratic/storefront/internal/idempotency/postgres"
	"github.com/dejobratic/storefront/internal/orders/adapters"
	httpadapter "github.com/dejobratic/storefront/internal/orders/adapters/http"
	orderspostgres "github.com/dejobratic/storefront/internal/orders/adapters/postgres"
	ordersapp "github.com/dejobratic/storefront/internal/orders/app"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/dejobratic/storefront/internal/payment"
	"github.com/dejobratic/storefront/internal/payment/fake"
	"github.com/dejobratic/storefront/internal/rabbitmq"
	"github.com/dejobratic/storefront/internal/telemetry"
	"github.com/dejobratic/storefront/migrations"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	level, err := telemetry.ParseLevel(cfg.Telemetry.LogLevel)
	if err != nil {
		slog.Error("invalid log level", "error", err)
		os.Exit(1)
	}
	logger := telemetry.NewLogger(os.Stdout, level,
		slog.String("service", cfg.Service.Name),
		slog.String("version", cfg.Service.Version),
	)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	tel, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
		Environment:    cfg.Service.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTelEndpoint,
		Insecure:       cfg.Telemetry.OTelInsecure,
		EnableTracing:  cfg.Telemetry.EnableTracing,
		EnableMetrics:  cfg.Telemetry.EnableMetrics,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	meter := tel.Meter("github.com/dejobratic/storefront")
	orderMetrics, err := metrics.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("create order metrics: %w", err)
	}
	dbMetrics, err := database.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("create database metrics: %w", err)
	}
	brokerMetrics, err := rabbitmq.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("create rabbitmq metrics: %w", err)
	}
	httpMetrics, err := httpadapter.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("create http metrics: %w", err)
	}

	pool, err := database.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("create database pool: %w", err)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		version, err := database.RunMigrations(cfg.Database.URL, migrations.FS)
		if err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database schema up to date", "version", version)
	}

	events, brokerHealth, closeEvents, err := newEventBus(cfg.RabbitMQ, logger)
	if err != nil {
		return err
	}
	defer closeEvents()

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("create token service: %w", err)
	}

	idemStore := idempostgres.NewStore(pool, cfg.Idempotency.TTL)
	go purgeIdempotencyKeys(ctx, idemStore, logger)

	service := ordersapp.NewService(ordersapp.Dependencies{
		UnitOfWork:     adapters.NewObservableUnitOfWork(orderspostgres.NewUnitOfWork(pool), dbMetrics),
		Orders:         adapters.NewObservableRepository(orderspostgres.NewRepository(pool), dbMetrics),
		Carts:          orderspostgres.NewCartRepository(pool),
		Gateway:        newGateway(cfg.Payment, logger),
		Events:         adapters.NewObservableEventBus(events, brokerMetrics),
		Idempotency:    idemStore,
		Logger:         logger,
		Metrics:        orderMetrics,
		PaymentTimeout: cfg.Payment.Timeout,
		ShippingRates: map[domain.ShippingMethod]decimal.Decimal{
			domain.ShippingStandard: cfg.Orders.StandardShipping,
			domain.ShippingExpress:  cfg.Orders.ExpressShipping,
		},
	})

	router := chi.NewRouter()
	router.Use(
		httpadapter.WithRecovery(logger),
		httpadapter.WithLogging(logger),
		httpadapter.WithMetrics(httpMetrics),
	)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := database.CheckHealth(r.Context(), pool); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
			return
		}
		if err := brokerHealth(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	httpadapter.NewHandler(service, logger).Register(router, httpadapter.Authenticate(tokens, logger))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           otelhttp.NewHandler(router, "storefront-api"),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "port", cfg.HTTP.Port, "payment_provider", cfg.Payment.Provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}

const idempotencyPurgeInterval = time.Hour

// purgeIdempotencyKeys drops expired keys until ctx is cancelled.
func purgeIdempotencyKeys(ctx context.Context, store *idempostgres.Store, logger *slog.Logger) {
	ticker := time.NewTicker(idempotencyPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := store.DeleteExpired(ctx)
			if err != nil {
				logger.WarnContext(ctx, "failed to purge idempotency keys", "error", err)
				continue
			}
			logger.DebugContext(ctx, "purged idempotency keys", "count", purged)
		}
	}
}

// newEventBus connects to RabbitMQ, or logs events locally when no broker URL is set.
// The returned health check reports a dropped broker connection.
func newEventBus(cfg config.RabbitMQConfig, logger *slog.Logger) (ports.EventBus, func() error, func(), error) {
	if cfg.URL == "" {
		logger.Warn("RABBITMQ_URL not set, events will only be logged")
		return rabbitmq.NewNoopEventBus(logger), func() error { return nil }, func() {}, nil
	}

	conn, err := rabbitmq.NewConnection(cfg.URL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	publisher, err := rabbitmq.NewPublisher(conn, cfg.Exchange)
	if err != nil {
		_ = conn.Close()
		return nil, nil, nil, fmt.Errorf("create rabbitmq publisher: %w", err)
	}

	closeFn := func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("failed to close rabbitmq publisher", "error", err)
		}
		if err := conn.Close(); err != nil {
			logger.Warn("failed to close rabbitmq connection", "error", err)
		}
	}
	return publisher, conn.CheckHealth, closeFn, nil
}

func newGateway(cfg config.PaymentConfig, logger *slog.Logger) ports.PaymentGateway {
	if cfg.Provider == config.PaymentProviderFake {
		logger.Warn("using in-memory payment gateway")
		return fake.New()
	}

	return payment.NewClient(payment.Config{
		BaseURL:        cfg.BaseURL,
		ClientID:       cfg.ClientID,
		APIKey:         cfg.APIKey,
		ChecksumKey:    cfg.ChecksumKey,
		ReturnURL:      cfg.ReturnURL,
		CancelURL:      cfg.CancelURL,
		AmountExponent: cfg.AmountExponent,
		Timeout:        cfg.Timeout,
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
