package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config captures runtime configuration for the API service.
type Config struct {
	HTTP        HTTPConfig
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	Telemetry   TelemetryConfig
	Service     ServiceConfig
	Payment     PaymentConfig
	Auth        AuthConfig
	Orders      OrdersConfig
	Idempotency IdempotencyConfig
}

type HTTPConfig struct {
	Port          int
	ShutdownGrace time.Duration
}

type DatabaseConfig struct {
	URL         string
	AutoMigrate bool
}

// RabbitMQConfig configures event publishing. An empty URL disables the broker.
type RabbitMQConfig struct {
	URL      string
	Exchange string
}

type TelemetryConfig struct {
	LogLevel      string
	OTelEndpoint  string
	OTelInsecure  bool
	EnableTracing bool
	EnableMetrics bool
	SampleRate    float64
}

type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
}

type PaymentProvider string

const (
	PaymentProviderPayOS PaymentProvider = "payos"
	PaymentProviderFake  PaymentProvider = "fake"
)

type PaymentConfig struct {
	Provider       PaymentProvider
	BaseURL        string
	ClientID       string
	APIKey         string
	ChecksumKey    string
	ReturnURL      string
	CancelURL      string
	AmountExponent int32
	Timeout        time.Duration
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

type OrdersConfig struct {
	StandardShipping decimal.Decimal
	ExpressShipping  decimal.Decimal
}

type IdempotencyConfig struct {
	TTL time.Duration
}

const (
	defaultHTTPPort        = 8080
	defaultShutdownGrace   = 15 * time.Second
	defaultAutoMigrate     = true
	defaultServiceName     = "storefront-api"
	defaultServiceVersion  = "0.1.0"
	defaultEnvironment     = "development"
	defaultLogLevel        = "info"
	defaultOTelSampleRate  = 1.0
	defaultExchange        = "storefront.orders"
	defaultPaymentBaseURL  = "https://api-merchant.payos.vn"
	defaultPaymentTimeout  = 10 * time.Second
	defaultAmountExponent  = 0
	defaultTokenIssuer     = "storefront"
	defaultTokenTTL        = 24 * time.Hour
	defaultStandardRate    = "3.00"
	defaultExpressRate     = "8.00"
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultPaymentProvider = PaymentProviderFake
)

// LoadEnvFile exports the variables of a dotenv file. A missing file is not an error.
func LoadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables, applying defaults when needed.
func Load() (*Config, error) {
	httpCfg, err := loadHTTPConfig()
	if err != nil {
		return nil, fmt.Errorf("loading HTTP config: %w", err)
	}

	telCfg, err := loadTelemetryConfig()
	if err != nil {
		return nil, fmt.Errorf("loading telemetry config: %w", err)
	}

	paymentCfg, err := loadPaymentConfig()
	if err != nil {
		return nil, fmt.Errorf("loading payment config: %w", err)
	}

	authCfg, err := loadAuthConfig()
	if err != nil {
		return nil, fmt.Errorf("loading auth config: %w", err)
	}

	ordersCfg, err := loadOrdersConfig()
	if err != nil {
		return nil, fmt.Errorf("loading orders config: %w", err)
	}

	idemTTL, err := getDurationEnv("IDEMPOTENCY_TTL", defaultIdempotencyTTL)
	if err != nil {
		return nil, fmt.Errorf("loading idempotency config: %w", err)
	}

	return &Config{
		HTTP:        httpCfg,
		Database:    loadDatabaseConfig(),
		RabbitMQ:    loadRabbitMQConfig(),
		Telemetry:   telCfg,
		Service:     loadServiceConfig(),
		Payment:     paymentCfg,
		Auth:        authCfg,
		Orders:      ordersCfg,
		Idempotency: IdempotencyConfig{TTL: idemTTL},
	}, nil
}

func loadHTTPConfig() (HTTPConfig, error) {
	port := defaultHTTPPort
	if value, ok := os.LookupEnv("API_HTTP_PORT"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return HTTPConfig{}, fmt.Errorf("invalid API_HTTP_PORT: %w", err)
		}
		port = parsed
	}

	shutdownGrace, err := getDurationEnv("API_SHUTDOWN_GRACE", defaultShutdownGrace)
	if err != nil {
		return HTTPConfig{}, err
	}

	return HTTPConfig{
		Port:          port,
		ShutdownGrace: shutdownGrace,
	}, nil
}

func loadDatabaseConfig() DatabaseConfig {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = buildDatabaseURL()
	}

	return DatabaseConfig{
		URL:         databaseURL,
		AutoMigrate: getBoolEnv("AUTO_MIGRATE", defaultAutoMigrate),
	}
}

func loadRabbitMQConfig() RabbitMQConfig {
	return RabbitMQConfig{
		URL:      os.Getenv("RABBITMQ_URL"),
		Exchange: getEnvOrDefault("RABBITMQ_EXCHANGE", defaultExchange),
	}
}

func loadTelemetryConfig() (TelemetryConfig, error) {
	sampleRate := defaultOTelSampleRate
	if value, ok := os.LookupEnv("OTEL_SAMPLE_RATE"); ok {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return TelemetryConfig{}, fmt.Errorf("invalid OTEL_SAMPLE_RATE: %w", err)
		}
		sampleRate = parsed
	}

	return TelemetryConfig{
		LogLevel:      getEnvOrDefault("LOG_LEVEL", defaultLogLevel),
		OTelEndpoint:  getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTelInsecure:  getBoolEnv("OTEL_EXPORTER_OTLP_INSECURE", true),
		EnableTracing: getBoolEnv("OTEL_ENABLE_TRACING", true),
		EnableMetrics: getBoolEnv("OTEL_ENABLE_METRICS", true),
		SampleRate:    sampleRate,
	}, nil
}

func loadServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:        getEnvOrDefault("API_SERVICE_NAME", defaultServiceName),
		Version:     getEnvOrDefault("SERVICE_VERSION", defaultServiceVersion),
		Environment: getEnvOrDefault("ENVIRONMENT", defaultEnvironment),
	}
}

func loadPaymentConfig() (PaymentConfig, error) {
	provider := PaymentProvider(getEnvOrDefault("PAYMENT_PROVIDER", string(defaultPaymentProvider)))
	if provider != PaymentProviderPayOS && provider != PaymentProviderFake {
		return PaymentConfig{}, fmt.Errorf("invalid PAYMENT_PROVIDER %q: must be payos or fake", provider)
	}

	timeout, err := getDurationEnv("PAYMENT_TIMEOUT", defaultPaymentTimeout)
	if err != nil {
		return PaymentConfig{}, err
	}

	exponent := int32(defaultAmountExponent)
	if value, ok := os.LookupEnv("PAYMENT_AMOUNT_EXPONENT"); ok {
		parsed, err := strconv.ParseInt(value, 10, 32)
		if err != nil || parsed < 0 {
			return PaymentConfig{}, fmt.Errorf("invalid PAYMENT_AMOUNT_EXPONENT %q", value)
		}
		exponent = int32(parsed)
	}

	cfg := PaymentConfig{
		Provider:       provider,
		BaseURL:        getEnvOrDefault("PAYMENT_BASE_URL", defaultPaymentBaseURL),
		ClientID:       os.Getenv("PAYMENT_CLIENT_ID"),
		APIKey:         os.Getenv("PAYMENT_API_KEY"),
		ChecksumKey:    os.Getenv("PAYMENT_CHECKSUM_KEY"),
		ReturnURL:      os.Getenv("PAYMENT_RETURN_URL"),
		CancelURL:      os.Getenv("PAYMENT_CANCEL_URL"),
		AmountExponent: exponent,
		Timeout:        timeout,
	}

	if provider == PaymentProviderPayOS {
		if cfg.ClientID == "" || cfg.APIKey == "" || cfg.ChecksumKey == "" {
			return PaymentConfig{}, errors.New("PAYMENT_CLIENT_ID, PAYMENT_API_KEY and PAYMENT_CHECKSUM_KEY are required for payos")
		}
	}

	return cfg, nil
}

func loadAuthConfig() (AuthConfig, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return AuthConfig{}, errors.New("JWT_SECRET is required")
	}

	ttl, err := getDurationEnv("JWT_TTL", defaultTokenTTL)
	if err != nil {
		return AuthConfig{}, err
	}

	return AuthConfig{
		JWTSecret: secret,
		Issuer:    getEnvOrDefault("JWT_ISSUER", defaultTokenIssuer),
		TokenTTL:  ttl,
	}, nil
}

func loadOrdersConfig() (OrdersConfig, error) {
	standard, err := getDecimalEnv("SHIPPING_RATE_STANDARD", defaultStandardRate)
	if err != nil {
		return OrdersConfig{}, err
	}
	express, err := getDecimalEnv("SHIPPING_RATE_EXPRESS", defaultExpressRate)
	if err != nil {
		return OrdersConfig{}, err
	}

	return OrdersConfig{StandardShipping: standard, ExpressShipping: express}, nil
}

func buildDatabaseURL() string {
	host := getEnvOrDefault("DB_HOST", "localhost")
	port := getEnvOrDefault("DB_PORT", "5432")
	user := getEnvOrDefault("DB_USER", "postgres")
	password := getEnvOrDefault("DB_PASSWORD", "postgres")
	dbName := getEnvOrDefault("DB_NAME", "storefront")
	sslMode := getEnvOrDefault("DB_SSLMODE", "disable")

	maxConns := getEnvOrDefault("DB_MAX_CONNS", "25")
	minConns := getEnvOrDefault("DB_MIN_CONNS", "5")
	maxLifetime := getEnvOrDefault("DB_MAX_CONN_LIFETIME", "5m")

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&pool_max_conns=%s&pool_min_conns=%s&pool_max_conn_lifetime=%s",
		user, password, host, port, dbName, sslMode, maxConns, minConns, maxLifetime,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		return value == "true"
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getDecimalEnv(key, defaultValue string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(getEnvOrDefault(key, defaultValue))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return value, nil
}
