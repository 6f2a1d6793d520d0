package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"hermes/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Crypto        CryptoConfig
	Gate          GateConfig
	Risk          RiskConfig
	Sizing        SizingConfig
	Dispatch      DispatchConfig
	Ledger        LedgerConfig
	SharedKeys    SharedCredentialsConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"hermes"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS" required:"true"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"hermes"`
}

type CryptoConfig struct {
	EncryptionKey string `envconfig:"ENCRYPTION_KEY" required:"true"` // 32 bytes for AES-256
}

// GateConfig controls the market direction gate and its sentiment refresh.
type GateConfig struct {
	RefreshInterval    time.Duration `envconfig:"GATE_REFRESH_INTERVAL" default:"15m"`
	StalenessThreshold time.Duration `envconfig:"GATE_STALENESS_THRESHOLD" default:"4h"`
	ProviderTimeout    time.Duration `envconfig:"GATE_PROVIDER_TIMEOUT" default:"10s"`
}

// RiskConfig carries the tunable parts of risk scoring. Thresholds that the
// policy fixes (base score, approval cutoff) live with the evaluator.
type RiskConfig struct {
	NotionalBalanceFraction float64 `envconfig:"RISK_NOTIONAL_BALANCE_FRACTION" default:"0.10"`
	DefaultRiskPercentage   float64 `envconfig:"RISK_DEFAULT_PERCENTAGE" default:"0.02"`
}

// SizingConfig carries the stop-loss and take-profit offsets applied to
// every sized order, expressed as fractions of the entry price.
type SizingConfig struct {
	StopLossPct   float64 `envconfig:"SIZING_STOP_LOSS_PCT" default:"0.02"`
	TakeProfitPct float64 `envconfig:"SIZING_TAKE_PROFIT_PCT" default:"0.04"`
}

// DispatchConfig controls outbound exchange calls.
type DispatchConfig struct {
	DefaultExchange     string        `envconfig:"DISPATCH_DEFAULT_EXCHANGE" default:"bybit"`
	RequestTimeout      time.Duration `envconfig:"DISPATCH_REQUEST_TIMEOUT" default:"10s"`
	RecvWindow          time.Duration `envconfig:"DISPATCH_RECV_WINDOW" default:"5s"`
	MaxRetries          int           `envconfig:"DISPATCH_MAX_RETRIES" default:"2"`
	PerExchangeParallel int           `envconfig:"DISPATCH_PER_EXCHANGE_PARALLEL" default:"8"`
	ProbeOnFirstUse     bool          `envconfig:"DISPATCH_PROBE_ON_FIRST_USE" default:"true"`
}

// LedgerConfig controls PnL reconciliation.
type LedgerConfig struct {
	ReconcileInterval time.Duration `envconfig:"LEDGER_RECONCILE_INTERVAL" default:"15s"`
	ProbeInterval     time.Duration `envconfig:"CREDENTIAL_PROBE_INTERVAL" default:"10m"`
}

// SharedCredentialsConfig holds the process-wide fallback API keys, one pair
// per exchange. Injected configuration, never a package-level singleton, so
// tests can substitute fakes.
type SharedCredentialsConfig struct {
	BybitAPIKey     string `envconfig:"SHARED_BYBIT_API_KEY"`
	BybitSecret     string `envconfig:"SHARED_BYBIT_SECRET"`
	BinanceAPIKey   string `envconfig:"SHARED_BINANCE_API_KEY"`
	BinanceSecret   string `envconfig:"SHARED_BINANCE_SECRET"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
