package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Server         ServerConfig         `toml:"server"`
	Database       DatabaseConfig       `toml:"database"`
	Redis          RedisConfig          `toml:"redis"`
	Logger         LoggerConfig         `toml:"logger"`
	Telemetry      TelemetryConfig      `toml:"telemetry"`
	Sequence       SequenceConfig       `toml:"sequence"`
	Fulfillment    FulfillmentConfig    `toml:"fulfillment"`
	Reconciliation ReconciliationConfig `toml:"reconciliation"`
	Auth           AuthConfig           `toml:"auth"`
}

type ServerConfig struct {
	AppEnv          string   `toml:"app_env"`
	Port            int      `toml:"port"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL      string `toml:"url"`
	MaxConns int32  `toml:"max_conns"`
	MinConns int32  `toml:"min_conns"`
	// MaxTxAttempts bounds how often a unit of work is replayed after contention.
	MaxTxAttempts  uint     `toml:"max_tx_attempts"`
	InitialBackoff Duration `toml:"initial_backoff"`
}

type RedisConfig struct {
	Enabled  bool     `toml:"enabled"`
	Addr     string   `toml:"addr"`
	Password string   `toml:"password"`
	DB       int      `toml:"db"`
	Prefix   string   `toml:"prefix"`
	TTL      Duration `toml:"ttl"`
}

type LoggerConfig struct {
	Level             string `toml:"level"`
	Encoding          string `toml:"encoding"`
	Development       bool   `toml:"development"`
	DisableCaller     bool   `toml:"disable_caller"`
	DisableStacktrace bool   `toml:"disable_stacktrace"`
}

type TelemetryConfig struct {
	Enabled        bool     `toml:"enabled"`
	ServiceName    string   `toml:"service_name"`
	Endpoint       string   `toml:"endpoint"`
	Insecure       bool     `toml:"insecure"`
	MetricInterval Duration `toml:"metric_interval"`
}

type SequenceConfig struct {
	OrderPrefix    string `toml:"order_prefix"`
	PurchasePrefix string `toml:"purchase_prefix"`
}

type FulfillmentConfig struct {
	// Policy is reject_whole_order or accept_partial.
	Policy string `toml:"policy"`
}

type ReconciliationConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"`
	Limit    int    `toml:"limit"`
}

type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
	Required  bool   `toml:"required"`
}

// Duration decodes TOML strings such as "250ms" or "1h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:          "dev",
			Port:            8080,
			ShutdownTimeout: Duration{10 * time.Second},
		},
		Database: DatabaseConfig{
			MaxConns:       10,
			MinConns:       1,
			MaxTxAttempts:  5,
			InitialBackoff: Duration{20 * time.Millisecond},
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "stockflow",
			TTL:    Duration{5 * time.Minute},
		},
		Logger: LoggerConfig{
			Level:             "info",
			Encoding:          "json",
			DisableStacktrace: true,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "stockflow",
			Endpoint:       "localhost:4318",
			Insecure:       true,
			MetricInterval: Duration{15 * time.Second},
		},
		Sequence: SequenceConfig{
			OrderPrefix:    "SO",
			PurchasePrefix: "PO",
		},
		Fulfillment: FulfillmentConfig{
			Policy: "reject_whole_order",
		},
		Reconciliation: ReconciliationConfig{
			Schedule: "0 3 * * *",
			Limit:    100,
		},
	}
}

// Load builds the configuration from defaults, an optional TOML file, a .env file and the environment,
// later sources winning.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.AppEnv = getEnv("APP_ENV", cfg.Server.AppEnv)
	cfg.Server.Port = getEnvInt("PORT", cfg.Server.Port)

	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxConns = int32(getEnvInt("DATABASE_MAX_CONNS", int(cfg.Database.MaxConns)))
	cfg.Database.MaxTxAttempts = uint(getEnvInt("DATABASE_MAX_TX_ATTEMPTS", int(cfg.Database.MaxTxAttempts)))
	cfg.Database.InitialBackoff.Duration = getEnvDuration("DATABASE_INITIAL_BACKOFF", cfg.Database.InitialBackoff.Duration)

	cfg.Redis.Enabled = getEnvBool("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.TTL.Duration = getEnvDuration("REDIS_TTL", cfg.Redis.TTL.Duration)

	cfg.Logger.Level = getEnv("LOGGER_LEVEL", cfg.Logger.Level)
	cfg.Logger.Encoding = getEnv("LOGGER_ENCODING", cfg.Logger.Encoding)
	cfg.Logger.Development = getEnvBool("LOGGER_DEVELOPMENT", cfg.Logger.Development)
	cfg.Logger.DisableCaller = getEnvBool("LOGGER_DISABLE_CALLER", cfg.Logger.DisableCaller)
	cfg.Logger.DisableStacktrace = getEnvBool("LOGGER_DISABLE_STACKTRACE", cfg.Logger.DisableStacktrace)

	cfg.Telemetry.Enabled = getEnvBool("OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.ServiceName = getEnv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
	cfg.Telemetry.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.Endpoint)

	cfg.Sequence.OrderPrefix = getEnv("ORDER_NUMBER_PREFIX", cfg.Sequence.OrderPrefix)
	cfg.Sequence.PurchasePrefix = getEnv("PURCHASE_NUMBER_PREFIX", cfg.Sequence.PurchasePrefix)

	cfg.Fulfillment.Policy = getEnv("FULFILLMENT_POLICY", cfg.Fulfillment.Policy)

	cfg.Reconciliation.Enabled = getEnvBool("RECONCILIATION_ENABLED", cfg.Reconciliation.Enabled)
	cfg.Reconciliation.Schedule = getEnv("RECONCILIATION_SCHEDULE", cfg.Reconciliation.Schedule)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.Required = getEnvBool("AUTH_REQUIRED", cfg.Auth.Required)
}

func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	switch c.Fulfillment.Policy {
	case "reject_whole_order", "accept_partial":
	default:
		return fmt.Errorf("unknown fulfillment policy %q", c.Fulfillment.Policy)
	}
	if c.Auth.Required && c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required when auth is required")
	}
	if c.Sequence.OrderPrefix == "" || c.Sequence.PurchasePrefix == "" {
		return errors.New("sequence prefixes cannot be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
