// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const defaultLedgerMaxAmount = "1000000000"

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDriverFile     = "file"
	StoreDriverPostgres = "postgres"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the JSON API listens on (e.g. :5000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCHealthAddr is the address of the gRPC health service; empty disables it.
	GRPCHealthAddr string `mapstructure:"GRPC_HEALTH_ADDR"`

	// StoreDriver selects the persistence gateway: "file" or "postgres".
	StoreDriver string `mapstructure:"STORE_DRIVER"`
	// DataFile is the JSON document used by the file driver.
	DataFile string `mapstructure:"DATA_FILE"`
	// DatabaseURL is the Postgres DSN; required when StoreDriver is postgres and for cmd/migrate.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// OTPTTLRaw is the one-time code lifetime (e.g. "5m").
	OTPTTLRaw string `mapstructure:"OTP_TTL"`
	// FlowTTLRaw is the flow token lifetime (e.g. "15m").
	FlowTTLRaw string `mapstructure:"FLOW_TOKEN_TTL"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file. Set together with JWTPublicKey.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`

	// EmailJS delivers one-time codes by email. All four IDs/keys must be set to enable it.
	EmailJSServiceID  string `mapstructure:"EMAILJS_SERVICE_ID"`
	EmailJSTemplateID string `mapstructure:"EMAILJS_TEMPLATE_ID"`
	EmailJSPublicKey  string `mapstructure:"EMAILJS_PUBLIC_KEY"`
	EmailJSPrivateKey string `mapstructure:"EMAILJS_PRIVATE_KEY"`
	EmailJSBaseURL    string `mapstructure:"EMAILJS_BASE_URL"`

	// OTPReturnToClient when true stores issued codes for GET /dev/otp. Must not be true when Env is production.
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogFormat is "json" or "text".
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// OTLPEndpoint is the collector endpoint for traces, metrics and logs; empty keeps providers local.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// KafkaBrokers is a comma-separated list of broker addresses; when set, bank events are produced to Kafka.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// KafkaTopic is the topic for bank events (default smartbanker-events).
	KafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`

	// Worker-only: Loki URL the event worker pushes to (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the event worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// LedgerPolicyFile is an optional Rego module for package smartbanker.ledger.
	LedgerPolicyFile string `mapstructure:"LEDGER_POLICY_FILE"`
	// LedgerMaxAmountRaw caps a single deposit or withdrawal (e.g. "1000000000").
	LedgerMaxAmountRaw string `mapstructure:"LEDGER_MAX_AMOUNT"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":5000")
	v.SetDefault("GRPC_HEALTH_ADDR", "")
	v.SetDefault("STORE_DRIVER", StoreDriverFile)
	v.SetDefault("DATA_FILE", "users.json")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("OTP_TTL", "5m")
	v.SetDefault("FLOW_TOKEN_TTL", "15m")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "smartbanker-auth")
	v.SetDefault("JWT_AUDIENCE", "smartbanker-api")
	v.SetDefault("EMAILJS_SERVICE_ID", "")
	v.SetDefault("EMAILJS_TEMPLATE_ID", "")
	v.SetDefault("EMAILJS_PUBLIC_KEY", "")
	v.SetDefault("EMAILJS_PRIVATE_KEY", "")
	v.SetDefault("EMAILJS_BASE_URL", "https://api.emailjs.com")
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "smartbanker-events")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "smartbanker-event-worker")
	v.SetDefault("LEDGER_POLICY_FILE", "")
	v.SetDefault("LEDGER_MAX_AMOUNT", defaultLedgerMaxAmount)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	switch cfg.StoreDriver {
	case StoreDriverFile:
		if cfg.DataFile == "" {
			return nil, errors.New("config: DATA_FILE must be set when STORE_DRIVER=file")
		}
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("config: DATABASE_URL must be set when STORE_DRIVER=postgres")
		}
	default:
		return nil, errors.New("config: STORE_DRIVER must be file or postgres")
	}

	if cfg.OTPReturnToClient && cfg.IsProduction() {
		return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}

	if (cfg.JWTPrivateKey == "") != (cfg.JWTPublicKey == "") {
		return nil, errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set together")
	}
	if cfg.JWTPrivateKey == "" && cfg.IsProduction() {
		return nil, errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, errors.New("config: LOG_FORMAT must be json or text")
	}

	if cfg.LedgerMaxAmountRaw == "" {
		cfg.LedgerMaxAmountRaw = defaultLedgerMaxAmount
	}
	if d, err := decimal.NewFromString(cfg.LedgerMaxAmountRaw); err != nil || !d.IsPositive() {
		return nil, errors.New("config: LEDGER_MAX_AMOUNT must be a positive number")
	}

	return &cfg, nil
}

// LedgerMaxAmount returns the per-operation amount cap. Load has validated it.
func (c *Config) LedgerMaxAmount() decimal.Decimal {
	d, err := decimal.NewFromString(c.LedgerMaxAmountRaw)
	if err != nil || !d.IsPositive() {
		return decimal.RequireFromString(defaultLedgerMaxAmount)
	}
	return d
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}

// OTPTTL parses OTPTTLRaw as a time.Duration. Returns 5m if unset or invalid.
func (c *Config) OTPTTL() time.Duration {
	d, err := time.ParseDuration(c.OTPTTLRaw)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// FlowTTL parses FlowTTLRaw as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) FlowTTL() time.Duration {
	d, err := time.ParseDuration(c.FlowTTLRaw)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// EmailJSEnabled reports whether every EmailJS credential is present.
func (c *Config) EmailJSEnabled() bool {
	return c != nil && c.EmailJSServiceID != "" && c.EmailJSTemplateID != "" &&
		c.EmailJSPublicKey != "" && c.EmailJSPrivateKey != ""
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list means events are not produced to Kafka.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
