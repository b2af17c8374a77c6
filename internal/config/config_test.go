package config

import (
	"reflect"
	"testing"
	"time"
)

var allKeys = []string{
	"HTTP_ADDR", "GRPC_HEALTH_ADDR", "STORE_DRIVER", "DATA_FILE", "DATABASE_URL", "BCRYPT_COST",
	"OTP_TTL", "FLOW_TOKEN_TTL", "JWT_PRIVATE_KEY", "JWT_PUBLIC_KEY", "JWT_ISSUER", "JWT_AUDIENCE",
	"EMAILJS_SERVICE_ID", "EMAILJS_TEMPLATE_ID", "EMAILJS_PUBLIC_KEY", "EMAILJS_PRIVATE_KEY",
	"EMAILJS_BASE_URL", "OTP_RETURN_TO_CLIENT", "APP_ENV", "LOG_FORMAT",
	"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE", "KAFKA_BROKERS",
	"TELEMETRY_KAFKA_TOPIC", "LOKI_URL", "KAFKA_GROUP_ID", "LEDGER_POLICY_FILE", "LEDGER_MAX_AMOUNT",
}

// clearEnv blanks every key Load reads; viper ignores empty env values.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":5000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":5000")
	}
	if cfg.GRPCHealthAddr != "" {
		t.Errorf("GRPCHealthAddr = %q, want empty", cfg.GRPCHealthAddr)
	}
	if cfg.StoreDriver != StoreDriverFile {
		t.Errorf("StoreDriver = %q, want %q", cfg.StoreDriver, StoreDriverFile)
	}
	if cfg.DataFile != "users.json" {
		t.Errorf("DataFile = %q, want users.json", cfg.DataFile)
	}
	if cfg.JWTIssuer != "smartbanker-auth" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "smartbanker-auth")
	}
	if cfg.JWTAudience != "smartbanker-api" {
		t.Errorf("JWTAudience = %q, want %q", cfg.JWTAudience, "smartbanker-api")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.OTPTTL() != 5*time.Minute {
		t.Errorf("OTPTTL = %v, want 5m", cfg.OTPTTL())
	}
	if cfg.FlowTTL() != 15*time.Minute {
		t.Errorf("FlowTTL = %v, want 15m", cfg.FlowTTL())
	}
	if cfg.EmailJSBaseURL != "https://api.emailjs.com" {
		t.Errorf("EmailJSBaseURL = %q, want default", cfg.EmailJSBaseURL)
	}
	if cfg.KafkaTopic != "smartbanker-events" {
		t.Errorf("KafkaTopic = %q, want smartbanker-events", cfg.KafkaTopic)
	}
	if cfg.KafkaGroupID != "smartbanker-event-worker" {
		t.Errorf("KafkaGroupID = %q, want smartbanker-event-worker", cfg.KafkaGroupID)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", cfg.LogFormat)
	}
	if cfg.OTPReturnToClient {
		t.Error("OTPReturnToClient should default to false")
	}
	if cfg.EmailJSEnabled() {
		t.Error("EmailJSEnabled should be false without credentials")
	}
	if got := cfg.LedgerMaxAmount().String(); got != "1000000000" {
		t.Errorf("LedgerMaxAmount = %s, want 1000000000", got)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("JWT_ISSUER", "custom-issuer")
	t.Setenv("BCRYPT_COST", "14")
	t.Setenv("OTP_TTL", "90s")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "custom-issuer")
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
	if cfg.OTPTTL() != 90*time.Second {
		t.Errorf("OTPTTL = %v, want 90s", cfg.OTPTTL())
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want text", cfg.LogFormat)
	}
}

func TestLoad_BCRYPT_COSTRange(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  int
		err   bool
	}{
		{"valid min", "4", 4, false},
		{"valid max", "31", 31, false},
		{"too low", "3", 0, true},
		{"too high", "32", 0, true},
		{"zero", "0", 12, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("BCRYPT_COST", tc.value)

			cfg, err := Load()
			if tc.err {
				if err == nil {
					t.Fatal("Load should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.BcryptCost != tc.want {
				t.Errorf("BcryptCost = %d, want %d", cfg.BcryptCost, tc.want)
			}
		})
	}
}

func TestLoad_StoreDriver(t *testing.T) {
	testCases := []struct {
		name   string
		driver string
		dsn    string
		err    bool
	}{
		{"file", "file", "", false},
		{"postgres with dsn", "postgres", "postgres://localhost/bank", false},
		{"postgres without dsn", "postgres", "", true},
		{"unknown", "sqlite", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("STORE_DRIVER", tc.driver)
			t.Setenv("DATABASE_URL", tc.dsn)

			_, err := Load()
			if tc.err && err == nil {
				t.Fatal("Load should return error")
			}
			if !tc.err && err != nil {
				t.Fatalf("Load: %v", err)
			}
		})
	}
}

func TestLoad_OTPReturnToClientProduction(t *testing.T) {
	clearEnv(t)
	t.Setenv("OTP_RETURN_TO_CLIENT", "true")
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_PRIVATE_KEY", "priv.pem")
	t.Setenv("JWT_PUBLIC_KEY", "pub.pem")

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load should return error when OTP_RETURN_TO_CLIENT=true and APP_ENV=production")
	}
	if cfg != nil {
		t.Error("Load should return nil config on error")
	}
	if err.Error() != "config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production" {
		t.Errorf("error = %q, want production message", err.Error())
	}
}

func TestLoad_OTPReturnToClientDevelopment(t *testing.T) {
	clearEnv(t)
	t.Setenv("OTP_RETURN_TO_CLIENT", "true")
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.OTPReturnToClient {
		t.Error("OTPReturnToClient should be true")
	}
}

func TestLoad_JWTKeys(t *testing.T) {
	testCases := []struct {
		name string
		env  string
		priv string
		pub  string
		err  bool
	}{
		{"neither in development", "development", "", "", false},
		{"neither in production", "production", "", "", true},
		{"only private", "", "priv.pem", "", true},
		{"only public", "", "", "pub.pem", true},
		{"both in production", "production", "priv.pem", "pub.pem", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("APP_ENV", tc.env)
			t.Setenv("JWT_PRIVATE_KEY", tc.priv)
			t.Setenv("JWT_PUBLIC_KEY", tc.pub)

			_, err := Load()
			if tc.err && err == nil {
				t.Fatal("Load should return error")
			}
			if !tc.err && err != nil {
				t.Fatalf("Load: %v", err)
			}
		})
	}
}

func TestLoad_InvalidLogFormat(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_FORMAT", "xml")

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject LOG_FORMAT=xml")
	}
}

func TestTTLHelpers_FallBackOnBadValues(t *testing.T) {
	for _, raw := range []string{"", "invalid", "0", "-5m"} {
		cfg := &Config{OTPTTLRaw: raw, FlowTTLRaw: raw}
		if got := cfg.OTPTTL(); got != 5*time.Minute {
			t.Errorf("OTPTTL(%q) = %v, want 5m", raw, got)
		}
		if got := cfg.FlowTTL(); got != 15*time.Minute {
			t.Errorf("FlowTTL(%q) = %v, want 15m", raw, got)
		}
	}
}

func TestEmailJSEnabled(t *testing.T) {
	cfg := &Config{EmailJSServiceID: "s", EmailJSTemplateID: "t", EmailJSPublicKey: "p"}
	if cfg.EmailJSEnabled() {
		t.Error("EmailJSEnabled should be false without a private key")
	}
	cfg.EmailJSPrivateKey = "k"
	if !cfg.EmailJSEnabled() {
		t.Error("EmailJSEnabled should be true with every credential set")
	}
	var nilCfg *Config
	if nilCfg.EmailJSEnabled() {
		t.Error("nil config should not enable EmailJS")
	}
}

func TestKafkaBrokersList(t *testing.T) {
	testCases := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"localhost:9092", []string{"localhost:9092"}},
		{" a:9092 , ,b:9092 ", []string{"a:9092", "b:9092"}},
	}
	for _, tc := range testCases {
		cfg := &Config{KafkaBrokers: tc.raw}
		if got := cfg.KafkaBrokersList(); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("KafkaBrokersList(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestLoad_LedgerMaxAmount(t *testing.T) {
	testCases := []struct {
		value string
		want  string
		err   bool
	}{
		{"2500.50", "2500.5", false},
		{"0", "", true},
		{"-1", "", true},
		{"lots", "", true},
	}
	for _, tc := range testCases {
		t.Run(tc.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("LEDGER_MAX_AMOUNT", tc.value)

			cfg, err := Load()
			if tc.err {
				if err == nil {
					t.Fatal("Load should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got := cfg.LedgerMaxAmount().String(); got != tc.want {
				t.Errorf("LedgerMaxAmount = %s, want %s", got, tc.want)
			}
		})
	}
}
