// Package config loads and validates app config from env and an optional
// .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim on access assertions.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim on access assertions.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// AccessTTLRaw is the access assertion lifetime (e.g. "15m"). Revocation only blocks refresh, so keep this short.
	AccessTTLRaw string `mapstructure:"ACCESS_TTL"`
	// SessionTTLRaw is the session (refresh secret) lifetime (e.g. "720h" for 30 days).
	SessionTTLRaw string `mapstructure:"SESSION_TTL"`
	// CodeTTLRaw is the verification code lifetime (e.g. "5m").
	CodeTTLRaw string `mapstructure:"CODE_TTL"`
	// CodeLength is the number of digits in a verification code (4–10); default 6.
	CodeLength int `mapstructure:"CODE_LENGTH"`
	// MaxSessionsPerPrincipal bounds concurrent live sessions per principal; default 2.
	MaxSessionsPerPrincipal int `mapstructure:"MAX_SESSIONS_PER_PRINCIPAL"`
	// BcryptCost is the bcrypt cost factor (4–31) for code hashing; default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// SweepIntervalRaw is the pause between expiry sweeps in the worker (e.g. "1h").
	SweepIntervalRaw string `mapstructure:"SWEEP_INTERVAL"`
	// OTLPEndpoint is the OTLP gRPC collector endpoint (e.g. http://localhost:4317); empty disables export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext export even for https endpoints (standard OTEL_EXPORTER_OTLP_INSECURE behavior).
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment via Viper. Missing .env is ignored (e.g. in CI). Env vars
// override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_ISSUER", "session-lifecycle")
	v.SetDefault("JWT_AUDIENCE", "session-lifecycle-api")
	v.SetDefault("ACCESS_TTL", "15m")
	v.SetDefault("SESSION_TTL", "720h") // 30d
	v.SetDefault("CODE_TTL", "5m")
	v.SetDefault("CODE_LENGTH", 6)
	v.SetDefault("MAX_SESSIONS_PER_PRINCIPAL", 2)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("SWEEP_INTERVAL", "1h")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.CodeLength < 4 || cfg.CodeLength > 10 {
		return nil, errors.New("config: CODE_LENGTH must be between 4 and 10")
	}
	if cfg.MaxSessionsPerPrincipal < 1 {
		return nil, errors.New("config: MAX_SESSIONS_PER_PRINCIPAL must be at least 1")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// AccessTTL parses ACCESS_TTL as a time.Duration. Returns 15m if unset or
// invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.AccessTTLRaw)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// SessionTTL parses SESSION_TTL as a time.Duration. Returns 720h if unset or
// invalid.
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.SessionTTLRaw)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// CodeTTL parses CODE_TTL as a time.Duration. Returns 5m if unset or invalid.
func (c *Config) CodeTTL() time.Duration {
	d, err := time.ParseDuration(c.CodeTTLRaw)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// SweepInterval parses SWEEP_INTERVAL as a time.Duration. Returns 1h if unset
// or invalid.
func (c *Config) SweepInterval() time.Duration {
	d, err := time.ParseDuration(c.SweepIntervalRaw)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}
