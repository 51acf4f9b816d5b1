package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "crmauth.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "CRMAUTH_PORT")
	setString(&cfg.Server.CORSOrigin, "CRMAUTH_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "CRMAUTH_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "CRMAUTH_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "CRMAUTH_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "CRMAUTH_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "CRMAUTH_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.CacheBucket, "CRMAUTH_CACHE_BUCKET")

	setString(&cfg.Auth.JWTSecret, "CRMAUTH_JWT_SECRET")
	setString(&cfg.Auth.Issuer, "CRMAUTH_JWT_ISSUER")
	setString(&cfg.Auth.Audience, "CRMAUTH_JWT_AUDIENCE")
	setDuration(&cfg.Auth.AccessTokenExpiry, "CRMAUTH_ACCESS_TOKEN_EXPIRY")
	setDuration(&cfg.Auth.RefreshTokenExpiry, "CRMAUTH_REFRESH_TOKEN_EXPIRY")
	setInt(&cfg.Auth.BcryptCost, "CRMAUTH_BCRYPT_COST")

	setInt64(&cfg.Cache.L1MaxBytes, "CRMAUTH_CACHE_L1_MAX_BYTES")
	setDuration(&cfg.Cache.PermissionTTL, "CRMAUTH_CACHE_PERMISSION_TTL")
	setDuration(&cfg.Cache.TenantTTL, "CRMAUTH_CACHE_TENANT_TTL")

	setFloat64(&cfg.Rate.RequestsPerSecond, "CRMAUTH_RATE_RPS")
	setInt(&cfg.Rate.Burst, "CRMAUTH_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "CRMAUTH_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "CRMAUTH_RATE_MAX_IDLE_TIME")

	setString(&cfg.Logging.Level, "CRMAUTH_LOG_LEVEL")
	setString(&cfg.Logging.Service, "CRMAUTH_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "CRMAUTH_LOG_ASYNC")

	setString(&cfg.Bootstrap.AdminEmail, "CRMAUTH_BOOTSTRAP_ADMIN_EMAIL")
	setString(&cfg.Bootstrap.AdminPassword, "CRMAUTH_BOOTSTRAP_ADMIN_PASSWORD")
	setString(&cfg.Bootstrap.AdminFirstName, "CRMAUTH_BOOTSTRAP_ADMIN_FIRST_NAME")
	setString(&cfg.Bootstrap.AdminLastName, "CRMAUTH_BOOTSTRAP_ADMIN_LAST_NAME")

	setBool(&cfg.Otel.Enabled, "CRMAUTH_OTEL_ENABLED")
	setString(&cfg.Otel.GRPCEndpoint, "CRMAUTH_OTEL_GRPC_ENDPOINT")

	setInt(&cfg.Outbound.BreakerMaxFailures, "CRMAUTH_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Outbound.BreakerTimeout, "CRMAUTH_BREAKER_TIMEOUT")
	setInt(&cfg.Outbound.WorkerLimit, "CRMAUTH_WORKER_LIMIT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Auth.AccessTokenExpiry <= 0 {
		return errors.New("auth.access_token_expiry must be positive")
	}
	if cfg.Auth.RefreshTokenExpiry <= cfg.Auth.AccessTokenExpiry {
		return errors.New("auth.refresh_token_expiry must exceed auth.access_token_expiry")
	}
	if cfg.Auth.BcryptCost < 10 || cfg.Auth.BcryptCost > 16 {
		return errors.New("auth.bcrypt_cost must be between 10 and 16")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Outbound.WorkerLimit < 1 {
		return errors.New("outbound.worker_limit must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
