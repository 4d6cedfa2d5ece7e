package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName        = "Custodia"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultBackendTimeout = 15 * time.Second
	defaultMigrationsPath = "migrations"

	// Faucet policy defaults, amounts in USDC base units (6 decimals).
	defaultInitialGrant       = int64(1_000_000)   // 1 USDC on first provisioning
	defaultMaxRequestAmount   = int64(10_000_000)  // 10 USDC per faucet request
	defaultMaxTotalAmount     = int64(100_000_000) // 100 USDC lifetime per account
	defaultMinRequestInterval = 60 * time.Second
	defaultProvisionLockTTL   = 30 * time.Second
)

// FaucetPolicy bounds faucet behavior. It is passed explicitly into the
// provisioning and faucet services; nothing reads it from ambient state.
type FaucetPolicy struct {
	InitialGrant       int64
	MaxRequestAmount   int64
	MaxTotalAmount     int64
	MinRequestInterval time.Duration
	// RetryInitialGrant re-attempts a failed initial grant on later account
	// fetches instead of leaving the wallet permanently unfunded.
	RetryInitialGrant bool
}

// Config captures application runtime configuration loaded from environment
// variables. A .env file is honored when present.
type Config struct {
	AppName          string
	Env              string
	Port             string
	LogLevel         string
	DatabaseURL      string
	RedisURL         string
	MigrationsPath   string
	JWTSecret        string
	JWTIssuer        string
	ShutdownPeriod   time.Duration
	IdempotencyTTL   time.Duration
	BackendTimeout   time.Duration
	ProvisionLockTTL time.Duration
	Faucet           FaucetPolicy
}

// Load reads configuration values from the environment and populates a Config
// instance. Outside of development the database, redis and JWT secret are
// mandatory.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppName:          getEnv("APP_NAME", defaultAppName),
		Env:              strings.ToLower(getEnv("APP_ENV", defaultAppEnv)),
		Port:             getEnv("PORT", defaultPort),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		MigrationsPath:   getEnv("MIGRATIONS_PATH", defaultMigrationsPath),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTIssuer:        getEnv("JWT_ISSUER", "custodia-identity"),
		ShutdownPeriod:   defaultShutdownDelay,
		IdempotencyTTL:   defaultIdempotencyTTL,
		BackendTimeout:   defaultBackendTimeout,
		ProvisionLockTTL: defaultProvisionLockTTL,
		Faucet: FaucetPolicy{
			InitialGrant:       defaultInitialGrant,
			MaxRequestAmount:   defaultMaxRequestAmount,
			MaxTotalAmount:     defaultMaxTotalAmount,
			MinRequestInterval: defaultMinRequestInterval,
		},
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.BackendTimeout, err = durationEnv("WALLET_BACKEND_TIMEOUT", cfg.BackendTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ProvisionLockTTL, err = durationEnv("PROVISION_LOCK_TTL", cfg.ProvisionLockTTL); err != nil {
		return Config{}, err
	}

	if cfg.Faucet.InitialGrant, err = int64Env("FAUCET_INITIAL_AMOUNT", cfg.Faucet.InitialGrant); err != nil {
		return Config{}, err
	}
	if cfg.Faucet.MaxRequestAmount, err = int64Env("FAUCET_MAX_REQUEST_AMOUNT", cfg.Faucet.MaxRequestAmount); err != nil {
		return Config{}, err
	}
	if cfg.Faucet.MaxTotalAmount, err = int64Env("FAUCET_MAX_TOTAL_AMOUNT", cfg.Faucet.MaxTotalAmount); err != nil {
		return Config{}, err
	}
	if cfg.Faucet.MinRequestInterval, err = durationEnv("FAUCET_MIN_REQUEST_INTERVAL", cfg.Faucet.MinRequestInterval); err != nil {
		return Config{}, err
	}
	cfg.Faucet.RetryInitialGrant = boolEnv("FAUCET_RETRY_INITIAL_GRANT")

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set")
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set")
		}
		if cfg.JWTSecret == "" {
			return Config{}, fmt.Errorf("JWT_SECRET must be set")
		}
	}

	return cfg, nil
}

// IsDev reports whether the app runs in a development environment.
func (c Config) IsDev() bool {
	switch c.Env {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func int64Env(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}
