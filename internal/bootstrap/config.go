// Package bootstrap loads service configuration from the environment and
// wires the runtime dependencies.
package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jettyvasavi/banking-system-phase2/internal/breaker"
)

// Config is the full runtime configuration. Zero values fall back to the
// documented defaults; empty MongoURI selects the in-memory ledger and empty
// RabbitURI selects the no-op notifier (local profile).
type Config struct {
	ServerAddress   string
	ShutdownTimeout time.Duration

	AccountServiceURL     string
	AccountServiceTimeout time.Duration

	BreakerFailureThreshold uint32
	BreakerCooldown         time.Duration

	MongoURI      string
	MongoDatabase string

	RabbitURI              string
	NotificationExchange   string
	NotificationRoutingKey string

	LogLevel string
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		ServerAddress:          envOrDefault("SERVER_ADDRESS", ":8082"),
		AccountServiceURL:      os.Getenv("ACCOUNT_SERVICE_URL"),
		MongoURI:               os.Getenv("MONGO_URI"),
		MongoDatabase:          envOrDefault("MONGO_DATABASE", "banking"),
		RabbitURI:              os.Getenv("RABBITMQ_URI"),
		NotificationExchange:   envOrDefault("NOTIFICATION_EXCHANGE", "banking.notifications"),
		NotificationRoutingKey: envOrDefault("NOTIFICATION_ROUTING_KEY", "transactions.notifications"),
		LogLevel:               envOrDefault("LOG_LEVEL", "info"),
	}

	var err error

	if cfg.ShutdownTimeout, err = durationEnv("SHUTDOWN_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}

	if cfg.AccountServiceTimeout, err = durationEnv("ACCOUNT_SERVICE_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}

	if cfg.BreakerCooldown, err = durationEnv("BREAKER_COOLDOWN", breaker.DefaultCooldown); err != nil {
		return Config{}, err
	}

	if cfg.BreakerFailureThreshold, err = uint32Env("BREAKER_FAILURE_THRESHOLD", breaker.DefaultFailureThreshold); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (cfg Config) validate() error {
	if strings.TrimSpace(cfg.AccountServiceURL) == "" {
		return fmt.Errorf("bootstrap: ACCOUNT_SERVICE_URL is required")
	}

	if strings.TrimSpace(cfg.MongoURI) != "" && strings.TrimSpace(cfg.MongoDatabase) == "" {
		return fmt.Errorf("bootstrap: MONGO_DATABASE is required when MONGO_URI is set")
	}

	return nil
}

// BreakerConfig returns the breaker tuning derived from the environment.
func (cfg Config) BreakerConfig() breaker.Config {
	return breaker.Config{
		FailureThreshold: cfg.BreakerFailureThreshold,
		Cooldown:         cfg.BreakerCooldown,
	}
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}

	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("bootstrap: invalid %s %q: %w", key, raw, err)
	}

	return d, nil
}

func uint32Env(key string, def uint32) (uint32, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}

	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bootstrap: invalid %s %q: %w", key, raw, err)
	}

	return uint32(v), nil
}
