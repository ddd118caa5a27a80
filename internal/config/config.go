package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
	DBConnectAttempts  int `env:"DB_CONNECT_ATTEMPTS" envDefault:"30"`

	LedgerMaxRetries int `env:"LEDGER_MAX_RETRIES" envDefault:"3"`

	AlertWebhookURL   string        `env:"ALERT_WEBHOOK_URL" envDefault:"http://alert-sink:8081/alerts"`
	AlertPollInterval time.Duration `env:"ALERT_POLL_INTERVAL" envDefault:"5s"`
	AlertBatchSize    int           `env:"ALERT_BATCH_SIZE" envDefault:"10"`
	AlertMaxAttempts  int           `env:"ALERT_MAX_ATTEMPTS" envDefault:"5"`

	IdempotencyStore string `env:"IDEMPOTENCY_STORE" envDefault:"postgres"`
	RedisURL         string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.IdempotencyStore {
	case "postgres", "redis":
	default:
		return fmt.Errorf("IDEMPOTENCY_STORE must be postgres or redis, got %q", c.IdempotencyStore)
	}
	if c.LedgerMaxRetries < 1 {
		return fmt.Errorf("LEDGER_MAX_RETRIES must be at least 1")
	}
	if c.AlertMaxAttempts < 1 {
		return fmt.Errorf("ALERT_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}
