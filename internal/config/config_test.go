package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://test@localhost/retainer")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 3, cfg.LedgerMaxRetries)
	assert.Equal(t, 5*time.Second, cfg.AlertPollInterval)
	assert.Equal(t, "postgres", cfg.IdempotencyStore)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigins)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_RejectsUnknownIdempotencyStore(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://test@localhost/retainer")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("IDEMPOTENCY_STORE", "memcached")

	_, err := Load()
	require.ErrorContains(t, err, "IDEMPOTENCY_STORE")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://test@localhost/retainer")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("LEDGER_MAX_RETRIES", "7")
	t.Setenv("ALERT_POLL_INTERVAL", "250ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.LedgerMaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.AlertPollInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}
