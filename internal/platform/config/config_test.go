package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CERTLEDGER_ENV", "local")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, DevSigningKey, cfg.JWTSigningKey)
	assert.Equal(t, "http://localhost:8080", cfg.PublicBaseURL)
	assert.Equal(t, "certledger.credential.events", cfg.Topic)
	assert.Equal(t, 2*time.Minute, cfg.Ledger.CallTimeout)
	assert.Equal(t, 5*time.Second, cfg.Ledger.ReadTimeout)
	assert.Equal(t, 3*time.Second, cfg.RedisConfig.ReadTimeout)
	assert.Equal(t, 30*time.Minute, cfg.AbandonAfter)
	assert.True(t, cfg.AutoMigrate)
	assert.Empty(t, cfg.Database.URL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CERTLEDGER_ADDR", ":9090")
	t.Setenv("CERTLEDGER_PUBLIC_BASE_URL", "https://verify.example.org/ ")
	t.Setenv("CERTLEDGER_DATABASE_URL", "postgres://u:p@db:5432/certledger")
	t.Setenv("CERTLEDGER_REDIS_URL", "redis://cache:6379/0")
	t.Setenv("CERTLEDGER_TRUSTED_PROXIES", "10.0.0.0/8,192.168.0.0/16")
	t.Setenv("CERTLEDGER_LEDGER_READ_TIMEOUT", "750ms")
	t.Setenv("CERTLEDGER_RECONCILE_INTERVAL", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "https://verify.example.org", cfg.PublicBaseURL)
	assert.Equal(t, "postgres://u:p@db:5432/certledger", cfg.Database.URL)
	assert.Equal(t, "redis://cache:6379/0", cfg.RedisConfig.URL)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.0.0/16"}, cfg.TrustedProxies)
	assert.Equal(t, 750*time.Millisecond, cfg.Ledger.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Interval)
}

func TestLoadRejectsUnsafeProduction(t *testing.T) {
	t.Run("missing signing key", func(t *testing.T) {
		t.Setenv("CERTLEDGER_ENV", "production")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("dev signing key", func(t *testing.T) {
		t.Setenv("CERTLEDGER_ENV", "prod")
		t.Setenv("CERTLEDGER_JWT_SIGNING_KEY", DevSigningKey)
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("real key", func(t *testing.T) {
		t.Setenv("CERTLEDGER_ENV", "production")
		t.Setenv("CERTLEDGER_JWT_SIGNING_KEY", "a-long-random-production-secret")
		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.IsProduction())
	})
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("CERTLEDGER_LEDGER_CALL_TIMEOUT", "soon")
	_, err := Load()
	require.Error(t, err)
}
