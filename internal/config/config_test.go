package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CATALOG_BACKEND", "")
	t.Setenv("MIRROR_BACKEND", "")
	t.Setenv("PAYMENT_TIMEOUT", "")
	t.Setenv("CATALOG_RESUME_ON_START", "")
	t.Setenv("PAYMENT_BASE_CURRENCY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "firestore", cfg.Catalog.Backend)
	assert.Equal(t, "postgres", cfg.Server.MirrorBackend)
	assert.Equal(t, 15*time.Second, cfg.Payments.Timeout)
	assert.Equal(t, "deletedProducts", cfg.Catalog.TombstonesCollection)
	assert.True(t, cfg.Catalog.ResumeOnStart)
	assert.Equal(t, "USD", cfg.Payments.BaseCurrency)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CATALOG_BACKEND", "mongo")
	t.Setenv("CATALOG_CACHE_TTL", "30s")
	t.Setenv("PAYMENT_MAX_RETRIES", "5")
	t.Setenv("CATALOG_SEED_ON_START", "false")
	t.Setenv("PAYMENT_BASE_CURRENCY", "inr")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "https://shop.example, https://admin.example ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mongo", cfg.Catalog.Backend)
	assert.Equal(t, 30*time.Second, cfg.Catalog.CacheTTL)
	assert.Equal(t, 5, cfg.Payments.MaxRetries)
	assert.False(t, cfg.Catalog.SeedOnStart)
	assert.Equal(t, "INR", cfg.Payments.BaseCurrency)
	assert.Equal(t, []string{"https://shop.example", "https://admin.example"}, cfg.Server.AllowedOrigins)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("CATALOG_BACKEND", "dynamo")

	_, err := Load()
	assert.Error(t, err)
}

func TestSecretRefsPointIntoConfig(t *testing.T) {
	cfg := &Config{}
	refs := cfg.SecretRefs()
	*refs[1] = "resolved"

	assert.Equal(t, "resolved", cfg.Payments.PayPal.ClientSecret)
}
