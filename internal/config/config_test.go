package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("SHOPIFY_API_SECRET", "")
	t.Setenv("SSM_PARAMETER_PREFIX", "")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("SSM_PARAMETER_PREFIX", "/voicero/prod/")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/voicero/prod", cfg.SSMParameterPrefix)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SHOPIFY_API_SECRET", "shh")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "2025-01", cfg.Shopify.APIVersion)
	assert.Equal(t, 3, cfg.Shopify.MaxRetries)
	assert.False(t, cfg.Shopify.ProxySignatureRequired)
	assert.Equal(t, 5, cfg.RateLimitRPS)
	assert.Equal(t, 20, cfg.RateLimitBurst)
	assert.Equal(t, "8080", cfg.Port)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SHOPIFY_API_SECRET", " shh ")
	t.Setenv("SHOPIFY_APP_URL", "https://voicero.example.com/")
	t.Setenv("SHOPIFY_PROXY_SIGNATURE_REQUIRED", "true")
	t.Setenv("SHOPIFY_MAX_RETRIES", "not-a-number")
	t.Setenv("SESSIONS_TABLE", "voicero-sessions")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("ENVIRONMENT", "Production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "shh", cfg.Shopify.APISecret)
	assert.Equal(t, "https://voicero.example.com", cfg.Shopify.AppURL)
	assert.True(t, cfg.Shopify.ProxySignatureRequired)
	assert.Equal(t, 3, cfg.Shopify.MaxRetries)
	assert.Equal(t, "voicero-sessions", cfg.Tables.Sessions)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.True(t, cfg.IsProduction())
}
