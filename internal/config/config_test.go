package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("NODE_ENV", "")
	t.Setenv("SERVER_URL", "https://commonwealth.im/")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.AppEnv)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "https://commonwealth.im", cfg.ServerURL)
	assert.Equal(t, 10*time.Second, cfg.WebhookTimeout)
	assert.Equal(t, 500, cfg.DigestPageSize)
	assert.Equal(t, 64, cfg.DeliveryQueueSize)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoad_NodeEnvFallback(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("NODE_ENV", "Production")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("INTERNAL_TOKEN", "i")
	t.Setenv("POSTMARK_SERVER_TOKEN", "p")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.AppEnv)
	assert.True(t, cfg.IsProduction())
}

func TestLoad_ProductionRequiresSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("INTERNAL_TOKEN", "i")
	t.Setenv("POSTMARK_SERVER_TOKEN", "p")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	t.Setenv("JWT_SECRET", "s")
	t.Setenv("POSTMARK_SERVER_TOKEN", "")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTMARK_SERVER_TOKEN")
}

func TestLoad_InvalidNumbers(t *testing.T) {
	t.Setenv("APP_ENV", "dev")

	t.Setenv("WEBHOOK_TIMEOUT", "soon")
	_, err := Load()
	assert.ErrorContains(t, err, "WEBHOOK_TIMEOUT")

	t.Setenv("WEBHOOK_TIMEOUT", "5s")
	t.Setenv("DIGEST_PAGE_SIZE", "0")
	_, err = Load()
	assert.ErrorContains(t, err, "DIGEST_PAGE_SIZE must be > 0")
}
