package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 720*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, devSigningKey, cfg.JWTSigningKey)
}

func TestLoadRejectsMissingKeyInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SIGNING_KEY", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsAccessTTLLongerThanRefresh(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "48h")
	t.Setenv("REFRESH_TOKEN_TTL", "24h")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Setenv("ICEGRID_ADDR", ":9999")
	t.Setenv("ACCESS_TOKEN_TTL", "15m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
}
