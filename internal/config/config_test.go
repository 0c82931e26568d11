package config_test

import (
	"testing"
	"time"

	"github.com/facilitaservicos/authcore/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "authcore", c.AppName)
	assert.Equal(t, 15*time.Minute, c.AccessTokenTTL)
	assert.Equal(t, 720*time.Hour, c.RefreshTokenTTL)
	assert.Equal(t, time.Hour, c.KeyRotationGrace)
	assert.Equal(t, 5, c.LockoutThreshold)
	assert.Equal(t, 5*time.Minute, c.OneTimeCodeTTL)
	assert.Equal(t, 70, c.PasswordMinScore)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("LOCKOUT_THRESHOLD", "3")
	t.Setenv("REDIS_ADDR", "redis:6380")

	c, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, c.AccessTokenTTL)
	assert.Equal(t, 3, c.LockoutThreshold)
	assert.Equal(t, "redis:6380", c.RedisAddr)
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	t.Setenv("REFRESH_TOKEN_TTL", "not-a-duration")

	_, err := config.Load()
	require.Error(t, err)
}
