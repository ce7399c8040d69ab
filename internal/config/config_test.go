package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	for k, v := range map[string]string{
		"DB_USER":               "portal",
		"DB_NAME":               "portal",
		"JWT_SECRET":            "jwt-secret",
		"DISCORD_CLIENT_ID":     "client",
		"DISCORD_CLIENT_SECRET": "client-secret",
		"DISCORD_REDIRECT_URI":  "http://localhost:3002/auth/callback",
		"FRONTEND_URL":          "http://localhost:3000/",
		"API_SECRET":            "integration-secret",
	} {
		t.Setenv(k, v)
	}
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("DISCORD_BOT_TOKEN", "")
	t.Setenv("DISCORD_GUILD_ID", "")
	t.Setenv("JWT_EXPIRES_IN", "")
	t.Setenv("APP_PORT", "")
	t.Setenv("PORT", "")
	t.Setenv("CORS_ORIGINS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "3002", cfg.Port)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, "http://localhost:3000", cfg.FrontendURL)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.False(t, cfg.AutoJoinEnabled())
}

func TestLoadReportsAllMissing(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_SECRET", "")
	t.Setenv("API_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "API_SECRET")
}

func TestLoadAutoJoinAndOrigins(t *testing.T) {
	setRequired(t)
	t.Setenv("DISCORD_BOT_TOKEN", "bot")
	t.Setenv("DISCORD_GUILD_ID", "42")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, https://shop.example.com/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.AutoJoinEnabled())
	assert.Equal(t, []string{"http://localhost:3000", "https://shop.example.com"}, cfg.CORSOrigins)
}

func TestParseTTL(t *testing.T) {
	cases := map[string]time.Duration{
		"7d":  7 * 24 * time.Hour,
		"90m": 90 * time.Minute,
		"24h": 24 * time.Hour,
	}
	for in, want := range cases {
		got, err := parseTTL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "xd", "0d", "-1h", "soon"} {
		_, err := parseTTL(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoadRateLimitConfigDefaults(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "")
	t.Setenv("RATE_LIMIT_TTL", "")
	cfg := LoadRateLimitConfig()
	assert.Equal(t, 100, cfg.Capacity)
	assert.Equal(t, 9*time.Second, cfg.RefillInterval)
	assert.Equal(t, 15*time.Minute, cfg.TTL)
	assert.Equal(t, "ip", cfg.KeyStrategy)
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_ENABLED", "")
	t.Setenv("CACHE_TTL", "-1s")
	cfg := LoadCacheConfig()
	assert.False(t, cfg.Enabled, "cache is opt-in")
	assert.Equal(t, 15*time.Second, cfg.TTL)
	assert.Equal(t, "cache", cfg.Prefix)
	assert.False(t, cfg.IgnoreQuery)

	t.Setenv("CACHE_ENABLED", "true")
	assert.True(t, LoadCacheConfig().Enabled)
}

func TestLoadRedisConfig(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_TLS", "1")
	cfg := LoadRedisConfig()
	assert.Equal(t, "redis.internal:6380", cfg.Addr)
	assert.True(t, cfg.TLS)

	t.Setenv("REDIS_DISABLED", "true")
	assert.Nil(t, NewRedisClient(LoadRedisConfig(), zerolog.Nop()))
}
