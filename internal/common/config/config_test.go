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

	assert.Equal(t, "https://transit.yahoo.co.jp", cfg.Site.BaseURL)
	assert.Equal(t, "file", cfg.Cache.Backend)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.False(t, cfg.Database.Enabled())
	assert.True(t, cfg.Logging.Console)
	assert.Empty(t, cfg.Watch.Routes)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "Redis")
	t.Setenv("CACHE_TTL", "10m")
	t.Setenv("SITE_MAX_RETRIES", "5")
	t.Setenv("LOG_CONSOLE", "false")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("WATCH_ROUTES", "渋谷>新宿, 東京 > 品川 ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 5, cfg.Site.MaxRetries)
	assert.False(t, cfg.Logging.Console)
	assert.True(t, cfg.Database.Enabled())
	assert.Contains(t, cfg.Database.ConnectionString(), "host=db.internal")
	assert.Equal(t, []WatchRoute{{From: "渋谷", To: "新宿"}, {From: "東京", To: "品川"}}, cfg.Watch.Routes)
	assert.Equal(t, "東京>品川", cfg.Watch.Routes[1].String())
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown cache backend", "CACHE_BACKEND", "memcached"},
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"bad webhook", "DISCORD_WEBHOOK_URL", "not a url"},
		{"bad watch route", "WATCH_ROUTES", "渋谷"},
		{"negative retries", "SITE_MAX_RETRIES", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestMalformedNumbersFallBack(t *testing.T) {
	t.Setenv("PARSE_WORKERS", "many")
	t.Setenv("CACHE_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Server.ParseWorkers)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
}
