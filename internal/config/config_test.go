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

	assert.Equal(t, 8085, cfg.Server.Port)
	assert.Equal(t, "68", cfg.Scraper.OrgID)
	assert.Equal(t, 5, cfg.Scraper.MaxConcurrency)
	assert.Equal(t, 30*time.Second, cfg.Scraper.NavTimeout)
	assert.Equal(t, 10*time.Second, cfg.Scraper.ResultsTimeout)
	assert.Equal(t, "GSU", cfg.Scraper.ExclusionMarker)
	assert.Contains(t, cfg.Scraper.UserAgent, "DiárioOficialScraper/1.0")
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("SCRAPER_HEADLESS", "false")
	t.Setenv("SCRAPER_NAV_TIMEOUT", "45s")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, http://b.example,")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.False(t, cfg.Scraper.Headless)
	assert.Equal(t, 45*time.Second, cfg.Scraper.NavTimeout)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL, "invalid values fall back to the default")
}

func TestValidate(t *testing.T) {
	t.Setenv("SCRAPER_MAX_CONCURRENCY", "0")
	t.Setenv("SCRAPER_DIAGNOSTICS_SINK", "s3")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCRAPER_MAX_CONCURRENCY")
	assert.Contains(t, err.Error(), "SCRAPER_DIAGNOSTICS_SINK")
}

func TestConnectionStrings(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=d sslmode=disable", db.DSN())

	r := RedisConfig{Host: "cache", Port: 6379, DB: 1}
	assert.Equal(t, "cache:6379", r.Addr())
	assert.Equal(t, "redis://cache:6379/1", r.URL())
}
