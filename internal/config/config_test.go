package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadForTestsAppliesDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL": "postgres://localhost:5432/apotek?sslmode=disable",
		"REDIS_URL":    "redis://localhost:6379/0",
		"PORT":         "",
		"APP_ENV":      "",
	})
	require.NoError(t, err)
	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "apotek", cfg.MetricsNamespace)
	require.Equal(t, 5*time.Minute, cfg.AnalyticsCacheTTL)
	require.Equal(t, 10*time.Second, cfg.BatchLockTTL)
	require.Equal(t, 90, cfg.ExpiryAlertDays)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"DATABASE_URL": "",
		"REDIS_URL":    "redis://localhost:6379/0",
	})
	require.Error(t, err)
}

func TestParseHelpers(t *testing.T) {
	require.Equal(t, 30*time.Second, parseDuration("30s", "1m"))
	require.Equal(t, time.Minute, parseDuration("bogus", "1m"))
	require.Equal(t, 7, parseInt("7", 3))
	require.Equal(t, 3, parseInt("-1", 3))
	require.Equal(t, []string{"a", "b"}, splitAndTrim(" a , b ,"))
}
