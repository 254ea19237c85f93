package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFrom(lookupMap(map[string]string{"DATABASE_URL": "postgres://localhost/db"}))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 35000, cfg.MaxScansThreshold)
	assert.Equal(t, 190, cfg.BrokerCoverageCount)
	assert.Equal(t, "us", cfg.DefaultCountry)
	assert.False(t, cfg.PremiumEnabled)
	assert.False(t, cfg.BrokerScan.Enabled())
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Parallel()

	_, err := LoadFrom(lookupMap(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DatabaseURL")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "exposure.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_url: postgres://file/db
sync_workers: 4
sync_poll_interval: 2s
log_format: console
broker_scan:
  base_url: https://api.brokerscan.example.com
  api_key: from-file
premium_enabled: true
`), 0o600))

	cfg, err := LoadFrom(lookupMap(map[string]string{
		"EXPOSURE_CONFIG":     path,
		"BROKER_SCAN_API_KEY": "from-env",
		"SYNC_WORKERS":        "8",
	}))
	require.NoError(t, err)
	assert.Equal(t, "postgres://file/db", cfg.DatabaseURL)
	assert.Equal(t, 8, cfg.SyncWorkers)
	assert.Equal(t, 2*time.Second, cfg.SyncPollInterval)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "from-env", cfg.BrokerScan.APIKey)
	assert.True(t, cfg.BrokerScan.Enabled())
	assert.True(t, cfg.PremiumEnabled)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Parallel()

	tests := map[string]map[string]string{
		"bad int":      {"SYNC_WORKERS": "many"},
		"bad bool":     {"PREMIUM_ENABLED": "sometimes"},
		"bad duration": {"PROVIDER_TIMEOUT": "soon"},
		"bad format":   {"LOG_FORMAT": "xml"},
		"bad country":  {"DEFAULT_COUNTRY": "usa"},
		"bad url":      {"LEGACY_SCAN_API_BASE": "not a url"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			env["DATABASE_URL"] = "postgres://localhost/db"
			_, err := LoadFrom(lookupMap(env))
			assert.Error(t, err)
		})
	}
}
