package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every config variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := append([]string(nil), optional...)
	for k := range defaults {
		keys = append(keys, k)
	}
	for _, k := range keys {
		name := strings.ToUpper(k)
		if old, ok := os.LookupEnv(name); ok {
			t.Cleanup(func() { os.Setenv(name, old) })
		} else {
			t.Cleanup(func() { os.Unsetenv(name) })
		}
		os.Unsetenv(name)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8089, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 30*time.Second, cfg.ToolTimeout)
	assert.Equal(t, 10, cfg.RateLimit)
	assert.Equal(t, "chefAgent", cfg.DefaultAgent)
	assert.Equal(t, 10, cfg.MaxSteps)
	assert.Equal(t, "English", cfg.ReportLanguage)
	assert.Equal(t, "us.anthropic.claude-haiku-4-5-20251001-v1:0", cfg.BedrockModelID)
	assert.Equal(t, "us-west-2", cfg.BedrockRegion)
	assert.Equal(t, 10, cfg.MemoryLastMessages)
	assert.Empty(t, cfg.MemoryDSN)
	assert.Empty(t, cfg.AllowedIPs)
	assert.False(t, cfg.LokiEnabled())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("REQUEST_TIMEOUT", "45s")
	t.Setenv("ALLOWED_IPS", "203.0.113.7, 10.0.0.0/8 ,")
	t.Setenv("GITHUB_TOKEN", "ghp_x")
	t.Setenv("DEFAULT_AGENT", "cdkReportAgent")
	t.Setenv("REPORT_TIMEZONE", "Asia/Tokyo")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"203.0.113.7", "10.0.0.0/8"}, cfg.AllowedIPs)
	assert.Equal(t, "ghp_x", cfg.GitHubToken)
	assert.Equal(t, "cdkReportAgent", cfg.DefaultAgent)
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MAX_STEPS=4\nLOG_LEVEL=debug\n"), 0o600))
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.MaxSteps)
	assert.Equal(t, "warn", cfg.LogLevel, "environment wins over the file")
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"log level", "LOG_LEVEL", "verbose"},
		{"max steps", "MAX_STEPS", "0"},
		{"jwks url", "GATEWAY_JWKS_URL", "not a url"},
		{"timezone", "REPORT_TIMEZONE", "Mars/Olympus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}
