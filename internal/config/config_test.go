package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csvinsight/internal/errors"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "LLM_PROVIDER", "GEMINI_API_KEY", "OPENAI_API_KEY", "LLM_MODEL",
		"LLM_TIMEOUT", "LLM_RETRY_MAX", "CORS_ALLOWED_ORIGINS", "MAX_UPLOAD_MB",
		"MAX_CONCURRENT_ANALYSES", "METRICS_PARALLEL", "PARSE_DATES",
		"HISTORY_DRIVER", "HISTORY_DSN",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, int64(20<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.True(t, cfg.Metrics.Parallel)
	assert.False(t, cfg.Metrics.ParseDates)
	assert.False(t, cfg.History.Enabled())
}

func TestLoadRequiresProviderKey(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))

	t.Setenv("LLM_PROVIDER", "openai")
	_, err = Load()
	assert.ErrorContains(t, err, "OPENAI_API_KEY is required")
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("LLM_MODEL", "gpt-4.1")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("METRICS_PARALLEL", "false")
	t.Setenv("HISTORY_DRIVER", "sqlite")
	t.Setenv("HISTORY_DSN", "file::memory:")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "gpt-4.1", cfg.LLM.Model)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.False(t, cfg.Metrics.Parallel)
	assert.True(t, cfg.History.Enabled())
}

func TestLoadRejectsUnknownHistoryDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "mock")
	t.Setenv("HISTORY_DRIVER", "mysql")
	t.Setenv("HISTORY_DSN", "root@/db")

	_, err := Load()
	assert.ErrorContains(t, err, "HISTORY_DRIVER")
}
