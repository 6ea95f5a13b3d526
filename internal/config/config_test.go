package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEnvOverridesDefaults(t *testing.T) {
	t.Setenv("TRENDS_FEED_URL", "http://example.test/rss")
	t.Setenv("TRENDS_MAX_TRENDS", "12")
	t.Setenv("TRENDS_CRON_ENABLED", "false")
	t.Setenv("TRENDS_AI_PROVIDER", "claude")
	t.Setenv("TRENDS_CLAUDE_API_KEY", "sk-test")
	t.Setenv("TRENDS_HTTP_TIMEOUT", "3s")
	t.Setenv("TRENDS_RETRY_DELAY", "90")
	t.Setenv("TRENDS_LOG_LEVEL", "warn")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	assert.Equal(t, "http://example.test/rss", cfg.FeedURL)
	assert.Equal(t, 12, cfg.MaxTrends)
	assert.False(t, cfg.CronEnabled)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 90*time.Second, cfg.RetryDelay)
	assert.Equal(t, zerolog.WarnLevel, cfg.LogLevel)

	ps := cfg.ProviderSettings()
	assert.Equal(t, ProviderClaude, ps.Name)
	assert.Equal(t, "sk-test", ps.APIKey)
	assert.Equal(t, DefaultClaudeModel, ps.Model)
	assert.Equal(t, DefaultPromptTemplate, ps.Prompt)
}

func TestInvalidEnvValuesKeepDefaults(t *testing.T) {
	t.Setenv("TRENDS_MAX_TRENDS", "many")
	t.Setenv("TRENDS_IMPORT_ENABLED", "perhaps")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	assert.Equal(t, DefaultMaxTrends, cfg.MaxTrends)
	assert.True(t, cfg.ImportEnabled)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.AIProvider = "gemini"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.QueueBackend = "kafka"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.BlobBackend = "s3"
	assert.Error(t, cfg.Validate())
	cfg.S3Bucket = "media"
	assert.NoError(t, cfg.Validate())
}

func TestLoadReadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TRENDS_MIN_TRAFFIC=200\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("TRENDS_MIN_TRAFFIC") })

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.MinTraffic)
}

func TestListenAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServerHost = "127.0.0.1"
	cfg.ServerPort = 9090
	assert.Equal(t, "127.0.0.1:9090", cfg.ListenAddr())
}
