package config

import (
	"os"
	"path/filepath"
	"testing"

	"hubrelay/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validConfig = `{
	"bot": {"token": "bot-token"},
	"database": {"path": "/tmp/relay.db"},
	"redis": {"addr": "localhost:6379"}
}`

func TestLoadConfig(t *testing.T) {
	t.Run("valid config with defaults applied", func(t *testing.T) {
		cfg, err := LoadConfig(writeConfig(t, validConfig))
		require.NoError(t, err)

		assert.Equal(t, "bot-token", cfg.Bot.Token)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, constants.DefaultRetentionHours, cfg.RetentionHours)
		assert.Equal(t, constants.DefaultSweepSpec, cfg.SweepSpec)
		assert.Equal(t, constants.DefaultNSFWThreshold, cfg.Classifier.Threshold)
		assert.Equal(t, constants.DefaultServerPort, cfg.Server.Port)
		assert.Equal(t, 1.0, cfg.Tracing.SampleRate)
	})

	t.Run("explicit values are kept", func(t *testing.T) {
		cfg, err := LoadConfig(writeConfig(t, `{
			"logLevel": "debug",
			"retentionHours": 48,
			"sweepSpec": "@every 30m",
			"bot": {"token": "bot-token"},
			"database": {"path": "/tmp/relay.db"},
			"redis": {"addr": "localhost:6379"},
			"classifier": {"baseUrl": "http://classifier:8080", "threshold": 0.75}
		}`))
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, 48, cfg.RetentionHours)
		assert.Equal(t, "@every 30m", cfg.SweepSpec)
		assert.Equal(t, 0.75, cfg.Classifier.Threshold)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
		assert.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "{not json"))
		assert.Error(t, err)
	})

	t.Run("missing bot token", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, `{
			"database": {"path": "/tmp/relay.db"},
			"redis": {"addr": "localhost:6379"}
		}`))
		assert.ErrorIs(t, err, ErrMissingBotToken)
	})

	t.Run("missing database path", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, `{
			"bot": {"token": "bot-token"},
			"redis": {"addr": "localhost:6379"}
		}`))
		assert.ErrorIs(t, err, ErrMissingDBPath)
	})

	t.Run("missing redis address", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, `{
			"bot": {"token": "bot-token"},
			"database": {"path": "/tmp/relay.db"}
		}`))
		assert.ErrorIs(t, err, ErrMissingRedisAddr)
	})
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("HUBRELAY_BOT_TOKEN", "env-token")
	t.Setenv("DB_PATH", "/env/relay.db")
	t.Setenv("REDIS_ADDR", "redis.internal:6379")
	t.Setenv("CLASSIFIER_URL", "http://env-classifier")

	cfg, err := LoadConfig(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Bot.Token)
	assert.Equal(t, "/env/relay.db", cfg.Database.Path)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, "http://env-classifier", cfg.Classifier.BaseURL)
}

func TestEnvironmentSatisfiesValidation(t *testing.T) {
	t.Setenv("HUBRELAY_BOT_TOKEN", "env-token")

	// file omits the token entirely; the env var must satisfy validation
	cfg, err := LoadConfig(writeConfig(t, `{
		"database": {"path": "/tmp/relay.db"},
		"redis": {"addr": "localhost:6379"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Bot.Token)
}
