package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())

		cfg, v, err := Load("")
		require.NoError(t, err)
		require.NotNil(t, v)

		assert.Equal(t, 3, cfg.Gateway.MaxRetries)
		assert.Equal(t, time.Second, cfg.Gateway.RetryWait)
		assert.ElementsMatch(t, DefaultOrigins, cfg.Gateway.Origins)
		assert.Equal(t, "voiceRu", cfg.Player.PreferredType)
		assert.Equal(t, "https://shikimori.one", cfg.API.RatingURL)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := []byte("gateway:\n  max_retries: 7\nplayer:\n  preferred_type: subRu\n")
		require.NoError(t, os.WriteFile(path, content, 0644))

		cfg, _, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.Gateway.MaxRetries)
		assert.Equal(t, "subRu", cfg.Player.PreferredType)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("SHIKIPLAY_PLAYER_LOCALE", "en")

		cfg, _, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "en", cfg.Player.Locale)
	})
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefault(path))

	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Gateway.MaxRetries)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestLevelColorHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewLevelColorHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	logger.Debug("hidden")
	logger.With("component", "gateway").Info("visible", "attempt", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=visible")
	assert.Contains(t, out, "component=gateway")
	assert.Contains(t, out, "attempt=2")
}
