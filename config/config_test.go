package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 10, cfg.MaxConcurrent)
	assert.Equal(t, 200, cfg.RecoveryPageSize)
	assert.Equal(t, "@every 15m", cfg.ReconcileSchedule)
	assert.Equal(t, "log", cfg.CallProvider)
	assert.Equal(t, "http://localhost:8080/audio", cfg.StoragePublicURL)
	assert.Equal(t, "http://localhost:8080/calls/status", cfg.StatusCallbackURL())
}

func TestLoad_EnvFileAndOverrides(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("REMI_TEST_ONLY=1\nQUEUE_DRIVER=memory\nPOLL_INTERVAL=5s\n"), 0644))
	t.Cleanup(func() {
		os.Unsetenv("REMI_TEST_ONLY")
		os.Unsetenv("QUEUE_DRIVER")
		os.Unsetenv("POLL_INTERVAL")
	})
	t.Setenv("MAX_CONCURRENT_DISPATCHES", "3")
	t.Setenv("PUBLIC_BASE_URL", "https://remi.example.com/")

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.QueueDriver)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 3, cfg.MaxConcurrent)
	assert.Equal(t, "https://remi.example.com/calls/status", cfg.StatusCallbackURL())
}

func TestLoad_Invalid(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.env")

	t.Run("duration", func(t *testing.T) {
		t.Setenv("PLACEMENT_TIMEOUT", "soon")
		_, err := Load(missing)
		assert.ErrorContains(t, err, "PLACEMENT_TIMEOUT")
	})
	t.Run("twilio without credentials", func(t *testing.T) {
		t.Setenv("CALL_PROVIDER", "twilio")
		_, err := Load(missing)
		assert.ErrorContains(t, err, "TWILIO_ACCOUNT_SID")
	})
	t.Run("store driver", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "mongo")
		_, err := Load(missing)
		assert.Error(t, err)
	})
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(Config{LogLevel: "debug", LogFormat: "text"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)

	_, err = NewLogger(Config{LogLevel: "loud"})
	assert.Error(t, err)
}
