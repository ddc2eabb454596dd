package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gousers/pkg/config"
)

type testConfig struct {
	Name  string `env:"TEST_LOAD_NAME" env-default:"default-name"`
	Count int    `env:"TEST_LOAD_COUNT" env-default:"1"`
}

func TestLoadFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("TEST_LOAD_NAME=from-file\nTEST_LOAD_COUNT=7\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("TEST_LOAD_NAME")
		_ = os.Unsetenv("TEST_LOAD_COUNT")
	})

	cfg, err := config.Load[testConfig](context.Background(), "test", envPath)

	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Name)
	assert.Equal(t, 7, cfg.Count)
}

func TestLoadFallsBackToEnvironment(t *testing.T) {
	t.Setenv("TEST_LOAD_NAME", "from-env")

	cfg, err := config.Load[testConfig](context.Background(), "test", filepath.Join(t.TempDir(), "missing.env"))

	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Name)
	assert.Equal(t, 1, cfg.Count, "defaults should apply to unset variables")
}

func TestLoadInvalidValue(t *testing.T) {
	t.Setenv("TEST_LOAD_COUNT", "not-a-number")

	cfg, err := config.Load[testConfig](context.Background(), "test", "")

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to load configuration")
}
