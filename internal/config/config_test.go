package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, 10, cfg.PasswordHashCost)
	assert.Equal(t, 24*time.Hour, cfg.MoveLogTTL)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.CORSAllowOrigins)
}

func TestParseConfigFromEnv(t *testing.T) {
	t.Setenv("MOVELOG_BACKEND", "redis")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("DETECTOR_TIMEOUT", "5s")

	cfg, err := ParseConfig()
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.MoveLogBackend)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowOrigins)
	assert.Equal(t, 5*time.Second, cfg.DetectorTimeout)
}

func TestValidate(t *testing.T) {
	t.Setenv("MOVELOG_BACKEND", "etcd")
	t.Setenv("PASSWORD_HASH_COST", "2")
	_, err := ParseConfig()
	require.Error(t, err)
	assert.ErrorContains(t, err, "MOVELOG_BACKEND")
	assert.ErrorContains(t, err, "PASSWORD_HASH_COST")
}

func TestLoadEnvFile(t *testing.T) {
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORTAL_TEST_VALUE=from-file\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("PORTAL_TEST_VALUE") })
	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("PORTAL_TEST_VALUE"))
}
