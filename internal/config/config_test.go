package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "fs", cfg.Index.Backend)
	assert.Equal(t, "index", cfg.Index.Dir)
	assert.Equal(t, "snapshots", cfg.Store.Bucket)
	assert.Equal(t, 5*time.Minute, cfg.HTTP.Timeout)
	assert.Equal(t, time.Second, cfg.HTTP.MinInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HARVESTER_INDEX_BACKEND", "pg")
	t.Setenv("HARVESTER_INDEX_URL", "postgres://localhost:5432/harvester")
	t.Setenv("HARVESTER_HTTP_TIMEOUT", "30s")
	t.Setenv("HARVESTER_STORE_USE_SSL", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "pg", cfg.Index.Backend)
	assert.Equal(t, "postgres://localhost:5432/harvester", cfg.Index.URL)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.True(t, cfg.Store.UseSSL)
}

func TestLoadRejectsPgBackendWithoutURL(t *testing.T) {
	t.Setenv("HARVESTER_INDEX_BACKEND", "pg")
	t.Setenv("HARVESTER_INDEX_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HARVESTER_INDEX_URL")
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("HARVESTER_INDEX_BACKEND", "etcd")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HARVESTER_INDEX_BACKEND")
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(`
# comment
HARVESTER_TEST_A=from-file
HARVESTER_TEST_B="quoted value"
not a pair
`), 0o644))

	t.Setenv("HARVESTER_TEST_A", "")
	t.Setenv("HARVESTER_TEST_B", "")
	_ = os.Unsetenv("HARVESTER_TEST_A")
	_ = os.Unsetenv("HARVESTER_TEST_B")

	LoadEnvFile(path)
	assert.Equal(t, "from-file", os.Getenv("HARVESTER_TEST_A"))
	assert.Equal(t, "quoted value", os.Getenv("HARVESTER_TEST_B"))
}

func TestLoadEnvFileDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("HARVESTER_TEST_C=file\n"), 0o644))

	t.Setenv("HARVESTER_TEST_C", "env")
	LoadEnvFile(path)
	assert.Equal(t, "env", os.Getenv("HARVESTER_TEST_C"))
}

func TestLoadEnvFileMissingIsNoop(t *testing.T) {
	LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
}
