package faostat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIngestConfigIsValid(t *testing.T) {
	cfg := DefaultIngestConfig()
	require.NoError(t, cfg.Validate())
	assert.NotEmpty(t, cfg.Codes)
	assert.NotEmpty(t, cfg.Categories)
}

func TestAllowed(t *testing.T) {
	cfg := IngestConfig{
		CatalogURL: "http://example.org/catalog.json",
		APIBaseURL: "http://example.org/api",
		Codes:      []string{"qcl", "ei"},
	}
	assert.True(t, cfg.Allowed("qcl"))
	assert.True(t, cfg.Allowed("QCL"))
	assert.False(t, cfg.Allowed("fbs"))
}

func TestLoadIngestConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faostat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
codes:
  - qcl
  - ei
categories:
  - area
`), 0o644))

	cfg, err := LoadIngestConfig(path)
	require.NoError(t, err)

	// Explicit fields replace the defaults, omitted ones keep them.
	assert.Equal(t, []string{"qcl", "ei"}, cfg.Codes)
	assert.Equal(t, []string{"area"}, cfg.Categories)
	assert.Equal(t, DefaultIngestConfig().CatalogURL, cfg.CatalogURL)
}

func TestLoadIngestConfigRejectsBadCodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faostat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("codes:\n  - QCL\n"), 0o644))

	_, err := LoadIngestConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lower-case")
}

func TestLoadIngestConfigMissingFile(t *testing.T) {
	_, err := LoadIngestConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
