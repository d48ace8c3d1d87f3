package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probbbc.yaml")
	err := (&Config{Oracle: OracleConfig{StatisticalTestBound: 0.1}}).Save(path)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.1, cfg.Oracle.StatisticalTestBound)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PROBBBC_PRISM_PATH", "/opt/prism/bin/prism")
	t.Setenv("PROBBBC_DEBUG", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/opt/prism/bin/prism", cfg.Prism.BinaryPath)
	assert.True(t, cfg.Debug)
}
