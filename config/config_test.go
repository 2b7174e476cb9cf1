package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/finrecon/config"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "finrecon.db", cfg.DBPath)
	assert.Equal(t, "AUD", cfg.Currency)
	assert.Equal(t, "650", cfg.Categorization.SoftwarePrefix)
	assert.Equal(t, "660", cfg.Categorization.HardwarePrefix)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finrecon.toml")
	content := `
port = 9090
currency = "USD"

[categorization]
software_prefix = "651"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, "651", cfg.Categorization.SoftwarePrefix)
	// Untouched keys keep their defaults.
	assert.Equal(t, "finrecon.db", cfg.DBPath)
	assert.Equal(t, "660", cfg.Categorization.HardwarePrefix)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("port = =\n"), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}
