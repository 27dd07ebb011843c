package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photocull.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	homedir.DisableCache = true
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)
	d := DefaultConfig()
	assert.Equal(t, d.Capacity, cfg.Capacity)
	assert.Equal(t, d.Extensions, cfg.Extensions)
	assert.Equal(t, 30*time.Second, cfg.FailureTTL)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.Equal(t, ".photocull", filepath.Base(cfg.DataDir))
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
capacity: 10
workers: 4
extensions: [".jpg", ".png"]
failure_ttl: 5s
log_level: debug
data_dir: /var/lib/photocull
`)
	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Capacity)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, []string{".jpg", ".png"}, cfg.Extensions)
	assert.Equal(t, 5*time.Second, cfg.FailureTTL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/var/lib/photocull", cfg.DataDir)
	assert.Equal(t, []string{".RAF"}, cfg.Sidecars)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "capacity: 10\n")
	t.Setenv("PHOTOCULL_CAPACITY", "3")

	cfg, err := Load(NewViper(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Capacity)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, "capacity: 0\n")
	_, err := Load(NewViper(), path)
	assert.ErrorContains(t, err, "invalid capacity")
}

func TestValidate(t *testing.T) {
	c := DefaultConfig()
	require.NoError(t, Validate(c))

	c.LogLevel = "loud"
	assert.ErrorContains(t, Validate(c), "invalid log level")

	c = DefaultConfig()
	c.Workers = 0
	assert.Error(t, Validate(c))

	c = DefaultConfig()
	c.Extensions = nil
	assert.Error(t, Validate(c))
}
