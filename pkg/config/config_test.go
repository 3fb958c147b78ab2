package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapConfigSource is a test double backed by a plain map.
type mapConfigSource map[string]string

func (m mapConfigSource) Get(key string) (string, bool) {
	val, ok := m[key]
	return val, ok
}

func (m mapConfigSource) GetWithDefault(key, defaultValue string) string {
	if val, ok := m[key]; ok {
		return val
	}
	return defaultValue
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(mapConfigSource{})
	require.NoError(t, err)

	assert.Equal(t, "", cfg.StorageConnection)
	assert.Equal(t, "default-container", cfg.StorageContainer)
	assert.True(t, cfg.CreateContainer)
	assert.False(t, cfg.AllowPathStyle)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, float64(0), cfg.RateLimitRPS)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := LoadConfig(mapConfigSource{
		"STORAGE_CONNECTION":       "UseDevelopmentStorage=true",
		"STORAGE_CONTAINER":        "uploads",
		"STORAGE_CREATE_CONTAINER": "false",
		"STORAGE_ALLOW_PATH_STYLE": "true",
		"HTTP_PORT":                "9090",
		"RATE_LIMIT_RPS":           "2.5",
		"RATE_LIMIT_BURST":         "10",
		"LOG_LEVEL":                "debug",
	})
	require.NoError(t, err)

	assert.Equal(t, "UseDevelopmentStorage=true", cfg.StorageConnection)
	assert.Equal(t, "uploads", cfg.StorageContainer)
	assert.False(t, cfg.CreateContainer)
	assert.True(t, cfg.AllowPathStyle)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, 10, cfg.RateLimitBurst)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigMalformedValuesFallBack(t *testing.T) {
	cfg, err := LoadConfig(mapConfigSource{
		"HTTP_PORT":                "not-a-number",
		"RATE_LIMIT_RPS":           "fast",
		"STORAGE_CREATE_CONTAINER": "yes please",
	})
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, float64(0), cfg.RateLimitRPS)
	assert.True(t, cfg.CreateContainer)
}

func TestEnvConfigSource(t *testing.T) {
	t.Setenv("STORAGE_CONTAINER", "env-container")

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "env-container", cfg.StorageContainer)
}

func TestFileConfigSourceYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
STORAGE_CONTAINER: yaml-container
HTTP_PORT: 7070
storage:
  nested: value
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	source, err := NewFileConfigSource(path)
	require.NoError(t, err)

	val, ok := source.Get("STORAGE_CONTAINER")
	assert.True(t, ok)
	assert.Equal(t, "yaml-container", val)

	// Non-string scalars are stringified.
	val, ok = source.Get("HTTP_PORT")
	assert.True(t, ok)
	assert.Equal(t, "7070", val)

	// Dot notation reaches nested keys.
	val, ok = source.Get("storage.nested")
	assert.True(t, ok)
	assert.Equal(t, "value", val)

	_, ok = source.Get("storage.missing")
	assert.False(t, ok)
}

func TestFileConfigSourceJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"LOG_LEVEL": "warn"}`), 0o644))

	source, err := NewFileConfigSource(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", source.GetWithDefault("LOG_LEVEL", "info"))
}

func TestFileConfigSourceRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("a = 1"), 0o644))

	_, err := NewFileConfigSource(path)
	assert.Error(t, err)
}

func TestLoadConfigFromFileEnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("STORAGE_CONTAINER: file-container\nLOG_LEVEL: debug\n"), 0o644))

	t.Setenv("STORAGE_CONTAINER", "env-container")

	cfg, err := LoadConfigFromFile(path)
	require.NoError(t, err)

	// Environment variables take precedence; file fills the rest.
	assert.Equal(t, "env-container", cfg.StorageContainer)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestCompositeConfigSourceOrder(t *testing.T) {
	composite := &CompositeConfigSource{sources: []ConfigSource{
		mapConfigSource{"KEY": "first"},
		mapConfigSource{"KEY": "second", "OTHER": "fallback"},
	}}

	val, ok := composite.Get("KEY")
	assert.True(t, ok)
	assert.Equal(t, "first", val)

	assert.Equal(t, "fallback", composite.GetWithDefault("OTHER", "default"))
	assert.Equal(t, "default", composite.GetWithDefault("ABSENT", "default"))
}
