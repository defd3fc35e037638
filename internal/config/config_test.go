package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	fileName := filepath.Join(dir, "conf.yaml")
	err := os.WriteFile(fileName, []byte(`
name: inventory-processes
server:
  addr: ":9090"
processEngine:
  path: /var/lib/processes
  definitionCacheSize: 10
  definitionCacheTTL: 5m
storage:
  type: bolt
`), 0o600)
	require.NoError(t, err)

	c, err := ReadConfig(fileName)
	require.NoError(t, err)

	assert.Equal(t, "inventory-processes", c.Name)
	assert.Equal(t, ":9090", c.Server.Addr)
	assert.Equal(t, "/var/lib/processes", c.ProcessEngine.Path)
	assert.Equal(t, 10, c.ProcessEngine.DefinitionCacheSize)
	assert.Equal(t, 5*time.Minute, c.ProcessEngine.DefinitionCacheTTL)
	assert.Equal(t, StorageTypeBolt, c.Storage.Type)
	assert.Equal(t, filepath.Join("/var/lib/processes", "instances.db"), c.Storage.BoltPath)
	assert.Equal(t, "en", c.Translation.Language)
}

func TestReadConfigFromEnv(t *testing.T) {
	t.Setenv("PROCESS_ENGINE_PATH", "/tmp/engine")
	t.Setenv("STORAGE_TYPE", "memory")

	c, err := ReadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/engine", c.ProcessEngine.Path)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, 256, c.ProcessEngine.DefinitionCacheSize)
}

func TestValidate(t *testing.T) {
	c := Config{
		Storage:       Storage{Type: "postgres"},
		ProcessEngine: ProcessEngine{Path: "", DefinitionCacheSize: 0},
	}
	err := c.Validate()
	assert.ErrorContains(t, err, "unknown storage type")
	assert.ErrorContains(t, err, "process engine path must be set")
	assert.ErrorContains(t, err, "definition cache size must be positive")
}
