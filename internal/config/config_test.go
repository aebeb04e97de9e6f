package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "pfagent/internal/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, "07:00", cfg.Scheduler.RefreshAt)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 30*time.Second, cfg.PingFed.Timeout)
	assert.Equal(t, "Administrator", cfg.PingFed.Username)
}

func TestLoadFromFile(t *testing.T) {
	path := writeFile(t, "config.yml", `
storage:
  backend: mongo
  mongo:
    uri: mongodb://db.internal:27017
    database: licenses
scheduler:
  refresh_at: "03:30"
`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "mongo", cfg.Storage.Backend)
	assert.Equal(t, "mongodb://db.internal:27017", cfg.Storage.Mongo.URI)
	assert.Equal(t, "licenses", cfg.Storage.Mongo.Database)
	assert.Equal(t, "03:30", cfg.Scheduler.RefreshAt)
}

func TestLoadFileReplacesDefaults(t *testing.T) {
	path := writeFile(t, "config.yml", `
server:
  port: 9443
storage:
  backend: mongo
  mongo:
    database: licenses
scheduler:
  enabled: false
  refresh_at: "03:30"
pingfed:
  timeout: 5s
`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	// Every one of these fields carries an envconfig default; the file
	// value must survive the env pass.
	assert.Equal(t, 9443, cfg.Server.Port)
	assert.Equal(t, "mongo", cfg.Storage.Backend)
	assert.Equal(t, "licenses", cfg.Storage.Mongo.Database)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "03:30", cfg.Scheduler.RefreshAt)
	assert.Equal(t, 5*time.Second, cfg.PingFed.Timeout)

	// Untouched fields keep their defaults.
	assert.Equal(t, "mongodb://localhost:27017", cfg.Storage.Mongo.URI)
	assert.Equal(t, "Administrator", cfg.PingFed.Username)
}

func TestLoadEnvBeatsFile(t *testing.T) {
	t.Setenv("PFAGENT_STORAGE_BACKEND", "file")
	t.Setenv("PFAGENT_SCHEDULER_ENABLED", "true")

	path := writeFile(t, "config.yml", `
storage:
  backend: mongo
scheduler:
  enabled: false
  refresh_at: "03:30"
`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "03:30", cfg.Scheduler.RefreshAt)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PFAGENT_STORAGE_BACKEND", "mongo")
	t.Setenv("PFAGENT_SERVER_PORT", "9090")

	cfg, err := LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, "mongo", cfg.Storage.Backend)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		envKey  string
		envVal  string
	}{
		{"unknown backend", "PFAGENT_STORAGE_BACKEND", "dynamodb"},
		{"bad refresh time", "PFAGENT_SCHEDULER_REFRESH_AT", "25:99"},
		{"bad log level", "PFAGENT_LOGGING_LEVEL", "verbose"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.envKey, tt.envVal)
			_, err := LoadFrom("")
			assert.Error(t, err)
		})
	}
}

func TestLoadInventory(t *testing.T) {
	path := writeFile(t, "inventory.yml", `
instances:
  - id: pf-dev-1
    name: Dev Admin 1
    env: dev
    base_url: http://localhost:8080/pf-dev-1
  - id: pf-prod-2
    name: Prod Admin 2
    env: prod
    base_url: http://localhost:8080/pf-prod-2
`)

	inv, err := LoadInventory(path)
	require.NoError(t, err)
	require.Len(t, inv.Instances, 2)

	inst, err := inv.ByID("pf-prod-2")
	require.NoError(t, err)
	assert.Equal(t, "prod", inst.Env)
	assert.Equal(t, "http://localhost:8080/pf-prod-2", inst.BaseURL)
}

func TestLoadInventoryUnknownInstance(t *testing.T) {
	path := writeFile(t, "inventory.yml", `
instances:
  - id: pf-dev-1
    name: Dev Admin 1
    env: dev
    base_url: http://localhost:8080/pf-dev-1
`)

	inv, err := LoadInventory(path)
	require.NoError(t, err)

	_, err = inv.ByID("pf-ghost")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestLoadInventoryRejectsDuplicates(t *testing.T) {
	path := writeFile(t, "inventory.yml", `
instances:
  - id: pf-dev-1
    name: Dev Admin 1
    env: dev
    base_url: http://localhost:8080/pf-dev-1
  - id: pf-dev-1
    name: Dev Admin 1 again
    env: dev
    base_url: http://localhost:8080/pf-dev-1b
`)

	_, err := LoadInventory(path)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestLoadInventoryMissingFile(t *testing.T) {
	_, err := LoadInventory(filepath.Join(t.TempDir(), "absent.yml"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestLoadInventoryRejectsIncompleteInstance(t *testing.T) {
	path := writeFile(t, "inventory.yml", `
instances:
  - id: pf-dev-1
    env: dev
`)

	_, err := LoadInventory(path)
	assert.Error(t, err)
}
