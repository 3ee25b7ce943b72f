package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every config source at empty temp directories.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("FEEDSEARCH_HOME", t.TempDir())
	return t.TempDir()
}

func TestNewConfig_Defaults(t *testing.T) {
	isolate(t)
	cfg := NewConfig()

	assert.Equal(t, 1024, cfg.Index.MaxClauseCount)
	assert.True(t, cfg.Index.FlushOnShutdown)
	assert.Equal(t, DriverSQLite, cfg.Queue.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, time.Duration(0), cfg.FlushIntervalDuration())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_LayersUserProjectAndEnv(t *testing.T) {
	// Given: a user config, a project config and an env override
	projectDir := isolate(t)
	userPath := GetUserConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(userPath), 0o755))
	require.NoError(t, os.WriteFile(userPath, []byte(`
index:
  max_clause_count: 64
  flush_batch_size: 10
log:
  level: debug
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ProjectConfigName), []byte(`
index:
  flush_batch_size: 20
  flush_on_shutdown: false
  flush_interval: 2s
`), 0o644))
	t.Setenv("FEEDSEARCH_QUEUE_DRIVER", "sqlite3")

	// When: loading
	cfg, err := Load(projectDir)
	require.NoError(t, err)

	// Then: each layer wins over the one below it, untouched keys survive
	assert.Equal(t, 64, cfg.Index.MaxClauseCount)
	assert.Equal(t, 20, cfg.Index.FlushBatchSize)
	assert.False(t, cfg.Index.FlushOnShutdown)
	assert.Equal(t, 2*time.Second, cfg.FlushIntervalDuration())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, DriverSQLite3, cfg.Queue.Driver)
	assert.Equal(t, 3, cfg.Index.OpenRetries)
}

func TestLoad_EnvIntegers(t *testing.T) {
	dir := isolate(t)
	t.Setenv("FEEDSEARCH_MAX_CLAUSE_COUNT", "8")
	t.Setenv("FEEDSEARCH_DATA_DIR", "/var/lib/feedsearch")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Index.MaxClauseCount)
	assert.Equal(t, "/var/lib/feedsearch", cfg.Paths.DataDir)
}

func TestLoad_RejectsBadEnvValue(t *testing.T) {
	dir := isolate(t)
	t.Setenv("FEEDSEARCH_REINDEX_WORKERS", "many")

	_, err := Load(dir)
	assert.ErrorContains(t, err, "FEEDSEARCH_REINDEX_WORKERS")
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName), []byte("index: [oops"), 0o644))

	_, err := Load(dir)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestValidate(t *testing.T) {
	isolate(t)
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"clause ceiling too low", func(c *Config) { c.Index.MaxClauseCount = 1 }, "max_clause_count"},
		{"zero batch", func(c *Config) { c.Index.FlushBatchSize = 0 }, "flush_batch_size"},
		{"bad interval", func(c *Config) { c.Index.FlushInterval = "soon" }, "flush_interval"},
		{"unknown driver", func(c *Config) { c.Queue.Driver = "postgres" }, "queue.driver"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"empty data dir", func(c *Config) { c.Paths.DataDir = "" }, "data_dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	dir := isolate(t)
	cfg := NewConfig()
	cfg.Index.MaxClauseCount = 16
	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ProjectConfigName)))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 16, loaded.Index.MaxClauseCount)
}
