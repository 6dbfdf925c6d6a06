package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, Production, cfg.Environment)
	assert.Equal(t, uint32(1000), cfg.Sheet.Rows)
	assert.Equal(t, uint32(26), cfg.Sheet.Columns)
	assert.Equal(t, time.Second, cfg.Refresh.Interval)
	assert.Equal(t, DriverFile, cfg.Store.Driver)
	assert.True(t, cfg.AutoSave.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Store.Driver, cfg.Store.Driver)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
environment: development
log:
  level: debug
  file: /tmp/gridcalc.log
sheet:
  rows: 200
  columns: 10
refresh:
  interval: 250ms
store:
  driver: sqlite
  path: /var/lib/gridcalc
  redis:
    read_timeout: 1s
autosave:
  enabled: false
  delay: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Development, cfg.Environment)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/gridcalc.log", cfg.Log.File)
	assert.Equal(t, uint32(200), cfg.Sheet.Rows)
	assert.Equal(t, uint32(10), cfg.Sheet.Columns)
	assert.Equal(t, 250*time.Millisecond, cfg.Refresh.Interval)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, time.Second, cfg.Store.Redis.ReadTimeout)
	assert.Equal(t, 3*time.Second, cfg.Store.Redis.WriteTimeout, "unset keys keep defaults")
	assert.False(t, cfg.AutoSave.Enabled)
	assert.Equal(t, 5*time.Second, cfg.AutoSave.Delay)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: sqlite\n"), 0644))

	t.Setenv("GRIDCALC_STORE_DRIVER", "redis")
	t.Setenv("GRIDCALC_STORE_REDIS_URL", "redis://cache:6379/2")
	t.Setenv("GRIDCALC_STORE_REDIS_READ_TIMEOUT", "750ms")
	t.Setenv("GRIDCALC_STORE_REDIS_TTL", "24h")
	t.Setenv("GRIDCALC_REFRESH_INTERVAL", "2s")
	t.Setenv("GRIDCALC_AUTOSAVE_ENABLED", "false")
	t.Setenv("GRIDCALC_SHEET_COLUMNS", "8")
	t.Setenv("GRIDCALC_ENVIRONMENT", "development")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverRedis, cfg.Store.Driver)
	assert.Equal(t, "redis://cache:6379/2", cfg.Store.Redis.URL)
	assert.Equal(t, 750*time.Millisecond, cfg.Store.Redis.ReadTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Store.Redis.TTL)
	assert.Equal(t, 2*time.Second, cfg.Refresh.Interval)
	assert.False(t, cfg.AutoSave.Enabled)
	assert.Equal(t, uint32(8), cfg.Sheet.Columns)
	assert.Equal(t, Development, cfg.Environment)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sheet:\n  columns: 40\n"), 0644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "between 1 and 26")

	require.NoError(t, os.WriteFile(path, []byte("sheet: [unclosed"), 0644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "failed to parse config")

	t.Setenv("GRIDCALC_REFRESH_INTERVAL", "soon")
	_, err = Load("")
	assert.ErrorContains(t, err, "environment config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"environment", func(c *Config) { c.Environment = "staging" }, "invalid environment"},
		{"zero rows", func(c *Config) { c.Sheet.Rows = 0 }, "rows must be at least 1"},
		{"zero columns", func(c *Config) { c.Sheet.Columns = 0 }, "between 1 and 26"},
		{"wide", func(c *Config) { c.Sheet.Columns = 27 }, "between 1 and 26"},
		{"interval", func(c *Config) { c.Refresh.Interval = 0 }, "refresh interval"},
		{"driver", func(c *Config) { c.Store.Driver = "postgres" }, "invalid store driver"},
		{"path", func(c *Config) { c.Store.Path = "" }, "store path is required"},
		{"redis url", func(c *Config) {
			c.Store.Driver = DriverRedis
			c.Store.Redis.URL = ""
		}, "redis url is required"},
		{"delay", func(c *Config) { c.AutoSave.Delay = -time.Second }, "autosave delay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Store.Driver = DriverSQLite
	cfg.Refresh.Interval = 1500 * time.Millisecond
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, "flag.yaml", ResolvePath("flag.yaml"))

	t.Setenv(PathEnv, "env.yaml")
	assert.Equal(t, "env.yaml", ResolvePath(""))

	t.Setenv(PathEnv, "")
	assert.Equal(t, filepath.Join(DefaultDataDir(), "config.yaml"), ResolvePath(""))
}
