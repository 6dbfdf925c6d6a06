package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. GRIDCALC_STORE_DRIVER
const EnvPrefix = "GRIDCALC"

// PathEnv names the variable holding the config file path
const PathEnv = "GRIDCALC_CONFIG"

// Environment selects logging defaults
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// store drivers
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Drivers lists the supported store drivers
var Drivers = []string{DriverFile, DriverSQLite, DriverRedis}

// Config holds all gridcalc configuration
type Config struct {
	Environment Environment `yaml:"environment"`
	Log         Log         `yaml:"log"`
	Sheet       Sheet       `yaml:"sheet"`
	Refresh     Refresh     `yaml:"refresh"`
	Store       Store       `yaml:"store"`
	AutoSave    AutoSave    `yaml:"autosave" envconfig:"AUTOSAVE"`
}

// Log configures the zap logger
type Log struct {
	Level string `yaml:"level"`
	// File receives log output when set. the TUI owns stdout so it should
	// always log to a file.
	File string `yaml:"file"`
}

// Sheet sets the extents of new sheets
type Sheet struct {
	Rows    uint32 `yaml:"rows"`
	Columns uint32 `yaml:"columns"`
}

// Refresh configures the volatile cell ticker
type Refresh struct {
	Interval time.Duration `yaml:"interval"`
}

// Store selects and configures the workbook store
type Store struct {
	Driver string `yaml:"driver"`
	// Path is the directory for the file driver and the directory holding
	// gridcalc.db for the sqlite driver
	Path  string `yaml:"path"`
	Redis Redis  `yaml:"redis"`
}

// Redis configures the redis driver
type Redis struct {
	URL          string        `yaml:"url"`
	ReadTimeout  time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout time.Duration `yaml:"write_timeout" split_words:"true"`
	DialTimeout  time.Duration `yaml:"dial_timeout" split_words:"true"`
	TTL          time.Duration `yaml:"ttl"` // zero keeps workbooks forever
}

// AutoSave configures debounced saving from the TUI
type AutoSave struct {
	Enabled bool          `yaml:"enabled"`
	Delay   time.Duration `yaml:"delay"`
}

// DefaultDataDir is where workbooks live unless configured otherwise
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gridcalc"
	}
	return filepath.Join(home, ".gridcalc")
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Environment: Production,
		Log: Log{
			Level: "info",
		},
		Sheet: Sheet{
			Rows:    1000,
			Columns: 26,
		},
		Refresh: Refresh{
			Interval: time.Second,
		},
		Store: Store{
			Driver: DriverFile,
			Path:   filepath.Join(DefaultDataDir(), "workbooks"),
			Redis: Redis{
				URL:          "redis://localhost:6379/0",
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
				DialTimeout:  5 * time.Second,
			},
		},
		AutoSave: AutoSave{
			Enabled: true,
			Delay:   2 * time.Second,
		},
	}
}

// Load layers the YAML file at path (if any) and GRIDCALC_* environment
// variables over the defaults, then validates the result. a missing file
// is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolvePath returns flagPath, falling back to GRIDCALC_CONFIG and then
// config.yaml in the data directory
func ResolvePath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if envPath := os.Getenv(PathEnv); envPath != "" {
		return envPath
	}
	return filepath.Join(DefaultDataDir(), "config.yaml")
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Environment {
	case Development, Production:
	default:
		return fmt.Errorf("invalid environment: %q (valid: %s, %s)", c.Environment, Development, Production)
	}
	if c.Sheet.Rows < 1 {
		return fmt.Errorf("sheet rows must be at least 1, got %d", c.Sheet.Rows)
	}
	if c.Sheet.Columns < 1 || c.Sheet.Columns > 26 {
		return fmt.Errorf("sheet columns must be between 1 and 26, got %d", c.Sheet.Columns)
	}
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", c.Refresh.Interval)
	}
	if !slices.Contains(Drivers, c.Store.Driver) {
		return fmt.Errorf("invalid store driver: %s (valid: %v)", c.Store.Driver, Drivers)
	}
	if c.Store.Driver != DriverRedis && c.Store.Path == "" {
		return fmt.Errorf("store path is required for the %s driver", c.Store.Driver)
	}
	if c.Store.Driver == DriverRedis && c.Store.Redis.URL == "" {
		return fmt.Errorf("store redis url is required for the redis driver")
	}
	if c.AutoSave.Enabled && c.AutoSave.Delay < 0 {
		return fmt.Errorf("autosave delay cannot be negative, got %s", c.AutoSave.Delay)
	}
	return nil
}
