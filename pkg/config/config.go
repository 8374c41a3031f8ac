package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	xdgAppName = "tripcal"
	configFile = "config.toml"
	dataFile   = "data.json"
	sqliteFile = "tripcal.db"
)

// Store drivers.
const (
	DriverFile      = "file"
	DriverSQLite    = "sqlite3"
	DriverPostgres  = "postgres"
	DriverDatastore = "datastore"
)

const (
	DefaultCalendar      = "Trips"
	DefaultAutosaveDelay = "1s"
	DefaultAddr          = "127.0.0.1:8080"
)

type StoreConfig struct {
	Driver    string `toml:"driver"`
	DSN       string `toml:"dsn,omitempty"`
	Path      string `toml:"path,omitempty"`
	ProjectID string `toml:"project_id,omitempty"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type Config struct {
	Owner         string       `toml:"owner"`
	Calendar      string       `toml:"calendar"`
	DarkMode      bool         `toml:"dark_mode"`
	LogLevel      string       `toml:"log_level"`
	LogFormat     string       `toml:"log_format,omitempty"`
	AutosaveDelay string       `toml:"autosave_delay"`
	Store         StoreConfig  `toml:"store"`
	Server        ServerConfig `toml:"server"`

	// Path is where the config was read from and is written back to.
	Path string `toml:"-"`
}

// Dir is the per-user config directory.
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, xdgAppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

// GetConfigPath honours TRIPCAL_CONFIG before the default location.
func GetConfigPath() (string, error) {
	if p := os.Getenv("TRIPCAL_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads .env from the working directory, then the config file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads the config at path. A missing file yields defaults. When
// no owner is configured anywhere a new one is generated and written back,
// so the id stays stable across runs.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{Path: path}
	if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	if cfg.Owner == "" && os.Getenv("TRIPCAL_OWNER") == "" {
		cfg.Owner = uuid.NewString()
		if err := Save(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.Calendar == "" {
		c.Calendar = DefaultCalendar
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.AutosaveDelay == "" {
		c.AutosaveDelay = DefaultAutosaveDelay
	}
	if c.Store.Driver == "" {
		c.Store.Driver = DriverFile
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Store.Path == "" || (c.Store.Driver == DriverSQLite && c.Store.DSN == "") {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if c.Store.Path == "" {
			c.Store.Path = filepath.Join(dir, dataFile)
		}
		if c.Store.Driver == DriverSQLite && c.Store.DSN == "" {
			c.Store.DSN = filepath.Join(dir, sqliteFile)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("TRIPCAL_OWNER", &c.Owner)
	setString("TRIPCAL_CALENDAR", &c.Calendar)
	setString("TRIPCAL_LOG_LEVEL", &c.LogLevel)
	setString("TRIPCAL_LOG_FORMAT", &c.LogFormat)
	setString("TRIPCAL_AUTOSAVE_DELAY", &c.AutosaveDelay)
	setString("TRIPCAL_STORE_DRIVER", &c.Store.Driver)
	setString("TRIPCAL_STORE_DSN", &c.Store.DSN)
	setString("TRIPCAL_STORE_PATH", &c.Store.Path)
	setString("GOOGLE_CLOUD_PROJECT", &c.Store.ProjectID)
	setString("TRIPCAL_PROJECT_ID", &c.Store.ProjectID)
	setString("TRIPCAL_ADDR", &c.Server.Addr)

	if v := os.Getenv("TRIPCAL_DARK_MODE"); v != "" {
		dark, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TRIPCAL_DARK_MODE: %w", err)
		}
		c.DarkMode = dark
	}
	return c.Validate()
}

// Validate checks values that would otherwise fail much later.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverFile, DriverSQLite:
	case DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store: postgres needs a dsn")
		}
	case DriverDatastore:
		if c.Store.ProjectID == "" {
			return fmt.Errorf("store: datastore needs a project_id")
		}
	default:
		return fmt.Errorf("store: unknown driver %q", c.Store.Driver)
	}
	if _, err := c.Delay(); err != nil {
		return err
	}
	return nil
}

// Delay is the autosave quiet period.
func (c *Config) Delay() (time.Duration, error) {
	d, err := time.ParseDuration(c.AutosaveDelay)
	if err != nil {
		return 0, fmt.Errorf("autosave_delay: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("autosave_delay must be positive, got %s", c.AutosaveDelay)
	}
	return d, nil
}

// Save writes cfg to cfg.Path, or to the default location when unset.
func Save(cfg *Config) error {
	path := cfg.Path
	if path == "" {
		var err error
		if path, err = GetConfigPath(); err != nil {
			return err
		}
		cfg.Path = path
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// SetDarkMode persists the theme preference.
func SetDarkMode(cfg *Config, dark bool) error {
	cfg.DarkMode = dark
	return Save(cfg)
}
