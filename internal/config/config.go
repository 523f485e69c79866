// Package config loads the store configuration from defaults, an optional
// config file, .env files and FLEQUIT_* environment variables, in increasing
// order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/varubogu/flequit-sub003/internal/document"
	"github.com/varubogu/flequit-sub003/internal/logging"
	"github.com/varubogu/flequit-sub003/internal/relational"
)

// EnvPrefix prefixes every environment variable, e.g. FLEQUIT_DATA_DIR.
const EnvPrefix = "flequit"

// DatabaseFile is the relational cache file name inside the data directory.
const DatabaseFile = "flequit.db"

// Config is the complete store configuration.
type Config struct {
	DataDir    string           `mapstructure:"data_dir"`
	Document   DocumentConfig   `mapstructure:"document"`
	Relational RelationalConfig `mapstructure:"relational"`
	Log        LogConfig        `mapstructure:"log"`
}

// DocumentConfig configures the CRDT document backend.
type DocumentConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Debounce delays re-projection of externally changed documents.
	Debounce time.Duration `mapstructure:"debounce"`
}

// RelationalConfig configures the relational query cache.
type RelationalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"` // empty means <data_dir>/flequit.db
	Driver  string `mapstructure:"driver"`

	MaxConns       int           `mapstructure:"max_conns"`
	MinConns       int           `mapstructure:"min_conns"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level     string `mapstructure:"level"`
	File      string `mapstructure:"file"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	rel := relational.DefaultOptions("")
	return Config{
		DataDir: defaultDataDir(),
		Document: DocumentConfig{
			Enabled:  true,
			Debounce: document.DefaultWatcherConfig().Debounce,
		},
		Relational: RelationalConfig{
			Enabled:        true,
			Driver:         rel.Driver,
			MaxConns:       rel.MaxConns,
			MinConns:       rel.MinConns,
			ConnectTimeout: rel.ConnectTimeout,
			AcquireTimeout: rel.AcquireTimeout,
			IdleTimeout:    rel.IdleTimeout,
			MaxLifetime:    rel.MaxLifetime,
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "flequit")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flequit"
	}
	return filepath.Join(home, ".local", "share", "flequit")
}

// Validate checks the configuration for values the backends would reject.
func (c Config) Validate() error {
	var errs []error
	if !c.Document.Enabled && !c.Relational.Enabled {
		errs = append(errs, errors.New("at least one of document.enabled and relational.enabled must be true"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if c.Relational.Enabled {
		switch c.Relational.Driver {
		case relational.DriverSQLite, relational.DriverLibSQL:
		default:
			errs = append(errs, fmt.Errorf("relational.driver must be %q or %q (got %q)",
				relational.DriverSQLite, relational.DriverLibSQL, c.Relational.Driver))
		}
		if c.Relational.MaxConns < 1 {
			errs = append(errs, fmt.Errorf("relational.max_conns must be positive (got %d)", c.Relational.MaxConns))
		}
		if c.Relational.MinConns < 0 || c.Relational.MinConns > c.Relational.MaxConns {
			errs = append(errs, fmt.Errorf("relational.min_conns must be between 0 and max_conns (got %d)", c.Relational.MinConns))
		}
		for name, d := range map[string]time.Duration{
			"connect_timeout": c.Relational.ConnectTimeout,
			"acquire_timeout": c.Relational.AcquireTimeout,
		} {
			if d <= 0 {
				errs = append(errs, fmt.Errorf("relational.%s must be positive (got %s)", name, d))
			}
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// DatabasePath returns the relational cache file.
func (c Config) DatabasePath() string {
	if c.Relational.Path != "" {
		return c.Relational.Path
	}
	return filepath.Join(c.DataDir, DatabaseFile)
}

// DocumentOptions returns the document manager options.
func (c Config) DocumentOptions(log *logging.Logger) document.Options {
	return document.Options{DataDir: c.DataDir, Logger: log}
}

// RelationalOptions returns the connection pool options.
func (c Config) RelationalOptions(log *logging.Logger) relational.Options {
	r := c.Relational
	return relational.Options{
		Path:           c.DatabasePath(),
		Driver:         r.Driver,
		MaxConns:       r.MaxConns,
		MinConns:       r.MinConns,
		ConnectTimeout: r.ConnectTimeout,
		AcquireTimeout: r.AcquireTimeout,
		IdleTimeout:    r.IdleTimeout,
		MaxLifetime:    r.MaxLifetime,
		Logger:         log,
	}
}

// LogOptions returns the logger options.
func (c Config) LogOptions() logging.Options {
	return logging.Options{Level: c.Log.Level, File: c.Log.File, MaxSizeMB: c.Log.MaxSizeMB}
}

// TOML renders the configuration as a config file.
func (c Config) TOML() ([]byte, error) {
	type relationalFile struct {
		Enabled        bool   `toml:"enabled"`
		Path           string `toml:"path,omitempty"`
		Driver         string `toml:"driver"`
		MaxConns       int    `toml:"max_conns"`
		MinConns       int    `toml:"min_conns"`
		ConnectTimeout string `toml:"connect_timeout"`
		AcquireTimeout string `toml:"acquire_timeout"`
		IdleTimeout    string `toml:"idle_timeout"`
		MaxLifetime    string `toml:"max_lifetime"`
	}
	file := struct {
		DataDir  string `toml:"data_dir"`
		Document struct {
			Enabled  bool   `toml:"enabled"`
			Debounce string `toml:"debounce"`
		} `toml:"document"`
		Relational relationalFile `toml:"relational"`
		Log        struct {
			Level     string `toml:"level"`
			File      string `toml:"file,omitempty"`
			MaxSizeMB int    `toml:"max_size_mb"`
		} `toml:"log"`
	}{DataDir: c.DataDir}

	file.Document.Enabled = c.Document.Enabled
	file.Document.Debounce = c.Document.Debounce.String()
	file.Relational = relationalFile{
		Enabled:        c.Relational.Enabled,
		Path:           c.Relational.Path,
		Driver:         c.Relational.Driver,
		MaxConns:       c.Relational.MaxConns,
		MinConns:       c.Relational.MinConns,
		ConnectTimeout: c.Relational.ConnectTimeout.String(),
		AcquireTimeout: c.Relational.AcquireTimeout.String(),
		IdleTimeout:    c.Relational.IdleTimeout.String(),
		MaxLifetime:    c.Relational.MaxLifetime.String(),
	}
	file.Log.Level = c.Log.Level
	file.Log.File = c.Log.File
	file.Log.MaxSizeMB = c.Log.MaxSizeMB

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(file); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// LoadEnvFiles loads .env and .env.local from the working directory.
// Missing files are ignored and variables already set win.
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

// NewViper returns a viper instance carrying the defaults and reading
// FLEQUIT_* variables. A non-empty file is read as the config file.
func NewViper(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}
	return v, nil
}

// SetDefaults registers every key so that environment variables are seen
// by Unmarshal.
func SetDefaults(v *viper.Viper, c Config) {
	v.SetDefault("data_dir", c.DataDir)
	v.SetDefault("document.enabled", c.Document.Enabled)
	v.SetDefault("document.debounce", c.Document.Debounce)
	v.SetDefault("relational.enabled", c.Relational.Enabled)
	v.SetDefault("relational.path", c.Relational.Path)
	v.SetDefault("relational.driver", c.Relational.Driver)
	v.SetDefault("relational.max_conns", c.Relational.MaxConns)
	v.SetDefault("relational.min_conns", c.Relational.MinConns)
	v.SetDefault("relational.connect_timeout", c.Relational.ConnectTimeout)
	v.SetDefault("relational.acquire_timeout", c.Relational.AcquireTimeout)
	v.SetDefault("relational.idle_timeout", c.Relational.IdleTimeout)
	v.SetDefault("relational.max_lifetime", c.Relational.MaxLifetime)
	v.SetDefault("log.level", c.Log.Level)
	v.SetDefault("log.file", c.Log.File)
	v.SetDefault("log.max_size_mb", c.Log.MaxSizeMB)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

// Load reads the configuration from file (optional) and the environment.
func Load(file string) (Config, error) {
	v, err := NewViper(file)
	if err != nil {
		return Config{}, err
	}
	return FromViper(v)
}
