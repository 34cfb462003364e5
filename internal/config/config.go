// Package config loads the auction server configuration.
//
// Values are layered: built-in defaults, then an optional YAML file (path from
// --config or AUCTION_CONFIG), then environment variables, then command-line
// flags. Later layers win.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Database drivers
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config is the complete server configuration
type Config struct {
	// Environment is informational: development or production.
	Environment string          `yaml:"environment"`
	Server      ServerConfig    `yaml:"server"`
	Database    DatabaseConfig  `yaml:"database"`
	Sweeper     SweeperConfig   `yaml:"sweeper"`
	Broadcast   BroadcastConfig `yaml:"broadcast"`
	Log         LogConfig       `yaml:"log"`
	// Seed loads demo users and products into the memory store.
	Seed bool `yaml:"seed"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// ShutdownTimeout bounds how long in-flight requests get to finish.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	// Migrate runs pending schema migrations at startup (postgres only).
	Migrate bool `yaml:"migrate"`
}

type SweeperConfig struct {
	Interval time.Duration `yaml:"interval"`
	// BatchSize caps how many auctions one scan transitions; 0 means no cap.
	BatchSize int `yaml:"batch_size"`
}

type BroadcastConfig struct {
	// BufferSize is how many undelivered events a single stream may hold.
	BufferSize int `yaml:"buffer_size"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:       DriverMemory,
			MaxOpenConns: 20,
			Migrate:      true,
		},
		Sweeper: SweeperConfig{
			Interval:  10 * time.Second,
			BatchSize: 500,
		},
		Broadcast: BroadcastConfig{BufferSize: 16},
		Log:       LogConfig{Level: "info"},
		Seed:      true,
	}
}

// LoadFile overlays the YAML file at path onto c
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto c using lookup (os.LookupEnv in production)
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if port, ok := lookup("PORT"); ok && port != "" {
		c.Server.Addr = ":" + port
	}
	if dsn, ok := lookup("POSTGRES_CONN"); ok && dsn != "" {
		c.Database.DSN = dsn
		c.Database.Driver = DriverPostgres
	}
	if level, ok := lookup("LOG_LEVEL"); ok && level != "" {
		c.Log.Level = level
	}
	if interval, ok := lookup("SWEEP_INTERVAL"); ok && interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return fmt.Errorf("SWEEP_INTERVAL: %w", err)
		}
		c.Sweeper.Interval = d
	}
	return nil
}

// Flags holds the command-line overrides
type Flags struct {
	ConfigPath    string
	Addr          string
	DBDriver      string
	SweepInterval time.Duration
	LogLevel      string
}

// BindFlags registers the command-line flags on fs
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.ConfigPath, "config", "", "path to a YAML config file (default $AUCTION_CONFIG)")
	fs.StringVar(&f.Addr, "addr", "", "HTTP listen address, e.g. :8080")
	fs.StringVar(&f.DBDriver, "db-driver", "", "storage driver: memory or postgres")
	fs.DurationVar(&f.SweepInterval, "sweep-interval", 0, "how often due auctions are transitioned")
	fs.StringVar(&f.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	return f
}

// apply overlays the flags that were set onto c
func (f *Flags) apply(c *Config) {
	if f.Addr != "" {
		c.Server.Addr = f.Addr
	}
	if f.DBDriver != "" {
		c.Database.Driver = f.DBDriver
	}
	if f.SweepInterval != 0 {
		c.Sweeper.Interval = f.SweepInterval
	}
	if f.LogLevel != "" {
		c.Log.Level = f.LogLevel
	}
}

// Load builds the configuration from defaults, file, environment and flags, then validates it
func Load(flags *Flags, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	path := flags.ConfigPath
	if path == "" {
		path, _ = lookup("AUCTION_CONFIG")
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	flags.apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not one of memory, postgres", c.Database.Driver))
	}
	if c.Sweeper.Interval <= 0 {
		errs = append(errs, fmt.Errorf("sweeper.interval must be positive, got %s", c.Sweeper.Interval))
	}
	if c.Sweeper.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("sweeper.batch_size must not be negative, got %d", c.Sweeper.BatchSize))
	}
	if c.Broadcast.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("broadcast.buffer_size must be positive, got %d", c.Broadcast.BufferSize))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
