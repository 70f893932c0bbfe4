package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/natefinch/atomic"
	"github.com/thenoetrevino/tablero/internal/config/colors"
	"gopkg.in/yaml.v3"
)

// ColorScheme is the palette used by human-readable CLI output
type ColorScheme = colors.ColorScheme

// Bus names the change channel backend
type Bus string

const (
	BusHub    Bus = "hub"    // in-process fan-out, single server
	BusDaemon Bus = "daemon" // unix socket daemon on this host
	BusRedis  Bus = "redis"  // redis pub/sub across instances
)

// Config represents the application configuration
type Config struct {
	Store       StoreConfig  `yaml:"store"`
	Events      EventsConfig `yaml:"events"`
	Server      ServerConfig `yaml:"server"`
	Client      ClientConfig `yaml:"client"`
	Log         LogConfig    `yaml:"log"`
	ColorScheme ColorScheme  `yaml:"theme"`
}

// StoreConfig selects the ordering store engine
type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite or mysql
	DSN    string `yaml:"dsn"`    // empty means ~/.tablero/tablero.db for sqlite
}

// EventsConfig selects the change channel backend
type EventsConfig struct {
	Bus         Bus    `yaml:"bus"`
	Socket      string `yaml:"socket"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix"`
}

// ServerConfig tunes the HTTP API server
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ClientConfig is used by commands that talk to a running server
type ClientConfig struct {
	ServerURL       string        `yaml:"server_url"`
	MutationTimeout time.Duration `yaml:"mutation_timeout"`
}

// LogConfig sets log verbosity and format
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Default returns the configuration used when no file exists
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load loads config from the user's config directory, then applies
// TABLERO_* environment overrides. A .env file in the working directory is
// loaded first when present. Returns default config if no file exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	configPath, err := Path()
	if err != nil {
		cfg := Default()
		if err := cfg.applyEnv(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return LoadFile(configPath)
}

// LoadFile loads config from path. A missing file yields defaults.
func LoadFile(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Save writes the config to the user's config directory
func (c *Config) Save() error {
	configPath, err := Path()
	if err != nil {
		return err
	}
	return c.SaveFile(configPath)
}

// SaveFile writes the config to path, replacing any existing file in one
// rename so readers never see a partial file.
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}

// Validate reports settings that cannot work together
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("invalid store driver %q (must be: sqlite, mysql)", c.Store.Driver)
	}
	if c.Store.Driver == "mysql" && c.Store.DSN == "" {
		return errors.New("store dsn is required for mysql")
	}

	switch c.Events.Bus {
	case BusHub, BusDaemon, BusRedis:
	default:
		return fmt.Errorf("invalid events bus %q (must be: hub, daemon, redis)", c.Events.Bus)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Path returns the path to the config file
func Path() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "tablero", "config.yaml"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "tablero", "config.yaml"), nil
}

// DataDir returns ~/.tablero, where the socket, database and logs live
func DataDir() (string, error) {
	home := os.Getenv("HOME")
	if home == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
	}
	return filepath.Join(home, ".tablero"), nil
}

// ParseLevel maps a level name to its slog level
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return l, fmt.Errorf("invalid log level %q (must be: debug, info, warn, error)", level)
	}
	return l, nil
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Events.Bus == "" {
		c.Events.Bus = BusHub
	}
	if c.Events.Socket == "" {
		if dir, err := DataDir(); err == nil {
			c.Events.Socket = filepath.Join(dir, "tablero.sock")
		}
	}
	if c.Events.RedisAddr == "" {
		c.Events.RedisAddr = "localhost:6379"
	}
	if c.Events.RedisPrefix == "" {
		c.Events.RedisPrefix = "tablero"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:7420"
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Client.ServerURL == "" {
		c.Client.ServerURL = "http://" + c.Server.Addr
	}
	if c.Client.MutationTimeout <= 0 {
		c.Client.MutationTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	c.ColorScheme.ApplyDefaults()
}

// applyEnv overrides file values with TABLERO_* environment variables
func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"TABLERO_STORE_DRIVER": &c.Store.Driver,
		"TABLERO_STORE_DSN":    &c.Store.DSN,
		"TABLERO_SOCKET":       &c.Events.Socket,
		"TABLERO_REDIS_ADDR":   &c.Events.RedisAddr,
		"TABLERO_REDIS_PREFIX": &c.Events.RedisPrefix,
		"TABLERO_SERVER_ADDR":  &c.Server.Addr,
		"TABLERO_SERVER_URL":   &c.Client.ServerURL,
		"TABLERO_LOG_LEVEL":    &c.Log.Level,
		"TABLERO_LOG_FORMAT":   &c.Log.Format,
		"TABLERO_THEME_PRESET": &c.ColorScheme.Preset,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("TABLERO_BUS"); v != "" {
		c.Events.Bus = Bus(strings.ToLower(v))
	}

	if v := os.Getenv("TABLERO_MUTATION_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TABLERO_MUTATION_TIMEOUT %q: %w", v, err)
		}
		c.Client.MutationTimeout = d
	}

	if v := os.Getenv("TABLERO_SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid TABLERO_SERVER_PORT %q", v)
		}
		host := "127.0.0.1"
		if h, _, ok := strings.Cut(c.Server.Addr, ":"); ok && h != "" {
			host = h
		}
		c.Server.Addr = fmt.Sprintf("%s:%d", host, port)
	}
	return nil
}
