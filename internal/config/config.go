// Package config loads the server configuration of the handoff binary.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/handoff/internal/logging"
	"gopkg.in/yaml.v3"
)

// Environment overrides.
const (
	EnvLogLevel      = "HANDOFF_LOG_LEVEL"
	EnvEncryptionKey = "HANDOFF_ENCRYPTION_KEY"
)

// Config sources and stores.
const (
	SourceFile = "file"
	SourceLoam = "loam"

	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Duration accepts "1s" style strings in both YAML and JSON.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.parse(node.Value)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	return d.parse(s)
}

func (d Duration) MarshalYAML() (any, error) { return d.Std().String(), nil }

func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(d.Std().String()) }

// Redis configures the redis snapshot store and locker.
type Redis struct {
	Addr     string   `yaml:"addr" json:"addr"`
	Password string   `yaml:"password" json:"password"`
	DB       int      `yaml:"db" json:"db"`
	TTL      Duration `yaml:"ttl" json:"ttl"`
	Prefix   string   `yaml:"prefix" json:"prefix"`
}

// Security configures the snapshot middleware.
// Keys are base64 encoded 32 byte AES keys.
type Security struct {
	EncryptionKey string   `yaml:"encryption_key" json:"encryption_key"`
	FallbackKeys  []string `yaml:"fallback_keys" json:"fallback_keys"`
	PIIPatterns   []string `yaml:"pii_patterns" json:"pii_patterns"`
}

// Config is the root configuration document.
type Config struct {
	Listen   string   `yaml:"listen" json:"listen"`
	LogLevel string   `yaml:"log_level" json:"log_level"`
	Interval Duration `yaml:"interval" json:"interval"`

	// ConfigDir holds the scope documents read by Source.
	ConfigDir string `yaml:"config_dir" json:"config_dir"`
	Source    string `yaml:"source" json:"source"`

	// Store selects where session snapshots are persisted.
	Store       string   `yaml:"store" json:"store"`
	SessionsDir string   `yaml:"sessions_dir" json:"sessions_dir"`
	Redis       Redis    `yaml:"redis" json:"redis"`
	Security    Security `yaml:"security" json:"security"`

	HistoryCapacity int `yaml:"history_capacity" json:"history_capacity"`

	// Runtimes is a file allow-listing agent worker processes.
	// Without it agents are only recorded in memory.
	Runtimes string `yaml:"runtimes" json:"runtimes"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen:      ":8080",
		LogLevel:    "info",
		Interval:    Duration(time.Second),
		ConfigDir:   ".",
		Source:      SourceFile,
		Store:       StoreMemory,
		SessionsDir: filepath.Join(".handoff", "sessions"),
		Redis: Redis{
			Addr:   "localhost:6379",
			TTL:    Duration(24 * time.Hour),
			Prefix: "handoff:session:",
		},
		HistoryCapacity: 100,
	}
}

// Load reads path (YAML, or JSON by extension) over the defaults.
// An empty path yields the defaults. The environment is applied last.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if strings.EqualFold(filepath.Ext(path), ".json") {
			err = json.Unmarshal(data, &cfg)
		} else {
			err = yaml.Unmarshal(data, &cfg)
		}
		if err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		cfg.LogLevel = lvl
	}
	if key := os.Getenv(EnvEncryptionKey); key != "" {
		cfg.Security.EncryptionKey = key
	}
	return cfg, cfg.Validate()
}

// Validate rejects unknown enums and levels.
func (c Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.Source {
	case SourceFile, SourceLoam:
	default:
		return fmt.Errorf("unknown config source %q", c.Source)
	}
	switch c.Store {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		return fmt.Errorf("unknown snapshot store %q", c.Store)
	}
	if c.Interval < 0 {
		return fmt.Errorf("interval must not be negative")
	}
	return nil
}
