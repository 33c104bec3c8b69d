package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/dispatch"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is the node configuration file (weft.yaml).
type Config struct {
	Capacity     int    `mapstructure:"capacity" yaml:"capacity"`
	Shards       int    `mapstructure:"shards" yaml:"shards"`
	History      bool   `mapstructure:"history" yaml:"history"`
	HistoryLimit int    `mapstructure:"history_limit" yaml:"history_limit"`
	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`

	Diagnostics Diagnostics `mapstructure:"diagnostics" yaml:"diagnostics"`
	Redis       Redis       `mapstructure:"redis" yaml:"redis"`
	Archive     Archive     `mapstructure:"archive" yaml:"archive"`
	Pump        Pump        `mapstructure:"pump" yaml:"pump"`
}

// Diagnostics configures the read-only HTTP endpoint. An empty Addr disables it.
type Diagnostics struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Redis configures the history archive. An empty Addr keeps histories in memory.
type Redis struct {
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// Archive configures what reaches the history store. Redact patterns mask
// matches in archived histories; Key (base64, 32 bytes) seals them with
// AES-256-GCM. FallbackKeys still open histories sealed before a rotation.
type Archive struct {
	Redact       []string `mapstructure:"redact" yaml:"redact"`
	Key          string   `mapstructure:"key" yaml:"key"`
	FallbackKeys []string `mapstructure:"fallback_keys" yaml:"fallback_keys"`
}

// Keys decodes the archive keys. active is nil when encryption is off.
func (a Archive) Keys() (active []byte, fallback [][]byte, err error) {
	if a.Key == "" {
		if len(a.FallbackKeys) > 0 {
			return nil, nil, errors.New("archive.fallback_keys requires archive.key")
		}
		return nil, nil, nil
	}
	if active, err = decodeKey("archive.key", a.Key); err != nil {
		return nil, nil, err
	}
	for i, k := range a.FallbackKeys {
		key, err := decodeKey(fmt.Sprintf("archive.fallback_keys[%d]", i), k)
		if err != nil {
			return nil, nil, err
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(name, s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%s is not valid base64: %w", name, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%s must decode to 32 bytes, got %d", name, len(key))
	}
	return key, nil
}

// Pump configures the asynchronous fallback for rejected fast-path messages.
type Pump struct {
	Workers int `mapstructure:"workers" yaml:"workers"`
	Backlog int `mapstructure:"backlog" yaml:"backlog"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Capacity:     dispatch.DefaultCapacity,
		Shards:       dispatch.DefaultShards,
		HistoryLimit: 32,
		LogLevel:     "info",
		Redis: Redis{
			Prefix: "weft:history:",
		},
		Pump: Pump{
			Workers: 4,
			Backlog: 1024,
		},
	}
}

// Load reads a YAML (or JSON) file over the defaults and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes data over the defaults and validates the result. Unknown keys
// are rejected. Numbers may be given as strings and durations as "30s".
func Parse(data []byte) (Config, error) {
	cfg := Default()

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if raw == nil {
		return cfg, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &cfg,
	})
	if err != nil {
		return Config{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Capacity < 0 {
		errs = append(errs, fmt.Errorf("capacity must not be negative, got %d", c.Capacity))
	}
	if c.Shards < 1 {
		errs = append(errs, fmt.Errorf("shards must be at least 1, got %d", c.Shards))
	}
	if c.History && c.HistoryLimit < 1 {
		errs = append(errs, fmt.Errorf("history_limit must be at least 1 when history is enabled, got %d", c.HistoryLimit))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Redis.TTL < 0 {
		errs = append(errs, fmt.Errorf("redis.ttl must not be negative, got %s", c.Redis.TTL))
	}
	for _, p := range c.Archive.Redact {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("archive.redact: %w", err))
		}
	}
	if _, _, err := c.Archive.Keys(); err != nil {
		errs = append(errs, err)
	}
	if c.Pump.Workers < 1 {
		errs = append(errs, fmt.Errorf("pump.workers must be at least 1, got %d", c.Pump.Workers))
	}
	if c.Pump.Backlog < 0 {
		errs = append(errs, fmt.Errorf("pump.backlog must not be negative, got %d", c.Pump.Backlog))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// HistoryDepth is the per-chain history limit, zero when history is disabled.
func (c Config) HistoryDepth() int {
	if !c.History {
		return 0
	}
	return c.HistoryLimit
}
