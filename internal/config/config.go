// Package config provides Viper-based configuration for life-reality.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendBadger = "badger"
)

type Config struct {
	Backend string       `mapstructure:"backend"`
	Data    DataConfig   `mapstructure:"data"`
	Badger  BadgerConfig `mapstructure:"badger"`
	Redis   RedisConfig  `mapstructure:"redis"`
	HTTP    HTTPConfig   `mapstructure:"http"`
	Auth    AuthConfig   `mapstructure:"auth"`
	AI      AIConfig     `mapstructure:"ai"`
	Cache   CacheConfig  `mapstructure:"cache"`
	Log     LogConfig    `mapstructure:"log"`
}

// DataConfig locates the JSON document used by the file backend.
type DataConfig struct {
	Path string `mapstructure:"path"`
}

// BadgerConfig locates the badger directory. Empty means in-memory.
type BadgerConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig enables the cache, pub/sub and the optimize queue when Addr
// is set.
type RedisConfig struct {
	Addr string `mapstructure:"addr"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type AuthConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type AIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Format string `mapstructure:"format"`
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"backend":    "backend",
	"data":       "data.path",
	"badger":     "badger.path",
	"redis":      "redis.addr",
	"addr":       "http.addr",
	"log-format": "log.format",
}

// Load reads configuration from an optional file, LIFEREALITY_* environment
// variables and any flags in flags that have been set.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("lifereality")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/lifereality")
	}

	v.SetEnvPrefix("LIFEREALITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendFile)
	v.SetDefault("data.path", "db.json")
	v.SetDefault("badger.path", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.ttl", 12*time.Hour)
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "gemini-2.5-flash")
	v.SetDefault("ai.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("log.format", "console")
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFile:
		if c.Data.Path == "" {
			return errors.New("data.path is required for the file backend")
		}
	case BackendMemory, BackendBadger:
	default:
		return fmt.Errorf("unknown backend %q (want file, memory or badger)", c.Backend)
	}
	if c.Auth.TTL <= 0 {
		return errors.New("auth.ttl must be positive")
	}
	if c.Cache.TTL <= 0 {
		return errors.New("cache.ttl must be positive")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log.format %q (want console or json)", c.Log.Format)
	}
	return nil
}
