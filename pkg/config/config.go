// Package config loads run settings from flags, environment and an optional YAML file.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. FRAUDSCOPE_SAMPLE_SIZE.
const EnvPrefix = "FRAUDSCOPE"

// DefaultCacheTTL bounds how long a sample stays in a shared cache.
const DefaultCacheTTL = 10 * time.Minute

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds every tunable of a scoring run.
type Config struct {
	Source        string  `mapstructure:"source"`
	SampleSize    int     `mapstructure:"sample_size"`
	Seed          int64   `mapstructure:"seed"`
	Contamination float64 `mapstructure:"contamination"`
	Trees         int     `mapstructure:"trees"`
	MaxSamples    int     `mapstructure:"max_samples"`
	MinRisk       int     `mapstructure:"min_risk"`

	Log   LogConfig   `mapstructure:"log"`
	Cache CacheConfig `mapstructure:"cache"`
}

// LogConfig controls logger output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CacheConfig selects where sampled tables are memoized.
type CacheConfig struct {
	Backend       string        `mapstructure:"backend"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("source", "data/raw/creditcard.csv")
	v.SetDefault("sample_size", 1000)
	v.SetDefault("seed", 42)
	v.SetDefault("contamination", 0.002)
	v.SetDefault("trees", 100)
	v.SetDefault("max_samples", 256)
	v.SetDefault("min_risk", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("cache.backend", CacheMemory)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ttl", DefaultCacheTTL)
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"source":         "source",
	"sample-size":    "sample_size",
	"seed":           "seed",
	"contamination":  "contamination",
	"trees":          "trees",
	"max-samples":    "max_samples",
	"min-risk":       "min_risk",
	"log-level":      "log.level",
	"log-format":     "log.format",
	"cache":          "cache.backend",
	"redis-addr":     "cache.redis_addr",
	"redis-password": "cache.redis_password",
	"redis-db":       "cache.redis_db",
	"cache-ttl":      "cache.ttl",
}

// Load resolves configuration with precedence flags > env > file > defaults.
// Only flags listed in FlagKeys are bound; an empty file path skips the config file.
func Load(file string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file: %s", file)
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errors.Wrapf(err, "failed to bind flag: %s", name)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks ranges that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.SampleSize <= 0 {
		return errors.Errorf("sample_size must be positive, got %d", c.SampleSize)
	}
	if !(c.Contamination > 0 && c.Contamination <= 0.5) {
		return errors.Errorf("contamination must be in (0, 0.5], got %v", c.Contamination)
	}
	if c.Trees <= 0 {
		return errors.Errorf("trees must be positive, got %d", c.Trees)
	}
	if c.MaxSamples <= 0 {
		return errors.Errorf("max_samples must be positive, got %d", c.MaxSamples)
	}
	if c.MinRisk < 0 || c.MinRisk > 100 {
		return errors.Errorf("min_risk must be in [0, 100], got %d", c.MinRisk)
	}
	switch c.Cache.Backend {
	case CacheNone, CacheMemory, CacheRedis:
	default:
		return errors.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	return nil
}
