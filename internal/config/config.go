// Package config loads service settings through viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the typed view of configs/config.yml.
type Config struct {
	Port       string           `mapstructure:"port"`
	DB         DBConfig         `mapstructure:"db"`
	Dataset    DatasetConfig    `mapstructure:"dataset"`
	Animation  AnimationConfig  `mapstructure:"animation"`
	Debounce   DebounceConfig   `mapstructure:"debounce"`
	Auth       AuthConfig       `mapstructure:"auth"`
	QueryCache QueryCacheConfig `mapstructure:"query_cache"`
	Log        LogConfig        `mapstructure:"log"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

// DatasetConfig describes the numeric field domain and optional seed file.
type DatasetConfig struct {
	FieldMin float64 `mapstructure:"field_min"`
	FieldMax float64 `mapstructure:"field_max"`
	BinCount int     `mapstructure:"bin_count"`
	SeedCSV  string  `mapstructure:"seed_csv"`
}

type AnimationConfig struct {
	Delay  time.Duration `mapstructure:"delay"`
	Window float64       `mapstructure:"window"`
	Step   float64       `mapstructure:"step"`
}

// DebounceConfig holds quiet periods. Quiet applies to category and region
// changes, Range to user driven numeric range changes.
type DebounceConfig struct {
	Quiet time.Duration `mapstructure:"quiet"`
	Range time.Duration `mapstructure:"range"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type QueryCacheConfig struct {
	Size int `mapstructure:"size"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

const envPrefix = "TREES"

var errBadDomain = errors.New("dataset.field_min must be below dataset.field_max")

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("db.path", "app.db")
	v.SetDefault("dataset.field_min", 0.0)
	v.SetDefault("dataset.field_max", 300.0)
	v.SetDefault("dataset.bin_count", 50)
	v.SetDefault("animation.delay", time.Second)
	v.SetDefault("animation.window", 6.0)
	v.SetDefault("animation.step", 1.0)
	v.SetDefault("debounce.quiet", time.Duration(0))
	v.SetDefault("debounce.range", 50*time.Millisecond)
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("query_cache.size", 256)
	v.SetDefault("log.level", "info")
}

// Load reads config.yml from the given directories. A missing file is not
// an error; defaults and TREES_* environment variables still apply.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Dataset.FieldMin >= c.Dataset.FieldMax {
		return errBadDomain
	}
	if c.Dataset.BinCount <= 0 {
		return fmt.Errorf("dataset.bin_count must be positive, got %d", c.Dataset.BinCount)
	}
	if c.Animation.Window <= 0 || c.Animation.Window > c.Dataset.FieldMax-c.Dataset.FieldMin {
		return fmt.Errorf("animation.window %.2f does not fit the field domain", c.Animation.Window)
	}
	if c.Animation.Step <= 0 {
		return fmt.Errorf("animation.step must be positive, got %.2f", c.Animation.Step)
	}
	if c.Auth.SigningKey == "" {
		return errors.New("auth.signing_key is required")
	}
	return nil
}
