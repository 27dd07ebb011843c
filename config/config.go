// Package config loads photocull settings from ~/.photocull.yaml, the
// environment (PHOTOCULL_*) and command-line flags.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Config holds every setting. Keys are shared by the YAML file, the
// environment and flags.
type Config struct {
	Capacity   int           `mapstructure:"capacity" yaml:"capacity"`
	Workers    int           `mapstructure:"workers" yaml:"workers"`
	Extensions []string      `mapstructure:"extensions" yaml:"extensions"`
	Sidecars   []string      `mapstructure:"sidecars" yaml:"sidecars"`
	MaxWidth   int           `mapstructure:"max_width" yaml:"max_width"`
	MaxHeight  int           `mapstructure:"max_height" yaml:"max_height"`
	FailureTTL time.Duration `mapstructure:"failure_ttl" yaml:"failure_ttl"`

	DataDir  string `mapstructure:"data_dir" yaml:"data_dir"`
	Journal  bool   `mapstructure:"journal" yaml:"journal"`
	Watch    bool   `mapstructure:"watch" yaml:"watch"`
	Listen   string `mapstructure:"listen" yaml:"listen"`
	LogDir   string `mapstructure:"log_dir" yaml:"log_dir"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Capacity:   6,
		Workers:    2,
		Extensions: []string{".jpg", ".jpeg"},
		Sidecars:   []string{".RAF"},
		MaxWidth:   2560,
		MaxHeight:  1600,
		FailureTTL: 30 * time.Second,
		DataDir:    "~/.photocull",
		Journal:    true,
		Watch:      true,
		Listen:     "127.0.0.1:8080",
		LogLevel:   "info",
	}
}

// NewViper returns a viper instance with defaults and environment binding
// set up. Callers may bind flags to it before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	d := DefaultConfig()
	v.SetDefault("capacity", d.Capacity)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("extensions", d.Extensions)
	v.SetDefault("sidecars", d.Sidecars)
	v.SetDefault("max_width", d.MaxWidth)
	v.SetDefault("max_height", d.MaxHeight)
	v.SetDefault("failure_ttl", d.FailureTTL)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("journal", d.Journal)
	v.SetDefault("watch", d.Watch)
	v.SetDefault("listen", d.Listen)
	v.SetDefault("log_dir", d.LogDir)
	v.SetDefault("log_level", d.LogLevel)

	v.SetEnvPrefix("PHOTOCULL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file into v and decodes the result. With an empty
// path it looks for .photocull.yaml in the home and current directories
// and a missing file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return nil, fmt.Errorf("failed to find home directory: %w", err)
		}
		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.SetConfigName(".photocull")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.expand(); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) expand() error {
	for _, p := range []*string{&c.DataDir, &c.LogDir} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expand %s: %w", *p, err)
		}
		*p = filepath.Clean(expanded)
	}
	return nil
}

// Validate checks the settings for values the viewer cannot run with.
func Validate(c *Config) error {
	if c.Capacity < 1 {
		return fmt.Errorf("invalid capacity: %d (must be at least 1)", c.Capacity)
	}
	if c.Workers < 1 {
		return fmt.Errorf("invalid workers: %d (must be at least 1)", c.Workers)
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("extensions must not be empty")
	}
	if c.MaxWidth < 0 || c.MaxHeight < 0 {
		return fmt.Errorf("invalid max size: %dx%d", c.MaxWidth, c.MaxHeight)
	}
	if !lo.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	return nil
}
