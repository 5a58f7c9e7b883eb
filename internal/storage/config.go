package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tdmcli/tdmcli/internal/log"
)

const (
	// userConfigName is the base name of the user configuration file (config.yaml),
	// a sibling of the registry file.
	userConfigName = "config"

	// envPrefix is the prefix of environment variables overriding configuration.
	envPrefix = "TDMCLI"

	// Default configuration values
	DefaultWorkers       = 0 // 0 means fsutil.DefaultWorkers
	DefaultUpdateURL     = "https://raw.githubusercontent.com/MrTigerST/tdmcli/main/version"
	DefaultUpdateTimeout = 5 * time.Second
)

// Config represents user configuration from config.yaml and TDMCLI_* variables.
// This file is user-managed and never written by tdmcli.
type Config struct {
	// TemplateDir is the template directory a fresh registry starts with.
	// Once a registry exists, change-dir is the only way to move it.
	TemplateDir string `mapstructure:"template_dir"`

	// Workers bounds concurrent file copies.
	Workers int `mapstructure:"workers"`

	// Debug enables debug logging.
	Debug bool `mapstructure:"debug"`

	// UpdateURL serves the latest released version as plain text.
	UpdateURL string `mapstructure:"update_url"`

	// UpdateTimeout bounds the update check.
	UpdateTimeout time.Duration `mapstructure:"update_timeout"`

	// ConfirmChangeDir asks before change-dir moves snapshots when stdin is a terminal.
	ConfirmChangeDir bool `mapstructure:"confirm_change_dir"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Workers:       DefaultWorkers,
		UpdateURL:     DefaultUpdateURL,
		UpdateTimeout: DefaultUpdateTimeout,

		ConfirmChangeDir: true,
	}
}

// LoadConfig reads configuration into v from configFile, or from
// root/config.yaml when configFile is empty, then applies TDMCLI_*
// environment overrides (TDMCLI_TEMPLATE_DIR, TDMCLI_WORKERS, TDMCLI_DEBUG, ...).
// A missing default config file is not an error; a missing explicit one is.
// Partial config files are merged with defaults.
func LoadConfig(v *viper.Viper, root, configFile string) (*Config, error) {
	defaults := DefaultConfig()
	v.SetDefault("template_dir", defaults.TemplateDir)
	v.SetDefault("workers", defaults.Workers)
	v.SetDefault("debug", defaults.Debug)
	v.SetDefault("update_url", defaults.UpdateURL)
	v.SetDefault("update_timeout", defaults.UpdateTimeout)
	v.SetDefault("confirm_change_dir", defaults.ConfirmChangeDir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(root)
		v.SetConfigName(userConfigName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		log.Debug(log.CatConfig, "no config file, using defaults", "root", root)
	} else {
		log.Debug(log.CatConfig, "loaded config", "path", v.ConfigFileUsed())
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.TemplateDir != "" {
		abs, err := ResolvePath(cfg.TemplateDir)
		if err != nil {
			return nil, fmt.Errorf("invalid template_dir %q: %w", cfg.TemplateDir, err)
		}
		cfg.TemplateDir = abs
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("invalid workers %d: must not be negative", cfg.Workers)
	}
	if cfg.UpdateTimeout <= 0 {
		cfg.UpdateTimeout = DefaultUpdateTimeout
	}

	return cfg, nil
}

// ConfigPath returns the path of the default user config file.
func (s *Storage) ConfigPath() string {
	return filepath.Join(s.root, userConfigName+".yaml")
}
