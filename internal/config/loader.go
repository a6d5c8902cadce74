package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file
func (l *Loader) Load() (*Config, error) {
	configPath := l.configPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".merit", "merit.json")
	}

	// Fall back to defaults when no config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		return applyPathDefaults(cfg)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.SetEnvPrefix("MERIT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return applyPathDefaults(cfg)
}

// applyPathDefaults fills in path settings derived from the data directory
func applyPathDefaults(cfg *Config) (*Config, error) {
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".merit")
	}

	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "merit.log")
	}
	if cfg.Stores.RecordPath == "" {
		cfg.Stores.RecordPath = filepath.Join(cfg.DataDir, "records.db")
	}
	if cfg.Stores.GraphPath == "" {
		cfg.Stores.GraphPath = filepath.Join(cfg.DataDir, "graph.db")
	}
	if cfg.Stores.AggregatePath == "" {
		cfg.Stores.AggregatePath = filepath.Join(cfg.DataDir, "aggregates.db")
	}

	return cfg, nil
}
