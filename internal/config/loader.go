package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Load loads configuration from the given file path (or the default location
// inside the data directory when empty), applies environment overrides and
// validates the result.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix("STACKPILOT")
	v.AutomaticEnv()

	// Resolve the data directory first; the default config file lives there.
	if dataDir == "" {
		if env := v.GetString("data_dir"); env != "" {
			dataDir = env
		} else {
			var err error
			dataDir, err = DefaultDataDirPath()
			if err != nil {
				return nil, fmt.Errorf("failed to resolve data directory: %w", err)
			}
		}
	}
	cfg.DataDir = dataDir

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", cfg.DataDir, err)
	}

	if configPath == "" {
		configPath = filepath.Join(cfg.DataDir, ConfigFileName)
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			// First run: persist the defaults so the user has a file to edit.
			if err := writeDefaultConfigFile(configPath, cfg); err != nil {
				return nil, fmt.Errorf("failed to create default config file: %w", err)
			}
		}
	}

	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDataDirDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific file without touching the
// default data directory machinery. Used by subcommands and tests.
func LoadFromFile(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("json")
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.DataDir == "" {
		dataDir, err := DefaultDataDirPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve data directory: %w", err)
		}
		cfg.DataDir = dataDir
	}
	cfg.applyDataDirDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func writeDefaultConfigFile(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
