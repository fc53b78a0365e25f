package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"testgate/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/testgate"
	configFileName = "config.yaml"
)

// GetDefaultConfigPathOrPanic returns the user-level configuration directory.
func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads configuration from the specified directory. A missing
// config.yaml is not an error: defaults apply.
func LoadConfig(configPath string) (TestgateConfig, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	cfg := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("Config", "No config.yaml found at %s, using defaults", configFilePath)
			return cfg, nil
		}
		return TestgateConfig{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return TestgateConfig{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}

	if err := cfg.Validate(); err != nil {
		return TestgateConfig{}, fmt.Errorf("invalid config at %s: %w", configFilePath, err)
	}

	logging.Info("Config", "Loaded configuration from %s", configFilePath)
	return cfg, nil
}

// Validate checks the loaded configuration for values the gateway cannot
// operate with.
func (c *TestgateConfig) Validate() error {
	if c.Upstream.BaseURL == "" {
		return errors.New("upstream.baseURL must not be empty")
	}
	if c.Upstream.RequestTimeout < 0 {
		return errors.New("upstream.requestTimeout must not be negative")
	}
	if c.Gateway.SSEPort == c.Gateway.HTTPPort {
		return fmt.Errorf("gateway.ssePort and gateway.httpPort must differ, both are %d", c.Gateway.SSEPort)
	}
	return nil
}
