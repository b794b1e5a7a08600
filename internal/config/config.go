// Package config loads the deposit engine's chain and storage configuration
// from a YAML properties file.
package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultRequiredConfirmations is used whenever a chain entry omits the field.
const DefaultRequiredConfirmations = 12

// DefaultPollInterval is the confirmation tracker's fixed tick cadence.
const DefaultPollInterval = 5 * time.Second

// DefaultWorkerPoolSize is the minimum shared confirmation-worker count.
const DefaultWorkerPoolSize = 5

// MonitorConfig describes a single wallet (and optional token) to watch.
type MonitorConfig struct {
	WalletAddress string `yaml:"walletAddress"`
	TokenAddress  string `yaml:"tokenAddress,omitempty"`
	TokenDecimals int    `yaml:"tokenDecimals,omitempty"`
}

// ChainConfig describes one monitored chain.
type ChainConfig struct {
	Name                  string          `yaml:"name"`
	HTTPUrl               string          `yaml:"httpUrl"`
	WSUrl                 string          `yaml:"wsUrl,omitempty"`
	RequiredConfirmations int             `yaml:"requiredConfirmations,omitempty"`
	Monitor               []MonitorConfig `yaml:"monitor"`
}

// StoreConfig describes how to reach the persistent ledger.
type StoreConfig struct {
	Driver       string `yaml:"driver"` // "postgres" or "memory"
	DSN          string `yaml:"dsn,omitempty"`
	MaxOpenConns int    `yaml:"maxOpenConns,omitempty"`
}

// ConfirmationConfig tunes the confirmation tracker scheduler.
type ConfirmationConfig struct {
	PollInterval   time.Duration `yaml:"pollInterval,omitempty"`
	WorkerPoolSize int           `yaml:"workerPoolSize,omitempty"`
}

// Config is the root configuration document.
type Config struct {
	Chains       []ChainConfig      `yaml:"chains"`
	Store        StoreConfig        `yaml:"store"`
	Confirmation ConfirmationConfig `yaml:"confirmation"`
}

// Load reads path, applies defaults, and drops invalid chain entries
// (logging a warning for each) rather than failing the whole config.
// It returns an error only when nothing usable remains.
func Load(path string, logger *zap.Logger) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	valid := make([]ChainConfig, 0, len(cfg.Chains))
	for _, c := range cfg.Chains {
		if c.Name == "" {
			logger.Warn("skipping chain entry with no name")
			continue
		}
		if c.HTTPUrl == "" {
			logger.Warn("skipping chain with missing httpUrl", zap.String("chain", c.Name))
			continue
		}
		if c.RequiredConfirmations <= 0 {
			c.RequiredConfirmations = DefaultRequiredConfirmations
		}
		for i, m := range c.Monitor {
			if m.TokenAddress != "" && m.TokenDecimals == 0 {
				logger.Warn("token monitor missing tokenDecimals, defaulting to 18",
					zap.String("chain", c.Name), zap.String("token", m.TokenAddress))
				c.Monitor[i].TokenDecimals = 18
			}
		}
		valid = append(valid, c)
	}

	if len(valid) == 0 {
		return nil, fmt.Errorf("no valid chain configuration in %s", path)
	}
	cfg.Chains = valid

	if cfg.Confirmation.PollInterval <= 0 {
		cfg.Confirmation.PollInterval = DefaultPollInterval
	}
	if cfg.Confirmation.WorkerPoolSize < DefaultWorkerPoolSize {
		cfg.Confirmation.WorkerPoolSize = DefaultWorkerPoolSize
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "memory"
	}

	return &cfg, nil
}
