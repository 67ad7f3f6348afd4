// Package config loads the marketplace operator configuration from TOML and
// exposes the read-only views consumed by the engines.
package config

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ChainConfig describes one supported settlement chain. Signing credentials
// are never stored in the file; SigningKeyEnv names the environment variable
// holding the platform payout key.
type ChainConfig struct {
	Name           string   `toml:"Name"`
	Family         string   `toml:"Family"`
	RPCURL         string   `toml:"RPCURL"`
	ChainID        int64    `toml:"ChainID"`
	CustodyAddress string   `toml:"CustodyAddress"`
	SigningKeyEnv  string   `toml:"SigningKeyEnv"`
	StableSymbol   string   `toml:"StableSymbol"`
	StableContract string   `toml:"StableContract"`
	Currencies     []string `toml:"Currencies"`
	StableMinPrice string   `toml:"StableMinPrice"`
	StableMaxPrice string   `toml:"StableMaxPrice"`
}

// LogConfig controls structured log output and optional file rotation.
type LogConfig struct {
	Level      string `toml:"Level"`
	Format     string `toml:"Format"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Config is the marketd process configuration.
type Config struct {
	ListenAddress       string        `toml:"ListenAddress"`
	DatabaseURL         string        `toml:"DatabaseURL"`
	CommissionBps       uint32        `toml:"CommissionBps"`
	TradeFeeBps         uint32        `toml:"TradeFeeBps"`
	PayoutFailurePolicy string        `toml:"PayoutFailurePolicy"`
	SweepInterval       string        `toml:"SweepInterval"`
	PausedModules       []string      `toml:"PausedModules"`
	Log                 LogConfig     `toml:"Log"`
	Chains              []ChainConfig `toml:"Chains"`
}

// Load reads and validates the configuration at path, applying defaults for
// unset fields.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8080"
	}
	if strings.TrimSpace(c.PayoutFailurePolicy) == "" {
		c.PayoutFailurePolicy = "release"
	}
	if strings.TrimSpace(c.SweepInterval) == "" {
		c.SweepInterval = "1m"
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
	if strings.TrimSpace(c.Log.Format) == "" {
		c.Log.Format = "json"
	}
}

func (c *Config) chain(name string) (*ChainConfig, bool) {
	for i := range c.Chains {
		if c.Chains[i].Name == name {
			return &c.Chains[i], true
		}
	}
	return nil, false
}

// SweepEvery returns the parsed expiry sweep interval.
func (c *Config) SweepEvery() time.Duration {
	d, err := time.ParseDuration(c.SweepInterval)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// IsPaused reports whether a module has been administratively paused.
func (c *Config) IsPaused(module string) bool {
	for _, m := range c.PausedModules {
		if m == module {
			return true
		}
	}
	return false
}
