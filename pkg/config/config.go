// Package config provides configuration management for debugd.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/tyler-smith/go-bip39"
)

// Default values.
var (
	DefaultChainID         = uint64(31337)
	DefaultGasLimit        = uint64(30000000)
	DefaultHost            = "127.0.0.1"
	DefaultPort            = 8549
	DefaultAccountCount    = 10
	DefaultBalance         = new(big.Int).Mul(big.NewInt(10000), big.NewInt(1e18)) // 10000 ETH
	DefaultMnemonic        = "test test test test test test test test test test test junk"
	DefaultSeedBlocks      = 8
	DefaultTracePoolSize   = 4
	DefaultTraceTimeout    = 5 * time.Second
	DefaultMaxTraceTimeout = 30 * time.Second
	DefaultAllowOrigin     = "*"
)

// Config defines the debug node configuration.
type Config struct {
	// Network configuration
	ChainID  uint64 `json:"chainId"`
	GasLimit uint64 `json:"gasLimit"`

	// Server configuration
	Host        string `json:"host"`
	Port        int    `json:"port"`
	AllowOrigin string `json:"allowOrigin"`

	// Dev chain seeding
	AccountCount   int      `json:"accountCount"`
	DefaultBalance *big.Int `json:"defaultBalance"`
	Mnemonic       string   `json:"mnemonic"`
	SeedBlocks     int      `json:"seedBlocks"`

	// Trace isolation
	TracePoolSize   int           `json:"tracePoolSize"`
	TraceTimeout    time.Duration `json:"traceTimeout"`
	MaxTraceTimeout time.Duration `json:"maxTraceTimeout"`
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		ChainID:         DefaultChainID,
		GasLimit:        DefaultGasLimit,
		Host:            DefaultHost,
		Port:            DefaultPort,
		AllowOrigin:     DefaultAllowOrigin,
		AccountCount:    DefaultAccountCount,
		DefaultBalance:  new(big.Int).Set(DefaultBalance),
		Mnemonic:        DefaultMnemonic,
		SeedBlocks:      DefaultSeedBlocks,
		TracePoolSize:   DefaultTracePoolSize,
		TraceTimeout:    DefaultTraceTimeout,
		MaxTraceTimeout: DefaultMaxTraceTimeout,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.ChainID == 0 {
		errs = append(errs, "chainId must be greater than 0")
	}

	if c.GasLimit == 0 {
		errs = append(errs, "gasLimit must be greater than 0")
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	if c.AccountCount <= 0 {
		errs = append(errs, "accountCount must be greater than 0")
	}

	if c.SeedBlocks < 0 {
		errs = append(errs, "seedBlocks must not be negative")
	}

	if c.TracePoolSize <= 0 {
		errs = append(errs, "tracePoolSize must be greater than 0")
	}

	if c.TraceTimeout <= 0 || c.MaxTraceTimeout <= 0 {
		errs = append(errs, "trace timeouts must be positive")
	}

	if c.TraceTimeout > c.MaxTraceTimeout {
		errs = append(errs, "traceTimeout must not exceed maxTraceTimeout")
	}

	if c.Mnemonic != "" && !bip39.IsMnemonicValid(c.Mnemonic) {
		errs = append(errs, "mnemonic is invalid")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// LoadFromFile loads configuration from a JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return MergeWithDefaults(&cfg), nil
}

// MergeWithDefaults merges partial config with default values.
func MergeWithDefaults(partial *Config) *Config {
	def := Default()

	if partial.ChainID != 0 {
		def.ChainID = partial.ChainID
	}
	if partial.GasLimit != 0 {
		def.GasLimit = partial.GasLimit
	}
	if partial.Host != "" {
		def.Host = partial.Host
	}
	if partial.Port != 0 {
		def.Port = partial.Port
	}
	if partial.AllowOrigin != "" {
		def.AllowOrigin = partial.AllowOrigin
	}
	if partial.AccountCount != 0 {
		def.AccountCount = partial.AccountCount
	}
	if partial.DefaultBalance != nil {
		def.DefaultBalance = partial.DefaultBalance
	}
	if partial.Mnemonic != "" {
		def.Mnemonic = partial.Mnemonic
	}
	if partial.SeedBlocks != 0 {
		def.SeedBlocks = partial.SeedBlocks
	}
	if partial.TracePoolSize != 0 {
		def.TracePoolSize = partial.TracePoolSize
	}
	if partial.TraceTimeout != 0 {
		def.TraceTimeout = partial.TraceTimeout
	}
	if partial.MaxTraceTimeout != 0 {
		def.MaxTraceTimeout = partial.MaxTraceTimeout
	}

	return def
}

// Copy creates a deep copy of the configuration.
func (c *Config) Copy() *Config {
	copied := *c

	if c.DefaultBalance != nil {
		copied.DefaultBalance = new(big.Int).Set(c.DefaultBalance)
	}

	return &copied
}

// ServerAddr returns the server address string.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
