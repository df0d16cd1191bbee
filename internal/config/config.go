// Package config provides configuration management functionality.
//
// The operator configuration lives in a YAML file (telegram credentials,
// venue credentials, network selection). A .env file / environment variables
// override the file path, data directory and log level only; credentials are
// never read from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// botTokenPattern is the shape of a Telegram bot token: numeric bot id,
// a colon, then the secret part.
var botTokenPattern = regexp.MustCompile(`^\d+:[\w-]{35,}$`)

// Config holds the full application configuration. The validator's content
// hash is computed over this entire structure, so adding a field here makes
// a config change that triggers revalidation.
type Config struct {
	Telegram    TelegramConfig    `yaml:"telegram" json:"telegram"`
	Hyperliquid HyperliquidConfig `yaml:"hyperliquid" json:"hyperliquid"`

	// Not part of the YAML file; resolved from the environment
	DataDir  string `yaml:"-" json:"-"`
	LogLevel string `yaml:"-" json:"-"`
}

// TelegramConfig holds messaging credentials and the operator identity.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token" json:"bot_token"`
	UserID   int64  `yaml:"user_id" json:"user_id"`
}

// HyperliquidConfig holds venue credentials and network selection.
type HyperliquidConfig struct {
	WalletAddress string `yaml:"wallet_address" json:"wallet_address"`
	PrivateKey    string `yaml:"private_key" json:"private_key"`
	Testnet       bool   `yaml:"testnet" json:"testnet"`
}

// Load reads the configuration file and applies environment overrides.
// Structural validation runs as part of loading; a config that loads is
// well-formed (external validity is the validator's job).
func Load() (*Config, error) {
	// Load .env if present; real environment wins
	_ = godotenv.Load()

	path := getEnv("SIP_CONFIG_FILE", "config.yaml")
	return LoadFile(path)
}

// LoadFile reads and validates the configuration from a specific path.
func LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file %q not found; create it before running the bot", path)
		}
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}

	dataDir := getEnv("SIP_DATA_DIR", "data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	cfg.DataDir = absDataDir
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate performs the structural checks: required fields present, in the
// right format, credentials parseable. Every finding is collected and
// reported in one aggregated error.
func (c *Config) Validate() error {
	var errs []string

	if c.Telegram.BotToken == "" {
		errs = append(errs, "missing telegram.bot_token")
	} else if !botTokenPattern.MatchString(c.Telegram.BotToken) {
		errs = append(errs, "invalid telegram.bot_token format")
	}

	if c.Telegram.UserID == 0 {
		errs = append(errs, "telegram.user_id must be a non-zero integer")
	}

	if c.Hyperliquid.WalletAddress == "" {
		errs = append(errs, "missing hyperliquid.wallet_address")
	} else if !common.IsHexAddress(c.Hyperliquid.WalletAddress) {
		errs = append(errs, "hyperliquid.wallet_address is not a valid address")
	}

	if c.Hyperliquid.PrivateKey == "" {
		errs = append(errs, "missing hyperliquid.private_key")
	} else if _, err := crypto.HexToECDSA(strings.TrimPrefix(c.Hyperliquid.PrivateKey, "0x")); err != nil {
		errs = append(errs, "invalid hyperliquid.private_key")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}

// DatabasePath returns the database file for the configured network.
// Testnet and mainnet plans never share a file.
func (c *Config) DatabasePath() string {
	name := "mainnet.db"
	if c.Hyperliquid.Testnet {
		name = "testnet.db"
	}
	return filepath.Join(c.DataDir, name)
}

// IsMainnet reports whether the venue's production network is configured.
func (c *Config) IsMainnet() bool {
	return !c.Hyperliquid.Testnet
}

// getEnv retrieves an environment variable value, returning a fallback if
// the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
