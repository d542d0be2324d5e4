package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Network   NetworkConfig   `mapstructure:"network"`
	Deployer  DeployerConfig  `mapstructure:"deployer"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Output    OutputConfig    `mapstructure:"output"`
	Log       LogConfig       `mapstructure:"log"`
	Serve     ServeConfig     `mapstructure:"serve"`
}

// NetworkConfig holds RPC connection settings.
type NetworkConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	ChainID        uint64        `mapstructure:"chain_id"` // 0 accepts whatever the RPC reports
	GasLimit       uint64        `mapstructure:"gas_limit"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
}

// DeployerConfig selects the signing key.
type DeployerConfig struct {
	KeySource      string `mapstructure:"key_source"` // "hex" or "keyring"
	PrivateKey     string `mapstructure:"private_key"`
	KeyringService string `mapstructure:"keyring_service"`
	KeyringUser    string `mapstructure:"keyring_user"`
}

// ArtifactsConfig holds the compiled contract location.
type ArtifactsConfig struct {
	Dir string `mapstructure:"dir"`
}

// LedgerConfig holds the run ledger database settings.
type LedgerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// OutputConfig holds report file destinations. Empty paths disable a report.
type OutputConfig struct {
	JSONPath  string `mapstructure:"json_path"`
	EnvPath   string `mapstructure:"env_path"`
	EnvPrefix string `mapstructure:"env_prefix"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServeConfig holds the ledger API server settings.
type ServeConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server address in host:port format.
func (c ServeConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"log-level":       "log.level",
	"log-format":      "log.format",
	"rpc-url":         "network.rpc_url",
	"chain-id":        "network.chain_id",
	"gas-limit":       "network.gas_limit",
	"confirm-timeout": "network.confirm_timeout",
	"key-source":      "deployer.key_source",
	"private-key":     "deployer.private_key",
	"keyring-service": "deployer.keyring_service",
	"keyring-user":    "deployer.keyring_user",
	"artifacts":       "artifacts.dir",
	"ledger":          "ledger.enabled",
	"ledger-dsn":      "ledger.dsn",
	"json-out":        "output.json_path",
	"env-out":         "output.env_path",
	"env-prefix":      "output.env_prefix",
	"host":            "serve.host",
	"port":            "serve.port",
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from defaults, an optional file, the
// environment and finally flags, each overriding the one before.
// flags may be nil.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("network.rpc_url", "http://127.0.0.1:8545")
	v.SetDefault("network.chain_id", 0)
	v.SetDefault("network.gas_limit", 0)
	v.SetDefault("network.confirm_timeout", "5m")
	v.SetDefault("deployer.key_source", "hex")
	v.SetDefault("deployer.private_key", "")
	v.SetDefault("deployer.keyring_service", "chaindeploy")
	v.SetDefault("deployer.keyring_user", "deployer")
	v.SetDefault("artifacts.dir", "./artifacts")
	v.SetDefault("ledger.enabled", false)
	v.SetDefault("ledger.dsn", "./data/chaindeploy.db")
	v.SetDefault("output.json_path", "")
	v.SetDefault("output.env_path", "")
	v.SetDefault("output.env_prefix", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("serve.host", "127.0.0.1")
	v.SetDefault("serve.port", 8090)
	v.SetDefault("serve.read_timeout", "30s")
	v.SetDefault("serve.write_timeout", "30s")
	v.SetDefault("serve.shutdown_timeout", "10s")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only a malformed file is an error; a missing one falls back to defaults
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("CHAINDEPLOY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindFlags(v, flags); err != nil {
		return nil, err
	}

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// bindFlags binds every known flag present in flags. Unset flags do not
// override file or environment values.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format. Logs go
// to w, which is stderr in production so stdout carries only the summary.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
