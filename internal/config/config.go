package config

import (
	"time"

	"github.com/spf13/viper"
)

// LogConfig controls how the service logger is constructed.
type LogConfig struct {
	Level              string
	PrettyPrintConsole bool
}

// Config holds all service settings. It is built once in cmd and passed
// by value into the components that need it; nothing reads the
// environment after construction.
type Config struct {
	DatabasePath string
	KeystoreDir  string
	ChainsFile   string

	DefaultPriorityFeeGwei int64
	ReceiptTimeout         time.Duration
	PollInterval           time.Duration

	Log LogConfig
}

// DefaultServiceConfigFromEnv returns the service configuration from
// DWALLET_* environment variables, falling back to sane defaults.
func DefaultServiceConfigFromEnv() Config {
	v := viper.New()
	v.SetEnvPrefix("DWALLET")
	v.AutomaticEnv()

	v.SetDefault("db_path", "data/wallet.db")
	v.SetDefault("keystore_dir", "data/keystore")
	v.SetDefault("chains_file", "configs/chains.yaml")
	v.SetDefault("priority_fee_gwei", 2)
	v.SetDefault("receipt_timeout", "120s")
	v.SetDefault("poll_interval", "3s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", true)

	return Config{
		DatabasePath:           v.GetString("db_path"),
		KeystoreDir:            v.GetString("keystore_dir"),
		ChainsFile:             v.GetString("chains_file"),
		DefaultPriorityFeeGwei: v.GetInt64("priority_fee_gwei"),
		ReceiptTimeout:         v.GetDuration("receipt_timeout"),
		PollInterval:           v.GetDuration("poll_interval"),
		Log: LogConfig{
			Level:              v.GetString("log_level"),
			PrettyPrintConsole: v.GetBool("log_pretty"),
		},
	}
}
