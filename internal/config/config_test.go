package config_test

import (
	"testing"
	"time"

	"dwallet/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestDefaultServiceConfigFromEnv(t *testing.T) {
	cfg := config.DefaultServiceConfigFromEnv()

	assert.Equal(t, "data/wallet.db", cfg.DatabasePath)
	assert.Equal(t, "data/keystore", cfg.KeystoreDir)
	assert.Equal(t, "configs/chains.yaml", cfg.ChainsFile)
	assert.Equal(t, int64(2), cfg.DefaultPriorityFeeGwei)
	assert.Equal(t, 120*time.Second, cfg.ReceiptTimeout)
	assert.Equal(t, 3*time.Second, cfg.PollInterval)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestConfigEnvOverrides(t *testing.T) {
	t.Setenv("DWALLET_DB_PATH", "/tmp/other.db")
	t.Setenv("DWALLET_PRIORITY_FEE_GWEI", "5")
	t.Setenv("DWALLET_RECEIPT_TIMEOUT", "30s")
	t.Setenv("DWALLET_LOG_LEVEL", "debug")

	cfg := config.DefaultServiceConfigFromEnv()

	assert.Equal(t, "/tmp/other.db", cfg.DatabasePath)
	assert.Equal(t, int64(5), cfg.DefaultPriorityFeeGwei)
	assert.Equal(t, 30*time.Second, cfg.ReceiptTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoggerLevelFallback(t *testing.T) {
	cfg := config.Config{Log: config.LogConfig{Level: "not-a-level"}}

	logger := cfg.Logger()
	assert.Equal(t, "info", logger.GetLevel().String())
}
