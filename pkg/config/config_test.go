package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ModePaper, cfg.Mode)
	assert.Equal(t, "XBTUSD", cfg.Pair)
	assert.True(t, cfg.InitialBalance.Equal(decimal.NewFromInt(1000)))
	assert.True(t, cfg.RetentionFactor.Equal(decimal.RequireFromString("0.99")))
	assert.Equal(t, time.Hour, cfg.CycleInterval)
	assert.Equal(t, 60, cfg.OHLCInterval)
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	t.Setenv("TRADING_MODE", "backtest")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadLiveRequiresCredentials(t *testing.T) {
	t.Setenv("TRADING_MODE", "live")
	t.Setenv("KRAKEN_API_KEY", "")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("KRAKEN_API_KEY", "key")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ModeLive, cfg.Mode)
}

func TestLoadRejectsBadRetention(t *testing.T) {
	t.Setenv("RETENTION_FACTOR", "1.5")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("INITIAL_BALANCE", "2500.50")
	t.Setenv("CYCLE_INTERVAL", "30m")
	t.Setenv("USE_MOCK_FEED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.InitialBalance.Equal(decimal.RequireFromString("2500.50")))
	assert.Equal(t, 30*time.Minute, cfg.CycleInterval)
	assert.True(t, cfg.UseMockFeed)
}
