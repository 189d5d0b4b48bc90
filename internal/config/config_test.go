package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.Vendor.Timeout)
	assert.Equal(t, "aurora.db", cfg.Store.Path)
	assert.Equal(t, "SPY", cfg.Tickers.Primary)
	assert.Nil(t, cfg.Tickers.FridayOnly)

	assert.Equal(t, 30*time.Second, cfg.Pipeline.TickInterval)
	assert.Equal(t, 60*time.Second, cfg.Pipeline.WeightsTTL)
	assert.Equal(t, 0.25, cfg.Pipeline.TickSize)
	assert.Equal(t, 0.70, cfg.Pipeline.ValueAreaFrac)
	assert.Equal(t, 60*time.Minute, cfg.Pipeline.IBDuration)
	assert.Equal(t, 30*time.Minute, cfg.Pipeline.ORBDuration)
	assert.Equal(t, 60.0, cfg.Pipeline.ConfidenceFloor)

	assert.Equal(t, 0.60, cfg.Grading.WinRateFloor)
	assert.Equal(t, 7, cfg.Grading.RollingWindowDays)
	assert.Equal(t, 50, cfg.Evolution.PopulationSize)
	assert.Equal(t, 5, cfg.Evolution.EliteCount)
	assert.Equal(t, 0.15, cfg.Evolution.MutationRate)
	assert.Equal(t, 0.7, cfg.Evolution.CrossoverRate)

	assert.Equal(t, 9090, cfg.Monitoring.MetricsPort)
	assert.Equal(t, 9091, cfg.Monitoring.HealthPort)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("VENDOR_BASE_URL", "https://feed.example.com")
	t.Setenv("VENDOR_TOKEN", "secret")
	t.Setenv("TICK_INTERVAL", "10s")
	t.Setenv("PRIMARY_TICKER", "QQQ")
	t.Setenv("FRIDAY_TICKERS", "ASTS, SMCI,,IBIT")
	t.Setenv("WIN_RATE_FLOOR", "0.55")
	t.Setenv("GA_POPULATION_SIZE", "100")

	cfg := Load()

	assert.Equal(t, "https://feed.example.com", cfg.Vendor.BaseURL)
	assert.Equal(t, "secret", cfg.Vendor.Token)
	assert.Equal(t, 10*time.Second, cfg.Pipeline.TickInterval)
	assert.Equal(t, "QQQ", cfg.Tickers.Primary)
	assert.Equal(t, []string{"ASTS", "SMCI", "IBIT"}, cfg.Tickers.FridayOnly)
	assert.Equal(t, 0.55, cfg.Grading.WinRateFloor)
	assert.Equal(t, 100, cfg.Evolution.PopulationSize)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("TICK_INTERVAL", "soon")
	t.Setenv("GA_MUTATION_RATE", "lots")
	t.Setenv("METRICS_PORT", "eighty")

	cfg := Load()

	assert.Equal(t, 30*time.Second, cfg.Pipeline.TickInterval)
	assert.Equal(t, 0.15, cfg.Evolution.MutationRate)
	assert.Equal(t, 9090, cfg.Monitoring.MetricsPort)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Load()
		cfg.Vendor.BaseURL = "https://feed.example.com"
		cfg.Vendor.Token = "secret"
		return cfg
	}

	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Vendor.BaseURL = ""
	assert.ErrorContains(t, cfg.Validate(), "VENDOR_BASE_URL")

	cfg = valid()
	cfg.Vendor.Token = ""
	assert.ErrorContains(t, cfg.Validate(), "VENDOR_TOKEN")

	cfg = valid()
	cfg.Store.Path = ""
	assert.ErrorContains(t, cfg.Validate(), "AURORA_DB_PATH")

	cfg = valid()
	cfg.Tickers.Primary = ""
	assert.ErrorContains(t, cfg.Validate(), "PRIMARY_TICKER")
}
