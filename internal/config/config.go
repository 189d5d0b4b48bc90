package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every recognized Aurora option. Values come from the
// environment with documented defaults; only the vendor credentials and the
// store path are required for a real run.
type Config struct {
	Environment string
	LogLevel    string

	Vendor struct {
		BaseURL string
		Token   string
		Timeout time.Duration
	}

	Store struct {
		Path string
	}

	Tickers struct {
		Primary    string
		FridayOnly []string
	}

	Pipeline struct {
		TickInterval    time.Duration
		WeightsTTL      time.Duration
		TickSize        float64
		ValueAreaFrac   float64
		IBDuration      time.Duration
		ORBDuration     time.Duration
		ConfidenceFloor float64
	}

	Grading struct {
		WinRateFloor      float64
		RollingWindowDays int
		DegradationAlert  float64
		MinGradedForAlert int
	}

	Evolution struct {
		PopulationSize int
		EliteCount     int
		MutationRate   float64
		CrossoverRate  float64
	}

	Risk struct {
		StopLossPct    float64
		TargetMultiple float64
		ATRFallback    float64
	}

	Monitoring struct {
		MetricsPort int
		HealthPort  int
	}
}

// Load reads the configuration from the environment.
func Load() *Config {
	cfg := &Config{
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}

	cfg.Vendor.BaseURL = getEnv("VENDOR_BASE_URL", "")
	cfg.Vendor.Token = getEnv("VENDOR_TOKEN", "")
	cfg.Vendor.Timeout = getEnvDuration("VENDOR_TIMEOUT", 10*time.Second)

	cfg.Store.Path = getEnv("AURORA_DB_PATH", "aurora.db")

	cfg.Tickers.Primary = getEnv("PRIMARY_TICKER", "SPY")
	cfg.Tickers.FridayOnly = getEnvList("FRIDAY_TICKERS", nil)

	cfg.Pipeline.TickInterval = getEnvDuration("TICK_INTERVAL", 30*time.Second)
	cfg.Pipeline.WeightsTTL = getEnvDuration("WEIGHTS_TTL", 60*time.Second)
	cfg.Pipeline.TickSize = getEnvFloat("TPO_TICK_SIZE", 0.25)
	cfg.Pipeline.ValueAreaFrac = getEnvFloat("VALUE_AREA_FRACTION", 0.70)
	cfg.Pipeline.IBDuration = getEnvDuration("IB_DURATION", 60*time.Minute)
	cfg.Pipeline.ORBDuration = getEnvDuration("ORB_DURATION", 30*time.Minute)
	cfg.Pipeline.ConfidenceFloor = getEnvFloat("CONFIDENCE_FLOOR", 60)

	cfg.Grading.WinRateFloor = getEnvFloat("WIN_RATE_FLOOR", 0.60)
	cfg.Grading.RollingWindowDays = getEnvInt("ROLLING_WINDOW_DAYS", 7)
	cfg.Grading.DegradationAlert = getEnvFloat("DEGRADATION_ALERT_THRESHOLD", 0.10)
	cfg.Grading.MinGradedForAlert = getEnvInt("MIN_GRADED_FOR_ALERT", 10)

	cfg.Evolution.PopulationSize = getEnvInt("GA_POPULATION_SIZE", 50)
	cfg.Evolution.EliteCount = getEnvInt("GA_ELITE_COUNT", 5)
	cfg.Evolution.MutationRate = getEnvFloat("GA_MUTATION_RATE", 0.15)
	cfg.Evolution.CrossoverRate = getEnvFloat("GA_CROSSOVER_RATE", 0.7)

	cfg.Risk.StopLossPct = getEnvFloat("RISK_STOP_LOSS_PCT", 0.5)
	cfg.Risk.TargetMultiple = getEnvFloat("RISK_TARGET_MULTIPLE", 2.0)
	cfg.Risk.ATRFallback = getEnvFloat("RISK_ATR_FALLBACK", 2.0)

	cfg.Monitoring.MetricsPort = getEnvInt("METRICS_PORT", 9090)
	cfg.Monitoring.HealthPort = getEnvInt("HEALTH_PORT", 9091)

	return cfg
}

// Validate refuses a partial bring-up: the daemon will not start without
// vendor credentials and a store path.
func (c *Config) Validate() error {
	if c.Vendor.BaseURL == "" {
		return fmt.Errorf("VENDOR_BASE_URL is required")
	}
	if c.Vendor.Token == "" {
		return fmt.Errorf("VENDOR_TOKEN is required")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("AURORA_DB_PATH is required")
	}
	if c.Tickers.Primary == "" {
		return fmt.Errorf("PRIMARY_TICKER is required")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parts := strings.Split(val, ",")
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
