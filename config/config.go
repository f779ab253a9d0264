package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

func Load() (*Config, error) {
	// Missing .env is fine when the environment is set by the runtime.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg := &Config{
		Exchange: ExchangeConfig{
			APIKey:    os.Getenv("BINANCE_API_KEY"),
			SecretKey: os.Getenv("BINANCE_SECRET_KEY"),
		},
		Database: DatabaseConfig{
			Host:     envString("DB_HOST", "localhost"),
			Port:     envInt("DB_PORT", 5432),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   os.Getenv("DB_NAME"),
		},
		Symbols: getSymbols(),
		Scoring: ScoringConfig{
			RSIPeriod:       envInt("SCORING_RSI_PERIOD", 14),
			MomentumPeriod:  envInt("SCORING_MOMENTUM_PERIOD", 10),
			MinSamples:      envInt("SCORING_MIN_SAMPLES", 20),
			MinConfidence:   envFloat("SCORING_MIN_CONFIDENCE", 0.6),
			StopDistanceMin: envFloat("SCORING_STOP_DISTANCE_MIN", 0.015),
			StopDistanceMax: envFloat("SCORING_STOP_DISTANCE_MAX", 0.03),
			Interval:        envDuration("SCORING_INTERVAL", 5*time.Minute),
		},
		Selection: SelectionConfig{
			MinScore:           envFloat("SELECTION_MIN_SCORE", 0.6),
			SelectionThreshold: envFloat("SELECTION_THRESHOLD", 0.8),
			PerformanceBonus:   envFloat("SELECTION_PERFORMANCE_BONUS", 0.05),
			WinRateLookback:    envDuration("SELECTION_WIN_RATE_LOOKBACK", 7*24*time.Hour),
			LookbackWindow:     envDuration("SELECTION_LOOKBACK_WINDOW", 24*time.Hour),
		},
		Reconcile: ReconcileConfig{
			Interval:         envDuration("RECONCILE_INTERVAL", time.Minute),
			StalenessBound:   envDuration("RECONCILE_STALENESS_BOUND", 5*time.Minute),
			FetchTimeout:     envDuration("RECONCILE_FETCH_TIMEOUT", 10*time.Second),
			MaxRetries:       envInt("RECONCILE_MAX_RETRIES", 3),
			RetryBackoff:     envDuration("RECONCILE_RETRY_BACKOFF", 100*time.Millisecond),
			BreakerThreshold: envInt("RECONCILE_BREAKER_THRESHOLD", 5),
			BreakerCooldown:  envDuration("RECONCILE_BREAKER_COOLDOWN", 30*time.Second),
			RateLimit:        envFloat("RECONCILE_RATE_LIMIT", 10),
			RateBurst:        envInt("RECONCILE_RATE_BURST", 20),
		},
		Monitor: MonitorConfig{
			Window:      envDuration("MONITOR_WINDOW", 24*time.Hour),
			Interval:    envDuration("MONITOR_INTERVAL", 15*time.Minute),
			MinWinRate:  envFloat("MONITOR_MIN_WIN_RATE", 40),
			MaxWinRate:  envFloat("MONITOR_MAX_WIN_RATE", 95),
			TargetScore: envFloat("MONITOR_TARGET_SCORE", 0.7),
			MinTrades:   envInt("MONITOR_MIN_TRADES", 1),
		},
		MetricsAddr: envString("METRICS_ADDR", ":9090"),
		LogLevel:    envString("LOG_LEVEL", "info"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// helper env(string) to string with default
func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// helper env(string) to int with default
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// helper env(string) to float with default
func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// helper env(string) to duration with default
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// helper to get symbols
func getSymbols() []string {
	symbols := os.Getenv("TRADING_SYMBOLS")
	if symbols == "" {
		return []string{"BTCUSDT", "ETHUSDT"} // Default pairs if none specified
	}
	return strings.Split(symbols, ",")
}
