package config

import "time"

type Config struct {
	Exchange  ExchangeConfig
	Database  DatabaseConfig
	Symbols   []string `validate:"min=1"`
	Scoring   ScoringConfig
	Selection SelectionConfig
	Reconcile ReconcileConfig
	Monitor   MonitorConfig

	MetricsAddr string
	LogLevel    string
}

type ExchangeConfig struct {
	APIKey    string
	SecretKey string
}

type DatabaseConfig struct {
	Host     string `validate:"required"`
	Port     int    `validate:"gt=0"`
	User     string `validate:"required"`
	Password string
	DBName   string `validate:"required"`
}

type ScoringConfig struct {
	RSIPeriod       int           `validate:"gt=1"`
	MomentumPeriod  int           `validate:"gt=0"`
	MinSamples      int           `validate:"gte=2"`
	MinConfidence   float64       `validate:"gte=0,lte=1"`
	StopDistanceMin float64       `validate:"gt=0"`
	StopDistanceMax float64       `validate:"gtefield=StopDistanceMin"`
	Interval        time.Duration `validate:"gt=0"`
}

type SelectionConfig struct {
	// MinScore is the candidate filter floor. The strict path runs at 0.8,
	// the exploratory path at 0.6.
	MinScore           float64       `validate:"gte=0,lte=1"`
	SelectionThreshold float64       `validate:"gte=0,lte=1"`
	PerformanceBonus   float64       `validate:"gte=0,lte=1"`
	WinRateLookback    time.Duration `validate:"gt=0"`
	LookbackWindow     time.Duration `validate:"gt=0"`
}

type ReconcileConfig struct {
	Interval       time.Duration `validate:"gt=0"`
	StalenessBound time.Duration `validate:"gt=0"`
	FetchTimeout   time.Duration `validate:"gt=0"`

	MaxRetries   int           `validate:"gte=0"`
	RetryBackoff time.Duration `validate:"gt=0"`

	BreakerThreshold int           `validate:"gt=0"`
	BreakerCooldown  time.Duration `validate:"gt=0"`

	RateLimit float64 `validate:"gt=0"`
	RateBurst int     `validate:"gt=0"`
}

type MonitorConfig struct {
	Window      time.Duration `validate:"gt=0"`
	Interval    time.Duration `validate:"gt=0"`
	MinWinRate  float64       `validate:"gte=0,lte=100"`
	MaxWinRate  float64       `validate:"gtefield=MinWinRate,lte=100"`
	TargetScore float64       `validate:"gte=0,lte=1"`
	MinTrades   int           `validate:"gte=0"`
}
