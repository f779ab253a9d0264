package selection

import (
	"context"
	"time"

	"CryptoSignalEngine/internal/models"
)

// PerformanceLookup supplies trailing realized performance per symbol.
// Completed trades are those with nonzero realized PnL.
type PerformanceLookup interface {
	WinRate(ctx context.Context, symbol string, lookback time.Duration) (rate float64, completed int)
}

// BonusProvider is an injected contextual adjustment (market regime, trend
// alignment). The source hardcoded these as always-on constants; here they
// are pluggable and default to none.
type BonusProvider func(signal *models.Signal) float64

// Candidate is a scored signal with its quality breakdown.
type Candidate struct {
	Signal *models.Signal

	Quality          float64
	PerformanceBonus float64
	MarketBonus      float64
	TrendBonus       float64
}

// NoPerformance is a PerformanceLookup with no history; no symbol earns the
// performance bonus.
type NoPerformance struct{}

func (NoPerformance) WinRate(context.Context, string, time.Duration) (float64, int) {
	return 0, 0
}
