package scoring

import (
	"math"
	"time"

	"CryptoSignalEngine/internal/models"
)

// ScoreResult represents the output of scoring one symbol at one price.
type ScoreResult struct {
	// Core fields
	IsValid   bool
	Direction string // "long" or "short"
	Reason    string // If invalid, explains why

	// Price levels
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	RiskReward float64

	// Confidence and evidence
	Score    float64
	RSI      float64
	Momentum float64

	Symbol string
}

// Signal converts a valid result into a persistable signal record.
func (r *ScoreResult) Signal(now time.Time) *models.Signal {
	if !r.IsValid {
		return nil
	}
	return &models.Signal{
		Symbol:     r.Symbol,
		Direction:  r.Direction,
		Score:      r.Score,
		EntryPrice: r.EntryPrice,
		StopLoss:   r.StopLoss,
		TakeProfit: r.TakeProfit,
		RiskReward: r.RiskReward,
		RSI:        r.RSI,
		Momentum:   r.Momentum,
		IsActive:   true,
		CreatedAt:  now,
	}
}

// Helper function for invalid results
func newInvalidResult(symbol, reason string) *ScoreResult {
	return &ScoreResult{
		IsValid: false,
		Symbol:  symbol,
		Reason:  reason,
	}
}

func riskReward(entry, stop, target float64) float64 {
	risk := math.Abs(entry - stop)
	if risk == 0 {
		return 0
	}
	return math.Abs(target-entry) / risk
}
