package scoring

import (
	"math"

	"CryptoSignalEngine/config"
	"CryptoSignalEngine/internal/models"
	"CryptoSignalEngine/internal/services/indicators"
)

// RSI decision levels. Values between the oversold/overbought extremes and
// the neutral band (30-40 and 60-70) intentionally produce no direction;
// this dead zone is inherited behavior and kept as-is pending product
// confirmation.
const (
	rsiOversold      = 30.0
	rsiOverbought    = 70.0
	rsiNeutralLower  = 40.0
	rsiNeutralUpper  = 60.0
	momentumTrigger  = 2.0
	extremeMaxConf   = 0.9
	extremeBaseConf  = 0.6
	momentumMaxConf  = 0.8
	momentumBaseConf = 0.5
)

type Scorer struct {
	cfg config.ScoringConfig
}

func NewScorer(cfg config.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score evaluates one symbol against its close history. It is a pure
// function of its inputs and never fails: malformed input yields an invalid
// result with a reason, matching the strategy contract that validation is a
// collaborator's job.
func (s *Scorer) Score(symbol string, currentPrice float64, closes []float64) *ScoreResult {
	if len(closes) < s.cfg.MinSamples {
		return newInvalidResult(symbol, "insufficient price history")
	}
	if currentPrice <= 0 {
		return newInvalidResult(symbol, "non-positive current price")
	}

	rsi := indicators.RSI(closes, s.cfg.RSIPeriod)
	momentum := indicators.Momentum(closes, s.cfg.MomentumPeriod)

	direction, confidence := s.decide(rsi, momentum)
	if direction == "" {
		return newInvalidResult(symbol, "no directional setup")
	}
	if confidence < s.cfg.MinConfidence {
		return newInvalidResult(symbol, "low confidence")
	}

	// Stop/target distance scales with momentum as a volatility proxy,
	// clamped to the configured band.
	distance := indicators.ClampBand(math.Abs(momentum)/100, s.cfg.StopDistanceMin, s.cfg.StopDistanceMax)
	lower, upper := indicators.VolatilityBand(currentPrice, distance)

	var stopLoss, takeProfit float64
	if direction == models.PositionSideLong {
		stopLoss, takeProfit = lower, upper
	} else {
		stopLoss, takeProfit = upper, lower
	}

	return &ScoreResult{
		IsValid:    true,
		Symbol:     symbol,
		Direction:  direction,
		Score:      confidence,
		EntryPrice: currentPrice,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		RiskReward: riskReward(currentPrice, stopLoss, takeProfit),
		RSI:        rsi,
		Momentum:   momentum,
	}
}

// decide maps indicator evidence to a direction and base confidence.
// Precedence: oversold, overbought, then momentum inside the neutral band.
func (s *Scorer) decide(rsi, momentum float64) (string, float64) {
	switch {
	case rsi < rsiOversold:
		return models.PositionSideLong, math.Min(extremeMaxConf, extremeBaseConf+(rsiOversold-rsi)/30*0.3)
	case rsi > rsiOverbought:
		return models.PositionSideShort, math.Min(extremeMaxConf, extremeBaseConf+(rsi-rsiOverbought)/30*0.3)
	case rsi >= rsiNeutralLower && rsi <= rsiNeutralUpper:
		if momentum > momentumTrigger {
			return models.PositionSideLong, math.Min(momentumMaxConf, momentumBaseConf+momentum/10)
		}
		if momentum < -momentumTrigger {
			return models.PositionSideShort, math.Min(momentumMaxConf, momentumBaseConf+math.Abs(momentum)/10)
		}
	}
	return "", 0
}
