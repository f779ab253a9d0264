package models

import (
	"math"
	"time"
)

type Signal struct {
	ID        uint    `gorm:"primaryKey"`
	Symbol    string  `gorm:"index;not null"`
	Direction string  `gorm:"not null"`
	Score     float64 `gorm:"type:decimal(20,8);not null"`

	EntryPrice float64 `gorm:"type:decimal(20,8);not null"`
	StopLoss   float64 `gorm:"type:decimal(20,8);not null"`
	TakeProfit float64 `gorm:"type:decimal(20,8);not null"`
	RiskReward float64 `gorm:"type:decimal(20,8);not null"`

	// Indicator evidence captured at scoring time. A signal is never
	// rescored in place; a new record is created instead.
	RSI      float64 `gorm:"type:decimal(20,8)"`
	Momentum float64 `gorm:"type:decimal(20,8)"`

	IsActive  bool      `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"index;autoCreateTime"`
}

func (Signal) TableName() string {
	return "signals"
}

// Validate checks the price-level ordering and risk invariants.
func (s *Signal) Validate() error {
	if s.EntryPrice <= 0 || s.StopLoss <= 0 || s.TakeProfit <= 0 {
		return ErrInvalidRisk
	}
	switch s.Direction {
	case PositionSideLong:
		if !(s.StopLoss < s.EntryPrice && s.EntryPrice < s.TakeProfit) {
			return ErrInvalidRisk
		}
	case PositionSideShort:
		if !(s.TakeProfit < s.EntryPrice && s.EntryPrice < s.StopLoss) {
			return ErrInvalidRisk
		}
	default:
		return ErrInvalidRisk
	}
	risk := math.Abs(s.EntryPrice - s.StopLoss)
	if risk == 0 || s.RiskReward <= 0 || math.IsInf(s.RiskReward, 0) || math.IsNaN(s.RiskReward) {
		return ErrInvalidRisk
	}
	return nil
}
