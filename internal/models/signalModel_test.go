package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validLongSignal() *Signal {
	return &Signal{
		Symbol:     "BTCUSDT",
		Direction:  PositionSideLong,
		Score:      0.8,
		EntryPrice: 100,
		StopLoss:   98,
		TakeProfit: 103,
		RiskReward: 1.5,
	}
}

func TestSignalValidateAcceptsOrderedLevels(t *testing.T) {
	assert.NoError(t, validLongSignal().Validate())

	short := &Signal{
		Symbol:     "BTCUSDT",
		Direction:  PositionSideShort,
		Score:      0.8,
		EntryPrice: 100,
		StopLoss:   103,
		TakeProfit: 98,
		RiskReward: 0.667,
	}
	assert.NoError(t, short.Validate())
}

func TestSignalValidateRejectsInvertedLevels(t *testing.T) {
	sig := validLongSignal()
	sig.StopLoss, sig.TakeProfit = sig.TakeProfit, sig.StopLoss
	assert.ErrorIs(t, sig.Validate(), ErrInvalidRisk)
}

func TestSignalValidateRejectsZeroRisk(t *testing.T) {
	sig := validLongSignal()
	sig.StopLoss = sig.EntryPrice
	assert.ErrorIs(t, sig.Validate(), ErrInvalidRisk)
}

func TestSignalValidateRejectsNonPositivePrices(t *testing.T) {
	sig := validLongSignal()
	sig.EntryPrice = 0
	assert.ErrorIs(t, sig.Validate(), ErrInvalidRisk)
}

func TestSignalValidateRejectsUnknownDirection(t *testing.T) {
	sig := validLongSignal()
	sig.Direction = "sideways"
	assert.ErrorIs(t, sig.Validate(), ErrInvalidRisk)
}

func TestPositionPnLAt(t *testing.T) {
	long := &Position{Side: PositionSideLong, EntryPrice: 100, Quantity: 2}
	assert.InDelta(t, 10.0, long.PnLAt(105), 1e-9)
	assert.InDelta(t, -10.0, long.PnLAt(95), 1e-9)

	short := &Position{Side: PositionSideShort, EntryPrice: 100, Quantity: 2}
	assert.InDelta(t, -10.0, short.PnLAt(105), 1e-9)
	assert.InDelta(t, 10.0, short.PnLAt(95), 1e-9)
}

func TestSlotKeyDistinguishesSides(t *testing.T) {
	long := &Position{Symbol: "BTCUSDT", Side: PositionSideLong}
	short := &Position{Symbol: "BTCUSDT", Side: PositionSideShort}
	assert.NotEqual(t, long.SlotKey(), short.SlotKey())
}
