package models

import "time"

// Position is one ledger slot occupancy. The partial unique index on
// (symbol, side) over open rows makes the one-open-per-slot invariant hold
// in the database itself, not just in the repository's pre-insert check.
type Position struct {
	ID         uint    `gorm:"primaryKey"`
	Symbol     string  `gorm:"index;not null;uniqueIndex:idx_positions_open_slot,where:status = 'open'"`
	Side       string  `gorm:"not null;uniqueIndex:idx_positions_open_slot,where:status = 'open'"`
	Quantity   float64 `gorm:"type:decimal(20,8);not null"`
	EntryPrice float64 `gorm:"type:decimal(20,8);not null"`

	CurrentPrice   float64   `gorm:"type:decimal(20,8)"`
	PriceUpdatedAt time.Time `gorm:"index"`
	UnrealizedPnL  float64   `gorm:"type:decimal(20,8)"`

	Status      string  `gorm:"index;not null"`
	RealizedPnL float64 `gorm:"type:decimal(20,8)"`
	CloseReason string
	Source      string `gorm:"not null"`

	OpenTime  time.Time `gorm:"index;not null"`
	CloseTime time.Time `gorm:"index"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

const (
	PositionStatusOpen   = "open"
	PositionStatusClosed = "closed"

	PositionSideLong  = "long"
	PositionSideShort = "short"

	// Reconciliation writes CloseReasonManualDetected; the remaining
	// reasons belong to execution collaborators closing through the
	// repository's Close.
	CloseReasonTargetHit      = "target_hit"
	CloseReasonStopHit        = "stop_hit"
	CloseReasonManualDetected = "manual_close_detected"
	CloseReasonExternalSync   = "external_sync_closed"

	PositionSourceSignal   = "signal"
	PositionSourceExchange = "exchange_import"
)

// SlotKey identifies the ledger slot a position occupies. At most one open
// position may exist per slot.
func (p *Position) SlotKey() string {
	return p.Symbol + "|" + p.Side
}

// PnLAt computes the directional profit for this position at the given price.
func (p *Position) PnLAt(price float64) float64 {
	if p.Side == PositionSideLong {
		return (price - p.EntryPrice) * p.Quantity
	}
	return (p.EntryPrice - price) * p.Quantity
}

func (p *Position) IsOpen() bool {
	return p.Status == PositionStatusOpen
}
