package reconcile

import (
	"context"
	"time"

	"CryptoSignalEngine/internal/models"
)

// Store is the ledger persistence collaborator. ApplyCycle must apply the
// whole plan atomically; a partially applied cycle would orphan positions.
type Store interface {
	FindOpenPositions(ctx context.Context) ([]models.Position, error)
	FindOpenBySymbol(ctx context.Context, symbol string) ([]models.Position, error)
	ApplyCycle(ctx context.Context, plan *CyclePlan) error
	UpdateMark(ctx context.Context, id uint, price, pnl float64, at time.Time) error
}

// Feed supplies point-in-time exchange position snapshots. An empty slice
// means "no open positions" and is not an error.
type Feed interface {
	FetchPositions(ctx context.Context) ([]models.ExchangePosition, error)
}

// Close records one externally detected close to be applied.
type Close struct {
	PositionID uint
	Reason     string
	ClosePrice float64
	PnL        float64
	At         time.Time

	// Stale marks a close priced from a CurrentPrice older than the
	// configured staleness bound. The close proceeds on best available
	// data; the flag is surfaced for the monitor.
	Stale bool
}

// Refresh updates mark price and unrealized PnL for a matched position.
// Entry price and quantity are immutable once opened.
type Refresh struct {
	PositionID    uint
	Price         float64
	UnrealizedPnL float64
	At            time.Time
}

// CyclePlan is the full set of ledger mutations one cycle produces.
type CyclePlan struct {
	Closes    []Close
	Imports   []models.Position
	Refreshes []Refresh
}

func (p *CyclePlan) Empty() bool {
	return len(p.Closes) == 0 && len(p.Imports) == 0 && len(p.Refreshes) == 0
}

// CycleSummary reports what one reconciliation cycle did. Operator-visible
// output is counts, never raw failures.
type CycleSummary struct {
	Synced      int
	Closed      int
	Imported    int
	StaleCloses int

	StartedAt  time.Time
	FinishedAt time.Time
}
