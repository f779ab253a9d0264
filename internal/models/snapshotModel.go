package models

// ExchangePosition is a point-in-time view of a position held on the
// exchange. It is consumed once per reconciliation cycle and never persisted.
type ExchangePosition struct {
	Symbol        string
	Side          string
	Quantity      float64
	EntryPrice    float64
	MarkPrice     float64
	UnrealizedPnL float64
}

func (e *ExchangePosition) SlotKey() string {
	return e.Symbol + "|" + e.Side
}
