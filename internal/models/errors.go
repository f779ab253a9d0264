package models

import "errors"

// Invariant violations indicate a caller bug, not a transient condition.
// They are returned as-is so callers can match with errors.Is.
var (
	ErrDuplicateOpenPosition = errors.New("open position already exists for symbol and side")
	ErrPositionClosed        = errors.New("position is already closed")
	ErrInvalidRisk           = errors.New("signal has invalid price levels or zero risk")
)
