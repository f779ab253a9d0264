package handlers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"CryptoSignalEngine/internal/repositories"
)

// StoredPerformance adapts the position repository to the selector's
// PerformanceLookup. A query failure is logged and reported as no history,
// which simply withholds the performance bonus rather than blocking
// selection.
type StoredPerformance struct {
	repo *repositories.PositionRepository
}

func NewStoredPerformance(repo *repositories.PositionRepository) *StoredPerformance {
	return &StoredPerformance{repo: repo}
}

func (s *StoredPerformance) WinRate(ctx context.Context, symbol string, lookback time.Duration) (float64, int) {
	rate, completed, err := s.repo.WinRateSince(ctx, symbol, time.Now().Add(-lookback))
	if err != nil {
		log.Error().Err(err).Str("symbol", symbol).Msg("failed to compute trailing win rate")
		return 0, 0
	}
	return rate, completed
}
