package selection

import (
	"context"
	"sort"

	"CryptoSignalEngine/config"
	"CryptoSignalEngine/internal/models"
)

type Selector struct {
	cfg  config.SelectionConfig
	perf PerformanceLookup

	marketBonus BonusProvider
	trendBonus  BonusProvider
}

func NewSelector(cfg config.SelectionConfig, perf PerformanceLookup, market, trend BonusProvider) *Selector {
	if perf == nil {
		perf = NoPerformance{}
	}
	return &Selector{
		cfg:         cfg,
		perf:        perf,
		marketBonus: market,
		trendBonus:  trend,
	}
}

// Select picks at most one tradable signal from the candidate window.
//
// Deterministic and idempotent: the ranking is a total order (quality desc,
// recency desc, symbol asc), so identical candidates and performance data
// always produce the same pick. Returns nil when no candidate clears the
// selection threshold; the selector never forces a trade.
func (s *Selector) Select(ctx context.Context, signals []*models.Signal) *Candidate {
	candidates := s.rank(ctx, signals)
	for _, c := range candidates {
		if c.Quality > s.cfg.SelectionThreshold {
			return c
		}
	}
	return nil
}

// Rank returns all qualifying candidates in selection order, best first.
func (s *Selector) Rank(ctx context.Context, signals []*models.Signal) []*Candidate {
	return s.rank(ctx, signals)
}

func (s *Selector) rank(ctx context.Context, signals []*models.Signal) []*Candidate {
	candidates := make([]*Candidate, 0, len(signals))
	for _, sig := range signals {
		if sig == nil || !sig.IsActive || sig.Score < s.cfg.MinScore {
			continue
		}
		candidates = append(candidates, s.score(ctx, sig))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Quality != b.Quality {
			return a.Quality > b.Quality
		}
		if !a.Signal.CreatedAt.Equal(b.Signal.CreatedAt) {
			return a.Signal.CreatedAt.After(b.Signal.CreatedAt)
		}
		return a.Signal.Symbol < b.Signal.Symbol
	})

	return candidates
}

func (s *Selector) score(ctx context.Context, sig *models.Signal) *Candidate {
	c := &Candidate{Signal: sig}

	if rate, completed := s.perf.WinRate(ctx, sig.Symbol, s.cfg.WinRateLookback); completed > 0 && rate > 50 {
		c.PerformanceBonus = s.cfg.PerformanceBonus
	}
	if s.marketBonus != nil {
		c.MarketBonus = s.marketBonus(sig)
	}
	if s.trendBonus != nil {
		c.TrendBonus = s.trendBonus(sig)
	}

	c.Quality = clamp01(sig.Score + c.PerformanceBonus + c.MarketBonus + c.TrendBonus)
	return c
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
