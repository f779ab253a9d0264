package handlers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"CryptoSignalEngine/config"
	"CryptoSignalEngine/internal/metrics"
	"CryptoSignalEngine/internal/models"
	"CryptoSignalEngine/internal/repositories"
	"CryptoSignalEngine/internal/services/scoring"
	"CryptoSignalEngine/internal/services/selection"
)

// SignalHandler drives the scoring and selection loop: score every symbol
// on each tick, persist valid signals, then run the selector over the
// active candidate window and consume the pick.
type SignalHandler struct {
	priceRepo  *repositories.PriceRepository
	signalRepo *repositories.SignalRepository
	scorer     *scoring.Scorer
	selector   *selection.Selector

	symbols   []string
	timeFrame string

	scoringCfg   config.ScoringConfig
	selectionCfg config.SelectionConfig
}

func NewSignalHandler(
	priceRepo *repositories.PriceRepository,
	signalRepo *repositories.SignalRepository,
	scorer *scoring.Scorer,
	selector *selection.Selector,
	symbols []string,
	timeFrame string,
	scoringCfg config.ScoringConfig,
	selectionCfg config.SelectionConfig,
) *SignalHandler {
	return &SignalHandler{
		priceRepo:    priceRepo,
		signalRepo:   signalRepo,
		scorer:       scorer,
		selector:     selector,
		symbols:      symbols,
		timeFrame:    timeFrame,
		scoringCfg:   scoringCfg,
		selectionCfg: selectionCfg,
	}
}

func (h *SignalHandler) Start(ctx context.Context) error {
	go h.run(ctx)
	return nil
}

func (h *SignalHandler) run(ctx context.Context) {
	ticker := time.NewTicker(h.scoringCfg.Interval)
	defer ticker.Stop()

	log.Info().Strs("symbols", h.symbols).Msg("starting signal loop")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping signal loop")
			return
		case <-ticker.C:
			h.scoreSymbols(ctx)
			h.selectSignal(ctx)
		}
	}
}

func (h *SignalHandler) scoreSymbols(ctx context.Context) {
	for _, symbol := range h.symbols {
		prices, err := h.priceRepo.RecentCloses(ctx, symbol, h.timeFrame, h.scoringCfg.MinSamples)
		if err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("failed to load price history")
			continue
		}
		if len(prices) == 0 {
			continue
		}

		closes := models.Closes(prices)
		result := h.scorer.Score(symbol, closes[len(closes)-1], closes)
		if !result.IsValid {
			log.Debug().Str("symbol", symbol).Str("reason", result.Reason).Msg("no signal")
			continue
		}

		signal := result.Signal(time.Now())
		if err := h.signalRepo.Create(ctx, signal); err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("failed to save signal")
			continue
		}

		metrics.SignalsScored.WithLabelValues(symbol, signal.Direction).Inc()
		log.Info().
			Str("symbol", symbol).
			Str("direction", signal.Direction).
			Float64("score", signal.Score).
			Float64("entry", signal.EntryPrice).
			Msg("signal scored")
	}
}

func (h *SignalHandler) selectSignal(ctx context.Context) {
	now := time.Now()
	cutoff := now.Add(-h.selectionCfg.LookbackWindow)

	if err := h.signalRepo.DeactivateExpired(ctx, cutoff); err != nil {
		log.Error().Err(err).Msg("failed to expire stale signals")
		return
	}

	signals, err := h.signalRepo.FindActiveSince(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("failed to load candidate signals")
		return
	}

	candidates := make([]*models.Signal, len(signals))
	for i := range signals {
		candidates[i] = &signals[i]
	}

	pick := h.selector.Select(ctx, candidates)
	if pick == nil {
		return
	}

	// The pick is consumed: downstream execution takes it from here and a
	// consumed signal never competes in the next window.
	if err := h.signalRepo.Deactivate(ctx, []uint{pick.Signal.ID}); err != nil {
		log.Error().Err(err).Uint("signal_id", pick.Signal.ID).Msg("failed to consume signal")
		return
	}

	metrics.SignalsSelected.WithLabelValues(pick.Signal.Symbol).Inc()
	log.Info().
		Str("symbol", pick.Signal.Symbol).
		Str("direction", pick.Signal.Direction).
		Float64("quality", pick.Quality).
		Float64("score", pick.Signal.Score).
		Msg("signal selected")
}
