package handlers

import (
	"context"
	"time"

	"CryptoSignalEngine/internal/operations/price"
	"CryptoSignalEngine/internal/repositories"
)

type PriceHandler struct {
	recorder  *price.Recorder
	timeFrame string
	interval  time.Duration
	backfill  int
}

func NewPriceHandler(feed price.KlineFeed, priceRepo *repositories.PriceRepository, ticks price.TickSink, symbols []string, timeFrame string, interval time.Duration, backfill int) *PriceHandler {
	return &PriceHandler{
		recorder:  price.NewRecorder(feed, priceRepo, ticks, symbols),
		timeFrame: timeFrame,
		interval:  interval,
		backfill:  backfill,
	}
}

// Start backfills candle history and begins real-time recording.
func (h *PriceHandler) Start(ctx context.Context) error {
	if err := h.recorder.Backfill(ctx, h.timeFrame, h.backfill); err != nil {
		return err
	}

	go h.recorder.Start(ctx, h.timeFrame, h.interval)

	return nil
}
