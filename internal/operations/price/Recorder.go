package price

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"CryptoSignalEngine/internal/models"
	"CryptoSignalEngine/internal/repositories"
)

// KlineFeed supplies ordered candle history from the exchange.
type KlineFeed interface {
	FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]models.Price, error)
}

// TickSink receives the latest close per symbol. The reconciler implements
// this to keep open-position marks fresh between cycles.
type TickSink interface {
	RefreshPrice(ctx context.Context, symbol string, price float64) error
}

type Recorder struct {
	feed      KlineFeed
	priceRepo *repositories.PriceRepository
	ticks     TickSink
	symbols   []string
}

func NewRecorder(feed KlineFeed, priceRepo *repositories.PriceRepository, ticks TickSink, symbols []string) *Recorder {
	return &Recorder{
		feed:      feed,
		priceRepo: priceRepo,
		ticks:     ticks,
		symbols:   symbols,
	}
}

// Backfill loads recent candle history for every symbol so scoring has a
// full window from the first tick.
func (r *Recorder) Backfill(ctx context.Context, timeFrame string, limit int) error {
	for _, symbol := range r.symbols {
		prices, err := r.feed.FetchKlines(ctx, symbol, timeFrame, limit)
		if err != nil {
			return fmt.Errorf("backfill for %s: %w", symbol, err)
		}
		if err := r.priceRepo.CreateBatch(ctx, prices); err != nil {
			return fmt.Errorf("saving backfill for %s: %w", symbol, err)
		}
		log.Info().Str("symbol", symbol).Str("timeframe", timeFrame).
			Int("candles", len(prices)).Msg("backfilled price history")
	}
	return nil
}

// Start records the latest candle per symbol on each tick until the context
// is cancelled.
func (r *Recorder) Start(ctx context.Context, timeFrame string, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	log.Info().Str("timeframe", timeFrame).Msg("starting price recording")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("timeframe", timeFrame).Msg("stopping price recording")
			return
		case <-ticker.C:
			r.recordPrices(ctx, timeFrame)
		}
	}
}

func (r *Recorder) recordPrices(ctx context.Context, timeFrame string) {
	for _, symbol := range r.symbols {
		prices, err := r.feed.FetchKlines(ctx, symbol, timeFrame, 1)
		if err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("kline fetch failed")
			continue
		}
		if len(prices) == 0 {
			continue
		}

		latest := prices[len(prices)-1]
		if err := r.priceRepo.Create(ctx, &latest); err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("failed to save price")
			continue
		}

		if r.ticks != nil {
			if err := r.ticks.RefreshPrice(ctx, symbol, latest.Close); err != nil {
				log.Error().Err(err).Str("symbol", symbol).Msg("failed to refresh position marks")
			}
		}
	}
}
