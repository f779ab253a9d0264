package exchange

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"golang.org/x/time/rate"

	"CryptoSignalEngine/config"
	"CryptoSignalEngine/internal/models"
)

// BinanceClient adapts the Binance futures API to the engine's feed
// interfaces. All calls go through a rate limiter, a bounded retry with
// exponential backoff, and a circuit breaker for persistent failures.
type BinanceClient struct {
	client      *futures.Client
	rateLimiter *rate.Limiter
	breaker     *CircuitBreaker

	maxRetries   int
	retryBackoff time.Duration
}

func NewBinanceClient(apiKey, secretKey string, cfg config.ReconcileConfig) *BinanceClient {
	// Create custom HTTP client with timeouts
	httpClient := &http.Client{
		Timeout: cfg.FetchTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	futuresClient := futures.NewClient(apiKey, secretKey)
	futuresClient.HTTPClient = httpClient

	return &BinanceClient{
		client:       futuresClient,
		rateLimiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		breaker:      NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
	}
}

// FetchPositions returns the exchange's current open positions. Zero-size
// rows are dropped, so an account holding nothing yields an empty slice,
// which is a valid answer rather than an error.
func (c *BinanceClient) FetchPositions(ctx context.Context) ([]models.ExchangePosition, error) {
	var risks []*futures.PositionRisk

	err := c.withRetry(ctx, func() error {
		var err error
		risks, err = c.client.NewGetPositionRiskService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("position risk fetch: %w", err)
	}

	positions := make([]models.ExchangePosition, 0, len(risks))
	for _, risk := range risks {
		amt := parseFloat(risk.PositionAmt)
		if amt == 0 {
			continue
		}

		side := models.PositionSideLong
		if amt < 0 {
			side = models.PositionSideShort
		}

		positions = append(positions, models.ExchangePosition{
			Symbol:        risk.Symbol,
			Side:          side,
			Quantity:      math.Abs(amt),
			EntryPrice:    parseFloat(risk.EntryPrice),
			MarkPrice:     parseFloat(risk.MarkPrice),
			UnrealizedPnL: parseFloat(risk.UnRealizedProfit),
		})
	}

	return positions, nil
}

// FetchKlines returns the most recent `limit` closed candles for a symbol
// and interval as ordered price records.
func (c *BinanceClient) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]models.Price, error) {
	var klines []*futures.Kline

	err := c.withRetry(ctx, func() error {
		var err error
		klines, err = c.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			Limit(limit).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("kline fetch for %s-%s: %w", symbol, interval, err)
	}

	prices := make([]models.Price, 0, len(klines))
	for _, k := range klines {
		prices = append(prices, models.Price{
			Symbol:     symbol,
			TimeFrame:  interval,
			OpenTime:   time.Unix(k.OpenTime/1000, 0),
			CloseTime:  time.Unix(k.CloseTime/1000, 0),
			Open:       parseFloat(k.Open),
			High:       parseFloat(k.High),
			Low:        parseFloat(k.Low),
			Close:      parseFloat(k.Close),
			Volume:     parseFloat(k.Volume),
			TradeCount: k.TradeNum,
		})
	}

	return prices, nil
}

// withRetry runs fn through the breaker with bounded exponential backoff.
// A breaker rejection is terminal: retrying against an open circuit would
// just burn the retry budget.
func (c *BinanceClient) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}

		lastErr = c.breaker.Execute(fn)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrCircuitOpen) {
			return lastErr
		}
		if attempt == c.maxRetries {
			break
		}

		waitTime := time.Duration(math.Pow(2, float64(attempt))) * c.retryBackoff
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}

	return lastErr
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
