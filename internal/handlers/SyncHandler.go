package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"CryptoSignalEngine/config"
	"CryptoSignalEngine/internal/alerts"
	"CryptoSignalEngine/internal/metrics"
	"CryptoSignalEngine/internal/models"
	"CryptoSignalEngine/internal/repositories"
	"CryptoSignalEngine/internal/services/performance"
	"CryptoSignalEngine/internal/services/reconcile"
)

// SyncHandler drives the reconciliation loop and the periodic performance
// evaluation over its results.
type SyncHandler struct {
	reconciler   *reconcile.Reconciler
	positionRepo *repositories.PositionRepository
	signalRepo   *repositories.SignalRepository
	monitor      *performance.Monitor
	sink         alerts.Sink

	reconcileCfg config.ReconcileConfig
	monitorCfg   config.MonitorConfig
}

func NewSyncHandler(
	reconciler *reconcile.Reconciler,
	positionRepo *repositories.PositionRepository,
	signalRepo *repositories.SignalRepository,
	monitor *performance.Monitor,
	sink alerts.Sink,
	reconcileCfg config.ReconcileConfig,
	monitorCfg config.MonitorConfig,
) *SyncHandler {
	return &SyncHandler{
		reconciler:   reconciler,
		positionRepo: positionRepo,
		signalRepo:   signalRepo,
		monitor:      monitor,
		sink:         sink,
		reconcileCfg: reconcileCfg,
		monitorCfg:   monitorCfg,
	}
}

func (h *SyncHandler) Start(ctx context.Context) error {
	go h.run(ctx)
	return nil
}

func (h *SyncHandler) run(ctx context.Context) {
	syncTicker := time.NewTicker(h.reconcileCfg.Interval)
	defer syncTicker.Stop()
	monitorTicker := time.NewTicker(h.monitorCfg.Interval)
	defer monitorTicker.Stop()

	log.Info().
		Dur("reconcile_interval", h.reconcileCfg.Interval).
		Dur("monitor_interval", h.monitorCfg.Interval).
		Msg("starting sync loop")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping sync loop")
			return
		case <-syncTicker.C:
			h.runCycle(ctx)
		case <-monitorTicker.C:
			h.runMonitor(ctx)
		}
	}
}

func (h *SyncHandler) runCycle(ctx context.Context) {
	summary, err := h.reconciler.RunCycle(ctx)
	if err != nil {
		metrics.ReconcileCycles.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("reconciliation cycle failed")
		return
	}

	metrics.ReconcileCycles.WithLabelValues("ok").Inc()
	if summary.Closed > 0 {
		metrics.PositionsClosed.WithLabelValues(models.CloseReasonManualDetected).Add(float64(summary.Closed))
	}
	if summary.Imported > 0 {
		metrics.PositionsImported.Add(float64(summary.Imported))
	}
	if summary.StaleCloses > 0 {
		_ = h.sink.Send(models.Alert{
			Type:    models.AlertTypeWarning,
			Code:    "stale_close_price",
			Message: "reconciliation closed positions on stale mark prices",
			Fields:  map[string]string{"count": strconv.Itoa(summary.StaleCloses)},
			Time:    time.Now(),
		})
	}
}

func (h *SyncHandler) runMonitor(ctx context.Context) {
	now := time.Now()
	cutoff := now.Add(-h.monitorCfg.Window)

	closed, err := h.positionRepo.FindClosedSince(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("failed to load closed positions for monitoring")
		return
	}
	signals, err := h.signalRepo.FindSince(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("failed to load signals for monitoring")
		return
	}

	report := h.monitor.Evaluate(now, closed, signals)
	metrics.WinRate.Set(report.WinRate)

	log.Info().
		Int("completed_trades", report.CompletedTrades).
		Float64("win_rate", report.WinRate).
		Float64("total_pnl", report.TotalPnL).
		Float64("average_score", report.AverageScore).
		Msg("performance window evaluated")

	for _, alert := range report.Alerts {
		if err := h.sink.Send(alert); err != nil {
			log.Error().Err(err).Str("code", alert.Code).Msg("failed to deliver alert")
		}
	}
}
