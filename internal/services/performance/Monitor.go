package performance

import (
	"fmt"
	"time"

	"CryptoSignalEngine/config"
	"CryptoSignalEngine/internal/models"
)

// Report aggregates realized results over one rolling window.
type Report struct {
	Window time.Duration

	CompletedTrades int
	WinningTrades   int
	WinRate         float64
	TotalPnL        float64
	AveragePnL      float64

	SignalCount  int
	AverageScore float64

	Alerts []models.Alert
}

// Monitor compares rolling realized performance against a configured
// expectation band. Pure aggregation over the records it is handed; it
// never mutates them.
type Monitor struct {
	cfg config.MonitorConfig
}

func NewMonitor(cfg config.MonitorConfig) *Monitor {
	return &Monitor{cfg: cfg}
}

// Evaluate aggregates closed positions and signals whose close/creation time
// falls inside the window ending at now, and flags deviations as structured
// alerts on the report.
func (m *Monitor) Evaluate(now time.Time, positions []models.Position, signals []models.Signal) *Report {
	report := &Report{Window: m.cfg.Window}
	cutoff := now.Add(-m.cfg.Window)

	for _, pos := range positions {
		if pos.Status != models.PositionStatusClosed || pos.CloseTime.Before(cutoff) {
			continue
		}
		// A zero realized PnL means the trade never completed a round
		// trip worth counting.
		if pos.RealizedPnL == 0 {
			continue
		}
		report.CompletedTrades++
		report.TotalPnL += pos.RealizedPnL
		if pos.RealizedPnL > 0 {
			report.WinningTrades++
		}
	}

	if report.CompletedTrades > 0 {
		report.WinRate = float64(report.WinningTrades) / float64(report.CompletedTrades) * 100
		report.AveragePnL = report.TotalPnL / float64(report.CompletedTrades)
	}

	var scoreSum float64
	for _, sig := range signals {
		if sig.CreatedAt.Before(cutoff) {
			continue
		}
		report.SignalCount++
		scoreSum += sig.Score
	}
	if report.SignalCount > 0 {
		report.AverageScore = scoreSum / float64(report.SignalCount)
	}

	report.Alerts = m.check(now, report)
	return report
}

func (m *Monitor) check(now time.Time, report *Report) []models.Alert {
	var alerts []models.Alert

	add := func(alertType, code, message string) {
		alerts = append(alerts, models.Alert{
			Type:    alertType,
			Code:    code,
			Message: message,
			Fields: map[string]string{
				"win_rate":         fmt.Sprintf("%.1f", report.WinRate),
				"completed_trades": fmt.Sprintf("%d", report.CompletedTrades),
				"average_score":    fmt.Sprintf("%.3f", report.AverageScore),
			},
			Time: now,
		})
	}

	switch {
	case report.CompletedTrades == 0:
		add(models.AlertTypeWarning, "no_completed_trades",
			fmt.Sprintf("no completed trades in the last %s", report.Window))
	case report.CompletedTrades < m.cfg.MinTrades:
		add(models.AlertTypeWarning, "low_trade_frequency",
			fmt.Sprintf("only %d completed trades in the last %s (minimum %d)",
				report.CompletedTrades, report.Window, m.cfg.MinTrades))
	}

	if report.CompletedTrades > 0 {
		if report.WinRate < m.cfg.MinWinRate {
			add(models.AlertTypeError, "win_rate_below_band",
				fmt.Sprintf("win rate %.1f%% below acceptable minimum %.1f%%",
					report.WinRate, m.cfg.MinWinRate))
		} else if report.WinRate > m.cfg.MaxWinRate {
			add(models.AlertTypeWarning, "win_rate_above_band",
				fmt.Sprintf("win rate %.1f%% above expected maximum %.1f%%",
					report.WinRate, m.cfg.MaxWinRate))
		}
	}

	if report.SignalCount > 0 && report.AverageScore < m.cfg.TargetScore {
		add(models.AlertTypeWarning, "average_score_below_target",
			fmt.Sprintf("average signal score %.3f below target %.3f",
				report.AverageScore, m.cfg.TargetScore))
	}

	return alerts
}
