package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SignalsScored = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_scored_total", Help: "Signals emitted by the scorer"},
		[]string{"symbol", "direction"},
	)
	SignalsSelected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_selected_total", Help: "Signals picked by the selector"},
		[]string{"symbol"},
	)
	ReconcileCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "reconcile_cycles_total", Help: "Reconciliation cycles by outcome"},
		[]string{"outcome"},
	)
	PositionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "positions_closed_total", Help: "Positions closed by reason"},
		[]string{"reason"},
	)
	PositionsImported = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "positions_imported_total", Help: "Positions imported from exchange snapshots"},
	)
	WinRate = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "rolling_win_rate", Help: "Rolling-window win rate percentage"},
	)
)

func init() {
	prometheus.MustRegister(SignalsScored, SignalsSelected, ReconcileCycles, PositionsClosed, PositionsImported, WinRate)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
