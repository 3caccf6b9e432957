package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	Ticks             = prometheus.NewCounter(prometheus.CounterOpts{Name: "trader_ticks_total", Help: "Completed evaluation ticks"})
	TicksSkipped      = prometheus.NewCounter(prometheus.CounterOpts{Name: "trader_ticks_skipped_total", Help: "Ticks skipped because the market was closed"})
	FetchFailures     = prometheus.NewCounter(prometheus.CounterOpts{Name: "trader_fetch_failures_total", Help: "Per-symbol market data failures"})
	OrdersFilled      = prometheus.NewCounter(prometheus.CounterOpts{Name: "trader_orders_filled_total", Help: "Orders filled by the brokerage"})
	OrdersRejected    = prometheus.NewCounter(prometheus.CounterOpts{Name: "trader_orders_rejected_total", Help: "Orders declined by the brokerage"})
	CandidatesSkipped = prometheus.NewCounter(prometheus.CounterOpts{Name: "trader_candidates_skipped_total", Help: "Buy candidates skipped for exhausted buying power"})
	OpenPositions     = prometheus.NewGauge(prometheus.GaugeOpts{Name: "trader_open_positions", Help: "Currently open positions"})
	LastTick          = prometheus.NewGauge(prometheus.GaugeOpts{Name: "trader_last_tick_timestamp", Help: "Unix time of the last completed tick"})
)

func init() {
	prometheus.MustRegister(
		Ticks, TicksSkipped, FetchFailures,
		OrdersFilled, OrdersRejected, CandidatesSkipped,
		OpenPositions, LastTick,
	)
}

// TickCompleted marks the loop alive for the external supervisor.
func TickCompleted() {
	Ticks.Inc()
	LastTick.Set(float64(time.Now().Unix()))
}

// Serve starts the metrics and liveness listener. /healthz answers 200
// as long as the process is up; /metrics exposes the counters above.
// Blocks, so run it in its own goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	log.Info().Str("addr", addr).Msg("Metrics listener started")
	return http.ListenAndServe(addr, mux)
}
