package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Trading metrics
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scalp_bot_trades_total",
			Help: "Total number of completed trades by exit reason",
		},
		[]string{"symbol", "exit_reason"},
	)

	tradePnl = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scalp_bot_trade_pnl",
			Help:    "Distribution of per-trade realized P&L",
			Buckets: []float64{-3000, -1500, -750, -300, -100, 0, 100, 300, 750, 1500, 3000},
		},
		[]string{"symbol"},
	)

	openTrades = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scalp_bot_open_trades",
			Help: "Number of currently open trades",
		},
	)

	dailyRealizedPnl = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scalp_bot_daily_realized_pnl",
			Help: "Realized P&L for the current trading day",
		},
	)

	killSwitch = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scalp_bot_kill_switch",
			Help: "1 when the daily loss kill switch has tripped",
		},
	)

	// Market data metrics
	currentPremium = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scalp_bot_current_premium",
			Help: "Last observed premium of the watched contract",
		},
		[]string{"symbol"},
	)

	biasConfidence = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scalp_bot_bias_confidence",
			Help: "Confidence of the current market bias",
		},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scalp_bot_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(tradePnl)
	prometheus.MustRegister(openTrades)
	prometheus.MustRegister(dailyRealizedPnl)
	prometheus.MustRegister(killSwitch)
	prometheus.MustRegister(currentPremium)
	prometheus.MustRegister(biasConfidence)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordTradeClose records a completed trade
func RecordTradeClose(symbol, exitReason string, pnl float64) {
	tradesTotal.WithLabelValues(symbol, exitReason).Inc()
	tradePnl.WithLabelValues(symbol).Observe(pnl)
}

// SetOpenTrades updates the open-trade gauge
func SetOpenTrades(n int) {
	openTrades.Set(float64(n))
}

// SetDailyPnl updates the daily realized P&L gauge
func SetDailyPnl(pnl float64) {
	dailyRealizedPnl.Set(pnl)
}

// SetKillSwitch flags whether the daily kill switch is engaged
func SetKillSwitch(engaged bool) {
	if engaged {
		killSwitch.Set(1)
	} else {
		killSwitch.Set(0)
	}
}

// UpdatePremium updates the current premium metric
func UpdatePremium(symbol string, premium float64) {
	currentPremium.WithLabelValues(symbol).Set(premium)
}

// UpdateBiasConfidence updates the bias confidence metric
func UpdateBiasConfidence(confidence float64) {
	biasConfidence.Set(confidence)
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
