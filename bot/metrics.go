package bot

import "github.com/prometheus/client_golang/prometheus"

var (
	metricDayNet  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "scalper_day_net_eur", Help: "Net P&L of the current trading day"})
	metricBalance = prometheus.NewGauge(prometheus.GaugeOpts{Name: "scalper_balance_eur", Help: "Ledger balance after the last trade"})
	metricStreak  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "scalper_loss_streak", Help: "Consecutive trades with P&L <= 0"})
	metricTrades  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "scalper_trades_total", Help: "Completed trades by exit reason"}, []string{"reason"})
	metricSkips   = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "scalper_entry_skips_total", Help: "Loop iterations that did not submit an order, by cause"}, []string{"cause"})
)

func init() {
	prometheus.MustRegister(metricDayNet, metricBalance, metricStreak, metricTrades, metricSkips)
}
