package quota

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	metricCallsUsed      = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "scalper_api_calls_last_minute", Help: "Broker API calls counted in the rolling minute, by bucket"}, []string{"bucket"})
	metricCallsRemaining = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "scalper_api_calls_remaining", Help: "Calls left in the rolling minute before the configured limit"}, []string{"bucket"})
	metricHistUsed       = prometheus.NewGauge(prometheus.GaugeOpts{Name: "scalper_hist_points_week", Help: "Historical price datapoints fetched in the rolling week"})
	metricHistRemaining  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "scalper_hist_points_remaining", Help: "Historical datapoints left in the weekly allowance"})
)

func init() {
	prometheus.MustRegister(metricCallsUsed, metricCallsRemaining, metricHistUsed, metricHistRemaining)
}

func publish(s Snapshot) {
	for b, u := range map[Bucket]Usage{Trade: s.Trade, Data: s.Data, Auth: s.Auth, Other: s.Other} {
		metricCallsUsed.WithLabelValues(string(b)).Set(float64(u.Used))
	}
	metricCallsRemaining.WithLabelValues(string(Trade)).Set(float64(s.Trade.Remaining))
	metricCallsRemaining.WithLabelValues(string(Data)).Set(float64(s.Data.Remaining))
	metricHistUsed.Set(float64(s.Hist.Used))
	metricHistRemaining.Set(float64(s.Hist.Remaining))
}

// ServeMetrics exposes the default Prometheus registry on addr at /metrics
// until ctx is done. An empty addr disables the endpoint.
func ServeMetrics(ctx context.Context, addr string, log *zap.Logger) error {
	if addr == "" {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("metrics endpoint listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
