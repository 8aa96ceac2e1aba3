package metrics

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Envelopes received from the transport, by frame classification.
	Envelopes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruuvi_loader_envelopes_total",
			Help: "Envelopes received, by classification",
		},
		[]string{"class"},
	)

	Undecoded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ruuvi_loader_undecoded_total",
			Help: "Ruuvi frames with a data format the decoder does not support",
		},
	)

	RecordsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ruuvi_loader_records_written_total",
			Help: "Measurement records written to the sink",
		},
	)

	SinkErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ruuvi_loader_sink_errors_total",
			Help: "Failed sink writes",
		},
	)

	Rejects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruuvi_loader_rejects_total",
			Help: "Envelopes rejected as anomalous, by stage",
		},
		[]string{"stage"},
	)

	LastActivity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ruuvi_loader_last_activity_timestamp_seconds",
			Help: "Unix time of the last envelope received",
		},
	)
)

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger *log.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Printf("[info] metrics listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
