package daemon

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Metrics mirrors the counters the control loop's FPS accounting needs at
// the daemon boundary, exposed as Prometheus gauges/counters the way
// kstaniek-go-ampio-server's hub/server metrics are exposed.
var (
	framesRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arm6_daemon",
		Name:      "frames_relayed_total",
		Help:      "Successful per-client CAN frame deliveries (a frame sent to two clients counts twice).",
	})
	framesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arm6_daemon",
		Name:      "frames_dropped_total",
		Help:      "Frames dropped because a client's datagram send buffer was full.",
	}, []string{"client_id"})
	clientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "arm6_daemon",
		Name:      "clients_connected",
		Help:      "Currently connected relay clients.",
	})
	deviceState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "arm6_daemon",
		Name:      "device_state",
		Help:      "USB device lifecycle state (matches usbcan.State ordinal).",
	})
)

// StartMetricsHTTP serves /metrics and /ready on addr. Optional: gated by
// the daemon's --metrics-addr flag, not required by the wire protocol.
func StartMetricsHTTP(addr string, ready func() bool) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if ready == nil || ready() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.WithError(err).Error("daemon: metrics http server exited")
		}
	}()
}
