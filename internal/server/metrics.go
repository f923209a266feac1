package server

import "github.com/prometheus/client_golang/prometheus"

var (
	decodedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xg27_readings_decoded_total",
		Help: "Advertisement payloads decoded into readings.",
	})
	rejectedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xg27_payloads_rejected_total",
		Help: "Advertisement payloads rejected as too short.",
	})
	sessionFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xg27_source_failures_total",
		Help: "Source sessions that failed to open or died mid-stream.",
	})
	broadcastCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xg27_broadcasts_total",
		Help: "Frames broadcast to the stream hub.",
	})
	droppedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xg27_frames_dropped_total",
		Help: "Frames dropped on full subscriber queues.",
	})
	heartbeatCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xg27_heartbeats_total",
		Help: "Keep-alive comments written to event streams.",
	})
	subscriberGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "xg27_subscribers",
		Help: "Currently registered event stream subscribers.",
	})
)

func init() {
	prometheus.MustRegister(
		decodedCounter,
		rejectedCounter,
		sessionFailures,
		broadcastCounter,
		droppedCounter,
		heartbeatCounter,
		subscriberGauge,
	)
}
