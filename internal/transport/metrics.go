package transport

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_transport_frames_total",
			Help: "Number of transport frames sent or received.",
		},
		[]string{"direction", "kind"},
	)
	framesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_transport_frames_dropped_total",
			Help: "Number of inbound frames dropped (replay, integrity, oversize).",
		},
		[]string{"reason"},
	)

	transportCollectors = []prometheus.Collector{
		framesTotal,
		framesDropped,
	}

	metricsOnce sync.Once
)

// InitMetrics registers this package's collectors with the default
// Prometheus registry. Safe to call multiple times.
func InitMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(transportCollectors...)
	})
}
