package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// -----------------------------------------------------------------------------
// Service counters. The vectors work unregistered, so components increment
// them unconditionally; Init registers everything with the default
// registry once at startup.
// -----------------------------------------------------------------------------

var (
	Requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pricelink_requests_total",
		Help: "Authenticated requests by path and plan.",
	}, []string{"path", "plan"})

	Denied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pricelink_denied_total",
		Help: "Rejected requests by reason.",
	}, []string{"reason"})

	UpstreamErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pricelink_upstream_errors_total",
		Help: "Upstream provider failures by provider.",
	}, []string{"provider"})
)

// Denial reasons used with the Denied counter.
const (
	ReasonMissingKey = "missing_key"
	ReasonInvalidKey = "invalid_key"
	ReasonRateLimit  = "rate_limit"
)

// -----------------------------------------------------------------------------

// Init registers the counters plus a live-connections gauge backed by the
// given callback. Call once at startup.
func Init(activeConnections func() int) {
	prometheus.MustRegister(Requests, Denied, UpstreamErrors)
	prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "pricelink_stream_connections_active",
		Help: "Live streaming subscriptions.",
	}, func() float64 {
		return float64(activeConnections())
	}))
}
