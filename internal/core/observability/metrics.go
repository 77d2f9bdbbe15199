// Package observability holds the Prometheus collectors shared by the service.
package observability

import (
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var enabled atomic.Bool

func init() {
	enabled.Store(true)
}

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream", "result"},
	)

	capabilitiesLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capabilities_loads_total",
			Help: "Completed capabilities loads by outcome.",
		},
		[]string{"outcome"},
	)

	capabilitiesLoadSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "capabilities_load_duration_seconds",
			Help:    "Fetch, parse and resolve time of a capabilities load.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	capabilitiesIssuesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capabilities_issues_total",
			Help: "Partial failures recorded during capabilities resolution.",
		},
		[]string{"kind"},
	)

	storeOpSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_op_duration_seconds",
			Help:    "Item store operation latency.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op", "result"},
	)

	refreshEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_events_total",
			Help: "Capabilities refresh events by result.",
		},
		[]string{"result"},
	)

	registryItems = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_items",
			Help: "Catalog items currently held in memory.",
		},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal,
		httpRequestDurationSeconds,
		upstreamLatencySeconds,
		capabilitiesLoadsTotal,
		capabilitiesLoadSeconds,
		capabilitiesIssuesTotal,
		storeOpSeconds,
		refreshEventsTotal,
		registryItems,
		buildInfo,
	}
}

// Init registers the collectors with reg (the default registerer when nil).
// With on=false observations become no-ops.
func Init(reg prometheus.Registerer, on bool) {
	enabled.Store(on)
	if !on {
		return
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(err)
			}
		}
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, err error, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	upstreamLatencySeconds.WithLabelValues(upstream, result(err)).Observe(durationSeconds)
}

// ObserveCapabilitiesLoad records a finished load; outcome is the final state.
func ObserveCapabilitiesLoad(outcome string, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	capabilitiesLoadsTotal.WithLabelValues(outcome).Inc()
	capabilitiesLoadSeconds.Observe(durationSeconds)
}

func IncCapabilitiesIssue(kind string) {
	if !enabled.Load() {
		return
	}
	capabilitiesIssuesTotal.WithLabelValues(kind).Inc()
}

func ObserveStoreOp(op string, err error, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	storeOpSeconds.WithLabelValues(op, result(err)).Observe(durationSeconds)
}

func IncRefreshEvent(res string) {
	if !enabled.Load() {
		return
	}
	refreshEventsTotal.WithLabelValues(res).Inc()
}

func SetRegistryItems(n int) {
	if !enabled.Load() {
		return
	}
	registryItems.Set(float64(n))
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
