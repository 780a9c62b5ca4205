package obs

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var defaultLatencyBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500}

// HTTPMetrics holds the request-level Prometheus collectors shared by
// the HTTP middleware.
type HTTPMetrics struct {
	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewHTTPMetrics builds and registers the HTTP collectors. A nil
// registerer falls back to the default registry, and bucket boundaries
// are sorted so callers can pass them in any order.
func NewHTTPMetrics(namespace string, buckets []float64, reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if len(buckets) == 0 {
		buckets = defaultLatencyBuckets
	} else {
		sort.Float64s(buckets)
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests handled by the server.",
	}, []string{"method", "route", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency distribution in milliseconds.",
		Buckets:   buckets,
	}, []string{"method", "route"})
	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_in_flight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})
	return &HTTPMetrics{
		Requests: register(reg, requests),
		Latency:  register(reg, latency),
		InFlight: register(reg, inFlight),
	}
}

// ParseBucketsCSV parses comma-separated millisecond boundaries,
// skipping blanks and non-positive values.
func ParseBucketsCSV(csv string) []float64 {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	var out []float64
	for _, field := range strings.Split(csv, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil || v <= 0 {
			continue
		}
		out = append(out, v)
	}
	return out
}

// DurationMillis converts a duration to fractional milliseconds.
func DurationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// register adds the collector to the registry, reusing the existing
// collector when an identical one was registered earlier.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(C); ok {
			return existing
		}
	}
	panic(fmt.Errorf("obs: register %T: %w", c, err))
}
