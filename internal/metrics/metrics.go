// Package metrics exports resolver and proxy telemetry to Prometheus.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder captures gateway telemetry. A nil *Recorder is valid and records
// nothing, so modules never need to check whether metrics are enabled.
type Recorder struct {
	gatherer prometheus.Gatherer

	resolutions   *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec
	proxyRequests *prometheus.CounterVec
	proxyBytes    prometheus.Counter
	proxyLatency  prometheus.Histogram
}

// New registers the gateway collectors with reg. Collectors that are
// already registered (for example by a second Recorder in tests) are reused.
func New(namespace string, reg *prometheus.Registry) (*Recorder, error) {
	if namespace == "" {
		namespace = "streamgate"
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	r := &Recorder{gatherer: reg}

	var err error
	if r.resolutions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "resolver",
		Name:      "resolutions_total",
		Help:      "Source resolutions by resulting kind and cache outcome.",
	}, []string{"kind", "cache"})); err != nil {
		return nil, err
	}
	if r.probeDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "resolver",
		Name:      "probe_duration_seconds",
		Help:      "Latency of HLS readiness probes by outcome.",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, .8, 1, 2.5},
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if r.proxyRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "proxy",
		Name:      "requests_total",
		Help:      "Proxied stream requests by method and response status.",
	}, []string{"method", "status"})); err != nil {
		return nil, err
	}
	if r.proxyBytes, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "proxy",
		Name:      "bytes_total",
		Help:      "Bytes relayed from the media origin to clients.",
	})); err != nil {
		return nil, err
	}
	if r.proxyLatency, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "proxy",
		Name:      "origin_latency_seconds",
		Help:      "Time until the origin returned response headers.",
		Buckets:   prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}

	return r, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, collector C) (C, error) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("register gateway metric: %w", err)
	}
	return collector, nil
}

// ObserveResolution counts a Resolve call.
func (r *Recorder) ObserveResolution(kind string, cached bool) {
	if r == nil {
		return
	}
	cache := "miss"
	if cached {
		cache = "hit"
	}
	r.resolutions.WithLabelValues(kind, cache).Inc()
}

// ObserveProbe records the duration of one readiness probe.
func (r *Recorder) ObserveProbe(ready bool, duration time.Duration) {
	if r == nil {
		return
	}
	outcome := "not_ready"
	if ready {
		outcome = "ready"
	}
	r.probeDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveProxy records a finished proxy request.
func (r *Recorder) ObserveProxy(method string, status int, originLatency time.Duration, bytes int64) {
	if r == nil {
		return
	}
	r.proxyRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	if originLatency > 0 {
		r.proxyLatency.Observe(originLatency.Seconds())
	}
	if bytes > 0 {
		r.proxyBytes.Add(float64(bytes))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
