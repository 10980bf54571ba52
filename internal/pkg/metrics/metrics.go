// Package metrics holds the Prometheus collectors of the service.
//
// A nil *Metrics is valid and records nothing, so components can be built in
// tests without a registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "routesync"

type Metrics struct {
	registry *prometheus.Registry

	transitions    *prometheus.CounterVec
	refreshes      *prometheus.CounterVec
	refreshLatency prometheus.Histogram
	coalesced      prometheus.Counter
	scans          *prometheus.CounterVec
	deliveries     *prometheus.CounterVec
	uploadLatency  prometheus.Histogram
	sessions       prometheus.Gauge
	notifications  *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a dedicated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Order status transitions by origin and result.",
		}, []string{"origin", "result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "package_refreshes_total",
			Help:      "Package snapshot refreshes by result.",
		}, []string{"result"}),
		refreshLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "package_refresh_duration_seconds",
			Help:      "Duration of package refresh fetches.",
			Buckets:   prometheus.DefBuckets,
		}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_requests_coalesced_total",
			Help:      "Refresh requests folded into an in-flight refresh.",
		}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "qr_scans_total",
			Help:      "QR scans by outcome and reason.",
		}, []string{"outcome", "reason"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_completions_total",
			Help:      "Delivery completion submissions by result.",
		}, []string{"result"}),
		uploadLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "photo_upload_duration_seconds",
			Help:      "Duration of single delivery photo uploads.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "driver_sessions",
			Help:      "Open driver sessions.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_notifications_total",
			Help:      "Change notifications received by stream.",
		}, []string{"stream"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.transitions,
		m.refreshes,
		m.refreshLatency,
		m.coalesced,
		m.scans,
		m.deliveries,
		m.uploadLatency,
		m.sessions,
		m.notifications,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveTransition(origin, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(origin, result).Inc()
}

func (m *Metrics) ObserveRefresh(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
	m.refreshLatency.Observe(took.Seconds())
}

func (m *Metrics) ObserveCoalesced() {
	if m == nil {
		return
	}
	m.coalesced.Inc()
}

func (m *Metrics) ObserveScan(outcome, reason string) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(outcome, reason).Inc()
}

func (m *Metrics) ObserveDelivery(result string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveUpload(took time.Duration) {
	if m == nil {
		return
	}
	m.uploadLatency.Observe(took.Seconds())
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

func (m *Metrics) ObserveNotification(stream string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(stream).Inc()
}
