// Package metrics exposes Prometheus counters for the RSVP and notification paths.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application's collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	rsvps               prometheus.Counter
	cancellations       prometheus.Counter
	duplicateRSVPs      prometheus.Counter
	notificationsQueued *prometheus.CounterVec
	notificationsSent   *prometheus.CounterVec
	notificationsFailed *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		rsvps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gatherly",
			Name:      "rsvps_total",
			Help:      "Participation edges created.",
		}),
		cancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gatherly",
			Name:      "rsvp_cancellations_total",
			Help:      "Participation edges removed.",
		}),
		duplicateRSVPs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gatherly",
			Name:      "rsvp_duplicates_total",
			Help:      "RSVP attempts rejected because the edge already existed.",
		}),
		notificationsQueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatherly",
			Name:      "notifications_queued_total",
			Help:      "Notifications accepted by the dispatcher.",
		}, []string{"kind"}),
		notificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatherly",
			Name:      "notifications_sent_total",
			Help:      "Notifications delivered by the mail transport.",
		}, []string{"kind"}),
		notificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatherly",
			Name:      "notifications_failed_total",
			Help:      "Notifications that could not be queued or delivered.",
		}, []string{"kind", "stage"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.rsvps,
		m.cancellations,
		m.duplicateRSVPs,
		m.notificationsQueued,
		m.notificationsSent,
		m.notificationsFailed,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RSVPAdded() {
	if m != nil {
		m.rsvps.Inc()
	}
}

func (m *Metrics) RSVPCancelled() {
	if m != nil {
		m.cancellations.Inc()
	}
}

func (m *Metrics) RSVPDuplicate() {
	if m != nil {
		m.duplicateRSVPs.Inc()
	}
}

func (m *Metrics) NotificationQueued(kind string) {
	if m != nil {
		m.notificationsQueued.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) NotificationSent(kind string) {
	if m != nil {
		m.notificationsSent.WithLabelValues(kind).Inc()
	}
}

// NotificationFailed counts a failure at stage render, store, enqueue or send.
func (m *Metrics) NotificationFailed(kind, stage string) {
	if m != nil {
		m.notificationsFailed.WithLabelValues(kind, stage).Inc()
	}
}
