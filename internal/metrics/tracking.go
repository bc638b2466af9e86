package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TrackingMetrics instruments the real-time tracking core. A nil receiver is a no-op.
type TrackingMetrics struct {
	connections *prometheus.GaugeVec
	inbound     *prometheus.CounterVec
	broadcasts  *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	errors      *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// NewTrackingMetrics registers the tracking metrics on the provided registerer.
func NewTrackingMetrics(reg prometheus.Registerer) *TrackingMetrics {
	if reg == nil {
		return &TrackingMetrics{}
	}
	connections := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tracking_connections",
		Help: "Open real-time connections by transport.",
	}, []string{"transport"})
	inbound := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_inbound_events_total",
		Help: "Client events received by name.",
	}, []string{"event"})
	broadcasts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_broadcast_messages_total",
		Help: "Messages queued to subscribers by event.",
	}, []string{"event"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_dropped_messages_total",
		Help: "Messages discarded because a connection queue was full.",
	}, []string{"event"})
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_handler_errors_total",
		Help: "Scoped error events sent back to clients by code.",
	}, []string{"code"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tracking_handler_duration_seconds",
		Help:    "Time spent handling a client event.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event"})
	reg.MustRegister(connections, inbound, broadcasts, dropped, errs, latency)
	return &TrackingMetrics{
		connections: connections,
		inbound:     inbound,
		broadcasts:  broadcasts,
		dropped:     dropped,
		errors:      errs,
		latency:     latency,
	}
}

func (m *TrackingMetrics) ConnectionOpened(transport string) {
	if m == nil || m.connections == nil {
		return
	}
	m.connections.WithLabelValues(normalizeLabel(transport)).Inc()
}

func (m *TrackingMetrics) ConnectionClosed(transport string) {
	if m == nil || m.connections == nil {
		return
	}
	m.connections.WithLabelValues(normalizeLabel(transport)).Dec()
}

// ObserveEvent counts an inbound event and records how long it took.
func (m *TrackingMetrics) ObserveEvent(event string, d time.Duration) {
	if m == nil || m.inbound == nil {
		return
	}
	event = normalizeLabel(event)
	m.inbound.WithLabelValues(event).Inc()
	m.latency.WithLabelValues(event).Observe(d.Seconds())
}

func (m *TrackingMetrics) AddBroadcast(event string, n int) {
	if m == nil || m.broadcasts == nil || n <= 0 {
		return
	}
	m.broadcasts.WithLabelValues(normalizeLabel(event)).Add(float64(n))
}

func (m *TrackingMetrics) IncDropped(event string) {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.WithLabelValues(normalizeLabel(event)).Inc()
}

func (m *TrackingMetrics) IncError(code string) {
	if m == nil || m.errors == nil {
		return
	}
	m.errors.WithLabelValues(normalizeLabel(code)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
