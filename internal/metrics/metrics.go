package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pairlobby"

// Metrics holds the server's prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	connections     prometheus.Gauge
	commands        *prometheus.CounterVec
	droppedMessages prometheus.Counter
}

// New creates Metrics registered on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Number of live websocket connections.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands handled, by command and result.",
		}, []string{"command", "result"}),
		droppedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_messages_total",
			Help:      "Outbound messages dropped because a client buffer was full.",
		}),
	}

	m.registry.MustRegister(
		m.connections,
		m.commands,
		m.droppedMessages,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the metrics in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ConnectionOpened increments the live connection gauge
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

// ConnectionClosed decrements the live connection gauge
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// CommandHandled counts one command outcome
func (m *Metrics) CommandHandled(command, result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, result).Inc()
}

// MessageDropped counts one outbound message that could not be queued
func (m *Metrics) MessageDropped() {
	if m == nil {
		return
	}
	m.droppedMessages.Inc()
}

// Connections returns the live connection gauge
func (m *Metrics) Connections() prometheus.Gauge {
	return m.connections
}

// DroppedMessages returns the dropped message counter
func (m *Metrics) DroppedMessages() prometheus.Counter {
	return m.droppedMessages
}

// Commands returns the command outcome counter
func (m *Metrics) Commands() *prometheus.CounterVec {
	return m.commands
}
