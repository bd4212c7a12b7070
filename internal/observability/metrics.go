package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	eventsEmittedTotal    *prometheus.CounterVec
	eventsReceivedTotal   *prometheus.CounterVec
	messagesStoredTotal   *prometheus.CounterVec
	viewSubscribers       prometheus.Gauge
	settingsWritesTotal   *prometheus.CounterVec
	interceptedMessageCnt prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the session process.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runar_api_requests_total",
			Help: "Total number of local API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "runar_api_latency_seconds",
			Help:    "Latency distribution for local API requests.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runar_api_errors_total",
			Help: "Total number of error responses returned by the local API.",
		}, []string{"method", "route", "status"})

		eventsEmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runar_events_emitted_total",
			Help: "Events emitted on the shared channel, by type.",
		}, []string{"type"})

		eventsReceivedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runar_events_received_total",
			Help: "Events received from the shared channel, by type and outcome.",
		}, []string{"type", "outcome"})

		messagesStoredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runar_messages_stored_total",
			Help: "Messages appended to a conversation history, by conversation kind.",
		}, []string{"kind"})

		viewSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "runar_view_subscribers",
			Help: "Number of connected view stream subscribers.",
		})

		settingsWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runar_settings_writes_total",
			Help: "Settings store writes, by key and outcome.",
		}, []string{"key", "outcome"})

		interceptedMessageCnt = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "runar_monitor_buffer_size",
			Help: "Entries currently held in the privileged monitor buffer.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			eventsEmittedTotal,
			eventsReceivedTotal,
			messagesStoredTotal,
			viewSubscribers,
			settingsWritesTotal,
			interceptedMessageCnt,
		)
	})
}

// APIRequests exposes the counter for local API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for local API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for local API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// EventsEmitted exposes the counter of emitted relay events.
func EventsEmitted() *prometheus.CounterVec {
	RegisterMetrics()
	return eventsEmittedTotal
}

// EventsReceived exposes the counter of received relay events.
func EventsReceived() *prometheus.CounterVec {
	RegisterMetrics()
	return eventsReceivedTotal
}

// MessagesStored exposes the counter of stored messages.
func MessagesStored() *prometheus.CounterVec {
	RegisterMetrics()
	return messagesStoredTotal
}

// ViewSubscribers exposes the gauge of connected view subscribers.
func ViewSubscribers() prometheus.Gauge {
	RegisterMetrics()
	return viewSubscribers
}

// SettingsWrites exposes the counter of settings store writes.
func SettingsWrites() *prometheus.CounterVec {
	RegisterMetrics()
	return settingsWritesTotal
}

// MonitorBufferSize exposes the gauge tracking the monitor buffer length.
func MonitorBufferSize() prometheus.Gauge {
	RegisterMetrics()
	return interceptedMessageCnt
}
