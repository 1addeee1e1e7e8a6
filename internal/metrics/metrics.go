package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts broadcasts through the pipeline. A nil *Metrics is valid
// and records nothing, so components can be built without a registry.
type Metrics struct {
	InterceptedTotal prometheus.Counter
	FilteredTotal    prometheus.Counter
	RelaySentTotal   prometheus.Counter
	RelayFailedTotal prometheus.Counter
	ReceivedTotal    prometheus.Counter
	DiscardedTotal   prometheus.Counter
	DroppedTotal     prometheus.Counter
	StoreEvents      prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		InterceptedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "broadcastmonitor_intercepted_total",
			Help: "Total number of intercepted broadcast calls carrying an intent",
		}),
		FilteredTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "broadcastmonitor_filtered_total",
			Help: "Total number of intercepted broadcasts skipped by the log filter",
		}),
		RelaySentTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "broadcastmonitor_relay_sent_total",
			Help: "Total number of relay messages handed to the channel",
		}),
		RelayFailedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "broadcastmonitor_relay_failed_total",
			Help: "Total number of relay messages that could not be sent",
		}),
		ReceivedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "broadcastmonitor_received_total",
			Help: "Total number of relay messages accepted by the observer",
		}),
		DiscardedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "broadcastmonitor_discarded_total",
			Help: "Total number of malformed relay messages discarded by the observer",
		}),
		DroppedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "broadcastmonitor_dropped_total",
			Help: "Total number of relay messages dropped because the observer queue was full",
		}),
		StoreEvents: factory.NewGauge(prometheus.GaugeOpts{
			Name: "broadcastmonitor_store_events",
			Help: "Current number of events held in the observer's event log",
		}),
	}
}

func (m *Metrics) Intercepted() {
	if m != nil {
		m.InterceptedTotal.Inc()
	}
}

func (m *Metrics) Filtered() {
	if m != nil {
		m.FilteredTotal.Inc()
	}
}

func (m *Metrics) RelaySent() {
	if m != nil {
		m.RelaySentTotal.Inc()
	}
}

func (m *Metrics) RelayFailed() {
	if m != nil {
		m.RelayFailedTotal.Inc()
	}
}

func (m *Metrics) Received() {
	if m != nil {
		m.ReceivedTotal.Inc()
	}
}

func (m *Metrics) Discarded() {
	if m != nil {
		m.DiscardedTotal.Inc()
	}
}

func (m *Metrics) Dropped() {
	if m != nil {
		m.DroppedTotal.Inc()
	}
}

func (m *Metrics) SetStoreEvents(n int) {
	if m != nil {
		m.StoreEvents.Set(float64(n))
	}
}
