// Package metrics exposes link activity as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/optical-link/internal/logic"
	"github.com/sweeney/optical-link/internal/receiver"
)

var states = []logic.State{logic.StateWaiting, logic.StateReceiving, logic.StateDecoding}

// Metrics holds the daemon's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	samples   prometheus.Counter
	ignored   prometheus.Counter
	luma      prometheus.Gauge
	delta     prometheus.Gauge // SNR proxy
	threshold prometheus.Gauge

	state *prometheus.GaugeVec // 1 for the current state, 0 otherwise
	armed prometheus.Gauge

	events         *prometheus.CounterVec
	decodes        *prometheus.CounterVec
	decodeDuration prometheus.Histogram
	confidence     prometheus.Histogram

	mqttConnected prometheus.Gauge
	mqttBuffered  prometheus.Gauge
	mqttDropped   prometheus.Counter
	lastDropped   int
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		samples: f.NewCounter(prometheus.CounterOpts{
			Name: "hop_samples_total",
			Help: "Luma samples run through the thresholder",
		}),
		ignored: f.NewCounter(prometheus.CounterOpts{
			Name: "hop_samples_ignored_total",
			Help: "Luma samples dropped while decoding",
		}),
		luma: f.NewGauge(prometheus.GaugeOpts{
			Name: "hop_luma",
			Help: "Most recent peak luma sample",
		}),
		delta: f.NewGauge(prometheus.GaugeOpts{
			Name: "hop_signal_delta",
			Help: "Spread between the high and low percentiles of recent samples",
		}),
		threshold: f.NewGauge(prometheus.GaugeOpts{
			Name: "hop_threshold",
			Help: "Current bit decision threshold",
		}),
		state: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hop_link_state",
			Help: "Link state (1 for the active state)",
		}, []string{"state"}),
		armed: f.NewGauge(prometheus.GaugeOpts{
			Name: "hop_link_armed",
			Help: "Whether the link is armed",
		}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hop_link_events_total",
			Help: "Link state machine events",
		}, []string{"event"}),
		decodes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hop_decodes_total",
			Help: "Completed decodes by disposition",
		}, []string{"disposition"}),
		decodeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "hop_decode_duration_seconds",
			Help:    "Decoder call latency",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		confidence: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "hop_decode_confidence",
			Help:    "Decoder confidence scores",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		mqttConnected: f.NewGauge(prometheus.GaugeOpts{
			Name: "hop_mqtt_connected",
			Help: "Whether the MQTT broker connection is up",
		}),
		mqttBuffered: f.NewGauge(prometheus.GaugeOpts{
			Name: "hop_mqtt_buffered_messages",
			Help: "Messages waiting for the broker",
		}),
		mqttDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "hop_mqtt_dropped_total",
			Help: "Buffered messages lost to overflow while the broker was away",
		}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveReading records one processed sample.
func (m *Metrics) ObserveReading(r logic.Reading) {
	if r.Ignored {
		m.ignored.Inc()
		return
	}
	m.samples.Inc()
	m.luma.Set(r.Luma)
	m.delta.Set(r.Delta)
	m.threshold.Set(r.Threshold)
}

// ObserveState records the link state and arming.
func (m *Metrics) ObserveState(state logic.State, armed bool) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		m.state.WithLabelValues(string(s)).Set(v)
	}
	if armed {
		m.armed.Set(1)
	} else {
		m.armed.Set(0)
	}
}

// ObserveEvent counts a link event.
func (m *Metrics) ObserveEvent(ev logic.Event) {
	m.events.WithLabelValues(string(ev.Type)).Inc()
}

// ObserveDecode records a completed decode.
func (m *Metrics) ObserveDecode(out receiver.Outcome) {
	m.decodes.WithLabelValues(string(out.Disposition)).Inc()
	m.decodeDuration.Observe(out.Duration.Seconds())
	m.confidence.Observe(out.Result.Confidence)
}

// SetMQTT records broker connectivity and the offline buffer.
// dropped is the publisher's running total; only its growth is counted.
func (m *Metrics) SetMQTT(connected bool, buffered, dropped int) {
	if connected {
		m.mqttConnected.Set(1)
	} else {
		m.mqttConnected.Set(0)
	}
	m.mqttBuffered.Set(float64(buffered))
	if dropped > m.lastDropped {
		m.mqttDropped.Add(float64(dropped - m.lastDropped))
		m.lastDropped = dropped
	}
}
