package observability

import (
	"github.com/aretw0/tapestry/pkg/event"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors of one editor process.
type Metrics struct {
	Deltas    *prometheus.CounterVec
	Batches   *prometheus.CounterVec
	Autosaves *prometheus.CounterVec
	LastSeq   prometheus.Gauge
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		Deltas: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tapestry_deltas_total",
				Help: "Total number of deltas published, by kind",
			},
			[]string{"kind"},
		),
		Batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tapestry_batches_total",
				Help: "Total number of batches published, by origin",
			},
			[]string{"origin"},
		),
		Autosaves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tapestry_autosaves_total",
				Help: "Total number of autosave attempts, by result",
			},
			[]string{"result"},
		),
		LastSeq: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tapestry_bus_sequence",
			Help: "Sequence number of the latest published batch",
		}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Deltas, m.Batches, m.Autosaves, m.LastSeq} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Observe counts one published batch.
func (m *Metrics) Observe(b event.Batch) {
	m.Batches.WithLabelValues(string(b.Origin)).Inc()
	for _, d := range b.Deltas {
		m.Deltas.WithLabelValues(string(d.Kind)).Inc()
	}
	m.LastSeq.Set(float64(b.Seq))
}

// Attach subscribes Observe to bus and returns the detach function.
func (m *Metrics) Attach(bus *event.Bus) func() {
	return bus.Subscribe(m.Observe)
}

// AutosaveResult counts an autosave outcome. It fits the autosave result hook.
func (m *Metrics) AutosaveResult(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Autosaves.WithLabelValues(result).Inc()
}
