package observability

import (
	"github.com/aretw0/weft/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch paths reported by Handled.
const (
	PathInline       = "inline"
	PathQueued       = "queued"
	PathFast         = "fast"
	PathFastRejected = "fast_rejected"
)

// Metrics holds the Prometheus collectors of a dispatcher.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	LiveChains   prometheus.Gauge
	Tracked      prometheus.Gauge
	Idle         prometheus.Gauge
	Handled      *prometheus.CounterVec
	Evictions    *prometheus.CounterVec
	Drops        *prometheus.CounterVec
	StepFailures prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LiveChains: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weft",
			Name:      "live_chains",
			Help:      "Chains that have started and not yet terminated.",
		}),
		Tracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weft",
			Name:      "tracked_chains",
			Help:      "Containers currently present in the chain index.",
		}),
		Idle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weft",
			Name:      "idle_chains",
			Help:      "Containers eligible for eviction.",
		}),
		Handled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weft",
			Name:      "messages_handled_total",
			Help:      "Messages handed to the dispatcher, by dispatch path.",
		}, []string{"path"}),
		Evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weft",
			Name:      "evictions_total",
			Help:      "Idle chains evicted for capacity, by priority.",
		}, []string{"priority"}),
		Drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weft",
			Name:      "messages_dropped_total",
			Help:      "Messages discarded unconsumed, by reason.",
		}, []string{"reason"}),
		StepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weft",
			Name:      "step_failures_total",
			Help:      "Steps that failed and terminated their chain.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.LiveChains, m.Tracked, m.Idle, m.Handled, m.Evictions, m.Drops, m.StepFailures)
	}
	return m
}

func (m *Metrics) ChainStarted() {
	if m != nil {
		m.LiveChains.Inc()
	}
}

func (m *Metrics) ChainEnded() {
	if m != nil {
		m.LiveChains.Dec()
	}
}

func (m *Metrics) SetTracked(n int64) {
	if m != nil {
		m.Tracked.Set(float64(n))
	}
}

func (m *Metrics) SetIdle(n int64) {
	if m != nil {
		m.Idle.Set(float64(n))
	}
}

func (m *Metrics) HandledOn(path string) {
	if m != nil {
		m.Handled.WithLabelValues(path).Inc()
	}
}

func (m *Metrics) Evicted(p domain.Priority) {
	if m != nil {
		m.Evictions.WithLabelValues(p.String()).Inc()
	}
}

func (m *Metrics) Dropped(reason string) {
	if m != nil {
		m.Drops.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) StepFailed() {
	if m != nil {
		m.StepFailures.Inc()
	}
}
