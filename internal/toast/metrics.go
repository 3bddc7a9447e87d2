package toast

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the controller's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	shown       *prometheus.CounterVec
	removed     *prometheus.CounterVec
	transitions *prometheus.CounterVec
	visible     prometheus.Gauge
	queued      prometheus.Gauge
	changes     prometheus.Counter
}

// NewMetrics creates and registers the collectors on reg. A nil reg skips
// registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		shown: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toastd",
			Name:      "toasts_shown_total",
			Help:      "Toasts admitted to the controller.",
		}, []string{"kind"}),
		removed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toastd",
			Name:      "toasts_removed_total",
			Help:      "Toasts purged from the controller.",
		}, []string{"reason"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toastd",
			Name:      "transitions_total",
			Help:      "State transitions applied to stateful toasts.",
		}, []string{"direction"}),
		visible: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "toastd",
			Name:      "visible_toasts",
			Help:      "Toasts currently in the visible set.",
		}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "toastd",
			Name:      "queued_toasts",
			Help:      "Toasts waiting for capacity.",
		}),
		changes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "toastd",
			Name:      "change_notifications_total",
			Help:      "Coalesced change notifications fired.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.shown, m.removed, m.transitions, m.visible, m.queued, m.changes)
	}
	return m
}

func (m *Metrics) incShown(kind string) {
	if m == nil {
		return
	}
	m.shown.WithLabelValues(kind).Inc()
}

func (m *Metrics) incRemoved(reason string) {
	if m == nil {
		return
	}
	m.removed.WithLabelValues(reason).Inc()
}

func (m *Metrics) incTransition(direction string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(direction).Inc()
}

func (m *Metrics) setQueue(visible, queued int) {
	if m == nil {
		return
	}
	m.visible.Set(float64(visible))
	m.queued.Set(float64(queued))
}

func (m *Metrics) incChanges() {
	if m == nil {
		return
	}
	m.changes.Inc()
}
