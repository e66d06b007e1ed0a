// Package metrics exports store routing counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"attentrack/internal/attendance"
)

const namespace = "attentrack"

// Recorder implements attendance.Observer.
type Recorder struct {
	operations *prometheus.CounterVec
	fallbacks  *prometheus.CounterVec
	state      *prometheus.GaugeVec
}

var _ attendance.Observer = (*Recorder)(nil)

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Store calls by operation, serving backend and outcome",
			},
			[]string{"operation", "backend", "outcome"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_fallbacks_total",
				Help:      "Relational calls retried on the local store",
			},
			[]string{"operation"},
		),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "store_state",
				Help:      "1 for the current store lifecycle state",
			},
			[]string{"state"},
		),
	}
	for _, c := range []prometheus.Collector{r.operations, r.fallbacks, r.state} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Served counts a call on backend.
func (r *Recorder) Served(op string, backend attendance.Backend, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.operations.WithLabelValues(op, string(backend), outcome).Inc()
}

// FellBack counts a per-call fallback.
func (r *Recorder) FellBack(op string, _ error) {
	r.fallbacks.WithLabelValues(op).Inc()
}

// StateChanged flips the state gauge.
func (r *Recorder) StateChanged(state attendance.State) {
	for _, s := range []attendance.State{
		attendance.StateUninitialized,
		attendance.StateRelationalActive,
		attendance.StateLocalFallback,
	} {
		v := 0.0
		if s == state {
			v = 1
		}
		r.state.WithLabelValues(s.String()).Set(v)
	}
}
