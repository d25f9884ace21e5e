package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LifecycleState is 1 for the current state and 0 for the others
	LifecycleState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "edge_worker_state",
		Help: "Current lifecycle state (1 = current)",
	}, []string{"state"})

	// Activations counts activations by tone
	Activations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_worker_activations_total",
		Help: "Total activations by tone (info, update)",
	}, []string{"tone"})
)

func recordState(s State) {
	for _, st := range []State{StateParsed, StateInstalling, StateInstalled, StateActivating, StateActivated, StateRedundant} {
		v := 0.0
		if st == s {
			v = 1
		}
		LifecycleState.WithLabelValues(string(st)).Set(v)
	}
}
