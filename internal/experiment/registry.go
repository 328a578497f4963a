package experiment

import (
	"github.com/san-kum/beamsim/internal/metrics"
	"github.com/san-kum/beamsim/internal/moment"
	"github.com/san-kum/beamsim/internal/sim"
)

// NewRegistry returns a registry with every built-in simulation type.
func NewRegistry() *sim.Registry {
	r := sim.NewRegistry()
	moment.Register(r)
	return r
}

// DefaultMetrics returns a fresh metric set for one run.
func DefaultMetrics() []metrics.Metric {
	return metrics.Default()
}
