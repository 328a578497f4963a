// Package metrics reduces a propagation to scalar figures of merit. Metrics
// are fed once per element by the experiment runner.
package metrics

import (
	"github.com/san-kum/beamsim/internal/moment"
	"github.com/san-kum/beamsim/internal/sim"
)

type Metric interface {
	Name() string
	Observe(e sim.Element, s sim.State)
	Value() float64
	Reset()
}

// Plane selects a transverse plane by the index of its position coordinate.
type Plane int

const (
	PlaneX Plane = moment.PSX
	PlaneY Plane = moment.PSY
)

func (p Plane) String() string {
	if p == PlaneY {
		return "y"
	}
	return "x"
}

// Observer adapts metrics to a sim.Observer.
func Observer(ms ...Metric) sim.Observer {
	return sim.ObserverFunc(func(e sim.Element, s sim.State) {
		for _, m := range ms {
			m.Observe(e, s)
		}
	})
}

// Default is the metric set reported for every run.
func Default() []Metric {
	return []Metric{
		NewEnvelopeMax(PlaneX),
		NewEnvelopeMax(PlaneY),
		NewEmittance(PlaneX),
		NewEmittance(PlaneY),
		NewTransmission(),
	}
}

// Collect returns the current value of each metric keyed by name.
func Collect(ms []Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
