package metrics

import (
	"math"

	"github.com/san-kum/beamsim/internal/moment"
	"github.com/san-kum/beamsim/internal/sim"
)

// EnvelopeMax tracks the largest rms beam size sqrt(Σ[i][i]) seen along the
// line, in mm.
type EnvelopeMax struct {
	name  string
	plane Plane
	max   float64
}

func NewEnvelopeMax(p Plane) *EnvelopeMax {
	return &EnvelopeMax{name: "envelope_max_" + p.String(), plane: p}
}

func (m *EnvelopeMax) Name() string { return m.name }

func (m *EnvelopeMax) Observe(_ sim.Element, s sim.State) {
	st, ok := s.(*moment.State)
	if !ok {
		return
	}
	if rms := RMS(st, m.plane); rms > m.max {
		m.max = rms
	}
}

func (m *EnvelopeMax) Value() float64 { return m.max }

func (m *EnvelopeMax) Reset() { m.max = 0 }

// Emittance is the rms emittance of the plane after the last observed
// element: sqrt(det) of the 2×2 position/angle block of sigma.
type Emittance struct {
	name  string
	plane Plane
	last  float64
}

func NewEmittance(p Plane) *Emittance {
	return &Emittance{name: "emittance_" + p.String(), plane: p}
}

func (m *Emittance) Name() string { return m.name }

func (m *Emittance) Observe(_ sim.Element, s sim.State) {
	st, ok := s.(*moment.State)
	if !ok {
		return
	}
	m.last = PlaneEmittance(st, m.plane)
}

func (m *Emittance) Value() float64 { return m.last }

func (m *Emittance) Reset() { m.last = 0 }

// RMS returns sqrt(Σ[i][i]) for the plane's position coordinate.
func RMS(st *moment.State, p Plane) float64 {
	i := int(p)
	return math.Sqrt(math.Abs(st.Sigma.At(i, i)))
}

func PlaneEmittance(st *moment.State, p Plane) float64 {
	i := int(p)
	det := st.Sigma.At(i, i)*st.Sigma.At(i+1, i+1) - st.Sigma.At(i, i+1)*st.Sigma.At(i+1, i)
	if det < 0 {
		return 0
	}
	return math.Sqrt(det)
}
