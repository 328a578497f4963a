package metrics

import (
	"math"

	"github.com/san-kum/beamsim/internal/moment"
	"github.com/san-kum/beamsim/internal/sim"
)

// Transmission is the fraction of observed elements after which every
// moment stayed finite.
type Transmission struct {
	name    string
	lost    int
	samples int
}

func NewTransmission() *Transmission {
	return &Transmission{name: "transmission"}
}

func (t *Transmission) Name() string { return t.name }

func (t *Transmission) Observe(_ sim.Element, s sim.State) {
	st, ok := s.(*moment.State)
	if !ok {
		return
	}
	t.samples++
	if !finite(st.Moment0.RawVector().Data) || !finite(st.Sigma.RawMatrix().Data) {
		t.lost++
	}
}

func (t *Transmission) Value() float64 {
	if t.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(t.lost)/float64(t.samples)
}

func (t *Transmission) Reset() {
	t.lost = 0
	t.samples = 0
}

func finite(vals []float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
