package moment

import (
	"errors"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/beamsim/internal/config"
	"github.com/san-kum/beamsim/internal/sim"
)

// State is a bunch described by its centroid and sigma matrix.
type State struct {
	sim.StateBase

	Position      float64 // cumulative path length
	KineticEnergy float64
	SyncPhase     float64
	Gamma         float64
	Beta          float64
	RestEnergy    float64

	// Moment0 is the first moment (centroid), length MaxSize.
	Moment0 *mat.VecDense
	// Sigma is the MaxSize×MaxSize second-moment matrix.
	Sigma *mat.Dense
}

var _ sim.State = (*State)(nil)

// NewState reads L, IonEk, IonFy, IonEs, moment0 and initial from c.
// Missing vectors default to zeros (moment0) and identity (initial).
func NewState(c *config.Config) (*State, error) {
	s := &State{
		Position:      config.GetOr(c, "L", 0.0),
		KineticEnergy: config.GetOr(c, "IonEk", 0.0),
		SyncPhase:     config.GetOr(c, "IonFy", 0.0),
		RestEnergy:    config.GetOr(c, "IonEs", 1.0),
		Moment0:       mat.NewVecDense(MaxSize, nil),
		Sigma:         identity(),
	}

	m0, err := optionalVector(c, "moment0", MaxSize)
	if err != nil {
		return nil, err
	}
	copy(s.Moment0.RawVector().Data, m0)

	initial, err := optionalVector(c, "initial", MaxSize*MaxSize)
	if err != nil {
		return nil, err
	}
	copy(s.Sigma.RawMatrix().Data, initial)

	s.updateRelativistic()
	return s, nil
}

func optionalVector(c *config.Config, key string, max int) ([]float64, error) {
	v, err := config.Get[[]float64](c, key)
	switch {
	case errors.Is(err, config.ErrKeyNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("%w: %q must be a vector: %v", sim.ErrInvalidArgument, key, err)
	case len(v) > max:
		return nil, fmt.Errorf("%w: %q has %d values, at most %d allowed", sim.ErrInvalidArgument, key, len(v), max)
	}
	return v, nil
}

// beta is kept as sqrt(1+1/gamma²) to match the reference results.
func (s *State) updateRelativistic() {
	s.Gamma = (s.KineticEnergy + s.RestEnergy) / s.RestEnergy
	s.Beta = math.Sqrt(1 + 1/(s.Gamma*s.Gamma))
}

// SetKineticEnergy changes the kinetic energy and the derived gamma and beta.
func (s *State) SetKineticEnergy(ek float64) {
	s.KineticEnergy = ek
	s.updateRelativistic()
}

// Assign copies every physics field of other. NextElem belongs to the
// propagation driver and is left untouched.
func (s *State) Assign(other sim.State) error {
	o, ok := other.(*State)
	if !ok {
		return fmt.Errorf("%w: cannot assign %T to %T", sim.ErrIncompatibleType, other, s)
	}
	s.Position = o.Position
	s.KineticEnergy = o.KineticEnergy
	s.SyncPhase = o.SyncPhase
	s.Gamma = o.Gamma
	s.Beta = o.Beta
	s.RestEnergy = o.RestEnergy
	s.Moment0.CopyVec(o.Moment0)
	s.Sigma.Copy(o.Sigma)
	return nil
}

func (s *State) Clone() sim.State {
	c := *s
	c.Moment0 = mat.VecDenseCopyOf(s.Moment0)
	c.Sigma = mat.DenseCopyOf(s.Sigma)
	return &c
}

func (s *State) Array(idx int) (sim.ArrayInfo, bool) {
	switch idx {
	case 0:
		return sim.ArrayInfo{Name: "state", Data: s.Sigma.RawMatrix().Data, Dims: []int{MaxSize, MaxSize}}, true
	case 1:
		return sim.ArrayInfo{Name: "moment0", Data: s.Moment0.RawVector().Data, Dims: []int{MaxSize}}, true
	case 2:
		return sim.ArrayInfo{Name: "pos", Scalar: &s.Position}, true
	case 3:
		return sim.ArrayInfo{Name: "Ekinetic", Scalar: &s.KineticEnergy}, true
	case 4:
		return sim.ArrayInfo{Name: "sync_phase", Scalar: &s.SyncPhase}, true
	case 5:
		return sim.ArrayInfo{Name: "gamma", Scalar: &s.Gamma}, true
	case 6:
		return sim.ArrayInfo{Name: "beta", Scalar: &s.Beta}, true
	}
	return sim.ArrayInfo{}, false
}

func (s *State) Show(w io.Writer) {
	fmt.Fprintf(w, "State: energy=%g moment0=%v\nstate=\n%v\n",
		s.KineticEnergy,
		mat.Formatted(s.Moment0.T(), mat.Squeeze()),
		mat.Formatted(s.Sigma, mat.Squeeze()))
}

func identity() *mat.Dense {
	m := mat.NewDense(MaxSize, MaxSize, nil)
	for i := 0; i < MaxSize; i++ {
		m.Set(i, i, 1)
	}
	return m
}
