package moment

import (
	"github.com/san-kum/beamsim/internal/config"
	"github.com/san-kum/beamsim/internal/sim"
)

func builder[E sim.Element](fn func(*config.Config) (E, error)) sim.ElementBuilder {
	return func(c *config.Config) (sim.Element, error) {
		e, err := fn(c)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
}

// Register installs the MomentMatrix2 state and element types into r.
func Register(r *sim.Registry) {
	r.RegisterState(SimType, func(c *config.Config) (sim.State, error) {
		s, err := NewState(c)
		if err != nil {
			return nil, err
		}
		return s, nil
	})

	elements := map[string]sim.ElementBuilder{
		"source":     builder(NewSource),
		"marker":     builder(NewMarker),
		"drift":      builder(NewDrift),
		"sbend":      builder(NewSBend),
		"quadrupole": builder(NewQuadrupole),
		"solenoid":   builder(NewSolenoid),
		"rfcavity":   builder(NewRFCavity),
		"stripper":   builder(NewStripper),
		"edipole":    builder(NewEDipole),
		"generic":    builder(NewGeneric),
	}
	for name, b := range elements {
		// The state builder above is registered, so this cannot fail.
		_ = r.RegisterElement(SimType, name, b)
	}
}
