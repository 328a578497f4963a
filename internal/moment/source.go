package moment

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/beamsim/internal/config"
	"github.com/san-kum/beamsim/internal/sim"
)

// Source resets the bunch to the state described by its own configuration.
// The transfer matrix is not used.
type Source struct {
	ElementBase
	initial *State
}

func NewSource(c *config.Config) (*Source, error) {
	base, err := newElementBase(c)
	if err != nil {
		return nil, err
	}
	initial, err := NewState(c)
	if err != nil {
		return nil, err
	}
	return &Source{ElementBase: base, initial: initial}, nil
}

func (*Source) TypeName() string { return "source" }

func (e *Source) Advance(s sim.State) error {
	e.advances++
	return s.Assign(e.initial)
}

// Initial returns the state the source injects.
func (e *Source) Initial() *State { return e.initial }

func (e *Source) Show(w io.Writer) {
	fmt.Fprintf(w, "Initial:\n%v\n", mat.Formatted(e.initial.Sigma, mat.Squeeze()))
}
