package sim

import (
	"fmt"
	"io"
	"math"

	"github.com/san-kum/beamsim/internal/config"
)

// All passed as max to Propagate advances until the lattice ends.
const All = math.MaxInt

// StateBase carries the fields every simulation state shares.
type StateBase struct {
	// NextElem is the index of the element that follows the one currently
	// advancing. Advance may overwrite it to redirect the propagation.
	NextElem int
}

func (b *StateBase) Base() *StateBase { return b }

// ArrayInfo describes one introspectable field of a state. Data (row-major)
// or Scalar references live storage that stays valid for the state's
// lifetime.
type ArrayInfo struct {
	Name   string
	Data   []float64
	Scalar *float64
	Dims   []int
}

func (a ArrayInfo) NDim() int { return len(a.Dims) }

// State is the bunch description a Machine propagates.
type State interface {
	Base() *StateBase
	// Assign copies other into the receiver. Fails with ErrIncompatibleType
	// unless other has the same concrete kind.
	Assign(other State) error
	Clone() State
	// Array enumerates named fields for idx = 0, 1, ... until ok is false.
	Array(idx int) (info ArrayInfo, ok bool)
	Show(w io.Writer)
}

// Element is one lattice position.
type Element interface {
	Name() string
	Index() int
	TypeName() string
	// Config is the element's section scoped under the lattice root. It
	// shares its local values with the caller's section, so a Set on it
	// edits the lattice tree too; Clone it before changing anything, as
	// Machine.Reconfigure does.
	Config() *config.Config
	// Advance propagates s through the element in place.
	Advance(s State) error
	// Peek is called once after the whole lattice is built.
	Peek(all []Element)
	Show(w io.Writer)

	bind(index int)
}

// ElementVoid holds the identity of an element. Concrete element types embed
// it, which also provides the hook a Machine uses to assign the index.
type ElementVoid struct {
	name  string
	index int
	conf  *config.Config
}

func NewElementVoid(c *config.Config) (ElementVoid, error) {
	name, err := config.Get[string](c, "name")
	if err != nil {
		return ElementVoid{}, err
	}
	return ElementVoid{name: name, conf: c}, nil
}

func (e *ElementVoid) Name() string { return e.name }
func (e *ElementVoid) Index() int { return e.index }
func (e *ElementVoid) Config() *config.Config { return e.conf }
func (e *ElementVoid) Peek(all []Element) {}
func (e *ElementVoid) bind(index int) { e.index = index }
func (e *ElementVoid) Show(w io.Writer) {}
func (e *ElementVoid) String() string { return fmt.Sprintf("%d:%s", e.index, e.name) }

type (
	StateBuilder   func(c *config.Config) (State, error)
	ElementBuilder func(c *config.Config) (Element, error)
)

// Observer sees the state after each element advanced it.
type Observer interface {
	OnElement(e Element, s State)
}

type ObserverFunc func(e Element, s State)

func (f ObserverFunc) OnElement(e Element, s State) { f(e, s) }
