package sim

import (
	"errors"
	"fmt"
)

// Construction and propagation errors.
var (
	// ErrUnknownSimType indicates a sim_type with no registered state builder.
	ErrUnknownSimType = errors.New("sim: unknown simulation type")

	// ErrUnknownElementType indicates an element type not registered for the sim type.
	ErrUnknownElementType = errors.New("sim: unknown element type")

	// ErrIncompatibleType indicates a state of another concrete kind.
	ErrIncompatibleType = errors.New("sim: incompatible state type")

	// ErrInvalidArgument indicates an oversized or malformed initializer.
	ErrInvalidArgument = errors.New("sim: invalid argument")

	// ErrSingularMatrix indicates a transform that cannot be inverted.
	ErrSingularMatrix = errors.New("sim: singular matrix")
)

// ElementError wraps a failure with the lattice position it came from.
type ElementError struct {
	Index   int
	Name    string
	Type    string
	Wrapped error
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("element %d %q (%s): %v", e.Index, e.Name, e.Type, e.Wrapped)
}

func (e *ElementError) Unwrap() error {
	return e.Wrapped
}
