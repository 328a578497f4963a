package moment

import (
	"fmt"
	"math"

	"github.com/san-kum/beamsim/internal/config"
	"github.com/san-kum/beamsim/internal/sim"
)

// Marker is a zero-length identity element used as an observation point.
type Marker struct{ ElementBase }

func NewMarker(c *config.Config) (*Marker, error) {
	base, err := newElementBase(c)
	if err != nil {
		return nil, err
	}
	e := &Marker{ElementBase: base}
	e.Length = 0
	e.PhaseFactor = 0
	return e, nil
}

func (*Marker) TypeName() string { return "marker" }

type Drift struct{ ElementBase }

func NewDrift(c *config.Config) (*Drift, error) {
	base, err := newElementBase(c)
	if err != nil {
		return nil, err
	}
	e := &Drift{ElementBase: base}

	L := e.Length * MtoMM
	e.transferRaw.Set(PSX, PSPX, L)
	e.transferRaw.Set(PSY, PSPY, L)
	e.compose()
	return e, nil
}

func (*Drift) TypeName() string { return "drift" }

// SBend is a gradient sector bend (cylindrical coordinates).
type SBend struct {
	ElementBase
	Phi float64 // bend angle [rad]
	K   float64 // [1/m²]
}

func NewSBend(c *config.Config) (*SBend, error) {
	base, err := newElementBase(c)
	if err != nil {
		return nil, err
	}
	L, err := config.Get[float64](c, "L")
	if err != nil {
		return nil, err
	}
	phi, err := config.Get[float64](c, "phi")
	if err != nil {
		return nil, err
	}
	e := &SBend{ElementBase: base, Phi: phi, K: config.GetOr(c, "K", 0.0)}

	L *= MtoMM
	rho := L / phi
	K := e.K / (MtoMM * MtoMM)
	Kx := K + 1/(rho*rho)
	Ky := -K

	focus2x2(e.transferRaw, L, Kx, PSX)
	focus2x2(e.transferRaw, L, Ky, PSY)
	e.compose()
	return e, nil
}

func (*SBend) TypeName() string { return "sbend" }

// Quadrupole focuses horizontally for K > 0; K = B2/Brho [1/m²].
type Quadrupole struct {
	ElementBase
	K float64
}

func NewQuadrupole(c *config.Config) (*Quadrupole, error) {
	base, err := newElementBase(c)
	if err != nil {
		return nil, err
	}
	L, err := config.Get[float64](c, "L")
	if err != nil {
		return nil, err
	}
	e := &Quadrupole{ElementBase: base, K: config.GetOr(c, "K", 0.0)}

	L *= MtoMM
	K := e.K / (MtoMM * MtoMM)
	focus2x2(e.transferRaw, L, K, PSX)
	focus2x2(e.transferRaw, L, -K, PSY)
	e.compose()
	return e, nil
}

func (*Quadrupole) TypeName() string { return "quadrupole" }

// Solenoid couples the transverse planes; K = B0/(2 Brho) [1/m].
type Solenoid struct {
	ElementBase
	K float64
}

func NewSolenoid(c *config.Config) (*Solenoid, error) {
	base, err := newElementBase(c)
	if err != nil {
		return nil, err
	}
	L, err := config.Get[float64](c, "L")
	if err != nil {
		return nil, err
	}
	e := &Solenoid{ElementBase: base, K: config.GetOr(c, "K", 0.0)}

	L *= MtoMM
	K := e.K / MtoMM
	C, S := math.Cos(K*L), math.Sin(K*L)
	T := e.transferRaw

	for _, i := range []int{PSX, PSPX, PSY, PSPY} {
		T.Set(i, i, C*C)
	}

	// Position rows fall back to the drift block when K == 0.
	xpx, xpy, ypx := L, 0.0, 0.0
	if K != 0 {
		xpx = S * C / K
		xpy = S * S / K
		ypx = -S * S / K
	}

	T.Set(PSX, PSPX, xpx)
	T.Set(PSX, PSY, S*C)
	T.Set(PSX, PSPY, xpy)

	T.Set(PSPX, PSX, -K*S*C)
	T.Set(PSPX, PSY, -K*S*S)
	T.Set(PSPX, PSPY, S*C)

	T.Set(PSY, PSX, -S*C)
	T.Set(PSY, PSPX, ypx)
	T.Set(PSY, PSPY, xpx)

	T.Set(PSPY, PSX, K*S*S)
	T.Set(PSPY, PSPX, -S*C)
	T.Set(PSPY, PSY, -K*S*C)

	e.compose()
	return e, nil
}

func (*Solenoid) TypeName() string { return "solenoid" }

// Stripper is a charge stripper; it has no transport contribution yet.
type Stripper struct{ ElementBase }

func NewStripper(c *config.Config) (*Stripper, error) {
	base, err := newElementBase(c)
	if err != nil {
		return nil, err
	}
	return &Stripper{ElementBase: base}, nil
}

func (*Stripper) TypeName() string { return "stripper" }

// EDipole is an electric dipole; identity transport.
type EDipole struct{ ElementBase }

func NewEDipole(c *config.Config) (*EDipole, error) {
	base, err := newElementBase(c)
	if err != nil {
		return nil, err
	}
	return &EDipole{ElementBase: base}, nil
}

func (*EDipole) TypeName() string { return "edipole" }

// Generic takes its transfer matrix verbatim from the "transfer" list,
// row-major over an identity seed.
type Generic struct{ ElementBase }

func NewGeneric(c *config.Config) (*Generic, error) {
	base, err := newElementBase(c)
	if err != nil {
		return nil, err
	}
	T, err := config.Get[[]float64](c, "transfer")
	if err != nil {
		return nil, err
	}
	if len(T) > MaxSize*MaxSize {
		return nil, fmt.Errorf("%w: transfer has %d values, at most %d allowed", sim.ErrInvalidArgument, len(T), MaxSize*MaxSize)
	}
	e := &Generic{ElementBase: base}
	copy(e.transferRaw.RawMatrix().Data, T)
	e.compose()
	return e, nil
}

func (*Generic) TypeName() string { return "generic" }
