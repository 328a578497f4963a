package moment

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/beamsim/internal/config"
	"github.com/san-kum/beamsim/internal/sim"
)

// ElementBase carries the transfer matrices, the misalignment transform and
// the energy cache shared by every MomentMatrix2 element. Its Advance is the
// passive-element algorithm: no energy gain.
type ElementBase struct {
	sim.ElementVoid

	Length      float64 // [m]
	SampLength  float64 // RF sampling length [mm]
	PhaseFactor float64
	RestEnergy  float64

	transfer    *mat.Dense
	transferRaw *mat.Dense
	misalign    *mat.Dense
	misalignInv *mat.Dense

	scratch    *mat.Dense
	scratchVec *mat.VecDense

	// NaN until the first Advance so the first call always recomputes.
	lastEkIn, lastEkOut float64

	recomputes int
	advances   int
}

func newElementBase(c *config.Config) (ElementBase, error) {
	void, err := sim.NewElementVoid(c)
	if err != nil {
		return ElementBase{}, err
	}
	frf, err := config.Get[float64](c, "Frf")
	if err != nil {
		return ElementBase{}, err
	}
	es, err := config.Get[float64](c, "IonEs")
	if err != nil {
		return ElementBase{}, err
	}

	e := ElementBase{
		ElementVoid: void,
		Length:      config.GetOr(c, "L", 0.0),
		SampLength:  C0 / frf * MtoMM,
		RestEnergy:  es,
		transfer:    mat.NewDense(MaxSize, MaxSize, nil),
		transferRaw: identity(),
		misalignInv: mat.NewDense(MaxSize, MaxSize, nil),
		scratch:     mat.NewDense(MaxSize, MaxSize, nil),
		scratchVec:  mat.NewVecDense(MaxSize, nil),
		lastEkIn:    math.NaN(),
		lastEkOut:   math.NaN(),
	}
	e.PhaseFactor = e.Length * 2 * math.Pi / e.SampLength

	e.misalign, err = misalignment(c)
	if err != nil {
		return ElementBase{}, err
	}
	if err := invert(e.misalignInv, e.misalign); err != nil {
		return ElementBase{}, err
	}
	e.compose()
	return e, nil
}

// misalignment reads an explicit "misalign" matrix, or builds one from the
// dx, dy [mm] offsets and the roll [rad] about the beam axis.
func misalignment(c *config.Config) (*mat.Dense, error) {
	m := identity()

	explicit, err := optionalVector(c, "misalign", MaxSize*MaxSize)
	if err != nil {
		return nil, err
	}
	if explicit != nil {
		copy(m.RawMatrix().Data, explicit)
		return m, nil
	}

	if roll := config.GetOr(c, "roll", 0.0); roll != 0 {
		cr, sr := math.Cos(roll), math.Sin(roll)
		for _, p := range [][2]int{{PSX, PSY}, {PSPX, PSPY}} {
			m.Set(p[0], p[0], cr)
			m.Set(p[0], p[1], -sr)
			m.Set(p[1], p[0], sr)
			m.Set(p[1], p[1], cr)
		}
	}
	m.Set(PSX, PSHom, config.GetOr(c, "dx", 0.0))
	m.Set(PSY, PSHom, config.GetOr(c, "dy", 0.0))
	return m, nil
}

// invert computes dst = src⁻¹ by LU factorization with partial pivoting.
// Ill-conditioned but invertible inputs are accepted with a warning.
func invert(dst *mat.Dense, src mat.Matrix) error {
	err := dst.Inverse(src)
	if err == nil {
		return nil
	}
	var cond mat.Condition
	if errors.As(err, &cond) && !math.IsInf(float64(cond), 1) {
		slog.Warn("misalignment matrix is ill-conditioned", "condition", float64(cond))
		return nil
	}
	return fmt.Errorf("%w: misalignment: %v", sim.ErrSingularMatrix, err)
}

func asState(s sim.State) (*State, error) {
	st, ok := s.(*State)
	if !ok {
		return nil, fmt.Errorf("%w: %s element needs *moment.State, got %T", sim.ErrIncompatibleType, SimType, s)
	}
	return st, nil
}

// compose sets transfer = misalign · transferRaw · misalign⁻¹.
func (e *ElementBase) compose() {
	e.scratch.Mul(e.misalign, e.transferRaw)
	e.transfer.Mul(e.scratch, e.misalignInv)
}

// recomputeEnergy refreshes the longitudinal phase/energy-offset term of
// transferRaw for the state's beta and gamma.
func (e *ElementBase) recomputeEnergy(st *State) {
	bg := st.Beta * st.Gamma
	e.transferRaw.Set(PSS, PSPS, -2*math.Pi/(e.SampLength*e.RestEnergy*bg*bg*bg)*e.Length)
	e.recomputes++
}

func (e *ElementBase) Advance(s sim.State) error {
	st, err := asState(s)
	if err != nil {
		return err
	}

	if st.KineticEnergy != e.lastEkIn {
		e.recomputeEnergy(st)
		e.compose()
		e.lastEkIn = st.KineticEnergy
		e.lastEkOut = st.KineticEnergy
	}

	e.apply(st)
	return nil
}

// apply moves st through the element using the current transfer matrix.
func (e *ElementBase) apply(st *State) {
	st.Position += e.Length
	st.KineticEnergy = e.lastEkOut
	st.SyncPhase += e.PhaseFactor / st.Beta

	e.scratchVec.MulVec(e.transfer, st.Moment0)
	st.Moment0.CopyVec(e.scratchVec)

	e.scratch.Mul(e.transfer, st.Sigma)
	st.Sigma.Mul(e.scratch, e.transfer.T())

	e.advances++
}

// Transfer is the effective matrix applied to states.
func (e *ElementBase) Transfer() mat.Matrix { return e.transfer }

// TransferRaw is the transfer matrix before the misalignment transform.
func (e *ElementBase) TransferRaw() mat.Matrix { return e.transferRaw }

func (e *ElementBase) Misalign() mat.Matrix { return e.misalign }

func (e *ElementBase) MisalignInverse() mat.Matrix { return e.misalignInv }

// Recomputes counts energy-dependent recomputations since construction.
func (e *ElementBase) Recomputes() int { return e.recomputes }

func (e *ElementBase) Advances() int { return e.advances }

func (e *ElementBase) Show(w io.Writer) {
	fmt.Fprintf(w, "Length %g\nFSampLength %g\nphase_factor %g\nErest %g\n", e.Length, e.SampLength, e.PhaseFactor, e.RestEnergy)
	fmt.Fprintf(w, "Transfer:\n%v\n", mat.Formatted(e.transfer, mat.Squeeze()))
	fmt.Fprintf(w, "Transfer Raw:\n%v\n", mat.Formatted(e.transferRaw, mat.Squeeze()))
	fmt.Fprintf(w, "Mis-align:\n%v\n", mat.Formatted(e.misalign, mat.Squeeze()))
}
