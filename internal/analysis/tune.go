package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/beamsim/internal/metrics"
	"github.com/san-kum/beamsim/internal/moment"
	"github.com/san-kum/beamsim/internal/sim"
)

var (
	ErrUnstable  = errors.New("analysis: cell is not stable")
	ErrNoMatrix  = errors.New("analysis: element has no transfer matrix")
	ErrShortData = errors.New("analysis: not enough turns")
)

type transferer interface {
	Transfer() mat.Matrix
}

// CellMatrix multiplies the element transfer matrices in lattice order.
// Sources are skipped; they reset the beam rather than transport it.
func CellMatrix(m *sim.Machine) (*mat.Dense, error) {
	M := mat.NewDense(moment.MaxSize, moment.MaxSize, nil)
	for i := 0; i < moment.MaxSize; i++ {
		M.Set(i, i, 1)
	}
	for _, e := range m.Elements() {
		if _, ok := e.(*moment.Source); ok {
			continue
		}
		t, ok := e.(transferer)
		if !ok {
			return nil, fmt.Errorf("%w: %s (%s)", ErrNoMatrix, e.Name(), e.TypeName())
		}
		M.Mul(t.Transfer(), M)
	}
	return M, nil
}

// PeriodicTune returns the fractional tune in [0, 0.5] of the uncoupled
// plane p, from cos μ = (M₁₁ + M₂₂)/2.
func PeriodicTune(m *sim.Machine, p metrics.Plane) (float64, error) {
	M, err := CellMatrix(m)
	if err != nil {
		return 0, err
	}
	i := int(p)
	cosMu := (M.At(i, i) + M.At(i+1, i+1)) / 2
	if math.Abs(cosMu) > 1+1e-12 {
		return 0, fmt.Errorf("%w: half trace %.6g in plane %s", ErrUnstable, cosMu, p)
	}
	cosMu = math.Max(-1, math.Min(1, cosMu))
	return math.Acos(cosMu) / (2 * math.Pi), nil
}

// TrackCentroid passes s through the whole lattice turns times and
// records the plane p centroid ahead of each pass.
func TrackCentroid(m *sim.Machine, s *moment.State, turns int, p metrics.Plane) ([]float64, error) {
	out := make([]float64, 0, turns)
	for t := 0; t < turns; t++ {
		out = append(out, s.Moment0.AtVec(int(p)))
		if err := m.Propagate(s, 0, sim.All); err != nil {
			return out, fmt.Errorf("turn %d: %w", t, err)
		}
	}
	return out, nil
}

// SpectralTune returns the dominant fractional frequency of seq in
// [0, 0.5]. The mean is removed and a Hann window applied before the
// transform; the peak bin is refined by parabolic interpolation.
func SpectralTune(seq []float64) (float64, error) {
	n := len(seq)
	if n < 8 {
		return 0, fmt.Errorf("%w: %d", ErrShortData, n)
	}

	var mean float64
	for _, v := range seq {
		mean += v
	}
	mean /= float64(n)

	w := make([]float64, n)
	for i, v := range seq {
		w[i] = v - mean
	}
	window.Apply(w, window.Hann)

	// Real input: only the non-negative half of the spectrum is distinct.
	coeff := fft.FFTReal(w)[:n/2+1]
	mag := make([]float64, len(coeff))
	for i, c := range coeff {
		mag[i] = cmplx.Abs(c)
	}

	peak := 1
	for i := 2; i < len(mag); i++ {
		if mag[i] > mag[peak] {
			peak = i
		}
	}

	k := float64(peak)
	if peak > 0 && peak < len(mag)-1 {
		a, b, c := mag[peak-1], mag[peak], mag[peak+1]
		if d := a - 2*b + c; d != 0 {
			k += 0.5 * (a - c) / d
		}
	}
	return math.Max(0, math.Min(0.5, k/float64(n))), nil
}
