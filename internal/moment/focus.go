package moment

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// focus2x2 writes the one-plane transport block for length L and focusing
// strength K at rows/columns ind, ind+1 of m. K > 0 focuses (trigonometric),
// K <= 0 defocuses (hyperbolic); K == 0 reduces exactly to a drift.
func focus2x2(m *mat.Dense, L, K float64, ind int) {
	var sqrtK, cs, sn, sign float64
	if K > 0 {
		sqrtK = math.Sqrt(K)
		psi := sqrtK * L
		cs, sn = math.Cos(psi), math.Sin(psi)
		sign = -1
	} else {
		sqrtK = math.Sqrt(-K)
		psi := sqrtK * L
		cs, sn = math.Cosh(psi), math.Sinh(psi)
		sign = 1
	}

	m.Set(ind, ind, cs)
	m.Set(ind+1, ind+1, cs)
	if sqrtK != 0 {
		m.Set(ind, ind+1, sn/sqrtK)
		m.Set(ind+1, ind, sign*sqrtK*sn)
	} else {
		m.Set(ind, ind+1, L)
		m.Set(ind+1, ind, 0)
	}
}
