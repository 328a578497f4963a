// Package analysis characterizes a lattice as a periodic cell.
//
//   - [PeriodicTune]: fractional betatron tune from the one-cell matrix
//   - [TrackCentroid]: turn-by-turn centroid of a displaced beam
//   - [SpectralTune]: dominant frequency of a turn-by-turn signal
//
// # Stability
//
// A cell is stable in a plane when the half trace of its 2×2 block lies
// in [-1, 1]; otherwise [PeriodicTune] returns [ErrUnstable]:
//
//	nu, err := analysis.PeriodicTune(m, metrics.PlaneX)
//	if errors.Is(err, analysis.ErrUnstable) {
//	    // motion grows without bound
//	}
package analysis
