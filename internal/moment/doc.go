// Package moment implements the MomentMatrix2 simulation type: a bunch
// described by its first moments (centroid) and second moments (sigma
// matrix) over a seven-coordinate phase space, transported by linear
// transfer matrices.
//
// Every element computes its transfer matrix from lattice parameters when it
// is built. The one energy-dependent entry, the phase/energy-offset coupling,
// is refreshed lazily in Advance whenever the incoming kinetic energy differs
// from the previous call:
//
//	moment0 <- T · moment0
//	sigma   <- T · sigma · Tᵀ
//
// where T = misalign · transferRaw · misalign⁻¹.
//
// # Units
//
// Lengths in the lattice are metres and are converted to millimetres
// ([MtoMM]) before entering transfer matrices. Frf is in Hz.
//
// # Thread Safety
//
// Elements mutate their cache and scratch buffers in Advance and are NOT
// safe for concurrent use.
package moment
