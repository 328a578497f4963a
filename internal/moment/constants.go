package moment

const (
	// C0 is the speed of light in m/s.
	C0 = 2.99792458e8
	// MtoMM converts metres to millimetres.
	MtoMM = 1e3

	SimType = "MomentMatrix2"
)

// Phase-space coordinates.
const (
	PSX = iota
	PSPX
	PSY
	PSPY
	PSS
	PSPS
	PSHom

	// MaxSize is the dimension of the moment basis.
	MaxSize
)
