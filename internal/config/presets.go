package config

import "sort"

const (
	DefaultSimType = "MomentMatrix2"
	DefaultFrf     = 80.5e6
	DefaultIonEs   = 931.49432e6
	DefaultIonEk   = 0.5e6
)

// phaseSpaceDim is the moment basis size of the default simulation type.
const phaseSpaceDim = 7

var presets = map[string]func() *Config{
	"drift": func() *Config {
		return lattice(
			element("d1", "drift", map[string]float64{"L": 1.0}),
		)
	},
	"fodo": func() *Config {
		return lattice(
			element("qf", "quadrupole", map[string]float64{"L": 0.1, "K": 2.0}),
			element("d1", "drift", map[string]float64{"L": 0.5}),
			element("qd", "quadrupole", map[string]float64{"L": 0.1, "K": -2.0}),
			element("d2", "drift", map[string]float64{"L": 0.5}),
			element("bpm", "marker", nil),
		)
	},
	"solenoid-channel": func() *Config {
		return lattice(
			element("s1", "solenoid", map[string]float64{"L": 0.2, "K": 1.5}),
			element("d1", "drift", map[string]float64{"L": 0.3}),
			element("s2", "solenoid", map[string]float64{"L": 0.2, "K": 1.5}),
			element("d2", "drift", map[string]float64{"L": 0.3}),
		)
	},
	"bend-arc": func() *Config {
		return lattice(
			element("d1", "drift", map[string]float64{"L": 1.0e-3}),
			element("b1", "sbend", map[string]float64{"L": 0.1, "phi": 1.0e-6, "K": 3e-3}),
			element("d2", "drift", map[string]float64{"L": 1.0e-3}),
		)
	},
	"linac-cell": func() *Config {
		cav := element("cav1", "rfcavity", map[string]float64{"L": 0.24})
		Set(cav, "cavtype", "0.041QWR")
		return lattice(
			element("d1", "drift", map[string]float64{"L": 0.1}),
			cav,
			element("d2", "drift", map[string]float64{"L": 0.1}),
			element("strip", "stripper", nil),
		)
	},
}

func lattice(elems ...*Config) *Config {
	c := New()
	Set(c, "sim_type", DefaultSimType)
	Set(c, "Frf", DefaultFrf)
	Set(c, "IonEs", DefaultIonEs)
	Set(c, "IonEk", DefaultIonEk)
	Set(c, "moment0", make([]float64, phaseSpaceDim))

	initial := make([]float64, phaseSpaceDim*phaseSpaceDim)
	for i, v := range []float64{1, 1e-3, 1, 1e-3, 1, 1, 1} {
		initial[i*phaseSpaceDim+i] = v
	}
	Set(c, "initial", initial)
	Set(c, "elements", elems)
	return c
}

func element(name, typ string, vals map[string]float64) *Config {
	c := New()
	Set(c, "name", name)
	Set(c, "type", typ)
	for k, v := range vals {
		Set(c, k, v)
	}
	return c
}

// GetPreset returns a fresh copy of the named lattice, or nil.
func GetPreset(name string) *Config {
	fn, ok := presets[name]
	if !ok {
		return nil
	}
	return fn()
}

func ListPresets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
