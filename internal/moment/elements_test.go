package moment

import (
	"math"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/beamsim/internal/config"
	"github.com/san-kum/beamsim/internal/sim"
)

// transverse returns the 4×4 X/PX/Y/PY block of m.
func transverse(m mat.Matrix) mat.Matrix {
	return mat.DenseCopyOf(m).Slice(PSX, PSPY+1, PSX, PSPY+1)
}

var _ = Describe("Elements", func() {
	Describe("Drift", func() {
		It("moves a centroid without angle unchanged", func() {
			d := mustBuild(NewDrift, elemConf("d1", "drift", map[string]float64{"L": 1}))
			beam := newBeam([]float64{1, 0, 0, 0, 0, 0, 1})
			Expect(d.Advance(beam)).To(Succeed())

			Expect(beam.Moment0.RawVector().Data).To(Equal([]float64{1, 0, 0, 0, 0, 0, 1}))
			Expect(beam.Position).To(Equal(1.0))
			Expect(d.TransferRaw().At(PSX, PSPX)).To(Equal(1000.0))
			Expect(d.TransferRaw().At(PSY, PSPY)).To(Equal(1000.0))
		})

		It("shifts position by angle times length", func() {
			d := mustBuild(NewDrift, elemConf("d1", "drift", map[string]float64{"L": 0.5}))
			beam := newBeam([]float64{0, 1e-3, 0, -2e-3, 0, 0, 1})
			Expect(d.Advance(beam)).To(Succeed())

			Expect(beam.Moment0.AtVec(PSX)).To(BeNumerically("~", 0.5, 1e-12))
			Expect(beam.Moment0.AtVec(PSY)).To(BeNumerically("~", -1, 1e-12))
		})
	})

	Describe("Quadrupole", func() {
		It("reduces to a drift when K is zero", func() {
			q := mustBuild(NewQuadrupole, elemConf("q", "quadrupole", map[string]float64{"L": 0.3}))
			d := mustBuild(NewDrift, elemConf("d", "drift", map[string]float64{"L": 0.3}))
			Expect(mat.Equal(transverse(q.TransferRaw()), transverse(d.TransferRaw()))).To(BeTrue())
		})

		It("focuses horizontally and defocuses vertically for K > 0", func() {
			q := mustBuild(NewQuadrupole, elemConf("q", "quadrupole", map[string]float64{"L": 0.1, "K": 2}))
			sqrtK := math.Sqrt(2 / (MtoMM * MtoMM))
			psi := sqrtK * 100

			T := q.TransferRaw()
			Expect(T.At(PSX, PSX)).To(BeNumerically("~", math.Cos(psi), 1e-15))
			Expect(T.At(PSX, PSPX)).To(BeNumerically("~", math.Sin(psi)/sqrtK, 1e-9))
			Expect(T.At(PSPX, PSX)).To(BeNumerically("~", -sqrtK*math.Sin(psi), 1e-15))
			Expect(T.At(PSY, PSY)).To(BeNumerically("~", math.Cosh(psi), 1e-15))
			Expect(T.At(PSPY, PSY)).To(BeNumerically("~", sqrtK*math.Sinh(psi), 1e-15))
		})

		It("requires a length", func() {
			_, err := NewQuadrupole(elemConf("q", "quadrupole", map[string]float64{"K": 1}))
			Expect(err).To(MatchError(config.ErrKeyNotFound))
		})
	})

	Describe("SBend", func() {
		It("requires the bend angle", func() {
			_, err := NewSBend(elemConf("b", "sbend", map[string]float64{"L": 1}))
			Expect(err).To(MatchError(config.ErrKeyNotFound))
		})

		It("adds weak horizontal focusing from the curvature", func() {
			b := mustBuild(NewSBend, elemConf("b", "sbend", map[string]float64{"L": 1, "phi": 0.5}))
			rho := 1000 / 0.5
			sqrtK := 1 / rho
			psi := sqrtK * 1000

			T := b.TransferRaw()
			Expect(T.At(PSX, PSX)).To(BeNumerically("~", math.Cos(psi), 1e-12))
			Expect(T.At(PSPX, PSX)).To(BeNumerically("~", -sqrtK*math.Sin(psi), 1e-12))
			Expect(T.At(PSY, PSY)).To(Equal(1.0))
			Expect(T.At(PSY, PSPY)).To(Equal(1000.0))
		})
	})

	Describe("Solenoid", func() {
		It("reduces to a drift when K is zero", func() {
			s := mustBuild(NewSolenoid, elemConf("s", "solenoid", map[string]float64{"L": 0.2}))
			d := mustBuild(NewDrift, elemConf("d", "drift", map[string]float64{"L": 0.2}))
			Expect(mat.Equal(transverse(s.TransferRaw()), transverse(d.TransferRaw()))).To(BeTrue())
		})

		It("couples the transverse planes", func() {
			s := mustBuild(NewSolenoid, elemConf("s", "solenoid", map[string]float64{"L": 0.2, "K": 1.5}))
			K := 1.5 / MtoMM
			C, S := math.Cos(K*200), math.Sin(K*200)

			T := s.TransferRaw()
			Expect(T.At(PSX, PSX)).To(BeNumerically("~", C*C, 1e-15))
			Expect(T.At(PSX, PSY)).To(BeNumerically("~", S*C, 1e-15))
			Expect(T.At(PSY, PSX)).To(BeNumerically("~", -S*C, 1e-15))
			Expect(T.At(PSPY, PSX)).To(BeNumerically("~", K*S*S, 1e-15))
		})
	})

	Describe("Generic", func() {
		It("uses the transfer matrix verbatim", func() {
			vals := make([]float64, MaxSize*MaxSize)
			for i := range vals {
				vals[i] = float64(i + 1)
			}
			c := elemConf("g", "generic", nil)
			config.Set(c, "transfer", vals)
			g := mustBuild(NewGeneric, c)
			Expect(mat.DenseCopyOf(g.Transfer()).RawMatrix().Data).To(Equal(vals))
		})

		It("keeps identity entries past a short list", func() {
			c := elemConf("g", "generic", nil)
			config.Set(c, "transfer", []float64{2})
			g := mustBuild(NewGeneric, c)
			Expect(g.Transfer().At(0, 0)).To(Equal(2.0))
			Expect(g.Transfer().At(1, 1)).To(Equal(1.0))
		})

		It("rejects an oversized matrix", func() {
			c := elemConf("g", "generic", nil)
			config.Set(c, "transfer", make([]float64, MaxSize*MaxSize+1))
			_, err := NewGeneric(c)
			Expect(err).To(MatchError(sim.ErrInvalidArgument))
		})

		It("requires a transfer matrix", func() {
			_, err := NewGeneric(elemConf("g", "generic", nil))
			Expect(err).To(MatchError(config.ErrKeyNotFound))
		})
	})

	Describe("Source", func() {
		It("resets any incoming state to its configured beam", func() {
			c := elemConf("src", "source", map[string]float64{"IonEk": testIonEk, "IonFy": 0.25})
			config.Set(c, "moment0", []float64{1, 2, 3, 4, 5, 6, 1})
			src := mustBuild(NewSource, c)

			beam := newBeam([]float64{9, 9, 9, 9, 9, 9, 9})
			beam.Position = 40
			beam.Sigma.Set(2, 3, 7)
			beam.Base().NextElem = 5
			Expect(src.Advance(beam)).To(Succeed())

			Expect(beam.Moment0.RawVector().Data).To(Equal([]float64{1, 2, 3, 4, 5, 6, 1}))
			Expect(mat.Equal(beam.Sigma, identity())).To(BeTrue())
			Expect(beam.Position).To(BeZero())
			Expect(beam.SyncPhase).To(Equal(0.25))
			Expect(beam.Base().NextElem).To(Equal(5))
			Expect(src.Advances()).To(Equal(1))
		})

		It("shows its initial matrix", func() {
			src := mustBuild(NewSource, elemConf("src", "source", nil))
			var sb strings.Builder
			src.Show(&sb)
			Expect(sb.String()).To(HavePrefix("Initial:\n"))
		})
	})

	Describe("RFCavity", func() {
		newCavity := func(vals map[string]float64) *RFCavity {
			c := elemConf("cav", "rfcavity", vals)
			config.Set(c, "cavtype", "0.041QWR")
			return mustBuild(NewRFCavity, c)
		}

		It("requires a cavity type", func() {
			_, err := NewRFCavity(elemConf("cav", "rfcavity", map[string]float64{"L": 0.24}))
			Expect(err).To(MatchError(config.ErrKeyNotFound))
		})

		It("gains one unit of kinetic energy per pass", func() {
			cav := newCavity(map[string]float64{"L": 0.24})
			beam := newBeam(nil)
			Expect(cav.Advance(beam)).To(Succeed())

			Expect(beam.KineticEnergy).To(Equal(testIonEk + 1))
			Expect(beam.Gamma).To(BeNumerically("~", (testIonEk+1+testIonEs)/testIonEs, 1e-15))

			Expect(cav.Advance(beam)).To(Succeed())
			Expect(beam.KineticEnergy).To(Equal(testIonEk + 2))
			Expect(cav.Recomputes()).To(Equal(2))
		})

		It("applies the raw transfer matrix even when misaligned", func() {
			cav := newCavity(map[string]float64{"L": 0.24, "dx": 3})
			Expect(cav.Advance(newBeam(nil))).To(Succeed())
			Expect(mat.Equal(cav.Transfer(), cav.TransferRaw())).To(BeTrue())
		})
	})

	Describe("Marker", func() {
		It("has zero length and leaves the beam alone", func() {
			m := mustBuild(NewMarker, elemConf("m", "marker", map[string]float64{"L": 5}))
			Expect(m.Length).To(BeZero())
			Expect(m.PhaseFactor).To(BeZero())

			beam := newBeam([]float64{1, 2, 3, 4, 0, 0, 1})
			Expect(m.Advance(beam)).To(Succeed())
			Expect(beam.Position).To(BeZero())
			Expect(beam.SyncPhase).To(BeZero())
			Expect(beam.Moment0.RawVector().Data).To(Equal([]float64{1, 2, 3, 4, 0, 0, 1}))
		})
	})

	DescribeTable("identity transport",
		func(build sim.ElementBuilder, typ string) {
			e, err := build(elemConf("x", typ, nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(e.TypeName()).To(Equal(typ))

			beam := newBeam([]float64{1, 2, 3, 4, 0, 0, 1})
			Expect(e.Advance(beam)).To(Succeed())
			Expect(beam.Moment0.RawVector().Data).To(Equal([]float64{1, 2, 3, 4, 0, 0, 1}))
		},
		Entry("stripper", builder(NewStripper), "stripper"),
		Entry("edipole", builder(NewEDipole), "edipole"),
	)

	It("shows its parameters and matrices", func() {
		d := mustBuild(NewDrift, elemConf("d1", "drift", map[string]float64{"L": 1}))
		var sb strings.Builder
		d.Show(&sb)
		Expect(sb.String()).To(HavePrefix("Length 1\n"))
		Expect(sb.String()).To(ContainSubstring("Transfer Raw:"))
		Expect(sb.String()).To(ContainSubstring("Mis-align:"))
	})

	It("carries name and type from its section", func() {
		q := mustBuild(NewQuadrupole, elemConf("qf1", "quadrupole", map[string]float64{"L": 0.1}))
		Expect(q.Name()).To(Equal("qf1"))
		Expect(q.TypeName()).To(Equal("quadrupole"))
		Expect(q.Config()).NotTo(BeNil())
	})
})
