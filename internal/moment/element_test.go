package moment

import (
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/beamsim/internal/config"
	"github.com/san-kum/beamsim/internal/sim"
)

func mustBuild[E any](fn func(*config.Config) (E, error), c *config.Config) E {
	e, err := fn(c)
	Expect(err).NotTo(HaveOccurred())
	return e
}

// symmetricSigma returns A·Aᵀ for a random A, plus the identity.
func symmetricSigma(rng *rand.Rand) *mat.Dense {
	a := mat.NewDense(MaxSize, MaxSize, nil)
	for i := 0; i < MaxSize; i++ {
		for j := 0; j < MaxSize; j++ {
			a.Set(i, j, rng.NormFloat64())
		}
	}
	var s mat.Dense
	s.Mul(a, a.T())
	s.Add(&s, identity())
	return &s
}

var _ = Describe("ElementBase", func() {
	It("requires Frf and IonEs", func() {
		c := config.New()
		config.Set(c, "name", "d1")
		config.Set(c, "L", 1.0)
		_, err := NewDrift(c)
		Expect(err).To(MatchError(config.ErrKeyNotFound))

		config.Set(c, "Frf", testFrf)
		_, err = NewDrift(c)
		Expect(err).To(MatchError(config.ErrKeyNotFound))
	})

	It("derives the sampling length and phase factor", func() {
		d := mustBuild(NewDrift, elemConf("d1", "drift", map[string]float64{"L": 2}))
		Expect(d.SampLength).To(BeNumerically("~", C0/testFrf*MtoMM, 1e-9))
		Expect(d.PhaseFactor).To(BeNumerically("~", 2*2*math.Pi/d.SampLength, 1e-15))
		Expect(d.RestEnergy).To(Equal(testIonEs))
	})

	It("rejects states of another kind", func() {
		d := mustBuild(NewDrift, elemConf("d1", "drift", nil))
		Expect(d.Advance(&foreignState{})).To(MatchError(sim.ErrIncompatibleType))
	})

	It("fails on a singular misalignment", func() {
		c := elemConf("q1", "quadrupole", map[string]float64{"L": 0.1, "K": 1})
		config.Set(c, "misalign", make([]float64, MaxSize*MaxSize))
		_, err := NewQuadrupole(c)
		Expect(err).To(MatchError(sim.ErrSingularMatrix))
	})

	It("precomputes the misalignment inverse", func() {
		c := elemConf("q1", "quadrupole", map[string]float64{"L": 0.1, "K": 1, "dx": 1.5, "dy": -0.5, "roll": 0.1})
		q := mustBuild(NewQuadrupole, c)

		var prod mat.Dense
		prod.Mul(q.Misalign(), q.MisalignInverse())
		Expect(mat.EqualApprox(&prod, identity(), 1e-12)).To(BeTrue())
	})

	Describe("Advance", func() {
		var (
			q    *Quadrupole
			beam *State
		)

		BeforeEach(func() {
			q = mustBuild(NewQuadrupole, elemConf("q1", "quadrupole", map[string]float64{"L": 0.1, "K": 2}))
			beam = newBeam([]float64{1, 1e-3, -1, 2e-3, 0.1, 0.01, 1})
		})

		It("recomputes the energy term once per kinetic energy", func() {
			Expect(q.Recomputes()).To(BeZero())

			Expect(q.Advance(beam)).To(Succeed())
			T := q.Transfer()
			Expect(q.Recomputes()).To(Equal(1))

			Expect(q.Advance(newBeam(nil))).To(Succeed())
			Expect(q.Recomputes()).To(Equal(1))
			Expect(q.Transfer()).To(BeIdenticalTo(T))

			other := newBeam(nil)
			other.SetKineticEnergy(2 * testIonEk)
			Expect(q.Advance(other)).To(Succeed())
			Expect(q.Recomputes()).To(Equal(2))
			Expect(q.Advances()).To(Equal(3))
		})

		It("sets the longitudinal energy term from beta and gamma", func() {
			Expect(q.Advance(beam)).To(Succeed())

			bg := newBeam(nil)
			want := -2 * math.Pi / (q.SampLength * q.RestEnergy * math.Pow(bg.Beta*bg.Gamma, 3)) * q.Length
			Expect(q.TransferRaw().At(PSS, PSPS)).To(BeNumerically("~", want, math.Abs(want)*1e-12))
		})

		It("updates the scalar kinematics", func() {
			Expect(q.Advance(beam)).To(Succeed())
			Expect(beam.Position).To(Equal(0.1))
			Expect(beam.KineticEnergy).To(Equal(testIonEk))
			Expect(beam.SyncPhase).To(BeNumerically("~", q.PhaseFactor/beam.Beta, 1e-15))
		})

		It("is linear in the first moment", func() {
			rng := rand.New(rand.NewSource(1))
			m1 := make([]float64, MaxSize)
			m2 := make([]float64, MaxSize)
			for i := range m1 {
				m1[i] = rng.NormFloat64()
				m2[i] = rng.NormFloat64()
			}
			a, b := 2.5, -0.75
			mix := make([]float64, MaxSize)
			for i := range mix {
				mix[i] = a*m1[i] + b*m2[i]
			}

			s1, s2, s3 := newBeam(m1), newBeam(m2), newBeam(mix)
			for _, s := range []*State{s1, s2, s3} {
				Expect(q.Advance(s)).To(Succeed())
			}

			var want mat.VecDense
			want.AddScaledVec(mat.NewVecDense(MaxSize, nil), a, s1.Moment0)
			want.AddScaledVec(&want, b, s2.Moment0)
			Expect(mat.EqualApprox(s3.Moment0, &want, 1e-9)).To(BeTrue())
		})

		It("propagates sigma as T·Σ·Tᵀ", func() {
			sigma := symmetricSigma(rand.New(rand.NewSource(2)))
			beam.Sigma.Copy(sigma)
			Expect(q.Advance(beam)).To(Succeed())

			var want mat.Dense
			want.Mul(q.Transfer(), sigma)
			want.Mul(&want, q.Transfer().T())
			Expect(mat.EqualApprox(beam.Sigma, &want, 1e-12)).To(BeTrue())
		})
	})

	DescribeTable("preserves sigma symmetry",
		func(build func() sim.Element) {
			e := build()
			beam := newBeam([]float64{0.5, 1e-3, 0.2, -1e-3, 0, 0, 1})
			beam.Sigma.Copy(symmetricSigma(rand.New(rand.NewSource(3))))

			for i := 0; i < 3; i++ {
				Expect(e.Advance(beam)).To(Succeed())
			}
			Expect(mat.EqualApprox(beam.Sigma, beam.Sigma.T(), 1e-12)).To(BeTrue())
		},
		Entry("drift", func() sim.Element {
			return mustBuild(NewDrift, elemConf("d", "drift", map[string]float64{"L": 1}))
		}),
		Entry("quadrupole", func() sim.Element {
			return mustBuild(NewQuadrupole, elemConf("q", "quadrupole", map[string]float64{"L": 0.1, "K": -3}))
		}),
		Entry("sbend", func() sim.Element {
			return mustBuild(NewSBend, elemConf("b", "sbend", map[string]float64{"L": 0.5, "phi": 0.2, "K": 1}))
		}),
		Entry("solenoid", func() sim.Element {
			return mustBuild(NewSolenoid, elemConf("s", "solenoid", map[string]float64{"L": 0.2, "K": 1.5}))
		}),
		Entry("misaligned quadrupole", func() sim.Element {
			return mustBuild(NewQuadrupole, elemConf("q", "quadrupole", map[string]float64{"L": 0.1, "K": 2, "dx": 1, "roll": 0.3}))
		}),
		Entry("rfcavity", func() sim.Element {
			c := elemConf("c", "rfcavity", map[string]float64{"L": 0.24})
			config.Set(c, "cavtype", "0.041QWR")
			return mustBuild(NewRFCavity, c)
		}),
	)

	It("keeps a beam centred on a displaced quadrupole on its axis", func() {
		q := mustBuild(NewQuadrupole, elemConf("q", "quadrupole", map[string]float64{"L": 0.1, "K": 2, "dx": 2, "dy": -1}))
		beam := newBeam([]float64{2, 0, -1, 0, 0, 0, 1})
		Expect(q.Advance(beam)).To(Succeed())

		Expect(beam.Moment0.AtVec(PSX)).To(BeNumerically("~", 2, 1e-12))
		Expect(beam.Moment0.AtVec(PSPX)).To(BeNumerically("~", 0, 1e-12))
		Expect(beam.Moment0.AtVec(PSY)).To(BeNumerically("~", -1, 1e-12))
		Expect(beam.Moment0.AtVec(PSPY)).To(BeNumerically("~", 0, 1e-12))
	})
})
