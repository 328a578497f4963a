package moment

import (
	"io"
	"math"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/beamsim/internal/config"
	"github.com/san-kum/beamsim/internal/sim"
)

type foreignState struct{ sim.StateBase }

func (f *foreignState) Assign(sim.State) error { return nil }
func (f *foreignState) Clone() sim.State { return &foreignState{} }
func (f *foreignState) Array(int) (sim.ArrayInfo, bool) { return sim.ArrayInfo{}, false }
func (f *foreignState) Show(io.Writer) {}

var _ = Describe("State", func() {
	It("defaults to a zero centroid and identity sigma", func() {
		s, err := NewState(config.New())
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Position).To(BeZero())
		Expect(s.KineticEnergy).To(BeZero())
		Expect(s.RestEnergy).To(Equal(1.0))
		Expect(mat.Equal(s.Sigma, identity())).To(BeTrue())
		Expect(mat.Sum(s.Moment0)).To(BeZero())
	})

	It("derives gamma and beta from kinetic and rest energy", func() {
		s := newBeam(nil)
		gamma := (testIonEk + testIonEs) / testIonEs
		Expect(s.Gamma).To(BeNumerically("~", gamma, 1e-15))
		Expect(s.Beta).To(BeNumerically("~", math.Sqrt(1+1/(gamma*gamma)), 1e-15))
	})

	It("copies a short moment0 over zeros and initial over identity", func() {
		c := beamConf([]float64{1, 2})
		config.Set(c, "initial", []float64{5, 6})
		s, err := NewState(c)
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Moment0.RawVector().Data).To(Equal([]float64{1, 2, 0, 0, 0, 0, 0}))
		Expect(s.Sigma.At(0, 0)).To(Equal(5.0))
		Expect(s.Sigma.At(0, 1)).To(Equal(6.0))
		Expect(s.Sigma.At(1, 1)).To(Equal(1.0))
	})

	It("rejects oversized initializers", func() {
		_, err := NewState(beamConf(make([]float64, MaxSize+1)))
		Expect(err).To(MatchError(sim.ErrInvalidArgument))

		c := beamConf(nil)
		config.Set(c, "initial", make([]float64, MaxSize*MaxSize+1))
		_, err = NewState(c)
		Expect(err).To(MatchError(sim.ErrInvalidArgument))
	})

	It("rejects a moment0 of the wrong kind", func() {
		c := beamConf(nil)
		config.Set(c, "moment0", "not a vector")
		_, err := NewState(c)
		Expect(err).To(MatchError(sim.ErrInvalidArgument))
	})

	It("assigns only from the same concrete kind", func() {
		s := newBeam(nil)
		Expect(s.Assign(&foreignState{})).To(MatchError(sim.ErrIncompatibleType))

		other := newBeam([]float64{3, 0, 0, 0, 0, 0, 1})
		other.Position = 12
		other.Base().NextElem = 7
		Expect(s.Assign(other)).To(Succeed())
		Expect(s.Position).To(Equal(12.0))
		Expect(s.Moment0.AtVec(0)).To(Equal(3.0))
		Expect(s.Base().NextElem).To(Equal(0))
	})

	It("clones deeply", func() {
		s := newBeam([]float64{1})
		s.Base().NextElem = 4
		c := s.Clone().(*State)
		c.Moment0.SetVec(0, 9)
		c.Sigma.Set(1, 1, 9)

		Expect(c.Base().NextElem).To(Equal(4))
		Expect(s.Moment0.AtVec(0)).To(Equal(1.0))
		Expect(s.Sigma.At(1, 1)).To(Equal(1.0))
	})

	It("enumerates live storage until exhausted", func() {
		s := newBeam(nil)
		var names []string
		for i := 0; ; i++ {
			info, ok := s.Array(i)
			if !ok {
				break
			}
			names = append(names, info.Name)
		}
		Expect(names).To(Equal([]string{"state", "moment0", "pos", "Ekinetic", "sync_phase", "gamma", "beta"}))

		st, _ := s.Array(0)
		Expect(st.Dims).To(Equal([]int{MaxSize, MaxSize}))
		st.Data[1] = 42
		Expect(s.Sigma.At(0, 1)).To(Equal(42.0))

		pos, _ := s.Array(2)
		Expect(pos.NDim()).To(BeZero())
		*pos.Scalar = 3.5
		Expect(s.Position).To(Equal(3.5))

		// Assign keeps the addresses handed out above.
		Expect(s.Assign(newBeam(nil))).To(Succeed())
		Expect(st.Data[1]).To(BeZero())
	})

	It("shows energy and matrices", func() {
		var sb strings.Builder
		newBeam(nil).Show(&sb)
		Expect(sb.String()).To(HavePrefix("State: energy=500000"))
	})
})
