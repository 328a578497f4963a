package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/san-kum/beamsim/internal/config"
	"github.com/san-kum/beamsim/internal/metrics"
	"github.com/san-kum/beamsim/internal/moment"
	"github.com/san-kum/beamsim/internal/sim"
)

var ErrNotSetup = errors.New("experiment: not setup")

type Config struct {
	Lattice *config.Config
	// Beam configures the initial state. The lattice root is used when nil.
	Beam  *config.Config
	Start int
	// Max bounds the number of elements advanced; negative means all.
	Max int
}

// Snapshot is the beam right after one element.
type Snapshot struct {
	Index         int       `json:"index" cbor:"index"`
	Name          string    `json:"name" cbor:"name"`
	Type          string    `json:"type" cbor:"type"`
	Position      float64   `json:"pos" cbor:"pos"`
	KineticEnergy float64   `json:"ek" cbor:"ek"`
	SyncPhase     float64   `json:"phase" cbor:"phase"`
	Moment0       []float64 `json:"moment0" cbor:"moment0"`
	Sigma         []float64 `json:"state" cbor:"state"`
}

type Result struct {
	Snapshots []Snapshot
	Metrics   map[string]float64
	Final     sim.State
}

type Experiment struct {
	cfg       Config
	reg       *sim.Registry
	machine   *sim.Machine
	metrics   []metrics.Metric
	observers []sim.Observer
	logger    *slog.Logger
}

func New(reg *sim.Registry, cfg Config) *Experiment {
	return &Experiment{cfg: cfg, reg: reg, logger: slog.Default()}
}

func (e *Experiment) WithLogger(l *slog.Logger) *Experiment {
	e.logger = l
	return e
}

// Setup builds the machine and installs the metrics fed during Run.
func (e *Experiment) Setup(ms ...metrics.Metric) error {
	if e.cfg.Lattice == nil {
		return fmt.Errorf("%w: no lattice", sim.ErrInvalidArgument)
	}
	m, err := sim.New(e.reg, e.cfg.Lattice, sim.WithLogger(e.logger))
	if err != nil {
		return err
	}
	e.machine = m
	e.metrics = ms
	return nil
}

// AddObserver registers o to see the state after every element.
func (e *Experiment) AddObserver(o sim.Observer) {
	e.observers = append(e.observers, o)
}

// Machine returns the built machine, nil before Setup.
func (e *Experiment) Machine() *sim.Machine {
	return e.machine
}

// Retune rebuilds the named element with key set to v. Elements keep no
// state between runs, so the next Run sees the new value.
func (e *Experiment) Retune(element, key string, v float64) error {
	if e.machine == nil {
		return ErrNotSetup
	}
	el, ok := e.machine.Lookup(element)
	if !ok {
		return fmt.Errorf("%w: no element named %q", sim.ErrInvalidArgument, element)
	}
	patch := config.New()
	config.Set(patch, key, v)
	return e.machine.Reconfigure(el.Index(), patch)
}

// Run propagates a fresh state one element at a time so ctx is checked
// between elements. Elements may still redirect the walk through NextElem.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	if e.machine == nil {
		return nil, ErrNotSetup
	}

	beam := e.cfg.Beam
	if beam == nil {
		beam = e.cfg.Lattice
	}
	s, err := e.machine.AllocState(beam)
	if err != nil {
		return nil, err
	}

	for _, m := range e.metrics {
		m.Reset()
	}

	res := &Result{}
	obs := make([]sim.Observer, 0, len(e.observers)+2)
	obs = append(obs, sim.ObserverFunc(func(el sim.Element, st sim.State) {
		res.Snapshots = append(res.Snapshots, snapshot(el, st))
	}))
	obs = append(obs, metrics.Observer(e.metrics...))
	obs = append(obs, e.observers...)

	max := e.cfg.Max
	if max < 0 {
		max = sim.All
	}

	next := e.cfg.Start
	for i := 0; i < max && next >= 0 && next < e.machine.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.machine.PropagateObserve(s, next, 1, obs...); err != nil {
			return nil, err
		}
		next = s.Base().NextElem
	}

	res.Metrics = metrics.Collect(e.metrics)
	res.Final = s

	e.logger.Info("run complete", "sim_type", e.machine.SimType(), "elements", len(res.Snapshots))
	return res, nil
}

func snapshot(el sim.Element, s sim.State) Snapshot {
	snap := Snapshot{Index: el.Index(), Name: el.Name(), Type: el.TypeName()}
	st, ok := s.(*moment.State)
	if !ok {
		return snap
	}
	snap.Position = st.Position
	snap.KineticEnergy = st.KineticEnergy
	snap.SyncPhase = st.SyncPhase
	snap.Moment0 = append([]float64(nil), st.Moment0.RawVector().Data...)
	snap.Sigma = append([]float64(nil), st.Sigma.RawMatrix().Data...)
	return snap
}
