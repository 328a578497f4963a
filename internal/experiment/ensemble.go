package experiment

import (
	"context"
	"sync"

	"github.com/san-kum/beamsim/internal/config"
	"github.com/san-kum/beamsim/internal/metrics"
	"github.com/san-kum/beamsim/internal/sim"
)

// Ensemble runs several beams through one lattice concurrently. Machines are
// not safe for concurrent use, so every run builds its own.
type Ensemble struct {
	reg     *sim.Registry
	lattice *config.Config
	metrics func() []metrics.Metric
}

// NewEnsemble uses newMetrics to give each run its own metric instances.
func NewEnsemble(reg *sim.Registry, lattice *config.Config, newMetrics func() []metrics.Metric) *Ensemble {
	if newMetrics == nil {
		newMetrics = DefaultMetrics
	}
	return &Ensemble{reg: reg, lattice: lattice, metrics: newMetrics}
}

// Run returns one result per beam, in order. The first error wins.
func (e *Ensemble) Run(ctx context.Context, beams []*config.Config) ([]*Result, error) {
	return e.run(ctx, len(beams), func(i int) Config {
		return Config{Lattice: e.lattice, Beam: beams[i], Max: sim.All}
	})
}

// RunLattices runs each lattice once with its own root keys as the beam,
// for members whose lattices differ, e.g. in their source sections.
func (e *Ensemble) RunLattices(ctx context.Context, lattices []*config.Config) ([]*Result, error) {
	return e.run(ctx, len(lattices), func(i int) Config {
		return Config{Lattice: lattices[i], Max: sim.All}
	})
}

func (e *Ensemble) run(ctx context.Context, n int, member func(int) Config) ([]*Result, error) {
	results := make([]*Result, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int, cfg Config) {
			defer wg.Done()

			exp := New(e.reg, cfg)
			if err := exp.Setup(e.metrics()...); err != nil {
				errs[idx] = err
				return
			}
			results[idx], errs[idx] = exp.Run(ctx)
		}(i, member(i))
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}
