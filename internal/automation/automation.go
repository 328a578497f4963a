package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/beamsim/internal/config"
	"github.com/san-kum/beamsim/internal/experiment"
	"github.com/san-kum/beamsim/internal/moment"
	"github.com/san-kum/beamsim/internal/sim"
	"github.com/san-kum/beamsim/internal/storage"
)

// Scenario defines a scripted sequence of runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one run. Lattice and Beam name a preset or a yaml file.
type ScenarioStep struct {
	Lattice string `yaml:"lattice"`
	Beam    string `yaml:"beam"`
	Start   int    `yaml:"start"`
	// Max defaults to the whole lattice when omitted.
	Max *int `yaml:"max"`
	// Retune maps element name to parameter overrides.
	Retune map[string]map[string]float64 `yaml:"retune"`
	SaveAs string                        `yaml:"save_as"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q has no steps", scenario.Name)
	}
	return &scenario, nil
}

// Resolve loads name as a preset, else as a yaml file.
func Resolve(name string) (*config.Config, error) {
	if c := config.GetPreset(name); c != nil {
		return c, nil
	}
	return config.Load(name)
}

// RunScenario executes all steps in order. Steps with SaveAs are written to
// st when it is non-nil.
func RunScenario(ctx context.Context, scenario *Scenario, reg *sim.Registry, st *storage.Store) ([]*experiment.Result, error) {
	results := make([]*experiment.Result, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		slog.Info("scenario step", "scenario", scenario.Name, "step", i+1, "of", len(scenario.Steps), "lattice", step.Lattice)

		result, err := runStep(ctx, step, reg)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		results = append(results, result)

		if st != nil && step.SaveAs != "" {
			if _, err := st.Save(storage.RunMetadata{Lattice: step.SaveAs, SimType: moment.SimType, Start: step.Start, Max: stepMax(step)}, result); err != nil {
				return results, fmt.Errorf("step %d save: %w", i+1, err)
			}
		}
	}

	return results, nil
}

func stepMax(step ScenarioStep) int {
	if step.Max == nil {
		return sim.All
	}
	return *step.Max
}

func runStep(ctx context.Context, step ScenarioStep, reg *sim.Registry) (*experiment.Result, error) {
	lattice, err := Resolve(step.Lattice)
	if err != nil {
		return nil, err
	}
	cfg := experiment.Config{Lattice: lattice, Start: step.Start, Max: stepMax(step)}
	if step.Beam != "" {
		if cfg.Beam, err = Resolve(step.Beam); err != nil {
			return nil, err
		}
	}

	exp := experiment.New(reg, cfg)
	if err := exp.Setup(experiment.DefaultMetrics()...); err != nil {
		return nil, err
	}
	for elem, params := range step.Retune {
		for key, v := range params {
			if err := exp.Retune(elem, key, v); err != nil {
				return nil, err
			}
		}
	}
	return exp.Run(ctx)
}

// ParameterSweep scans one numeric parameter of one element.
type ParameterSweep struct {
	Lattice  *config.Config
	Element  string
	Param    string
	Min, Max float64
	NumSteps int
}

type SweepResult struct {
	ParamValue float64
	Metrics    map[string]float64
}

// RunSweep rebuilds the element for every value and propagates the same
// initial beam each time.
func RunSweep(ctx context.Context, sweep *ParameterSweep, reg *sim.Registry) ([]SweepResult, error) {
	if sweep.NumSteps < 1 {
		return nil, fmt.Errorf("%w: sweep needs at least one step", sim.ErrInvalidArgument)
	}

	exp := experiment.New(reg, experiment.Config{Lattice: sweep.Lattice, Max: sim.All})
	if err := exp.Setup(experiment.DefaultMetrics()...); err != nil {
		return nil, err
	}

	paramStep := 0.0
	if sweep.NumSteps > 1 {
		paramStep = (sweep.Max - sweep.Min) / float64(sweep.NumSteps-1)
	}

	results := make([]SweepResult, 0, sweep.NumSteps)
	for i := 0; i < sweep.NumSteps; i++ {
		paramVal := sweep.Min + float64(i)*paramStep
		if err := exp.Retune(sweep.Element, sweep.Param, paramVal); err != nil {
			return nil, err
		}

		result, err := exp.Run(ctx)
		if err != nil {
			return nil, err
		}
		results = append(results, SweepResult{ParamValue: paramVal, Metrics: result.Metrics})

		slog.Debug("sweep", "step", i+1, "of", sweep.NumSteps, "param", sweep.Element+"."+sweep.Param, "value", paramVal)
	}

	return results, nil
}

// MonteCarloConfig jitters the transverse centroid of the initial beam.
type MonteCarloConfig struct {
	Lattice *config.Config
	// Perturbation is the half-width of the uniform X and Y offsets [mm].
	Perturbation float64
	// Aperture bounds |x| and |y| at the end of the line [mm].
	Aperture  float64
	NumTrials int
	Seed      int64
}

type MonteCarloResult struct {
	TrialID int
	Offset  [2]float64
	Final   [2]float64
	// Stable is true when the final centroid stays inside the aperture.
	Stable bool
}

// RunMonteCarlo propagates NumTrials jittered beams concurrently.
func RunMonteCarlo(ctx context.Context, cfg *MonteCarloConfig, reg *sim.Registry) ([]MonteCarloResult, error) {
	if cfg.Lattice == nil {
		return nil, errors.New("monte carlo: no lattice")
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	if cfg.Seed == 0 {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	lattices := make([]*config.Config, cfg.NumTrials)
	offsets := make([][2]float64, cfg.NumTrials)
	for trial := range lattices {
		offsets[trial] = [2]float64{
			(rng.Float64() - 0.5) * 2 * cfg.Perturbation,
			(rng.Float64() - 0.5) * 2 * cfg.Perturbation,
		}
		lat, err := jitterLattice(cfg.Lattice, offsets[trial])
		if err != nil {
			return nil, err
		}
		lattices[trial] = lat
	}

	runs, err := experiment.NewEnsemble(reg, cfg.Lattice, nil).RunLattices(ctx, lattices)
	if err != nil {
		return nil, err
	}

	results := make([]MonteCarloResult, 0, cfg.NumTrials)
	for trial, r := range runs {
		st, ok := r.Final.(*moment.State)
		if !ok {
			return nil, fmt.Errorf("%w: monte carlo needs %s states", sim.ErrIncompatibleType, moment.SimType)
		}
		x, y := st.Moment0.AtVec(moment.PSX), st.Moment0.AtVec(moment.PSY)
		results = append(results, MonteCarloResult{
			TrialID: trial,
			Offset:  offsets[trial],
			Final:   [2]float64{x, y},
			Stable:  math.Abs(x) <= cfg.Aperture && math.Abs(y) <= cfg.Aperture,
		})
	}

	return results, nil
}

// jitterLattice returns a copy of lattice whose root beam and every source
// section start displaced by off. Sources re-inject their own beam, so
// jittering the root alone would be undone by the first source.
func jitterLattice(lattice *config.Config, off [2]float64) (*config.Config, error) {
	out := lattice.Clone()
	if err := jitterMoment0(out, out, off); err != nil {
		return nil, err
	}

	sections, err := config.Get[[]*config.Config](out, "elements")
	if err != nil && !errors.Is(err, config.ErrKeyNotFound) {
		return nil, err
	}
	for i, sec := range sections {
		if config.GetOr(sec, "type", "") != "source" {
			continue
		}
		if err := jitterMoment0(sec, sec.Inherit(lattice), off); err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
	}
	return out, nil
}

// jitterMoment0 writes the moment0 seen through scope, displaced by off, into dst.
func jitterMoment0(dst, scope *config.Config, off [2]float64) error {
	base, err := config.Get[[]float64](scope, "moment0")
	if err != nil && !errors.Is(err, config.ErrKeyNotFound) {
		return err
	}
	m0 := make([]float64, moment.MaxSize)
	copy(m0, base)
	m0[moment.PSHom] = 1
	m0[moment.PSX] += off[0]
	m0[moment.PSY] += off[1]
	config.Set(dst, "moment0", m0)
	return nil
}

func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}
