package optim

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/beamsim/internal/experiment"
)

// GridSearch tries every combination of parameter values and keeps the one
// that minimizes a metric. Parameters are named "element.key", e.g. "qf.K".
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Search retunes exp for each grid point and runs it. exp must be set up.
// On success exp is left tuned to the best point.
func (g *GridSearch) Search(ctx context.Context, exp *experiment.Experiment, metricName string) (map[string]float64, float64, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, 0, fmt.Errorf("grid search: %d parameters but %d ranges", len(g.paramNames), len(g.ranges))
	}
	for _, name := range g.paramNames {
		if _, _, err := splitParam(name); err != nil {
			return nil, 0, err
		}
	}

	best := math.Inf(1)
	var bestParams map[string]float64

	if err := g.searchRecursive(ctx, 0, make(map[string]float64), exp, metricName, &best, &bestParams); err != nil {
		return nil, 0, err
	}

	// Leave exp at the winning point rather than the last one tried.
	for name, v := range bestParams {
		elem, key, _ := splitParam(name)
		if err := exp.Retune(elem, key, v); err != nil {
			return nil, 0, err
		}
	}
	return bestParams, best, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	exp *experiment.Experiment,
	metricName string,
	best *float64,
	bestParams *map[string]float64,
) error {
	if depth == len(g.paramNames) {
		for name, v := range current {
			elem, key, _ := splitParam(name)
			if err := exp.Retune(elem, key, v); err != nil {
				return err
			}
		}

		result, err := exp.Run(ctx)
		if err != nil {
			return err
		}

		val, ok := result.Metrics[metricName]
		if !ok {
			return fmt.Errorf("grid search: unknown metric %q", metricName)
		}
		if val < *best {
			*best = val
			*bestParams = make(map[string]float64)
			for k, v := range current {
				(*bestParams)[k] = v
			}
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, exp, metricName, best, bestParams); err != nil {
			return err
		}
	}
	return nil
}

func splitParam(name string) (elem, key string, err error) {
	elem, key, ok := strings.Cut(name, ".")
	if !ok || elem == "" || key == "" {
		return "", "", fmt.Errorf("grid search: parameter %q is not element.key", name)
	}
	return elem, key, nil
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}
