package opt

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MinMayflyPopulation is the smallest population the mayfly library accepts
const MinMayflyPopulation = 20

// IterationFunc receives the 1-based iteration number with the best parameters
// and cost found so far. best is only valid during the call.
type IterationFunc func(iteration int, best []float64, cost float64)

// MayflyAdapter wraps the external Mayfly library to conform to our Optimizer interface
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64

	// OnIteration, if set, is called once per completed iteration
	OnIteration IterationFunc
}

// NewMayfly creates a new Mayfly optimizer adapter
func NewMayfly(maxIters, popSize int, seed int64) *MayflyAdapter {
	if popSize < MinMayflyPopulation {
		popSize = MinMayflyPopulation
	}
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
	}
}

// Run executes the Mayfly optimization using the external library
func (m *MayflyAdapter) Run(eval func([]float64) float64, lower, upper []float64) ([]float64, float64, error) {
	if len(lower) == 0 || len(lower) != len(upper) {
		return nil, 0, errors.New("mayfly: bounds must be non-empty and of equal length")
	}

	config := mayfly.NewDefaultConfig()
	config.ProblemSize = len(lower)
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.NM = int(math.Round(0.05 * float64(m.popSize)))

	config.ObjectiveFunc = eval
	var watcher *iterationWatcher
	if m.OnIteration != nil {
		watcher = &iterationWatcher{
			eval:         eval,
			onIteration:  m.OnIteration,
			total:        m.maxIters,
			warmup:       config.NPop + config.NPopF,
			perIteration: config.NPopF + config.NPop + 2*(config.NC/2) + config.NM,
		}
		config.ObjectiveFunc = watcher.evaluate
	}

	// The library takes scalar bounds; the first dimension's bounds apply to all
	config.LowerBound = lower[0]
	config.UpperBound = upper[0]

	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		return nil, 0, fmt.Errorf("mayfly: %w", err)
	}

	best, cost := result.GlobalBest.Position, result.GlobalBest.Cost
	if watcher != nil {
		// the library's global best skips female evaluations
		if watcher.best != nil && watcher.cost < cost {
			best, cost = append([]float64(nil), watcher.best...), watcher.cost
		}
		watcher.finish(best, cost)
	}
	return best, cost, nil
}

// iterationWatcher infers iteration boundaries from the evaluation count. The
// standard algorithm evaluates both populations once to start, then both
// populations, the offspring and the mutants every iteration.
type iterationWatcher struct {
	eval         func([]float64) float64
	onIteration  IterationFunc
	total        int
	warmup       int
	perIteration int

	evaluations int
	iteration   int
	best        []float64
	cost        float64
}

func (w *iterationWatcher) evaluate(x []float64) float64 {
	cost := w.eval(x)
	w.evaluations++
	if w.best == nil || cost < w.cost {
		w.best = append(w.best[:0], x...)
		w.cost = cost
	}
	if n := w.evaluations - w.warmup; n > 0 && n%w.perIteration == 0 && w.iteration < w.total {
		w.iteration++
		w.onIteration(w.iteration, w.best, w.cost)
	}
	return cost
}

// finish reports any iterations the evaluation count did not reveal
func (w *iterationWatcher) finish(best []float64, cost float64) {
	for w.iteration < w.total {
		w.iteration++
		w.onIteration(w.iteration, best, cost)
	}
}
