// Package experiment runs the benchmark experiments: neural network weight
// training, the traveling salesman problem and two colors. Every algorithm run
// owns an RNG derived from the configured seed, so results do not depend on
// how many runs execute concurrently.
package experiment

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/cwbudde/optbench/internal/config"
	"github.com/cwbudde/optbench/internal/opt"
	"golang.org/x/sync/errgroup"
)

// Progress is a single training step of one algorithm run
type Progress struct {
	Experiment string  `json:"experiment"`
	Algorithm  string  `json:"algorithm"`
	Trial      int     `json:"trial,omitempty"`
	Iteration  int     `json:"iteration"`
	Total      int     `json:"total"`
	Value      float64 `json:"value"`
}

// Options controls how an experiment executes
type Options struct {
	// Progress receives step updates. With Parallel > 1 it is called from
	// several goroutines at once.
	Progress func(Progress)
	// Parallel bounds the number of algorithm runs in flight; values below 1 mean 1
	Parallel int
}

func (o Options) report(p Progress) {
	if o.Progress != nil {
		o.Progress(p)
	}
}

// runTasks executes tasks with at most parallel in flight. The first error
// cancels the context handed to the remaining tasks.
func runTasks(ctx context.Context, parallel int, tasks []func(context.Context) error) error {
	if parallel < 1 {
		parallel = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for _, task := range tasks {
		g.Go(func() error {
			return task(ctx)
		})
	}
	return g.Wait()
}

// deriveSeed mixes the run coordinates into the base seed
func deriveSeed(base int64, parts ...int) int64 {
	s := uint64(base)
	for _, p := range parts {
		s = s*6364136223846793005 + uint64(p) + 1442695040888963407
	}
	return int64(s >> 1)
}

func newRand(base int64, parts ...int) *rand.Rand {
	return rand.New(rand.NewSource(deriveSeed(base, parts...)))
}

// searchSpace builds the problems a discrete search algorithm runs on. MIMIC
// may use a different encoding, so it carries its own evaluation function.
type searchSpace struct {
	eval opt.EvaluationFunction
	hcp  opt.HillClimbingProblem
	gap  opt.GeneticAlgorithmProblem

	mimicEval opt.EvaluationFunction
	newPOP    func(m float64) opt.ProbabilisticOptimizationProblem
}

// newSearchAlgorithm returns the algorithm for a and the evaluation function
// its optimum is scored with
func newSearchAlgorithm(a config.Algorithm, space searchSpace, rng *rand.Rand) (opt.Algorithm, opt.EvaluationFunction, error) {
	switch a.Name {
	case config.RHC:
		return opt.NewRandomizedHillClimbing(space.hcp, rng), space.eval, nil
	case config.SA:
		return opt.NewSimulatedAnnealing(a.Temperature, a.Cooling, space.hcp, rng), space.eval, nil
	case config.GA:
		return opt.NewStandardGeneticAlgorithm(a.Population, a.Mate, a.Mutate, space.gap, rng), space.eval, nil
	case config.MIMIC:
		return opt.NewMIMIC(a.Samples, a.Keep, space.newPOP(a.M), rng), space.mimicEval, nil
	default:
		return nil, nil, fmt.Errorf("algorithm %s is not a discrete search algorithm", a.Name)
	}
}
