package experiment

import (
	"context"
	"log/slog"
	"time"

	"github.com/cwbudde/optbench/internal/config"
	"github.com/cwbudde/optbench/internal/opt"
)

// SearchResult is one algorithm run on a discrete problem
type SearchResult struct {
	Algorithm  string        `json:"algorithm"`
	Iterations int           `json:"iterations"`
	Value      float64       `json:"value"`
	Duration   time.Duration `json:"duration"`
}

// searchRun trains one discrete search algorithm for a fixed number of steps
// and scores its optimum
type searchRun struct {
	experiment string
	trial      int
	alg        config.Algorithm
	steps      int
	space      searchSpace
	seed       int64
	coords     []int
}

func (r searchRun) execute(ctx context.Context, opts Options) (SearchResult, error) {
	rng := newRand(r.seed, r.coords...)
	alg, eval, err := newSearchAlgorithm(r.alg, r.space, rng)
	if err != nil {
		return SearchResult{}, err
	}

	trainer := opt.NewFixedIterationTrainer(alg, r.steps)
	trainer.OnStep = func(step int, value float64) {
		opts.report(Progress{
			Experiment: r.experiment,
			Algorithm:  r.alg.Name,
			Trial:      r.trial,
			Iteration:  step,
			Total:      r.steps,
			Value:      value,
		})
	}

	start := time.Now()
	if _, err := trainer.Train(ctx); err != nil {
		return SearchResult{}, err
	}
	res := SearchResult{
		Algorithm:  r.alg.Name,
		Iterations: r.steps,
		Value:      eval.Value(alg.Optimal()),
		Duration:   time.Since(start),
	}

	slog.Debug("Algorithm finished",
		"experiment", r.experiment,
		"algorithm", res.Algorithm,
		"trial", r.trial,
		"iterations", res.Iterations,
		"value", res.Value,
		"elapsed", res.Duration,
	)
	return res, nil
}
