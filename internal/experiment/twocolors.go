package experiment

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/cwbudde/optbench/internal/config"
	"github.com/cwbudde/optbench/internal/dist"
	"github.com/cwbudde/optbench/internal/opt"
	"github.com/cwbudde/optbench/internal/problem"
)

// TwoColorsReport holds one result per configured algorithm, in config order
type TwoColorsReport struct {
	Length  int            `json:"length"`
	Colors  int            `json:"colors"`
	Results []SearchResult `json:"results"`
}

// Format prints each algorithm's optimal value on its own line
func (r *TwoColorsReport) Format(w io.Writer) error {
	for _, res := range r.Results {
		if _, err := fmt.Fprintln(w, formatValue(res.Value)); err != nil {
			return err
		}
	}
	return nil
}

// TwoColors runs every configured algorithm on a TwoColors instance of
// PerColor*Colors positions with Colors+1 values per position
func TwoColors(ctx context.Context, cfg *config.Config, opts Options) (*TwoColorsReport, error) {
	tc := cfg.TwoColors
	n := tc.Length()
	ranges := dist.Ranges(n, tc.Colors+1)

	var eval opt.EvaluationFunction = problem.TwoColors{}
	initial := dist.NewDiscreteUniform(ranges)
	space := searchSpace{
		eval:      eval,
		hcp:       opt.NewHillClimbingProblem(eval, initial, opt.DiscreteChangeOneNeighbor{Ranges: ranges}),
		gap:       opt.NewGeneticAlgorithmProblem(eval, initial, opt.DiscreteChangeOneMutation{Ranges: ranges}, opt.UniformCrossover{}),
		mimicEval: eval,
		newPOP: func(m float64) opt.ProbabilisticOptimizationProblem {
			return opt.NewProbabilisticProblem(eval, initial, dist.NewDependencyTree(m, ranges))
		},
	}

	slog.Info("Starting two colors", "length", n, "colors", tc.Colors, "algorithms", len(tc.Algorithms))

	report := &TwoColorsReport{
		Length:  n,
		Colors:  tc.Colors,
		Results: make([]SearchResult, len(tc.Algorithms)),
	}
	tasks := make([]func(context.Context) error, len(tc.Algorithms))
	for i, a := range tc.Algorithms {
		run := searchRun{
			experiment: config.ExperimentTwoColors,
			alg:        a,
			steps:      a.StepsFor(tc.Iterations),
			space:      space,
			seed:       cfg.Seed,
			coords:     []int{i},
		}
		tasks[i] = func(ctx context.Context) error {
			res, err := run.execute(ctx, opts)
			if err != nil {
				return fmt.Errorf("two colors %s: %w", a.Name, err)
			}
			report.Results[i] = res
			return nil
		}
	}

	if err := runTasks(ctx, opts.Parallel, tasks); err != nil {
		return nil, err
	}
	return report, nil
}
