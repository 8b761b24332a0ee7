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
	"gonum.org/v1/gonum/stat"
)

// TSPAlgorithmResult aggregates the repeats of one algorithm in one trial
type TSPAlgorithmResult struct {
	Algorithm  string         `json:"algorithm"`
	Iterations int            `json:"iterations"`
	Runs       []SearchResult `json:"runs"`
	Mean       float64        `json:"mean"`
	StdDev     float64        `json:"stddev"`
}

// TSPTrial is one iteration budget
type TSPTrial struct {
	Number     int                  `json:"number"`
	Iterations int                  `json:"iterations"`
	Results    []TSPAlgorithmResult `json:"results"`
}

// TSPReport holds every trial in order
type TSPReport struct {
	Points []problem.Point `json:"points"`
	Trials []TSPTrial      `json:"trials"`
}

// Format prints each trial header followed by the estimated optimal value of
// every algorithm. With repeats the value is the mean.
func (r *TSPReport) Format(w io.Writer) error {
	for _, t := range r.Trials {
		if _, err := fmt.Fprintf(w, "Trial number %d, with iteration size %d: \n", t.Number, t.Iterations); err != nil {
			return err
		}
		for _, res := range t.Results {
			line := fmt.Sprintf("%s Estimated Optimal Value: %s", res.Algorithm, formatValue(res.Mean))
			if len(res.Runs) > 1 {
				line += fmt.Sprintf(" (stddev %s over %d runs)", formatValue(res.StdDev), len(res.Runs))
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}

// Best returns the highest mean value across all trials and algorithms
func (r *TSPReport) Best() (string, float64) {
	name, best := "", 0.0
	for _, t := range r.Trials {
		for _, res := range t.Results {
			if name == "" || res.Mean > best {
				name, best = res.Algorithm, res.Mean
			}
		}
	}
	return name, best
}

// TSP runs every configured algorithm on a fixed set of random cities. Trial i
// gives each algorithm i*IterationStep iterations (scaled by its iteration
// divisor). RHC, SA and GA search permutations; MIMIC searches a sort
// encoding, where the tour visits cities in ascending order of their values.
func TSP(ctx context.Context, cfg *config.Config, opts Options) (*TSPReport, error) {
	tc := cfg.TSP
	points := problem.RandomPoints(tc.Cities, newRand(cfg.Seed))
	distances, err := problem.Distances(points)
	if err != nil {
		return nil, err
	}

	var routeEval opt.EvaluationFunction = problem.TSPRoute{Dist: distances}
	var sortEval opt.EvaluationFunction = problem.TSPSort{Dist: distances}
	perm := dist.NewDiscretePermutation(tc.Cities)
	ranges := dist.Ranges(tc.Cities, tc.Cities)
	uniform := dist.NewDiscreteUniform(ranges)

	space := searchSpace{
		eval:      routeEval,
		hcp:       opt.NewHillClimbingProblem(routeEval, perm, opt.SwapNeighbor{}),
		gap:       opt.NewGeneticAlgorithmProblem(routeEval, perm, opt.SwapMutation{}, problem.TSPCrossover{Dist: distances}),
		mimicEval: sortEval,
		newPOP: func(m float64) opt.ProbabilisticOptimizationProblem {
			return opt.NewProbabilisticProblem(sortEval, uniform, dist.NewDependencyTree(m, ranges))
		},
	}

	slog.Info("Starting traveling salesman",
		"cities", tc.Cities,
		"trials", tc.Trials,
		"repeats", tc.Repeats,
		"algorithms", len(tc.Algorithms),
	)

	report := &TSPReport{Points: points, Trials: make([]TSPTrial, tc.Trials)}
	var tasks []func(context.Context) error
	for t := range report.Trials {
		number := t + 1
		iterations := number * tc.IterationStep
		trial := &report.Trials[t]
		trial.Number = number
		trial.Iterations = iterations
		trial.Results = make([]TSPAlgorithmResult, len(tc.Algorithms))

		for i, a := range tc.Algorithms {
			res := &trial.Results[i]
			res.Algorithm = a.Name
			res.Iterations = a.StepsFor(iterations)
			res.Runs = make([]SearchResult, tc.Repeats)

			for rep := range res.Runs {
				run := searchRun{
					experiment: config.ExperimentTSP,
					trial:      number,
					alg:        a,
					steps:      res.Iterations,
					space:      space,
					seed:       cfg.Seed,
					coords:     []int{number, i, rep},
				}
				tasks = append(tasks, func(ctx context.Context) error {
					out, err := run.execute(ctx, opts)
					if err != nil {
						return fmt.Errorf("tsp trial %d %s: %w", number, a.Name, err)
					}
					res.Runs[rep] = out
					return nil
				})
			}
		}
	}

	if err := runTasks(ctx, opts.Parallel, tasks); err != nil {
		return nil, err
	}

	for t := range report.Trials {
		for i := range report.Trials[t].Results {
			summarize(&report.Trials[t].Results[i])
		}
	}
	return report, nil
}

func summarize(res *TSPAlgorithmResult) {
	values := make([]float64, len(res.Runs))
	for i, r := range res.Runs {
		values[i] = r.Value
	}
	if len(values) < 2 {
		res.Mean = values[0]
		res.StdDev = 0
		return
	}
	res.Mean, res.StdDev = stat.MeanStdDev(values, nil)
}
