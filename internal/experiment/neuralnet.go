package experiment

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"github.com/cwbudde/optbench/internal/config"
	"github.com/cwbudde/optbench/internal/dataset"
	"github.com/cwbudde/optbench/internal/nn"
	"github.com/cwbudde/optbench/internal/opt"
)

// TracePoint is the training error after an iteration
type TracePoint struct {
	Iteration int     `json:"iteration"`
	Error     float64 `json:"error"`
}

// NeuralNetResult is one algorithm's trained network and how it classifies
type NeuralNetResult struct {
	Algorithm    string        `json:"algorithm"`
	Iterations   int           `json:"iterations"`
	Trace        []TracePoint  `json:"trace"`
	Weights      []float64     `json:"weights"`
	FinalError   float64       `json:"final_error"`
	Training     nn.Accuracy   `json:"training"`
	Testing      nn.Accuracy   `json:"testing"`
	TrainingTime time.Duration `json:"training_time"`
	// time to classify the training and testing sets
	TrainTestTime time.Duration `json:"train_test_time"`
	TestTestTime  time.Duration `json:"test_test_time"`
}

// NeuralNetReport holds one result per configured algorithm, in config order
type NeuralNetReport struct {
	TrainSize int               `json:"train_size"`
	TestSize  int               `json:"test_size"`
	Layers    []int             `json:"layers"`
	Results   []NeuralNetResult `json:"results"`
}

// Format prints the error trace of every algorithm, then the training set
// results, then the testing set results
func (r *NeuralNetReport) Format(w io.Writer) error {
	ew := &errWriter{w: w}
	for _, res := range r.Results {
		ew.printf("\nError results for %s\n---------------------------\n", res.Algorithm)
		for _, p := range res.Trace {
			ew.printf("%.3f\n", p.Error)
		}
	}

	for _, res := range r.Results {
		ew.printf("\nResults for %s: \n", res.Algorithm)
		ew.accuracy(res.Training)
		ew.printf("Training time: %.3f seconds\n", res.TrainingTime.Seconds())
		ew.printf("Testing time: %.3f seconds\n", res.TrainTestTime.Seconds())
	}

	ew.printf("\nTesting results!\n")
	for _, res := range r.Results {
		ew.printf("\nResults for %s: \n", res.Algorithm)
		ew.accuracy(res.Testing)
		ew.printf("Testing time: %.3f seconds\n", res.TestTestTime.Seconds())
	}
	return ew.err
}

// Curves returns the error traces for plotting
func (r *NeuralNetReport) Curves() []Curve {
	curves := make([]Curve, 0, len(r.Results))
	for _, res := range r.Results {
		c := Curve{Name: res.Algorithm}
		for _, p := range res.Trace {
			c.X = append(c.X, float64(p.Iteration))
			c.Y = append(c.Y, p.Error)
		}
		curves = append(curves, c)
	}
	return curves
}

// NeuralNet trains a fresh classification network with every configured
// algorithm and classifies the training and testing sets with the result
func NeuralNet(ctx context.Context, cfg *config.Config, opts Options) (*NeuralNetReport, error) {
	nc := cfg.NeuralNet
	train, err := dataset.Load(nc.TrainPath)
	if err != nil {
		return nil, fmt.Errorf("training set: %w", err)
	}
	test, err := dataset.Load(nc.TestPath)
	if err != nil {
		return nil, fmt.Errorf("testing set: %w", err)
	}
	if train.FeatureCount() != nc.Layers[0] || test.FeatureCount() != nc.Layers[0] {
		return nil, fmt.Errorf("input layer has %d units but training set has %d features and testing set %d",
			nc.Layers[0], train.FeatureCount(), test.FeatureCount())
	}
	if nc.Normalize {
		desc := dataset.Describe(train)
		dataset.Normalize(train, desc)
		dataset.Normalize(test, desc)
	}

	slog.Info("Starting neural network",
		"train", train.Len(),
		"test", test.Len(),
		"layers", nc.Layers,
		"iterations", nc.Iterations,
		"algorithms", len(nc.Algorithms),
	)

	report := &NeuralNetReport{
		TrainSize: train.Len(),
		TestSize:  test.Len(),
		Layers:    append([]int(nil), nc.Layers...),
		Results:   make([]NeuralNetResult, len(nc.Algorithms)),
	}
	tasks := make([]func(context.Context) error, len(nc.Algorithms))
	for i, a := range nc.Algorithms {
		run := networkRun{
			cfg:   nc,
			alg:   a,
			train: train,
			test:  test,
			rng:   newRand(cfg.Seed, i),
			seed:  deriveSeed(cfg.Seed, i),
		}
		tasks[i] = func(ctx context.Context) error {
			res, err := run.execute(ctx, opts)
			if err != nil {
				return fmt.Errorf("neural network %s: %w", a.Name, err)
			}
			report.Results[i] = res
			return nil
		}
	}

	if err := runTasks(ctx, opts.Parallel, tasks); err != nil {
		return nil, err
	}

	if nc.PlotPath != "" {
		if err := PlotCurves(nc.PlotPath, "Training error", "iteration", "error", report.Curves()); err != nil {
			return nil, fmt.Errorf("plot: %w", err)
		}
		slog.Info("Wrote error plot", "path", nc.PlotPath)
	}
	return report, nil
}

// networkRun trains one network with one algorithm
type networkRun struct {
	cfg   config.NeuralNet
	alg   config.Algorithm
	train *dataset.DataSet
	test  *dataset.DataSet
	rng   *rand.Rand
	seed  int64
}

func (r networkRun) execute(ctx context.Context, opts Options) (NeuralNetResult, error) {
	network, err := nn.NewClassificationNetwork(r.cfg.Layers)
	if err != nil {
		return NeuralNetResult{}, err
	}
	problem, err := nn.NewOptimizationProblem(r.train, network, nn.SumOfSquaresError{})
	if err != nil {
		return NeuralNetResult{}, err
	}

	res := NeuralNetResult{Algorithm: r.alg.Name}
	steps := r.alg.StepsFor(r.cfg.Iterations)
	start := time.Now()

	var weights opt.Instance
	if r.alg.Name == config.Mayfly {
		weights, res.Trace, err = r.runMayfly(opts, problem, network.WeightCount(), steps)
		if err != nil {
			return NeuralNetResult{}, err
		}
		res.Iterations = steps
	} else {
		alg, err := r.algorithm(problem, network)
		if err != nil {
			return NeuralNetResult{}, err
		}
		res.Iterations, res.Trace, err = r.trainIterative(ctx, opts, alg, problem, steps)
		if err != nil {
			return NeuralNetResult{}, err
		}
		weights = alg.Optimal()
	}
	res.TrainingTime = time.Since(start)

	res.FinalError = problem.Error(weights)
	if len(res.Trace) == 0 && r.cfg.TraceEvery > 0 {
		res.Trace = []TracePoint{{Iteration: res.Iterations, Error: res.FinalError}}
	}
	if err := network.SetWeights(weights); err != nil {
		return NeuralNetResult{}, err
	}
	res.Weights = network.Weights()

	start = time.Now()
	res.Training = nn.Classify(network, r.train)
	res.TrainTestTime = time.Since(start)

	start = time.Now()
	res.Testing = nn.Classify(network, r.test)
	res.TestTestTime = time.Since(start)

	slog.Info("Network trained",
		"algorithm", res.Algorithm,
		"iterations", res.Iterations,
		"error", res.FinalError,
		"train_accuracy", res.Training.Percent(),
		"test_accuracy", res.Testing.Percent(),
		"elapsed", res.TrainingTime,
	)
	return res, nil
}

func (r networkRun) algorithm(problem *nn.OptimizationProblem, network *nn.Network) (opt.Algorithm, error) {
	a := r.alg
	switch a.Name {
	case config.RHC:
		return opt.NewRandomizedHillClimbing(problem, r.rng), nil
	case config.SA:
		return opt.NewSimulatedAnnealing(a.Temperature, a.Cooling, problem, r.rng), nil
	case config.GA:
		return opt.NewStandardGeneticAlgorithm(a.Population, a.Mate, a.Mutate, problem, r.rng), nil
	case config.BP:
		return nn.NewBackprop(network, r.train, a.LearningRate, a.Momentum, r.rng), nil
	default:
		return nil, fmt.Errorf("algorithm %s cannot train a network", a.Name)
	}
}

// trainIterative steps alg and records the training error of its optimum
// every TraceEvery iterations and after the last one
func (r networkRun) trainIterative(ctx context.Context, opts Options, alg opt.Algorithm, problem *nn.OptimizationProblem, steps int) (int, []TracePoint, error) {
	var trace []TracePoint
	onStep := func(step int, value float64) {
		if r.cfg.TraceEvery > 0 && (step%r.cfg.TraceEvery == 0 || step == steps) {
			trace = append(trace, TracePoint{Iteration: step, Error: problem.Error(alg.Optimal())})
		}
		opts.report(Progress{
			Experiment: config.ExperimentNeuralNet,
			Algorithm:  r.alg.Name,
			Iteration:  step,
			Total:      steps,
			Value:      value,
		})
	}

	var trainer opt.Trainer
	if r.cfg.Patience > 0 {
		conv := opt.DefaultConvergenceConfig()
		conv.Patience = r.cfg.Patience
		if r.cfg.Threshold > 0 {
			conv.Threshold = r.cfg.Threshold
		}
		t := opt.NewConvergenceTrainer(alg, steps, conv)
		t.OnStep = onStep
		trainer = t
	} else {
		t := opt.NewFixedIterationTrainer(alg, steps)
		t.OnStep = onStep
		trainer = t
	}

	done, err := trainer.Train(ctx)
	if err != nil {
		return done, nil, err
	}
	if r.cfg.TraceEvery > 0 && done > 0 && (len(trace) == 0 || trace[len(trace)-1].Iteration != done) {
		trace = append(trace, TracePoint{Iteration: done, Error: problem.Error(alg.Optimal())})
	}
	return done, trace, nil
}

// runMayfly minimizes the negated problem value over weights in [-Bound, Bound].
// Progress and trace follow the best weights after every iteration.
func (r networkRun) runMayfly(opts Options, problem *nn.OptimizationProblem, dim, steps int) (opt.Instance, []TracePoint, error) {
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := range lower {
		lower[i] = -r.alg.Bound
		upper[i] = r.alg.Bound
	}

	var trace []TracePoint
	adapter := opt.NewMayfly(steps, r.alg.Population, r.seed)
	adapter.OnIteration = func(iteration int, best []float64, cost float64) {
		if r.cfg.TraceEvery > 0 && (iteration%r.cfg.TraceEvery == 0 || iteration == steps) {
			trace = append(trace, TracePoint{Iteration: iteration, Error: problem.Error(opt.Instance(best))})
		}
		opts.report(Progress{
			Experiment: config.ExperimentNeuralNet,
			Algorithm:  r.alg.Name,
			Iteration:  iteration,
			Total:      steps,
			Value:      -cost,
		})
	}

	var optimizer opt.Optimizer = adapter
	best, cost, err := optimizer.Run(opt.Minimize(problem), lower, upper)
	if err != nil {
		return nil, nil, err
	}
	slog.Debug("Mayfly finished", "iterations", steps, "cost", cost)
	return opt.Instance(best), trace, nil
}
