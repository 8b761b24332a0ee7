package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/cwbudde/optbench/internal/config"
	"github.com/cwbudde/optbench/internal/experiment"
	"github.com/cwbudde/optbench/internal/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	algorithms    []string
	iterations    int
	trainPath     string
	testPath      string
	traceEvery    int
	normalize     bool
	plotPath      string
	cities        int
	trials        int
	iterationStep int
	repeats       int
	experimentArg string
	noSave        bool
	runTrace      int
)

var neuralNetCmd = &cobra.Command{
	Use:   "neuralnet",
	Short: "Train classifier weights with each optimizer",
	Long: `Trains a feed-forward network on the training CSV with every configured
algorithm, then reports classification results on the training and testing sets.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, config.Overrides{
			Experiment: config.ExperimentNeuralNet,
			TrainPath:  trainPath,
			TestPath:   testPath,
			Iterations: iterations,
			TraceEvery: traceEvery,
			Normalize:  normalize,
			PlotPath:   plotPath,
			Algorithms: algorithms,
		})
	},
}

var tspCmd = &cobra.Command{
	Use:   "tsp",
	Short: "Solve random traveling salesman instances",
	Long: `Runs every configured algorithm on random points in the unit square for a
series of trials with growing iteration counts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, config.Overrides{
			Experiment:    config.ExperimentTSP,
			Cities:        cities,
			Trials:        trials,
			IterationStep: iterationStep,
			Repeats:       repeats,
			Algorithms:    algorithms,
		})
	},
}

var twoColorsCmd = &cobra.Command{
	Use:   "twocolors",
	Short: "Run the two colors problem",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, config.Overrides{
			Experiment: config.ExperimentTwoColors,
			Iterations: iterations,
			Algorithms: algorithms,
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the experiments of a config file",
	Long: `Runs the experiment named in the config (or --experiment), printing every report.

The neural network experiment reads its data sets from neural_net.train_path
and neural_net.test_path, by default
  data/StudentsPerformance_training_whole.csv
  data/StudentsPerformance_testing_average.csv
Each line holds the feature values followed by the label, separated by commas
or spaces. When running all experiments and these files are missing, the
neural network section is skipped with a warning.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, config.Overrides{
			Experiment: experimentArg,
			Algorithms: algorithms,
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{neuralNetCmd, tspCmd, twoColorsCmd, runCmd} {
		c.Flags().StringSliceVar(&algorithms, "algorithms", nil, "Algorithms to run, e.g. RHC,SA,GA")
		c.Flags().BoolVar(&noSave, "no-save", false, "Do not store the run")
		c.Flags().IntVar(&runTrace, "trace", 0, "Record every N-th step of each algorithm (0 = no trace)")
		rootCmd.AddCommand(c)
	}

	neuralNetCmd.Flags().StringVar(&trainPath, "train", "", "Training set CSV")
	neuralNetCmd.Flags().StringVar(&testPath, "test", "", "Testing set CSV")
	neuralNetCmd.Flags().IntVar(&iterations, "iterations", 0, "Training iterations")
	neuralNetCmd.Flags().IntVar(&traceEvery, "trace-every", 0, "Record the training error every N iterations")
	neuralNetCmd.Flags().BoolVar(&normalize, "normalize", false, "Min-max scale features")
	neuralNetCmd.Flags().StringVar(&plotPath, "plot", "", "Write training error curves to this PNG")

	tspCmd.Flags().IntVar(&cities, "cities", 0, "Number of random points")
	tspCmd.Flags().IntVar(&trials, "trials", 0, "Number of trials")
	tspCmd.Flags().IntVar(&iterationStep, "iteration-step", 0, "Iterations added per trial")
	tspCmd.Flags().IntVar(&repeats, "repeats", 0, "Runs per algorithm and trial")

	twoColorsCmd.Flags().IntVar(&iterations, "iterations", 0, "Iterations per algorithm")

	runCmd.Flags().StringVar(&experimentArg, "experiment", "", "Experiment to run: neuralnet, tsp, twocolors or all")
}

func runCommand(cmd *cobra.Command, o config.Overrides) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var runStore store.Store
	if !noSave {
		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		runStore = st
	}

	_, err = runExperiment(ctx, cfg, runStore, runTrace, os.Stdout)
	return err
}

// runExperiment runs cfg, prints the report to out and saves the run to a
// non-nil runStore. A positive every records a trace of a saved run under
// --data-dir; the trace is removed again when the run fails.
func runExperiment(ctx context.Context, cfg *config.Config, runStore store.Store, every int, out io.Writer) (run *store.Run, err error) {
	id := uuid.New().String()
	slog.Info("Starting experiment", "id", id, "experiment", cfg.Experiment, "seed", cfg.Seed, "parallel", cfg.Parallel)

	opts := experiment.Options{Parallel: cfg.Parallel}
	switch {
	case every > 0 && runStore == nil:
		slog.Warn("Not recording a trace for an unsaved run", "trace", every)
	case every > 0:
		trace, openErr := store.NewTraceWriter(dataDir, id, false)
		if openErr != nil {
			return nil, openErr
		}
		defer func() {
			if closeErr := trace.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
			if err != nil {
				if delErr := store.DeleteTrace(dataDir, id); delErr != nil {
					slog.Warn("Failed to remove trace of failed run", "id", id, "error", delErr)
				}
			}
		}()
		opts.Progress = func(p experiment.Progress) {
			if p.Iteration%every != 0 && p.Iteration != p.Total {
				return
			}
			err := trace.Write(store.TraceEntry{
				Problem:   p.Experiment,
				Algorithm: p.Algorithm,
				Trial:     p.Trial,
				Iteration: p.Iteration,
				Value:     p.Value,
				Timestamp: time.Now(),
			})
			if err != nil {
				slog.Warn("Failed to write trace entry", "error", err)
			}
		}
	}

	start := time.Now()
	report, err := experiment.Run(ctx, cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("%s experiment: %w", cfg.Experiment, err)
	}
	elapsed := time.Since(start)

	var text bytes.Buffer
	if err := report.Format(io.MultiWriter(out, &text)); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}

	run = store.NewRun(id, cfg.Experiment, cfg.Seed, report.Results())
	run.Duration = elapsed
	run.Report = text.String()
	if run.Config, err = cfg.YAML(); err != nil {
		return nil, err
	}

	if runStore != nil {
		if err := runStore.SaveRun(run); err != nil {
			return nil, fmt.Errorf("failed to save run: %w", err)
		}
		slog.Info("Saved run", "id", id, "results", len(run.Results), "elapsed", elapsed)
	}
	return run, nil
}
