package experiment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cwbudde/optbench/internal/config"
	"github.com/cwbudde/optbench/internal/store"
)

// Report collects the reports of every experiment a config runs
type Report struct {
	Experiment string           `json:"experiment"`
	NeuralNet  *NeuralNetReport `json:"neural_net,omitempty"`
	TSP        *TSPReport       `json:"tsp,omitempty"`
	TwoColors  *TwoColorsReport `json:"two_colors,omitempty"`
}

// Run executes the experiments selected by cfg.Experiment in order: neural
// network, traveling salesman, two colors. When running all experiments a
// missing neural network data set skips that section with a warning.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Report, error) {
	report := &Report{Experiment: cfg.Experiment}
	var err error
	if cfg.Runs(config.ExperimentNeuralNet) {
		report.NeuralNet, err = NeuralNet(ctx, cfg, opts)
		switch {
		case err != nil && cfg.Experiment == config.ExperimentAll && errors.Is(err, os.ErrNotExist):
			slog.Warn("Skipping neural network, data set not found",
				"train", cfg.NeuralNet.TrainPath,
				"test", cfg.NeuralNet.TestPath,
				"error", err,
			)
			report.NeuralNet = nil
		case err != nil:
			return nil, err
		}
	}
	if cfg.Runs(config.ExperimentTSP) {
		if report.TSP, err = TSP(ctx, cfg, opts); err != nil {
			return nil, err
		}
	}
	if cfg.Runs(config.ExperimentTwoColors) {
		if report.TwoColors, err = TwoColors(ctx, cfg, opts); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// Format prints every report that ran
func (r *Report) Format(w io.Writer) error {
	if r.NeuralNet != nil {
		if err := r.NeuralNet.Format(w); err != nil {
			return err
		}
	}
	if r.TSP != nil {
		if err := r.TSP.Format(w); err != nil {
			return err
		}
	}
	if r.TwoColors != nil {
		if err := r.TwoColors.Format(w); err != nil {
			return err
		}
	}
	return nil
}

// Results flattens the report into store results
func (r *Report) Results() []store.Result {
	var out []store.Result
	if r.NeuralNet != nil {
		for _, res := range r.NeuralNet.Results {
			out = append(out, store.Result{
				Problem:       config.ExperimentNeuralNet,
				Algorithm:     res.Algorithm,
				Iterations:    res.Iterations,
				Value:         -res.FinalError,
				TrainAccuracy: res.Training.Percent(),
				TestAccuracy:  res.Testing.Percent(),
				Duration:      res.TrainingTime,
			})
		}
	}
	if r.TSP != nil {
		for _, t := range r.TSP.Trials {
			for _, res := range t.Results {
				var d int64
				for _, run := range res.Runs {
					d += int64(run.Duration)
				}
				out = append(out, store.Result{
					Problem:    config.ExperimentTSP,
					Algorithm:  res.Algorithm,
					Trial:      t.Number,
					Iterations: res.Iterations,
					Value:      res.Mean,
					Duration:   time.Duration(d),
				})
			}
		}
	}
	if r.TwoColors != nil {
		for _, res := range r.TwoColors.Results {
			out = append(out, store.Result{
				Problem:    config.ExperimentTwoColors,
				Algorithm:  res.Algorithm,
				Iterations: res.Iterations,
				Value:      res.Value,
				Duration:   res.Duration,
			})
		}
	}
	return out
}
