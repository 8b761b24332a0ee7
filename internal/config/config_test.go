package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
}

func TestParseEmptyKeepsDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Empty config should equal defaults (-want +got):\n%s", diff)
	}
}

func TestParsePartialOverride(t *testing.T) {
	input := `
experiment: tsp
seed: 7
tsp:
  trials: 3
  algorithms:
    - name: RHC
    - name: MIMIC
      samples: 20
      keep: 5
      m: 0.2
      iteration_divisor: 10
`
	cfg, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := Default()
	want.Experiment = ExperimentTSP
	want.Seed = 7
	want.TSP.Trials = 3
	want.TSP.Algorithms = []Algorithm{
		{Name: RHC},
		{Name: MIMIC, Samples: 20, Keep: 5, M: 0.2, IterationDivisor: 10},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Unexpected config (-want +got):\n%s", diff)
	}
}

func TestParseUnknownField(t *testing.T) {
	if _, err := Parse(strings.NewReader("bogus: 1\n")); err == nil {
		t.Error("Expected error for unknown field")
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	_, err := Parse(strings.NewReader("tsp:\n  algorithms:\n    - name: BP\n      learning_rate: 0.1\n"))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if verr.Field != "tsp.algorithms[0]" {
		t.Errorf("Unexpected field %q", verr.Field)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp.yaml")
	if err := os.WriteFile(path, []byte("experiment: twocolors\nparallel: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Experiment != ExperimentTwoColors || cfg.Parallel != 2 {
		t.Errorf("Unexpected config: %+v", cfg)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown experiment", func(c *Config) { c.Experiment = "knapsack" }, "experiment"},
		{"parallel", func(c *Config) { c.Parallel = 0 }, "parallel"},
		{"layers", func(c *Config) { c.NeuralNet.Layers = []int{5} }, "neural_net.layers"},
		{"zero layer", func(c *Config) { c.NeuralNet.Layers = []int{5, 0, 1} }, "neural_net.layers"},
		{"cities", func(c *Config) { c.TSP.Cities = 1 }, "tsp.cities"},
		{"trials", func(c *Config) { c.TSP.Trials = 0 }, "tsp"},
		{"two colors", func(c *Config) { c.TwoColors.Colors = 0 }, "two_colors"},
		{"sa cooling", func(c *Config) { c.NeuralNet.Algorithms[1].Cooling = 1.5 }, "neural_net.algorithms[1]"},
		{"mimic keep", func(c *Config) { c.TSP.Algorithms[3].Keep = 500 }, "tsp.algorithms[3]"},
		{"mimic in nn", func(c *Config) { c.NeuralNet.Algorithms[0].Name = MIMIC }, "neural_net.algorithms[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			var verr *ValidationError
			if err := cfg.Validate(); !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Expected field %q, got %q", tt.field, verr.Field)
			}
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	cfg.ApplyOverrides(Overrides{
		Experiment: ExperimentNeuralNet,
		Seed:       99,
		Iterations: 10,
		TrainPath:  "train.csv",
		Algorithms: []string{"ga", " BP", "MAYFLY"},
	})

	if cfg.Seed != 99 || cfg.NeuralNet.Iterations != 10 || cfg.NeuralNet.TrainPath != "train.csv" {
		t.Errorf("Scalar overrides not applied: %+v", cfg.NeuralNet)
	}

	want := []Algorithm{
		{Name: GA, Population: 150, Mate: 65, Mutate: 21},
		DefaultAlgorithm(BP),
		DefaultAlgorithm(Mayfly),
	}
	if diff := cmp.Diff(want, cfg.NeuralNet.Algorithms); diff != "" {
		t.Errorf("Unexpected algorithms (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(Default().TSP.Algorithms, cfg.TSP.Algorithms); diff != "" {
		t.Errorf("TSP algorithms should be untouched for a neuralnet run:\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Overridden config should be valid: %v", err)
	}
}

func TestApplyOverridesAllIsLenient(t *testing.T) {
	cfg := Default()
	cfg.ApplyOverrides(Overrides{Algorithms: []string{"MIMIC", "BP"}})

	if len(cfg.NeuralNet.Algorithms) != 1 || cfg.NeuralNet.Algorithms[0].Name != BP {
		t.Errorf("Neural net should keep only BP, got %+v", cfg.NeuralNet.Algorithms)
	}
	if len(cfg.TSP.Algorithms) != 1 || cfg.TSP.Algorithms[0].Name != MIMIC {
		t.Errorf("TSP should keep only MIMIC, got %+v", cfg.TSP.Algorithms)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Config should be valid: %v", err)
	}
}

func TestStepsFor(t *testing.T) {
	if got := (Algorithm{}).StepsFor(1000); got != 1000 {
		t.Errorf("Expected 1000, got %d", got)
	}
	if got := (Algorithm{IterationDivisor: 10}).StepsFor(1000); got != 100 {
		t.Errorf("Expected 100, got %d", got)
	}
	if got := (Algorithm{Iterations: 15, IterationDivisor: 10}).StepsFor(1000); got != 15 {
		t.Errorf("Expected 15, got %d", got)
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Seed = 11
	cfg.NeuralNet.Algorithms = append(cfg.NeuralNet.Algorithms, DefaultAlgorithm(Mayfly))

	text, err := cfg.YAML()
	if err != nil {
		t.Fatalf("YAML failed: %v", err)
	}
	parsed, err := Parse(strings.NewReader(text))
	if err != nil {
		t.Fatalf("Parse of encoded config failed: %v\n%s", err, text)
	}
	if diff := cmp.Diff(cfg, parsed); diff != "" {
		t.Errorf("Round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestClone(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()

	clone.NeuralNet.Layers[1] = 99
	clone.TSP.Algorithms[0].Name = GA
	clone.Seed = 5

	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Mutating the clone changed the original:\n%s", diff)
	}
}
