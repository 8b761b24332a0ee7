package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Algorithm names
const (
	RHC    = "RHC"
	SA     = "SA"
	GA     = "GA"
	MIMIC  = "MIMIC"
	BP     = "BP"
	Mayfly = "MAYFLY"
)

// Experiment names
const (
	ExperimentNeuralNet = "neuralnet"
	ExperimentTSP       = "tsp"
	ExperimentTwoColors = "twocolors"
	ExperimentAll       = "all"
)

// Algorithm configures one optimizer. Fields that do not apply to Name are ignored.
type Algorithm struct {
	Name string `yaml:"name"`

	// Iterations overrides the experiment's iteration count when positive
	Iterations int `yaml:"iterations,omitempty"`
	// IterationDivisor divides the experiment's iteration count (MIMIC runs fewer, costlier steps)
	IterationDivisor int `yaml:"iteration_divisor,omitempty"`

	Temperature float64 `yaml:"temperature,omitempty"`
	Cooling     float64 `yaml:"cooling,omitempty"`

	Population int `yaml:"population,omitempty"`
	Mate       int `yaml:"mate,omitempty"`
	Mutate     int `yaml:"mutate,omitempty"`

	Samples int     `yaml:"samples,omitempty"`
	Keep    int     `yaml:"keep,omitempty"`
	M       float64 `yaml:"m,omitempty"`

	LearningRate float64 `yaml:"learning_rate,omitempty"`
	Momentum     float64 `yaml:"momentum,omitempty"`

	// Bound limits MAYFLY's weights to [-Bound, Bound]
	Bound float64 `yaml:"bound,omitempty"`
}

// StepsFor returns the number of training steps for an experiment budget
func (a Algorithm) StepsFor(iterations int) int {
	if a.Iterations > 0 {
		return a.Iterations
	}
	if a.IterationDivisor > 1 {
		return iterations / a.IterationDivisor
	}
	return iterations
}

// NeuralNet configures the classifier weight-training experiment
type NeuralNet struct {
	TrainPath  string      `yaml:"train_path"`
	TestPath   string      `yaml:"test_path"`
	Layers     []int       `yaml:"layers"`
	Iterations int         `yaml:"iterations"`
	Normalize  bool        `yaml:"normalize"`
	TraceEvery int         `yaml:"trace_every"`
	PlotPath   string      `yaml:"plot_path,omitempty"`
	// Patience stops training early after that many steps without a relative
	// improvement of Threshold; 0 always runs every iteration
	Patience   int         `yaml:"patience,omitempty"`
	Threshold  float64     `yaml:"threshold,omitempty"`
	Algorithms []Algorithm `yaml:"algorithms"`
}

// TSP configures the traveling salesman experiment
type TSP struct {
	Cities        int         `yaml:"cities"`
	Trials        int         `yaml:"trials"`
	IterationStep int         `yaml:"iteration_step"`
	Repeats       int         `yaml:"repeats"`
	Algorithms    []Algorithm `yaml:"algorithms"`
}

// TwoColors configures the two colors experiment
type TwoColors struct {
	Colors     int         `yaml:"colors"`
	PerColor   int         `yaml:"per_color"`
	Iterations int         `yaml:"iterations"`
	Algorithms []Algorithm `yaml:"algorithms"`
}

// Length returns the instance length, PerColor * Colors
func (t TwoColors) Length() int {
	return t.PerColor * t.Colors
}

// Config captures everything a run needs
type Config struct {
	Experiment string    `yaml:"experiment"`
	Seed       int64     `yaml:"seed"`
	Parallel   int       `yaml:"parallel"`
	NeuralNet  NeuralNet `yaml:"neural_net"`
	TSP        TSP       `yaml:"tsp"`
	TwoColors  TwoColors `yaml:"two_colors"`
}

// Default returns the reference experiment settings
func Default() *Config {
	return &Config{
		Experiment: ExperimentAll,
		Seed:       1,
		Parallel:   1,
		NeuralNet: NeuralNet{
			TrainPath:  "data/StudentsPerformance_training_whole.csv",
			TestPath:   "data/StudentsPerformance_testing_average.csv",
			Layers:     []int{5, 20, 1},
			Iterations: 5000,
			TraceEvery: 1,
			Algorithms: []Algorithm{
				{Name: RHC},
				{Name: SA, Temperature: 1e11, Cooling: 0.95},
				{Name: GA, Population: 150, Mate: 65, Mutate: 21},
			},
		},
		TSP: TSP{
			Cities:        50,
			Trials:        20,
			IterationStep: 1000,
			Repeats:       1,
			Algorithms: []Algorithm{
				{Name: RHC},
				{Name: SA, Temperature: 1e12, Cooling: 0.95},
				{Name: GA, Population: 200, Mate: 150, Mutate: 20},
				{Name: MIMIC, Samples: 200, Keep: 100, M: 0.1, IterationDivisor: 10},
			},
		},
		TwoColors: TwoColors{
			Colors:     2,
			PerColor:   100,
			Iterations: 100,
			Algorithms: []Algorithm{
				{Name: RHC},
				{Name: SA, Temperature: 100, Cooling: 0.95},
				{Name: GA, Population: 20, Mate: 20, Mutate: 0},
				{Name: MIMIC, Samples: 50, Keep: 10, M: 0.1, Iterations: 15},
			},
		},
	}
}

// Overrides captures CLI supplied values
type Overrides struct {
	Experiment string
	Seed       int64
	Parallel   int

	TrainPath  string
	TestPath   string
	Iterations int
	TraceEvery int
	Normalize  bool
	PlotPath   string
	Algorithms []string

	Cities        int
	Trials        int
	IterationStep int
	Repeats       int
}

// Load reads and validates a Config from YAML. Keys missing from the file keep
// their Default values; unknown keys are an error.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default and validates the result
func Parse(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Clone returns a deep copy of c
func (c *Config) Clone() *Config {
	out := *c
	out.NeuralNet.Layers = append([]int(nil), c.NeuralNet.Layers...)
	out.NeuralNet.Algorithms = append([]Algorithm(nil), c.NeuralNet.Algorithms...)
	out.TSP.Algorithms = append([]Algorithm(nil), c.TSP.Algorithms...)
	out.TwoColors.Algorithms = append([]Algorithm(nil), c.TwoColors.Algorithms...)
	return &out
}

// YAML encodes c in the format Load reads
func (c *Config) YAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}

// ApplyOverrides updates c using any non-zero override. A non-empty
// Algorithms list keeps only the named algorithms, in the given order, taking
// their settings from the experiment's configured list or DefaultAlgorithm.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Experiment != "" {
		c.Experiment = o.Experiment
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.Parallel > 0 {
		c.Parallel = o.Parallel
	}
	if o.TrainPath != "" {
		c.NeuralNet.TrainPath = o.TrainPath
	}
	if o.TestPath != "" {
		c.NeuralNet.TestPath = o.TestPath
	}
	if o.Iterations > 0 {
		if c.Runs(ExperimentNeuralNet) {
			c.NeuralNet.Iterations = o.Iterations
		}
		if c.Runs(ExperimentTwoColors) {
			c.TwoColors.Iterations = o.Iterations
		}
	}
	if o.TraceEvery > 0 {
		c.NeuralNet.TraceEvery = o.TraceEvery
	}
	if o.Normalize {
		c.NeuralNet.Normalize = true
	}
	if o.PlotPath != "" {
		c.NeuralNet.PlotPath = o.PlotPath
	}
	if o.Cities > 0 {
		c.TSP.Cities = o.Cities
	}
	if o.Trials > 0 {
		c.TSP.Trials = o.Trials
	}
	if o.IterationStep > 0 {
		c.TSP.IterationStep = o.IterationStep
	}
	if o.Repeats > 0 {
		c.TSP.Repeats = o.Repeats
	}
	if len(o.Algorithms) > 0 {
		// with every experiment selected, names a section cannot run are skipped there
		lenient := c.Experiment == ExperimentAll
		if c.Runs(ExperimentNeuralNet) {
			c.NeuralNet.Algorithms = selectAlgorithms(c.NeuralNet.Algorithms, o.Algorithms, lenient, neuralNetAlgorithms)
		}
		if c.Runs(ExperimentTSP) {
			c.TSP.Algorithms = selectAlgorithms(c.TSP.Algorithms, o.Algorithms, lenient, searchAlgorithms)
		}
		if c.Runs(ExperimentTwoColors) {
			c.TwoColors.Algorithms = selectAlgorithms(c.TwoColors.Algorithms, o.Algorithms, lenient, searchAlgorithms)
		}
	}
}

var (
	neuralNetAlgorithms = []string{RHC, SA, GA, BP, Mayfly}
	searchAlgorithms    = []string{RHC, SA, GA, MIMIC}
)

// Runs reports whether the configured experiment includes name
func (c *Config) Runs(name string) bool {
	return c.Experiment == ExperimentAll || c.Experiment == name
}

func selectAlgorithms(configured []Algorithm, names []string, lenient bool, allowed []string) []Algorithm {
	var out []Algorithm
	for _, name := range names {
		name = strings.ToUpper(strings.TrimSpace(name))
		if lenient && !contains(allowed, name) {
			continue
		}
		found := false
		for _, a := range configured {
			if a.Name == name {
				out = append(out, a)
				found = true
				break
			}
		}
		if !found {
			out = append(out, DefaultAlgorithm(name))
		}
	}
	return out
}

// DefaultAlgorithm returns settings for an algorithm that is not in a config
func DefaultAlgorithm(name string) Algorithm {
	switch name {
	case SA:
		return Algorithm{Name: SA, Temperature: 1e11, Cooling: 0.95}
	case GA:
		return Algorithm{Name: GA, Population: 150, Mate: 65, Mutate: 21}
	case MIMIC:
		return Algorithm{Name: MIMIC, Samples: 200, Keep: 100, M: 0.1, IterationDivisor: 10}
	case BP:
		return Algorithm{Name: BP, LearningRate: 0.01, Momentum: 0.9}
	case Mayfly:
		return Algorithm{Name: Mayfly, Population: 20, Bound: 5, IterationDivisor: 50}
	default:
		return Algorithm{Name: name}
	}
}

// ValidationError reports an invalid config field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + e.Field + " " + e.Reason
}

// Validate verifies the config is runnable
func (c *Config) Validate() error {
	switch c.Experiment {
	case ExperimentNeuralNet, ExperimentTSP, ExperimentTwoColors, ExperimentAll:
	default:
		return &ValidationError{Field: "experiment", Reason: fmt.Sprintf("unknown experiment %q", c.Experiment)}
	}
	if c.Parallel < 1 {
		return &ValidationError{Field: "parallel", Reason: "must be at least 1"}
	}

	nn := c.NeuralNet
	if len(nn.Layers) < 2 {
		return &ValidationError{Field: "neural_net.layers", Reason: "needs at least input and output layers"}
	}
	for _, s := range nn.Layers {
		if s <= 0 {
			return &ValidationError{Field: "neural_net.layers", Reason: "sizes must be positive"}
		}
	}
	if nn.Iterations < 0 || nn.TraceEvery < 0 || nn.Patience < 0 || nn.Threshold < 0 {
		return &ValidationError{Field: "neural_net", Reason: "iterations, trace_every, patience and threshold cannot be negative"}
	}
	if err := validateAlgorithms("neural_net", nn.Algorithms, neuralNetAlgorithms); err != nil {
		return err
	}

	if c.TSP.Cities < 2 {
		return &ValidationError{Field: "tsp.cities", Reason: "must be at least 2"}
	}
	if c.TSP.Trials < 1 || c.TSP.IterationStep < 1 || c.TSP.Repeats < 1 {
		return &ValidationError{Field: "tsp", Reason: "trials, iteration_step and repeats must be positive"}
	}
	if err := validateAlgorithms("tsp", c.TSP.Algorithms, searchAlgorithms); err != nil {
		return err
	}

	if c.TwoColors.Colors < 1 || c.TwoColors.PerColor < 1 || c.TwoColors.Iterations < 1 {
		return &ValidationError{Field: "two_colors", Reason: "colors, per_color and iterations must be positive"}
	}
	return validateAlgorithms("two_colors", c.TwoColors.Algorithms, searchAlgorithms)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func validateAlgorithms(section string, algs []Algorithm, allowed []string) error {
	for i, a := range algs {
		field := fmt.Sprintf("%s.algorithms[%d]", section, i)
		if !contains(allowed, a.Name) {
			return &ValidationError{Field: field, Reason: fmt.Sprintf("unsupported algorithm %q (want one of %s)", a.Name, strings.Join(allowed, ", "))}
		}
		switch a.Name {
		case SA:
			if a.Temperature <= 0 || a.Cooling <= 0 || a.Cooling > 1 {
				return &ValidationError{Field: field, Reason: "SA needs temperature > 0 and cooling in (0, 1]"}
			}
		case GA:
			if a.Population < 1 || a.Mate < 0 || a.Mutate < 0 {
				return &ValidationError{Field: field, Reason: "GA needs population > 0 and non-negative mate/mutate"}
			}
		case MIMIC:
			if a.Samples < 1 || a.Keep < 1 || a.Keep > a.Samples || a.M < 0 {
				return &ValidationError{Field: field, Reason: "MIMIC needs 1 <= keep <= samples and m >= 0"}
			}
		case BP:
			if a.LearningRate <= 0 || a.Momentum < 0 || a.Momentum >= 1 {
				return &ValidationError{Field: field, Reason: "BP needs learning_rate > 0 and momentum in [0, 1)"}
			}
		case Mayfly:
			if a.Bound <= 0 {
				return &ValidationError{Field: field, Reason: "MAYFLY needs bound > 0"}
			}
		}
	}
	return nil
}
