package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Result summarizes one algorithm run inside an experiment
type Result struct {
	// Problem names what was optimized, e.g. "neuralnet" or "tsp"
	Problem   string `json:"problem"`
	Algorithm string `json:"algorithm"`

	// Trial is the TSP trial number, 0 elsewhere
	Trial      int `json:"trial,omitempty"`
	Iterations int `json:"iterations"`

	// Value is larger-is-better. Neural network results hold the negated
	// training error.
	Value float64 `json:"value"`

	// Classification accuracy in percent, neural network runs only
	TrainAccuracy float64 `json:"trainAccuracy,omitempty"`
	TestAccuracy  float64 `json:"testAccuracy,omitempty"`

	Duration time.Duration `json:"duration"`
}

// Run is a completed experiment
type Run struct {
	ID         string    `json:"id"`
	Experiment string    `json:"experiment"`
	Seed       int64     `json:"seed"`
	Timestamp  time.Time `json:"timestamp"`

	Duration time.Duration `json:"duration"`

	// Config is the YAML config the run used
	Config string `json:"config,omitempty"`

	Results []Result `json:"results"`

	// Report is the text report as printed
	Report string `json:"report,omitempty"`
}

// RunInfo contains metadata about a run without its results and report.
type RunInfo struct {
	ID         string        `json:"id"`
	Experiment string        `json:"experiment"`
	Seed       int64         `json:"seed"`
	Timestamp  time.Time     `json:"timestamp"`
	Duration   time.Duration `json:"duration"`
	Results    int           `json:"results"`

	// Best is the highest valued result
	BestAlgorithm string  `json:"bestAlgorithm,omitempty"`
	BestValue     float64 `json:"bestValue,omitempty"`
}

// NewRun creates a run stamped with the current time
func NewRun(id, experiment string, seed int64, results []Result) *Run {
	return &Run{
		ID:         id,
		Experiment: experiment,
		Seed:       seed,
		Timestamp:  time.Now(),
		Results:    results,
	}
}

// ToInfo converts a full Run to RunInfo (metadata only).
func (r *Run) ToInfo() RunInfo {
	info := RunInfo{
		ID:         r.ID,
		Experiment: r.Experiment,
		Seed:       r.Seed,
		Timestamp:  r.Timestamp,
		Duration:   r.Duration,
		Results:    len(r.Results),
	}
	for i, res := range r.Results {
		if i == 0 || res.Value > info.BestValue {
			info.BestAlgorithm = res.Algorithm
			info.BestValue = res.Value
		}
	}
	return info
}

// Validate checks if the run has valid data.
func (r *Run) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	if r.Experiment == "" {
		return &ValidationError{Field: "Experiment", Reason: "cannot be empty"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if r.Duration < 0 {
		return &ValidationError{Field: "Duration", Reason: "cannot be negative"}
	}
	for i, res := range r.Results {
		field := fmt.Sprintf("Results[%d]", i)
		if res.Algorithm == "" {
			return &ValidationError{Field: field + ".Algorithm", Reason: "cannot be empty"}
		}
		if res.Problem == "" {
			return &ValidationError{Field: field + ".Problem", Reason: "cannot be empty"}
		}
		if res.Iterations < 0 || res.Trial < 0 {
			return &ValidationError{Field: field, Reason: "iterations and trial cannot be negative"}
		}
		if res.TrainAccuracy < 0 || res.TrainAccuracy > 100 || res.TestAccuracy < 0 || res.TestAccuracy > 100 {
			return &ValidationError{Field: field, Reason: "accuracy must be within [0, 100]"}
		}
	}
	return nil
}

// ValidationError represents a run validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// Delta compares one result present in two runs
type Delta struct {
	Problem   string  `json:"problem"`
	Algorithm string  `json:"algorithm"`
	Trial     int     `json:"trial,omitempty"`
	Before    float64 `json:"before"`
	After     float64 `json:"after"`
}

// Change returns After - Before
func (d Delta) Change() float64 {
	return d.After - d.Before
}

// Compare matches the results of two runs of the same experiment by problem,
// algorithm and trial. Results present in only one run are skipped.
func Compare(before, after *Run) ([]Delta, error) {
	if before.Experiment != after.Experiment {
		return nil, &CompatibilityError{
			Field:    "Experiment",
			Expected: before.Experiment,
			Actual:   after.Experiment,
		}
	}

	type key struct {
		problem, algorithm string
		trial              int
	}
	values := make(map[key]float64, len(before.Results))
	for _, res := range before.Results {
		values[key{res.Problem, res.Algorithm, res.Trial}] = res.Value
	}

	var deltas []Delta
	for _, res := range after.Results {
		v, ok := values[key{res.Problem, res.Algorithm, res.Trial}]
		if !ok {
			continue
		}
		deltas = append(deltas, Delta{
			Problem:   res.Problem,
			Algorithm: res.Algorithm,
			Trial:     res.Trial,
			Before:    v,
			After:     res.Value,
		})
	}
	return deltas, nil
}

// CompatibilityError reports runs that cannot be compared.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}

func sortInfos(infos []RunInfo) {
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].Timestamp.After(infos[j].Timestamp)
	})
}

func encodeRun(run *Run) ([]byte, error) {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize run: %w", err)
	}
	return data, nil
}

func decodeRun(data []byte) (*Run, error) {
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to deserialize run: %w", err)
	}
	return &run, nil
}
