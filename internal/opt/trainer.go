package opt

import (
	"context"
)

// StepFunc is called after every training step with the 1-based step number
// and the value returned by Train
type StepFunc func(step int, value float64)

// Trainer drives an Algorithm
type Trainer interface {
	Train(ctx context.Context) (int, error)
}

// FixedIterationTrainer runs an algorithm for a fixed number of steps
type FixedIterationTrainer struct {
	Algorithm  Algorithm
	Iterations int
	OnStep     StepFunc
}

// NewFixedIterationTrainer creates a trainer for n steps
func NewFixedIterationTrainer(alg Algorithm, n int) *FixedIterationTrainer {
	return &FixedIterationTrainer{Algorithm: alg, Iterations: n}
}

// Train returns the number of completed steps. It stops early with ctx.Err()
// when the context is cancelled.
func (t *FixedIterationTrainer) Train(ctx context.Context) (int, error) {
	for i := 0; i < t.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		v := t.Algorithm.Train()
		if t.OnStep != nil {
			t.OnStep(i+1, v)
		}
	}
	return t.Iterations, nil
}

// ConvergenceTrainer runs until the step values converge or MaxIterations is reached
type ConvergenceTrainer struct {
	Algorithm     Algorithm
	MaxIterations int
	Config        ConvergenceConfig
	OnStep        StepFunc
}

// NewConvergenceTrainer creates a trainer that stops on convergence
func NewConvergenceTrainer(alg Algorithm, maxIterations int, config ConvergenceConfig) *ConvergenceTrainer {
	return &ConvergenceTrainer{Algorithm: alg, MaxIterations: maxIterations, Config: config}
}

func (t *ConvergenceTrainer) Train(ctx context.Context) (int, error) {
	tracker := NewConvergenceTracker(t.Config)
	for i := 0; i < t.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		v := t.Algorithm.Train()
		if t.OnStep != nil {
			t.OnStep(i+1, v)
		}
		if tracker.Update(v) {
			return i + 1, nil
		}
	}
	return t.MaxIterations, nil
}
