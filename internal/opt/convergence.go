package opt

import (
	"log/slog"
	"math"
)

// ConvergenceConfig defines when a run of step values counts as converged
type ConvergenceConfig struct {
	// Enabled controls whether convergence detection is active
	Enabled bool

	// Patience is the number of steps with no significant improvement before stopping
	Patience int

	// Threshold is the minimum relative improvement required to count as progress.
	// Relative improvement = (value - lastSignificant) / |lastSignificant|
	Threshold float64
}

// DefaultConvergenceConfig returns defaults suitable for fitness curves
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled:   true,
		Patience:  200,
		Threshold: 0.001,
	}
}

// ConvergenceTracker tracks step values (larger is better) and detects when they
// stop improving
type ConvergenceTracker struct {
	config          ConvergenceConfig
	steps           int
	bestValue       float64
	lastSignificant float64
	staleCount      int
}

// NewConvergenceTracker creates a new convergence tracker with the given config
func NewConvergenceTracker(config ConvergenceConfig) *ConvergenceTracker {
	return &ConvergenceTracker{
		config:          config,
		bestValue:       math.Inf(-1),
		lastSignificant: math.Inf(-1),
	}
}

// Update records a new value and returns true if convergence is detected
func (c *ConvergenceTracker) Update(value float64) bool {
	if !c.config.Enabled {
		return false
	}

	c.steps++

	if value > c.bestValue {
		c.bestValue = value
	}

	if c.steps == 1 {
		c.lastSignificant = value
		return false
	}

	relativeImprovement := relativeGain(c.lastSignificant, value)

	if relativeImprovement >= c.config.Threshold {
		c.lastSignificant = value
		c.staleCount = 0
		return false
	}

	c.staleCount++
	if c.staleCount >= c.config.Patience {
		slog.Debug("Convergence detected",
			"stale_count", c.staleCount,
			"patience", c.config.Patience,
			"best_value", c.bestValue,
		)
		return true
	}
	return false
}

func relativeGain(from, to float64) float64 {
	if from == 0 {
		if to > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return (to - from) / math.Abs(from)
}
