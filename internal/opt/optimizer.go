package opt

// Optimizer is a one-shot continuous minimizer. Unlike Algorithm it runs its
// whole budget in a single call.
type Optimizer interface {
	// Run minimizes eval inside [lower, upper]. The dimension is len(lower).
	// Returns the best parameters and their cost.
	Run(eval func([]float64) float64, lower, upper []float64) ([]float64, float64, error)
}

// Minimize wraps a maximizing evaluation function as a cost to minimize
func Minimize(ef EvaluationFunction) func([]float64) float64 {
	return func(x []float64) float64 {
		return -ef.Value(Instance(x))
	}
}
