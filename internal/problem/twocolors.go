package problem

import "github.com/cwbudde/optbench/internal/opt"

// TwoColors counts the interior positions whose value differs from both of
// their neighbors
type TwoColors struct{}

func (TwoColors) Value(in opt.Instance) float64 {
	total := 0.0
	for i := 1; i < len(in)-1; i++ {
		v := in.Discrete(i)
		if v != in.Discrete(i-1) && v != in.Discrete(i+1) {
			total++
		}
	}
	return total
}
