package nn

import (
	"github.com/cwbudde/optbench/internal/dataset"
)

// ErrorMeasure scores the difference between an expected and an actual output
type ErrorMeasure interface {
	Value(expected, actual []float64) float64
}

// SumOfSquaresError is half the squared Euclidean distance
type SumOfSquaresError struct{}

func (SumOfSquaresError) Value(expected, actual []float64) float64 {
	sum := 0.0
	for i := range expected {
		d := expected[i] - actual[i]
		sum += d * d
	}
	return sum / 2
}

// TotalError sums measure over every row of set
func TotalError(n *Network, set *dataset.DataSet, measure ErrorMeasure) float64 {
	total := 0.0
	for _, in := range set.Instances {
		total += measure.Value([]float64{in.Label}, n.Run(in.Features))
	}
	return total
}

// Accuracy counts classification outcomes
type Accuracy struct {
	Correct   int
	Incorrect int
}

// Percent returns the share of correct classifications in [0, 100]
func (a Accuracy) Percent() float64 {
	total := a.Correct + a.Incorrect
	if total == 0 {
		return 0
	}
	return float64(a.Correct) / float64(total) * 100
}

// Classify runs every row through the network. A row is correct when the first
// output is within 0.5 of its label.
func Classify(n *Network, set *dataset.DataSet) Accuracy {
	var acc Accuracy
	for _, in := range set.Instances {
		out := n.Run(in.Features)[0]
		d := in.Label - out
		if d < 0 {
			d = -d
		}
		if d < 0.5 {
			acc.Correct++
		} else {
			acc.Incorrect++
		}
	}
	return acc
}
