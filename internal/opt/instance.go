package opt

import "math"

// Instance is a candidate solution. Discrete problems store integer values as floats.
type Instance []float64

// Copy returns an independent copy of the instance
func (in Instance) Copy() Instance {
	out := make(Instance, len(in))
	copy(out, in)
	return out
}

// Discrete returns the i-th value rounded to an int
func (in Instance) Discrete(i int) int {
	return int(math.Round(in[i]))
}

// Ints returns every value of the instance as an int
func (in Instance) Ints() []int {
	out := make([]int, len(in))
	for i := range in {
		out[i] = in.Discrete(i)
	}
	return out
}

// FromInts builds an instance from integer values
func FromInts(values []int) Instance {
	out := make(Instance, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}
