package dist

import (
	"math/rand"

	"github.com/cwbudde/optbench/internal/opt"
)

// DiscreteUniform samples every position uniformly from [0, ranges[i])
type DiscreteUniform struct {
	ranges []int
}

// NewDiscreteUniform creates a uniform distribution over the given ranges
func NewDiscreteUniform(ranges []int) *DiscreteUniform {
	return &DiscreteUniform{ranges: append([]int(nil), ranges...)}
}

func (d *DiscreteUniform) Sample(rng *rand.Rand) opt.Instance {
	out := make(opt.Instance, len(d.ranges))
	for i, r := range d.ranges {
		out[i] = float64(rng.Intn(r))
	}
	return out
}

// Estimate is a no-op; the distribution is fixed
func (d *DiscreteUniform) Estimate([]opt.Instance) {}

// DiscretePermutation samples uniform random permutations of 0..n-1
type DiscretePermutation struct {
	n int
}

// NewDiscretePermutation creates a permutation distribution of size n
func NewDiscretePermutation(n int) *DiscretePermutation {
	return &DiscretePermutation{n: n}
}

func (d *DiscretePermutation) Sample(rng *rand.Rand) opt.Instance {
	return opt.FromInts(rng.Perm(d.n))
}

// Estimate is a no-op; the distribution is fixed
func (d *DiscretePermutation) Estimate([]opt.Instance) {}

// Ranges returns n copies of r, the usual shape for problems with one alphabet
func Ranges(n, r int) []int {
	ranges := make([]int, n)
	for i := range ranges {
		ranges[i] = r
	}
	return ranges
}
