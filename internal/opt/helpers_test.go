package opt

import "math/rand"

// oneMax counts positions equal to 1
var oneMax = EvaluationFunc(func(in Instance) float64 {
	total := 0.0
	for i := range in {
		if in.Discrete(i) == 1 {
			total++
		}
	}
	return total
})

// bitDistribution samples bits independently and refits per-position probabilities
type bitDistribution struct {
	p []float64
}

func newBitDistribution(n int) *bitDistribution {
	p := make([]float64, n)
	for i := range p {
		p[i] = 0.5
	}
	return &bitDistribution{p: p}
}

func (d *bitDistribution) Sample(rng *rand.Rand) Instance {
	out := make(Instance, len(d.p))
	for i, p := range d.p {
		if rng.Float64() < p {
			out[i] = 1
		}
	}
	return out
}

func (d *bitDistribution) Estimate(data []Instance) {
	for i := range d.p {
		ones := 1.0
		for _, in := range data {
			ones += in[i]
		}
		d.p[i] = ones / float64(len(data)+2)
	}
}

func bitRanges(n int) []int {
	ranges := make([]int, n)
	for i := range ranges {
		ranges[i] = 2
	}
	return ranges
}
