package opt

import (
	"math"
	"math/rand"

	xrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Categorical samples indices in proportion to non-negative weights
type Categorical struct {
	dist distuv.Categorical
	src  *randSource
	n    int
}

// randSource lets distuv draw from the caller's generator
type randSource struct {
	rng *rand.Rand
}

func (s *randSource) Uint64() uint64   { return s.rng.Uint64() }
func (s *randSource) Seed(seed uint64) { s.rng.Seed(int64(seed)) }

var _ xrand.Source = (*randSource)(nil)

// NewCategorical builds a sampler over weights. Negative and NaN weights count
// as zero. If any weight is +Inf only those are drawn, and if the weights sum
// to zero every index is equally likely.
func NewCategorical(weights []float64) *Categorical {
	c := &Categorical{src: &randSource{}, n: len(weights)}
	if c.n == 0 {
		return c
	}
	c.dist = distuv.NewCategorical(normalizeWeights(weights), c.src)
	return c
}

func normalizeWeights(weights []float64) []float64 {
	out := make([]float64, len(weights))
	total, infinite := 0.0, false
	for i, w := range weights {
		switch {
		case math.IsInf(w, 1):
			infinite = true
		case w > 0:
			out[i] = w
			total += w
		}
	}

	if infinite {
		for i, w := range weights {
			out[i] = 0
			if math.IsInf(w, 1) {
				out[i] = 1
			}
		}
		return out
	}
	if math.IsInf(total, 1) {
		largest := 0.0
		for _, w := range out {
			largest = math.Max(largest, w)
		}
		for i := range out {
			out[i] /= largest
		}
		return out
	}
	if total == 0 {
		for i := range out {
			out[i] = 1
		}
	}
	return out
}

// Sample returns an index drawn from the distribution. A Categorical is not
// safe for concurrent use.
func (c *Categorical) Sample(rng *rand.Rand) int {
	if c.n == 0 {
		return -1
	}
	c.src.rng = rng
	return int(c.dist.Rand())
}
