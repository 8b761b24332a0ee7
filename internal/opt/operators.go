package opt

import "math/rand"

// SwapNeighbor swaps two random positions of a copy of the instance
type SwapNeighbor struct{}

func (SwapNeighbor) Neighbor(in Instance, rng *rand.Rand) Instance {
	out := in.Copy()
	SwapMutation{}.Mutate(out, rng)
	return out
}

// SwapMutation swaps two random positions in place
type SwapMutation struct{}

func (SwapMutation) Mutate(in Instance, rng *rand.Rand) {
	if len(in) < 2 {
		return
	}
	i := rng.Intn(len(in))
	j := rng.Intn(len(in))
	in[i], in[j] = in[j], in[i]
}

// DiscreteChangeOneNeighbor changes one position of a copy to a different value
// within its range
type DiscreteChangeOneNeighbor struct {
	Ranges []int
}

func (n DiscreteChangeOneNeighbor) Neighbor(in Instance, rng *rand.Rand) Instance {
	out := in.Copy()
	i := rng.Intn(len(out))
	r := n.Ranges[i]
	if r < 2 {
		return out
	}
	out[i] = float64((out.Discrete(i) + rng.Intn(r-1) + 1) % r)
	return out
}

// DiscreteChangeOneMutation resets one position to a random value within its range
type DiscreteChangeOneMutation struct {
	Ranges []int
}

func (m DiscreteChangeOneMutation) Mutate(in Instance, rng *rand.Rand) {
	i := rng.Intn(len(in))
	in[i] = float64(rng.Intn(m.Ranges[i]))
}

// ContinuousAddOneNeighbor adds a uniform value in [-Amount/2, Amount/2) to one
// position of a copy
type ContinuousAddOneNeighbor struct {
	Amount float64
}

func (n ContinuousAddOneNeighbor) Neighbor(in Instance, rng *rand.Rand) Instance {
	out := in.Copy()
	ContinuousAddOneMutation(n).Mutate(out, rng)
	return out
}

// ContinuousAddOneMutation is the in-place form of ContinuousAddOneNeighbor
type ContinuousAddOneMutation struct {
	Amount float64
}

func (m ContinuousAddOneMutation) Mutate(in Instance, rng *rand.Rand) {
	i := rng.Intn(len(in))
	in[i] += rng.Float64()*m.Amount - m.Amount/2
}

// UniformCrossover takes every position from either parent with equal probability
type UniformCrossover struct{}

func (UniformCrossover) Mate(a, b Instance, rng *rand.Rand) Instance {
	child := make(Instance, len(a))
	for i := range child {
		if rng.Intn(2) == 0 {
			child[i] = a[i]
		} else {
			child[i] = b[i]
		}
	}
	return child
}

// SinglePointCrossover takes a prefix from a and the remaining suffix from b
type SinglePointCrossover struct{}

func (SinglePointCrossover) Mate(a, b Instance, rng *rand.Rand) Instance {
	point := rng.Intn(len(a) + 1)
	child := make(Instance, len(a))
	copy(child, a[:point])
	copy(child[point:], b[point:])
	return child
}
