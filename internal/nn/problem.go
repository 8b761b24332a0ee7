package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/optbench/internal/dataset"
	"github.com/cwbudde/optbench/internal/opt"
)

// OptimizationProblem searches a network's weight space. The value of a weight
// vector is the reciprocal of the total training error.
type OptimizationProblem struct {
	set     *dataset.DataSet
	network *Network
	measure ErrorMeasure

	neighbor  opt.ContinuousAddOneNeighbor
	mutation  opt.ContinuousAddOneMutation
	crossover opt.UniformCrossover
}

// NewOptimizationProblem binds a network to a training set. Evaluating an
// instance overwrites the network's weights.
func NewOptimizationProblem(set *dataset.DataSet, network *Network, measure ErrorMeasure) (*OptimizationProblem, error) {
	if set.FeatureCount() != network.InputSize() {
		return nil, fmt.Errorf("data set has %d features, network expects %d", set.FeatureCount(), network.InputSize())
	}
	return &OptimizationProblem{
		set:      set,
		network:  network,
		measure:  measure,
		neighbor: opt.ContinuousAddOneNeighbor{Amount: 1},
		mutation: opt.ContinuousAddOneMutation{Amount: 1},
	}, nil
}

// Error sets the weights and returns the total training error
func (p *OptimizationProblem) Error(in opt.Instance) float64 {
	if err := p.network.SetWeights(in); err != nil {
		return math.Inf(1)
	}
	return TotalError(p.network, p.set, p.measure)
}

func (p *OptimizationProblem) Value(in opt.Instance) float64 {
	e := p.Error(in)
	if e == 0 {
		return math.MaxFloat64
	}
	return 1 / e
}

// Random draws every weight uniformly from [-0.5, 0.5)
func (p *OptimizationProblem) Random(rng *rand.Rand) opt.Instance {
	out := make(opt.Instance, p.network.WeightCount())
	for i := range out {
		out[i] = rng.Float64() - 0.5
	}
	return out
}

func (p *OptimizationProblem) Neighbor(in opt.Instance, rng *rand.Rand) opt.Instance {
	return p.neighbor.Neighbor(in, rng)
}

func (p *OptimizationProblem) Mutate(in opt.Instance, rng *rand.Rand) {
	p.mutation.Mutate(in, rng)
}

func (p *OptimizationProblem) Mate(a, b opt.Instance, rng *rand.Rand) opt.Instance {
	return p.crossover.Mate(a, b, rng)
}
