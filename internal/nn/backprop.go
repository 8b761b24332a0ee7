package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/optbench/internal/dataset"
	"github.com/cwbudde/optbench/internal/opt"
)

// Backprop trains a network by batch gradient descent with momentum on the sum
// of squares error. It satisfies opt.Algorithm; every Train call is one epoch
// and returns the reciprocal of the error before the update.
type Backprop struct {
	network      *Network
	set          *dataset.DataSet
	learningRate float64
	momentum     float64
	velocity     []*mat.Dense
}

// NewBackprop initialises the network's weights uniformly in [-0.5, 0.5)
func NewBackprop(network *Network, set *dataset.DataSet, learningRate, momentum float64, rng *rand.Rand) *Backprop {
	weights := make([]float64, network.WeightCount())
	for i := range weights {
		weights[i] = rng.Float64() - 0.5
	}
	// length always matches WeightCount
	_ = network.SetWeights(weights)

	velocity := make([]*mat.Dense, len(network.weights))
	for l, w := range network.weights {
		r, c := w.Dims()
		velocity[l] = mat.NewDense(r, c, nil)
	}
	return &Backprop{
		network:      network,
		set:          set,
		learningRate: learningRate,
		momentum:     momentum,
		velocity:     velocity,
	}
}

func (b *Backprop) Train() float64 {
	n := b.network
	grads := make([]*mat.Dense, len(n.weights))
	for l, w := range n.weights {
		r, c := w.Dims()
		grads[l] = mat.NewDense(r, c, nil)
	}

	total := 0.0
	outer := &mat.Dense{}
	for _, in := range b.set.Instances {
		acts := n.forward(in.Features)
		out := acts[len(acts)-1]
		total += SumOfSquaresError{}.Value([]float64{in.Label}, out.RawVector().Data)

		delta := mat.NewVecDense(out.Len(), nil)
		for i := 0; i < out.Len(); i++ {
			y := out.AtVec(i)
			target := 0.0
			if i == 0 {
				target = in.Label
			}
			delta.SetVec(i, (y-target)*n.output.Deriv(y))
		}

		for l := len(n.weights) - 1; l >= 0; l-- {
			outer.Reset()
			outer.Outer(1, delta, acts[l])
			grads[l].Add(grads[l], outer)
			if l == 0 {
				break
			}

			back := mat.NewVecDense(n.sizes[l]+1, nil)
			back.MulVec(n.weights[l].T(), delta)
			next := mat.NewVecDense(n.sizes[l], nil)
			for i := 0; i < n.sizes[l]; i++ {
				next.SetVec(i, back.AtVec(i)*n.hidden.Deriv(acts[l].AtVec(i)))
			}
			delta = next
		}
	}

	for l, w := range n.weights {
		b.velocity[l].Scale(b.momentum, b.velocity[l])
		b.velocity[l].Sub(b.velocity[l], scaled(b.learningRate, grads[l]))
		w.Add(w, b.velocity[l])
	}

	if total == 0 {
		return math.MaxFloat64
	}
	return 1 / total
}

// Optimal returns the current weights
func (b *Backprop) Optimal() opt.Instance {
	return opt.Instance(b.network.Weights())
}

func scaled(alpha float64, m *mat.Dense) *mat.Dense {
	out := &mat.Dense{}
	out.Scale(alpha, m)
	return out
}
