package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Activation is a squashing function together with its derivative expressed in
// terms of the activation's output
type Activation struct {
	Name  string
	F     func(float64) float64
	Deriv func(y float64) float64
}

// Tanh is used by hidden layers
var Tanh = Activation{
	Name:  "tanh",
	F:     math.Tanh,
	Deriv: func(y float64) float64 { return 1 - y*y },
}

// Logistic is used by the output layer of classification networks
var Logistic = Activation{
	Name:  "logistic",
	F:     func(x float64) float64 { return 1 / (1 + math.Exp(-x)) },
	Deriv: func(y float64) float64 { return y * (1 - y) },
}

// Network is a fully connected feed-forward network. Every non-output layer has
// a bias unit, stored as the last column of the following weight matrix.
type Network struct {
	sizes   []int
	weights []*mat.Dense // weights[l] is sizes[l+1] x (sizes[l]+1)
	hidden  Activation
	output  Activation
}

// NewClassificationNetwork builds a network with tanh hidden layers and a
// logistic output layer. sizes lists the unit count of every layer, input first.
func NewClassificationNetwork(sizes []int) (*Network, error) {
	if len(sizes) < 2 {
		return nil, fmt.Errorf("network needs at least 2 layers, got %d", len(sizes))
	}
	for i, s := range sizes {
		if s <= 0 {
			return nil, fmt.Errorf("layer %d has %d units", i, s)
		}
	}

	n := &Network{
		sizes:  append([]int(nil), sizes...),
		hidden: Tanh,
		output: Logistic,
	}
	for l := 0; l < len(sizes)-1; l++ {
		n.weights = append(n.weights, mat.NewDense(sizes[l+1], sizes[l]+1, nil))
	}
	return n, nil
}

// Sizes returns the layer sizes
func (n *Network) Sizes() []int {
	return append([]int(nil), n.sizes...)
}

// InputSize returns the number of input units
func (n *Network) InputSize() int {
	return n.sizes[0]
}

// WeightCount returns the number of weights including biases
func (n *Network) WeightCount() int {
	total := 0
	for _, w := range n.weights {
		r, c := w.Dims()
		total += r * c
	}
	return total
}

// Weights returns all weights, layer by layer in row-major order
func (n *Network) Weights() []float64 {
	out := make([]float64, 0, n.WeightCount())
	for _, w := range n.weights {
		r, c := w.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				out = append(out, w.At(i, j))
			}
		}
	}
	return out
}

// SetWeights replaces all weights in the order returned by Weights
func (n *Network) SetWeights(weights []float64) error {
	if len(weights) != n.WeightCount() {
		return fmt.Errorf("expected %d weights, got %d", n.WeightCount(), len(weights))
	}
	k := 0
	for _, w := range n.weights {
		r, c := w.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				w.Set(i, j, weights[k])
				k++
			}
		}
	}
	return nil
}

// Run feeds features through the network and returns the output layer
func (n *Network) Run(features []float64) []float64 {
	acts := n.forward(features)
	return acts[len(acts)-1].RawVector().Data
}

// forward returns the activations of every layer. Every entry except the last
// carries a trailing bias unit of 1.
func (n *Network) forward(features []float64) []*mat.VecDense {
	acts := make([]*mat.VecDense, len(n.sizes))
	acts[0] = withBias(features, n.sizes[0])

	for l, w := range n.weights {
		z := mat.NewVecDense(n.sizes[l+1], nil)
		z.MulVec(w, acts[l])

		act := n.hidden
		last := l == len(n.weights)-1
		if last {
			act = n.output
		}
		for i := 0; i < z.Len(); i++ {
			z.SetVec(i, act.F(z.AtVec(i)))
		}

		if last {
			acts[l+1] = z
		} else {
			acts[l+1] = withBias(z.RawVector().Data, n.sizes[l+1])
		}
	}
	return acts
}

func withBias(values []float64, size int) *mat.VecDense {
	data := make([]float64, size+1)
	copy(data, values)
	data[size] = 1
	return mat.NewVecDense(size+1, data)
}
