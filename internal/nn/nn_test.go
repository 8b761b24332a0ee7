package nn

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/optbench/internal/dataset"
	"github.com/cwbudde/optbench/internal/opt"
)

// andSet is the logical AND of two inputs
func andSet() *dataset.DataSet {
	return &dataset.DataSet{Instances: []dataset.Instance{
		{Features: []float64{0, 0}, Label: 0},
		{Features: []float64{0, 1}, Label: 0},
		{Features: []float64{1, 0}, Label: 0},
		{Features: []float64{1, 1}, Label: 1},
	}}
}

func TestNewClassificationNetworkValidates(t *testing.T) {
	_, err := NewClassificationNetwork([]int{3})
	assert.Error(t, err)

	_, err = NewClassificationNetwork([]int{3, 0, 1})
	assert.Error(t, err)
}

func TestWeightCount(t *testing.T) {
	n, err := NewClassificationNetwork([]int{5, 20, 1})
	require.NoError(t, err)

	// (5+1)*20 + (20+1)*1
	assert.Equal(t, 141, n.WeightCount())
	assert.Len(t, n.Weights(), 141)
	assert.Equal(t, []int{5, 20, 1}, n.Sizes())
}

func TestSetWeightsRoundTrip(t *testing.T) {
	n, err := NewClassificationNetwork([]int{2, 3, 1})
	require.NoError(t, err)

	w := make([]float64, n.WeightCount())
	for i := range w {
		w[i] = float64(i) / 10
	}
	require.NoError(t, n.SetWeights(w))
	assert.Equal(t, w, n.Weights())

	assert.Error(t, n.SetWeights(w[:3]))
}

func TestRunKnownWeights(t *testing.T) {
	// single logistic unit: out = sigmoid(2*x0 - 1*x1 + 0.5)
	n, err := NewClassificationNetwork([]int{2, 1})
	require.NoError(t, err)
	require.NoError(t, n.SetWeights([]float64{2, -1, 0.5}))

	out := n.Run([]float64{1, 1})
	require.Len(t, out, 1)
	assert.InDelta(t, 1/(1+math.Exp(-1.5)), out[0], 1e-12)
}

func TestRunHiddenLayerUsesTanh(t *testing.T) {
	n, err := NewClassificationNetwork([]int{1, 1, 1})
	require.NoError(t, err)
	// hidden = tanh(1*x + 0), out = sigmoid(1*hidden + 0)
	require.NoError(t, n.SetWeights([]float64{1, 0, 1, 0}))

	out := n.Run([]float64{0.7})
	assert.InDelta(t, Logistic.F(math.Tanh(0.7)), out[0], 1e-12)
}

func TestSumOfSquaresError(t *testing.T) {
	assert.Equal(t, 2.5, SumOfSquaresError{}.Value([]float64{1, 2}, []float64{0, 4}))
}

func TestClassifyThreshold(t *testing.T) {
	n, err := NewClassificationNetwork([]int{1, 1})
	require.NoError(t, err)
	// a zero network outputs 0.5 everywhere: |label-0.5| < 0.5 is false for 0 and 1
	acc := Classify(n, identitySet())
	assert.Equal(t, Accuracy{Correct: 0, Incorrect: 2}, acc)
	assert.Equal(t, 0.0, acc.Percent())

	assert.Equal(t, 75.0, Accuracy{Correct: 3, Incorrect: 1}.Percent())
	assert.Equal(t, 0.0, Accuracy{}.Percent())
}

func identitySet() *dataset.DataSet {
	return &dataset.DataSet{Instances: []dataset.Instance{
		{Features: []float64{0}, Label: 0},
		{Features: []float64{1}, Label: 1},
	}}
}

func TestOptimizationProblemRejectsShapeMismatch(t *testing.T) {
	n, err := NewClassificationNetwork([]int{3, 1})
	require.NoError(t, err)

	_, err = NewOptimizationProblem(andSet(), n, SumOfSquaresError{})
	assert.Error(t, err)
}

func TestOptimizationProblemValueIsReciprocalError(t *testing.T) {
	n, err := NewClassificationNetwork([]int{2, 1})
	require.NoError(t, err)
	p, err := NewOptimizationProblem(andSet(), n, SumOfSquaresError{})
	require.NoError(t, err)

	zero := make(opt.Instance, n.WeightCount())
	// every output is 0.5: 4 rows * 0.5 * 0.25
	assert.InDelta(t, 0.5, p.Error(zero), 1e-12)
	assert.InDelta(t, 2.0, p.Value(zero), 1e-12)

	rng := rand.New(rand.NewSource(1))
	r := p.Random(rng)
	require.Len(t, r, n.WeightCount())
	for _, w := range r {
		assert.True(t, w >= -0.5 && w < 0.5)
	}
}

func TestHillClimbingLearnsAnd(t *testing.T) {
	n, err := NewClassificationNetwork([]int{2, 3, 1})
	require.NoError(t, err)
	p, err := NewOptimizationProblem(andSet(), n, SumOfSquaresError{})
	require.NoError(t, err)

	rhc := opt.NewRandomizedHillClimbing(p, rand.New(rand.NewSource(2)))
	_, err = opt.NewFixedIterationTrainer(rhc, 5000).Train(context.Background())
	require.NoError(t, err)

	require.NoError(t, n.SetWeights(rhc.Optimal()))
	assert.Equal(t, Accuracy{Correct: 4}, Classify(n, andSet()))
}

func TestGeneticAlgorithmUsesProblemOperators(t *testing.T) {
	n, err := NewClassificationNetwork([]int{2, 2, 1})
	require.NoError(t, err)
	p, err := NewOptimizationProblem(andSet(), n, SumOfSquaresError{})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	ga := opt.NewStandardGeneticAlgorithm(20, 10, 4, p, rng)
	start := p.Value(ga.Optimal())
	for i := 0; i < 50; i++ {
		ga.Train()
	}
	assert.GreaterOrEqual(t, p.Value(ga.Optimal()), start*0.9)
	assert.Len(t, ga.Optimal(), n.WeightCount())
}

func TestBackpropReducesError(t *testing.T) {
	n, err := NewClassificationNetwork([]int{2, 4, 1})
	require.NoError(t, err)
	bp := NewBackprop(n, andSet(), 0.3, 0.5, rand.New(rand.NewSource(4)))

	first := 1 / bp.Train()
	for i := 0; i < 3000; i++ {
		bp.Train()
	}
	last := TotalError(n, andSet(), SumOfSquaresError{})

	assert.Less(t, last, first)
	assert.Equal(t, Accuracy{Correct: 4}, Classify(n, andSet()))
	assert.Equal(t, n.Weights(), []float64(bp.Optimal()))
}
