package opt

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBitProblems(n int) (HillClimbingProblem, GeneticAlgorithmProblem, ProbabilisticOptimizationProblem) {
	ranges := bitRanges(n)
	initial := newBitDistribution(n)
	hcp := NewHillClimbingProblem(oneMax, initial, DiscreteChangeOneNeighbor{Ranges: ranges})
	gap := NewGeneticAlgorithmProblem(oneMax, initial, DiscreteChangeOneMutation{Ranges: ranges}, UniformCrossover{})
	pop := NewProbabilisticProblem(oneMax, initial, newBitDistribution(n))
	return hcp, gap, pop
}

func TestRandomizedHillClimbingNeverGetsWorse(t *testing.T) {
	hcp, _, _ := newBitProblems(30)
	rhc := NewRandomizedHillClimbing(hcp, rand.New(rand.NewSource(1)))

	prev := oneMax.Value(rhc.Optimal())
	for i := 0; i < 300; i++ {
		v := rhc.Train()
		require.GreaterOrEqual(t, v, prev)
		prev = v
	}
	assert.Equal(t, 30.0, prev, "one-max with 300 single-bit moves should be solved")
	assert.Equal(t, prev, oneMax.Value(rhc.Optimal()))
}

func TestRandomizedHillClimbingOptimalIsCopy(t *testing.T) {
	hcp, _, _ := newBitProblems(5)
	rhc := NewRandomizedHillClimbing(hcp, rand.New(rand.NewSource(2)))

	opt := rhc.Optimal()
	opt[0] = 42
	assert.NotEqual(t, 42.0, rhc.Optimal()[0])
}

func TestSimulatedAnnealingCools(t *testing.T) {
	hcp, _, _ := newBitProblems(20)
	sa := NewSimulatedAnnealing(100, 0.95, hcp, rand.New(rand.NewSource(3)))

	for i := 0; i < 10; i++ {
		sa.Train()
	}
	assert.InDelta(t, 100*0.5987369392383789, sa.Temperature(), 1e-9)
}

func TestSimulatedAnnealingSolvesOneMaxWhenCold(t *testing.T) {
	hcp, _, _ := newBitProblems(20)
	sa := NewSimulatedAnnealing(1, 0.5, hcp, rand.New(rand.NewSource(4)))

	_, err := NewFixedIterationTrainer(sa, 500).Train(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20.0, oneMax.Value(sa.Optimal()))
}

func TestStandardGeneticAlgorithmImproves(t *testing.T) {
	_, gap, _ := newBitProblems(40)
	rng := rand.New(rand.NewSource(5))
	ga := NewStandardGeneticAlgorithm(50, 30, 5, gap, rng)

	start := oneMax.Value(ga.Optimal())
	for i := 0; i < 100; i++ {
		ga.Train()
	}
	assert.Greater(t, oneMax.Value(ga.Optimal()), start)
}

func TestStandardGeneticAlgorithmZeroFitness(t *testing.T) {
	zero := EvaluationFunc(func(Instance) float64 { return 0 })
	gap := NewGeneticAlgorithmProblem(zero, newBitDistribution(4), SwapMutation{}, UniformCrossover{})
	ga := NewStandardGeneticAlgorithm(10, 20, 0, gap, rand.New(rand.NewSource(6)))

	assert.Equal(t, 10, ga.toMate, "toMate is clamped to the population size")
	assert.Equal(t, 0.0, ga.Train())
	assert.Len(t, ga.Optimal(), 4)
}

func TestStandardGeneticAlgorithmHugeFitness(t *testing.T) {
	// two members at MaxFloat64 overflow a plain fitness sum
	huge := EvaluationFunc(func(in Instance) float64 {
		if in.Discrete(0) == 1 {
			return math.MaxFloat64
		}
		return 1
	})
	gap := NewGeneticAlgorithmProblem(huge, newBitDistribution(6), SwapMutation{}, UniformCrossover{})
	ga := NewStandardGeneticAlgorithm(20, 10, 0, gap, rand.New(rand.NewSource(11)))

	fit := 0
	for _, in := range ga.population {
		fit += in.Discrete(0)
	}
	require.GreaterOrEqual(t, fit, 2)

	for i := 0; i < 3; i++ {
		mean := ga.Train()
		require.False(t, math.IsInf(mean, 0), "generation %d", i)
		require.False(t, math.IsNaN(mean), "generation %d", i)
		_, err := json.Marshal(mean)
		require.NoError(t, err)
	}

	// selection keeps evolving: only the huge members are ever picked
	for _, in := range ga.population {
		assert.Equal(t, 1, in.Discrete(0))
	}
	assert.Equal(t, math.MaxFloat64, huge.Value(ga.Optimal()))
}

func TestSelectionWeights(t *testing.T) {
	assert.InDeltaSlice(t, []float64{0, 2.0 / 3, 5.0 / 3}, selectionWeights([]float64{-2, 0, 3}), 1e-12)
	assert.InDeltaSlice(t, []float64{0.5, 1}, selectionWeights([]float64{1, 2}), 1e-12)
	assert.Equal(t, []float64{0, 0}, selectionWeights([]float64{0, 0}))

	weights := selectionWeights([]float64{math.MaxFloat64, math.MaxFloat64, 1})
	assert.Equal(t, 1.0, weights[0])
	assert.Equal(t, 1.0, weights[1])
	assert.InDelta(t, 0, weights[2], 1e-300)
}

func TestCategorical(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	c := NewCategorical([]float64{0, 1, 0})
	for i := 0; i < 100; i++ {
		require.Equal(t, 1, c.Sample(rng))
	}

	uniform := NewCategorical([]float64{0, 0, 0, 0})
	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		seen[uniform.Sample(rng)] = true
	}
	assert.Len(t, seen, 4)

	assert.Equal(t, -1, NewCategorical(nil).Sample(rng))
}

func TestCategoricalIgnoresInvalidWeights(t *testing.T) {
	rng := rand.New(rand.NewSource(9))

	c := NewCategorical([]float64{-3, math.NaN(), 2})
	for i := 0; i < 50; i++ {
		require.Equal(t, 2, c.Sample(rng))
	}

	inf := NewCategorical([]float64{5, math.Inf(1), 5})
	for i := 0; i < 50; i++ {
		require.Equal(t, 1, inf.Sample(rng))
	}

	overflow := NewCategorical([]float64{math.MaxFloat64, math.MaxFloat64, 0})
	for i := 0; i < 50; i++ {
		require.NotEqual(t, 2, overflow.Sample(rng))
	}
}

func TestCategoricalProportions(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	c := NewCategorical([]float64{1, 3})

	counts := make([]int, 2)
	for i := 0; i < 4000; i++ {
		counts[c.Sample(rng)]++
	}
	assert.InDelta(t, 0.75, float64(counts[1])/4000, 0.05)
}

func TestCategoricalDeterministic(t *testing.T) {
	c := NewCategorical([]float64{1, 2, 3, 4})
	draw := func(seed int64) []int {
		rng := rand.New(rand.NewSource(seed))
		out := make([]int, 20)
		for i := range out {
			out[i] = c.Sample(rng)
		}
		return out
	}
	assert.Equal(t, draw(12), draw(12))
}

func TestMIMICTracksBestSample(t *testing.T) {
	_, _, pop := newBitProblems(25)
	mimic := NewMIMIC(100, 20, pop, rand.New(rand.NewSource(8)))

	prevBest := oneMax.Value(mimic.Optimal())
	for i := 0; i < 30; i++ {
		cutoff := mimic.Train()
		best := oneMax.Value(mimic.Optimal())
		require.GreaterOrEqual(t, best, prevBest)
		require.LessOrEqual(t, cutoff, best)
		prevBest = best
	}
	assert.GreaterOrEqual(t, prevBest, 24.0)
}

func TestMIMICClampsArguments(t *testing.T) {
	_, _, pop := newBitProblems(3)
	mimic := NewMIMIC(0, 10, pop, rand.New(rand.NewSource(9)))

	assert.Equal(t, 1, mimic.samples)
	assert.Equal(t, 1, mimic.toKeep)
	mimic.Train()
	assert.Len(t, mimic.Optimal(), 3)
}
