package opt

import (
	"math"
	"math/rand"
)

// StandardGeneticAlgorithm uses fitness-proportional selection. Each generation
// has toMate children produced by crossover, the rest copied from selected
// parents, and toMutate randomly chosen members mutated.
type StandardGeneticAlgorithm struct {
	problem    GeneticAlgorithmProblem
	rng        *rand.Rand
	toMate     int
	toMutate   int
	population []Instance
	values     []float64
}

// NewStandardGeneticAlgorithm creates a random population of populationSize.
// toMate is clamped to the population size.
func NewStandardGeneticAlgorithm(populationSize, toMate, toMutate int, gap GeneticAlgorithmProblem, rng *rand.Rand) *StandardGeneticAlgorithm {
	if toMate > populationSize {
		toMate = populationSize
	}
	population := make([]Instance, populationSize)
	values := make([]float64, populationSize)
	for i := range population {
		population[i] = gap.Random(rng)
		values[i] = gap.Value(population[i])
	}
	return &StandardGeneticAlgorithm{
		problem:    gap,
		rng:        rng,
		toMate:     toMate,
		toMutate:   toMutate,
		population: population,
		values:     values,
	}
}

func (g *StandardGeneticAlgorithm) Train() float64 {
	n := len(g.population)
	if n == 0 {
		return 0
	}

	// averaging term by term keeps the mean finite for values near MaxFloat64
	mean := 0.0
	for _, v := range g.values {
		mean += v / float64(n)
	}
	selector := NewCategorical(selectionWeights(g.values))

	next := make([]Instance, n)
	nextValues := make([]float64, n)
	evaluated := make([]bool, n)

	for i := 0; i < g.toMate; i++ {
		a := g.population[selector.Sample(g.rng)]
		b := g.population[selector.Sample(g.rng)]
		next[i] = g.problem.Mate(a, b, g.rng)
	}
	for i := g.toMate; i < n; i++ {
		j := selector.Sample(g.rng)
		next[i] = g.population[j].Copy()
		nextValues[i] = g.values[j]
		evaluated[i] = true
	}
	for i := 0; i < g.toMutate; i++ {
		j := g.rng.Intn(n)
		g.problem.Mutate(next[j], g.rng)
		evaluated[j] = false
	}
	for i := range next {
		if !evaluated[i] {
			nextValues[i] = g.problem.Value(next[i])
		}
	}

	g.population = next
	g.values = nextValues
	return mean
}

// Optimal returns the fittest member of the current population
func (g *StandardGeneticAlgorithm) Optimal() Instance {
	best := 0
	for i, v := range g.values {
		if v > g.values[best] {
			best = i
		}
	}
	return g.population[best].Copy()
}

// selectionWeights scales fitness values by their largest magnitude and shifts
// them so the smallest is zero when any are negative. An all-zero vector is left
// as is; NewCategorical treats it as uniform.
func selectionWeights(values []float64) []float64 {
	scale := 0.0
	for _, v := range values {
		scale = math.Max(scale, math.Abs(v))
	}
	weights := make([]float64, len(values))
	lowest := 0.0
	for i, v := range values {
		if scale > 0 && !math.IsInf(scale, 1) {
			v /= scale
		}
		weights[i] = v
		lowest = math.Min(lowest, v)
	}
	if lowest < 0 && !math.IsInf(lowest, -1) {
		for i := range weights {
			weights[i] -= lowest
		}
	}
	return weights
}
