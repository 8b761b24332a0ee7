package opt

import "math/rand"

// EvaluationFunction scores an instance; larger values are better
type EvaluationFunction interface {
	Value(Instance) float64
}

// EvaluationFunc adapts a plain function to EvaluationFunction
type EvaluationFunc func(Instance) float64

// Value calls f(in)
func (f EvaluationFunc) Value(in Instance) float64 {
	return f(in)
}

// Distribution samples instances and can be re-fitted to a set of instances
type Distribution interface {
	Sample(rng *rand.Rand) Instance
	Estimate(data []Instance)
}

// NeighborFunction returns a new instance close to the given one
type NeighborFunction interface {
	Neighbor(in Instance, rng *rand.Rand) Instance
}

// MutationFunction modifies an instance in place
type MutationFunction interface {
	Mutate(in Instance, rng *rand.Rand)
}

// CrossoverFunction combines two parents into a child
type CrossoverFunction interface {
	Mate(a, b Instance, rng *rand.Rand) Instance
}

// OptimizationProblem is the part every problem shares
type OptimizationProblem interface {
	Value(Instance) float64
	Random(rng *rand.Rand) Instance
}

// HillClimbingProblem is searched by moving between neighbors
type HillClimbingProblem interface {
	OptimizationProblem
	Neighbor(in Instance, rng *rand.Rand) Instance
}

// GeneticAlgorithmProblem is searched by a population with crossover and mutation
type GeneticAlgorithmProblem interface {
	OptimizationProblem
	Mate(a, b Instance, rng *rand.Rand) Instance
	Mutate(in Instance, rng *rand.Rand)
}

// ProbabilisticOptimizationProblem is searched by refitting a distribution
type ProbabilisticOptimizationProblem interface {
	OptimizationProblem
	Distribution() Distribution
}

// NewHillClimbingProblem creates a hill climbing problem
func NewHillClimbingProblem(ef EvaluationFunction, initial Distribution, nf NeighborFunction) HillClimbingProblem {
	return &hillClimbingProblem{eval: ef, initial: initial, neighbor: nf}
}

type hillClimbingProblem struct {
	eval     EvaluationFunction
	initial  Distribution
	neighbor NeighborFunction
}

func (p *hillClimbingProblem) Value(in Instance) float64 { return p.eval.Value(in) }
func (p *hillClimbingProblem) Random(rng *rand.Rand) Instance { return p.initial.Sample(rng) }
func (p *hillClimbingProblem) Neighbor(in Instance, rng *rand.Rand) Instance {
	return p.neighbor.Neighbor(in, rng)
}

// NewGeneticAlgorithmProblem creates a genetic algorithm problem
func NewGeneticAlgorithmProblem(ef EvaluationFunction, initial Distribution, mf MutationFunction, cf CrossoverFunction) GeneticAlgorithmProblem {
	return &geneticAlgorithmProblem{eval: ef, initial: initial, mutation: mf, crossover: cf}
}

type geneticAlgorithmProblem struct {
	eval      EvaluationFunction
	initial   Distribution
	mutation  MutationFunction
	crossover CrossoverFunction
}

func (p *geneticAlgorithmProblem) Value(in Instance) float64 { return p.eval.Value(in) }
func (p *geneticAlgorithmProblem) Random(rng *rand.Rand) Instance { return p.initial.Sample(rng) }
func (p *geneticAlgorithmProblem) Mate(a, b Instance, rng *rand.Rand) Instance {
	return p.crossover.Mate(a, b, rng)
}
func (p *geneticAlgorithmProblem) Mutate(in Instance, rng *rand.Rand) {
	p.mutation.Mutate(in, rng)
}

// NewProbabilisticProblem creates a problem for MIMIC. initial provides the
// starting samples and model is refitted on every step.
func NewProbabilisticProblem(ef EvaluationFunction, initial, model Distribution) ProbabilisticOptimizationProblem {
	return &probabilisticProblem{eval: ef, initial: initial, model: model}
}

type probabilisticProblem struct {
	eval    EvaluationFunction
	initial Distribution
	model   Distribution
}

func (p *probabilisticProblem) Value(in Instance) float64 { return p.eval.Value(in) }
func (p *probabilisticProblem) Random(rng *rand.Rand) Instance { return p.initial.Sample(rng) }
func (p *probabilisticProblem) Distribution() Distribution { return p.model }
