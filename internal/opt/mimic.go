package opt

import (
	"math"
	"math/rand"
	"sort"
)

// MIMIC samples from a probabilistic model, keeps the best samples and refits
// the model to them
type MIMIC struct {
	problem ProbabilisticOptimizationProblem
	model   Distribution
	rng     *rand.Rand
	samples int
	toKeep  int

	best    Instance
	bestVal float64
}

// NewMIMIC fits the problem's model to samples random instances. toKeep is
// clamped to [1, samples].
func NewMIMIC(samples, toKeep int, pop ProbabilisticOptimizationProblem, rng *rand.Rand) *MIMIC {
	if samples < 1 {
		samples = 1
	}
	if toKeep > samples {
		toKeep = samples
	}
	if toKeep < 1 {
		toKeep = 1
	}
	m := &MIMIC{
		problem: pop,
		model:   pop.Distribution(),
		rng:     rng,
		samples: samples,
		toKeep:  toKeep,
		bestVal: math.Inf(-1),
	}
	data := make([]Instance, samples)
	for i := range data {
		data[i] = pop.Random(rng)
		m.observe(data[i], pop.Value(data[i]))
	}
	m.model.Estimate(data)
	return m
}

// Train returns the value of the worst kept sample
func (m *MIMIC) Train() float64 {
	data := make([]Instance, m.samples)
	values := make([]float64, m.samples)
	order := make([]int, m.samples)
	for i := range data {
		data[i] = m.model.Sample(m.rng)
		values[i] = m.problem.Value(data[i])
		order[i] = i
		m.observe(data[i], values[i])
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] > values[order[b]]
	})

	kept := make([]Instance, m.toKeep)
	for i := range kept {
		kept[i] = data[order[i]]
	}
	m.model.Estimate(kept)
	return values[order[m.toKeep-1]]
}

// Optimal returns the best instance sampled so far
func (m *MIMIC) Optimal() Instance {
	return m.best.Copy()
}

func (m *MIMIC) observe(in Instance, value float64) {
	if m.best == nil || value > m.bestVal {
		m.best = in
		m.bestVal = value
	}
}
