package opt

import (
	"math"
	"math/rand"
)

// Algorithm is an iterative optimizer. Each call to Train performs one step and
// returns a step value (current fitness, mean population fitness, or MIMIC's
// cutoff, depending on the algorithm).
type Algorithm interface {
	Train() float64
	Optimal() Instance
}

// RandomizedHillClimbing moves to a random neighbor whenever it is strictly better
type RandomizedHillClimbing struct {
	problem HillClimbingProblem
	rng     *rand.Rand
	cur     Instance
	curVal  float64
}

// NewRandomizedHillClimbing starts from a random instance of the problem
func NewRandomizedHillClimbing(hcp HillClimbingProblem, rng *rand.Rand) *RandomizedHillClimbing {
	cur := hcp.Random(rng)
	return &RandomizedHillClimbing{
		problem: hcp,
		rng:     rng,
		cur:     cur,
		curVal:  hcp.Value(cur),
	}
}

func (r *RandomizedHillClimbing) Train() float64 {
	next := r.problem.Neighbor(r.cur, r.rng)
	nextVal := r.problem.Value(next)
	if nextVal > r.curVal {
		r.cur = next
		r.curVal = nextVal
	}
	return r.curVal
}

func (r *RandomizedHillClimbing) Optimal() Instance {
	return r.cur.Copy()
}

// SimulatedAnnealing accepts worse neighbors with probability exp(delta/t) and
// cools t geometrically after every step
type SimulatedAnnealing struct {
	problem HillClimbingProblem
	rng     *rand.Rand
	t       float64
	cooling float64
	cur     Instance
	curVal  float64
}

// NewSimulatedAnnealing creates an annealer with starting temperature t
func NewSimulatedAnnealing(t, cooling float64, hcp HillClimbingProblem, rng *rand.Rand) *SimulatedAnnealing {
	cur := hcp.Random(rng)
	return &SimulatedAnnealing{
		problem: hcp,
		rng:     rng,
		t:       t,
		cooling: cooling,
		cur:     cur,
		curVal:  hcp.Value(cur),
	}
}

func (s *SimulatedAnnealing) Train() float64 {
	next := s.problem.Neighbor(s.cur, s.rng)
	nextVal := s.problem.Value(next)
	if nextVal > s.curVal || s.rng.Float64() < math.Exp((nextVal-s.curVal)/s.t) {
		s.cur = next
		s.curVal = nextVal
	}
	s.t *= s.cooling
	return s.curVal
}

func (s *SimulatedAnnealing) Optimal() Instance {
	return s.cur.Copy()
}

// Temperature returns the current temperature
func (s *SimulatedAnnealing) Temperature() float64 {
	return s.t
}
