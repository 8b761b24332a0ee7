package opt

import (
	"math"
	"testing"
)

// Sphere function: f(x) = sum(x_i^2), minimum at origin
func sphere(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum
}

func TestMayflyAdapterOnSphere(t *testing.T) {
	optimizer := NewMayfly(100, 20, 42)

	dim := 3
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := 0; i < dim; i++ {
		lower[i] = -10
		upper[i] = 10
	}

	best, cost, err := optimizer.Run(sphere, lower, upper)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(best) != dim {
		t.Fatalf("Expected %d parameters, got %d", dim, len(best))
	}

	if cost > 0.1 {
		t.Errorf("Expected cost near 0, got %f", cost)
	}

	for i, v := range best {
		if math.Abs(v) > 1.0 {
			t.Errorf("Parameter %d = %f, expected near 0", i, v)
		}
	}
}

func TestMayflyAdapterDeterministic(t *testing.T) {
	lower := []float64{-5, -5}
	upper := []float64{5, 5}

	_, cost1, err := NewMayfly(50, 20, 123).Run(sphere, lower, upper)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	_, cost2, err := NewMayfly(50, 20, 123).Run(sphere, lower, upper)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if cost1 != cost2 {
		t.Errorf("Non-deterministic: cost1=%f, cost2=%f", cost1, cost2)
	}
}

func TestMayflyAdapterRejectsEmptyBounds(t *testing.T) {
	if _, _, err := NewMayfly(10, 20, 1).Run(sphere, nil, nil); err == nil {
		t.Error("Expected error for empty bounds")
	}
}

func TestMayflyAdapterClampsPopulation(t *testing.T) {
	m := NewMayfly(10, 5, 1)
	if m.popSize != MinMayflyPopulation {
		t.Errorf("Expected population %d, got %d", MinMayflyPopulation, m.popSize)
	}
}

func TestMayflyAdapterReportsEveryIteration(t *testing.T) {
	optimizer := NewMayfly(15, 20, 7)

	var iterations []int
	var costs []float64
	optimizer.OnIteration = func(iteration int, best []float64, cost float64) {
		iterations = append(iterations, iteration)
		costs = append(costs, cost)
		if got := sphere(best); got != cost {
			t.Errorf("iteration %d: best scores %f, reported cost %f", iteration, got, cost)
		}
	}

	_, cost, err := optimizer.Run(sphere, []float64{-5, -5}, []float64{5, 5})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(iterations) != 15 {
		t.Fatalf("Expected 15 iteration reports, got %d", len(iterations))
	}
	for i, it := range iterations {
		if it != i+1 {
			t.Errorf("Report %d has iteration %d", i, it)
		}
		if i > 0 && costs[i] > costs[i-1] {
			t.Errorf("Best cost grew at iteration %d: %f > %f", it, costs[i], costs[i-1])
		}
	}
	if costs[len(costs)-1] != cost {
		t.Errorf("Last reported cost %f, result cost %f", costs[len(costs)-1], cost)
	}
}

func TestMayflyAdapterReportingNeverWorsens(t *testing.T) {
	lower := []float64{-5, -5}
	upper := []float64{5, 5}

	_, plain, err := NewMayfly(30, 20, 99).Run(sphere, lower, upper)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	watched := NewMayfly(30, 20, 99)
	watched.OnIteration = func(int, []float64, float64) {}
	_, cost, err := watched.Run(sphere, lower, upper)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if cost > plain {
		t.Errorf("Reporting made the result worse: %f vs %f", cost, plain)
	}
}
