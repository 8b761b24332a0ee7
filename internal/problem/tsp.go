package problem

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/katalvlaran/lvlath/matrix"
	"github.com/katalvlaran/lvlath/tsp"

	"github.com/cwbudde/optbench/internal/opt"
)

// Point is a city location
type Point struct {
	X, Y float64
}

// RandomPoints draws n points uniformly from the unit square
func RandomPoints(n int, rng *rand.Rand) []Point {
	points := make([]Point, n)
	for i := range points {
		points[i] = Point{X: rng.Float64(), Y: rng.Float64()}
	}
	return points
}

// Distances returns the symmetric matrix of Euclidean distances between points
func Distances(points []Point) (*matrix.Dense, error) {
	n := len(points)
	dist, err := matrix.NewDense(n, n)
	if err != nil {
		return nil, fmt.Errorf("distance matrix for %d cities: %w", n, err)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := math.Hypot(points[i].X-points[j].X, points[i].Y-points[j].Y)
			if err := dist.Set(i, j, d); err != nil {
				return nil, err
			}
			if err := dist.Set(j, i, d); err != nil {
				return nil, err
			}
		}
	}
	return dist, nil
}

// TourLength returns the length of the closed tour visiting cities in order
func TourLength(dist matrix.Matrix, order []int) (float64, error) {
	if len(order) < 2 {
		return 0, nil
	}
	cycle := make([]int, len(order)+1)
	copy(cycle, order)
	cycle[len(order)] = order[0]
	return tsp.TourCost(dist, cycle)
}

func edge(dist matrix.Matrix, u, v int) float64 {
	d, err := dist.At(u, v)
	if err != nil {
		return math.Inf(1)
	}
	return d
}

// TSPRoute scores a permutation of city indices by 1 / tour length
type TSPRoute struct {
	Dist matrix.Matrix
}

func (e TSPRoute) Value(in opt.Instance) float64 {
	return tourValue(e.Dist, in.Ints())
}

// TSPSort scores an arbitrary vector by the tour that visits cities in
// ascending order of their values
type TSPSort struct {
	Dist matrix.Matrix
}

func (e TSPSort) Value(in opt.Instance) float64 {
	return tourValue(e.Dist, Order(in))
}

// tourValue is 1 / tour length. An invalid tour scores 0.
func tourValue(dist matrix.Matrix, order []int) float64 {
	length, err := TourLength(dist, order)
	if err != nil {
		return 0
	}
	if length == 0 {
		return math.MaxFloat64
	}
	return 1 / length
}

// Order returns the indices of in sorted by value; ties keep index order
func Order(in opt.Instance) []int {
	order := make([]int, len(in))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return in[order[a]] < in[order[b]] })
	return order
}

	return 1 / length
}

// TSPCrossover builds a child tour from the first city of a, repeatedly moving
// to the nearer unvisited successor of the current city in either parent, or to
// a random unvisited city when both successors are taken
type TSPCrossover struct {
	Dist matrix.Matrix
}

func (c TSPCrossover) Mate(a, b opt.Instance, rng *rand.Rand) opt.Instance {
	n := len(a)
	if n == 0 {
		return opt.Instance{}
	}
	ra, rb := a.Ints(), b.Ints()
	nextA := successors(ra)
	nextB := successors(rb)

	visited := make([]bool, n)
	child := make([]int, 0, n)
	cur := ra[0]
	visited[cur] = true
	child = append(child, cur)

	for len(child) < n {
		na, nb := nextA[cur], nextB[cur]
		switch {
		case !visited[na] && !visited[nb]:
			if edge(c.Dist, cur, na) <= edge(c.Dist, cur, nb) {
				cur = na
			} else {
				cur = nb
			}
		case !visited[na]:
			cur = na
		case !visited[nb]:
			cur = nb
		default:
			cur = randomUnvisited(visited, n-len(child), rng)
		}
		visited[cur] = true
		child = append(child, cur)
	}
	return opt.FromInts(child)
}

func successors(route []int) []int {
	next := make([]int, len(route))
	for i, city := range route {
		next[city] = route[(i+1)%len(route)]
	}
	return next
}

func randomUnvisited(visited []bool, remaining int, rng *rand.Rand) int {
	k := rng.Intn(remaining)
	for city, seen := range visited {
		if seen {
			continue
		}
		if k == 0 {
			return city
		}
		k--
	}
	return -1
}
