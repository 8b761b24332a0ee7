package dist

import (
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/cwbudde/optbench/internal/opt"
)

// tieBreak separates otherwise equal edge weights so the spanning tree is unique
const tieBreak = 1e-15

// DependencyTree models a discrete vector as a tree of pairwise dependencies.
// Estimate links the variables by a maximum mutual information spanning tree
// and fits each child's distribution conditioned on its parent. All
// probabilities use an m-estimate: m is added to every count.
type DependencyTree struct {
	m      float64
	ranges []int

	fitted bool
	order  []int // breadth-first from the root
	parent []int // -1 for the root
	root   *opt.Categorical
	cond   [][]*opt.Categorical // cond[i][parentValue]
}

// NewDependencyTree creates an unfitted tree. Until Estimate is called Sample
// draws uniformly.
func NewDependencyTree(m float64, ranges []int) *DependencyTree {
	return &DependencyTree{
		m:      m,
		ranges: append([]int(nil), ranges...),
	}
}

// Estimate refits the tree to data
func (t *DependencyTree) Estimate(data []opt.Instance) {
	n := len(t.ranges)
	if n == 0 || len(data) == 0 {
		return
	}

	values := make([][]int, len(data))
	for s, in := range data {
		values[s] = in.Ints()
	}

	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(i))
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			mi := t.mutualInformation(values, i, j)
			w := -mi + tieBreak*float64(i*n+j)
			g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(i), simple.Node(j), w))
		}
	}

	tree := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	path.Prim(tree, g)

	t.order, t.parent = breadthFirst(tree, n)
	t.root = opt.NewCategorical(t.marginal(values, 0))
	t.cond = make([][]*opt.Categorical, n)
	for _, i := range t.order[1:] {
		p := t.parent[i]
		t.cond[i] = make([]*opt.Categorical, t.ranges[p])
		for b := 0; b < t.ranges[p]; b++ {
			t.cond[i][b] = opt.NewCategorical(t.conditional(values, i, p, b))
		}
	}
	t.fitted = true

	slog.Debug("Dependency tree estimated", "variables", n, "samples", len(data))
}

// Sample draws the root from its marginal and every other variable given its parent
func (t *DependencyTree) Sample(rng *rand.Rand) opt.Instance {
	out := make(opt.Instance, len(t.ranges))
	if !t.fitted {
		for i, r := range t.ranges {
			out[i] = float64(rng.Intn(r))
		}
		return out
	}

	for k, i := range t.order {
		if k == 0 {
			out[i] = float64(t.root.Sample(rng))
			continue
		}
		pv := out.Discrete(t.parent[i])
		out[i] = float64(t.cond[i][pv].Sample(rng))
	}
	return out
}

// Parent returns the parent of variable i, or -1 for the root or before Estimate
func (t *DependencyTree) Parent(i int) int {
	if !t.fitted {
		return -1
	}
	return t.parent[i]
}

func (t *DependencyTree) marginal(values [][]int, i int) []float64 {
	r := t.ranges[i]
	p := make([]float64, r)
	for a := range p {
		p[a] = t.m
	}
	for _, v := range values {
		p[v[i]]++
	}
	total := float64(len(values)) + t.m*float64(r)
	for a := range p {
		p[a] /= total
	}
	return p
}

// conditional returns P(x_i | x_p = b)
func (t *DependencyTree) conditional(values [][]int, i, p, b int) []float64 {
	r := t.ranges[i]
	q := make([]float64, r)
	for a := range q {
		q[a] = t.m
	}
	matched := 0
	for _, v := range values {
		if v[p] == b {
			q[v[i]]++
			matched++
		}
	}
	total := float64(matched) + t.m*float64(r)
	if total == 0 {
		return make([]float64, r)
	}
	for a := range q {
		q[a] /= total
	}
	return q
}

func (t *DependencyTree) mutualInformation(values [][]int, i, j int) float64 {
	ri, rj := t.ranges[i], t.ranges[j]
	joint := make([]float64, ri*rj)
	for k := range joint {
		joint[k] = t.m
	}
	for _, v := range values {
		joint[v[i]*rj+v[j]]++
	}
	total := float64(len(values)) + t.m*float64(ri*rj)
	if total == 0 {
		return 0
	}

	pi := make([]float64, ri)
	pj := make([]float64, rj)
	for a := 0; a < ri; a++ {
		for b := 0; b < rj; b++ {
			p := joint[a*rj+b] / total
			joint[a*rj+b] = p
			pi[a] += p
			pj[b] += p
		}
	}

	mi := 0.0
	for a := 0; a < ri; a++ {
		for b := 0; b < rj; b++ {
			p := joint[a*rj+b]
			if p > 0 {
				mi += p * math.Log(p/(pi[a]*pj[b]))
			}
		}
	}
	return mi
}

// breadthFirst orders the tree's nodes from node 0, visiting neighbors in
// ascending ID order
func breadthFirst(tree *simple.WeightedUndirectedGraph, n int) (order, parent []int) {
	parent = make([]int, n)
	for i := range parent {
		parent[i] = -1
	}
	visited := make([]bool, n)
	visited[0] = true
	order = append(order, 0)

	for k := 0; k < len(order); k++ {
		id := order[k]
		var next []int
		for it := tree.From(int64(id)); it.Next(); {
			next = append(next, int(it.Node().ID()))
		}
		sort.Ints(next)
		for _, c := range next {
			if !visited[c] {
				visited[c] = true
				parent[c] = id
				order = append(order, c)
			}
		}
	}
	return order, parent
}
