package residual

import (
	"math/rand"
	"sort"
)

// TreeParams bound the growth of one regression tree. MaxDepth 0 means unbounded.
type TreeParams struct {
	MaxDepth int
	MinSplit int
	MinLeaf  int
}

// Node is one tree node. Leaves have Feature -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
}

// Tree is a CART regression tree stored as a flat node slice rooted at 0.
type Tree struct {
	Nodes []Node
}

// Predict walks x down to a leaf.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type treeBuilder struct {
	x          [][]float64
	y          []float64
	params     TreeParams
	nodes      []Node
	importance []float64
	order      []int
}

// growTree fits a tree on the rows listed in idx, which may repeat (bootstrap).
// importance receives the weighted impurity decrease of every split.
func growTree(x [][]float64, y []float64, idx []int, p TreeParams) (Tree, []float64) {
	nf := 0
	if len(x) > 0 {
		nf = len(x[0])
	}
	b := &treeBuilder{x: x, y: y, params: p, importance: make([]float64, nf), order: make([]int, len(idx))}
	b.build(append([]int(nil), idx...), 0)
	return Tree{Nodes: b.nodes}, b.importance
}

func (b *treeBuilder) build(idx []int, depth int) int {
	self := len(b.nodes)
	sum, sq := 0.0, 0.0
	for _, i := range idx {
		sum += b.y[i]
		sq += b.y[i] * b.y[i]
	}
	n := float64(len(idx))
	mean := sum / n
	b.nodes = append(b.nodes, Node{Feature: -1, Value: mean})

	if len(idx) < b.params.MinSplit || len(idx) < 2*b.params.MinLeaf {
		return self
	}
	if b.params.MaxDepth > 0 && depth >= b.params.MaxDepth {
		return self
	}
	sse := sq - sum*sum/n
	if sse <= 1e-12 {
		return self
	}

	feature, threshold, gain := b.bestSplit(idx, sum, sq)
	if feature < 0 {
		return self
	}
	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.importance[feature] += gain

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[self] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r, Value: mean}
	return self
}

// bestSplit scans every feature for the threshold with the largest SSE
// reduction that leaves at least MinLeaf rows on each side.
func (b *treeBuilder) bestSplit(idx []int, sum, sq float64) (int, float64, float64) {
	n := len(idx)
	parentSSE := sq - sum*sum/float64(n)
	bestFeature, bestThreshold, bestGain := -1, 0.0, 0.0
	order := b.order[:n]
	minLeaf := b.params.MinLeaf
	if minLeaf < 1 {
		minLeaf = 1
	}
	for f := range b.importance {
		copy(order, idx)
		sort.Slice(order, func(a, c int) bool { return b.x[order[a]][f] < b.x[order[c]][f] })
		ls, lq := 0.0, 0.0
		for k := 0; k < n-1; k++ {
			v := b.y[order[k]]
			ls += v
			lq += v * v
			left := k + 1
			if left < minLeaf || n-left < minLeaf {
				continue
			}
			xv, xn := b.x[order[k]][f], b.x[order[k+1]][f]
			if xv == xn {
				continue
			}
			rs, rq := sum-ls, sq-lq
			sse := (lq - ls*ls/float64(left)) + (rq - rs*rs/float64(n-left))
			if gain := parentSSE - sse; gain > bestGain+1e-12 {
				bestFeature, bestThreshold, bestGain = f, (xv+xn)/2, gain
			}
		}
	}
	return bestFeature, bestThreshold, bestGain
}

// bootstrap draws n row indices with replacement.
func bootstrap(rng *rand.Rand, n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.Intn(n)
	}
	return idx
}
