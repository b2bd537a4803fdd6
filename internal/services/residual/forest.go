package residual

import (
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ForestParams configure a bagged regression forest.
type ForestParams struct {
	Trees    int
	MaxDepth int
	MinSplit int
	MinLeaf  int
	Seed     int64
}

// DefaultForestParams mirrors the production settings: 100 trees, depth 10.
func DefaultForestParams() ForestParams {
	return ForestParams{Trees: 100, MaxDepth: 10, MinSplit: 2, MinLeaf: 1, Seed: 42}
}

func (p ForestParams) tree() TreeParams {
	return TreeParams{MaxDepth: p.MaxDepth, MinSplit: p.MinSplit, MinLeaf: p.MinLeaf}
}

// Forest averages the predictions of bootstrap-trained trees.
type Forest struct {
	Trees      []Tree
	Importance []float64
}

// FitForest grows p.Trees trees in parallel. Tree seeds are drawn up front from
// p.Seed so the result does not depend on scheduling.
func FitForest(x [][]float64, y []float64, p ForestParams) *Forest {
	if p.Trees < 1 {
		p.Trees = 1
	}
	rng := rand.New(rand.NewSource(p.Seed))
	seeds := make([]int64, p.Trees)
	for i := range seeds {
		seeds[i] = rng.Int63()
	}

	trees := make([]Tree, p.Trees)
	imps := make([][]float64, p.Trees)
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range trees {
		i := i
		g.Go(func() error {
			idx := bootstrap(rand.New(rand.NewSource(seeds[i])), len(y))
			trees[i], imps[i] = growTree(x, y, idx, p.tree())
			return nil
		})
	}
	_ = g.Wait()

	f := &Forest{Trees: trees}
	if len(x) > 0 {
		f.Importance = make([]float64, len(x[0]))
	}
	for _, imp := range imps {
		total := 0.0
		for _, v := range imp {
			total += v
		}
		if total == 0 {
			continue
		}
		for j, v := range imp {
			f.Importance[j] += v / total
		}
	}
	total := 0.0
	for _, v := range f.Importance {
		total += v
	}
	if total > 0 {
		for j := range f.Importance {
			f.Importance[j] /= total
		}
	}
	return f
}

// Predict averages every tree's prediction for x.
func (f *Forest) Predict(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	sum := 0.0
	for i := range f.Trees {
		sum += f.Trees[i].Predict(x)
	}
	return sum / float64(len(f.Trees))
}

// PredictAll predicts every row.
func (f *Forest) PredictAll(rows [][]float64) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = f.Predict(r)
	}
	return out
}
