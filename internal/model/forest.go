package model

import (
	"context"
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/feature"
)

// ForestParams configures a RandomForest. MaxFeatures of 0 means
// floor(sqrt(features)); Workers of 0 means GOMAXPROCS.
type ForestParams struct {
	Trees   int
	Tree    TreeParams
	Seed    uint64
	Workers int
}

// RandomForest averages the leaf distributions of bootstrap-trained trees.
type RandomForest struct {
	trees   []*DecisionTree
	classes int
}

// Kind implements Classifier.
func (f *RandomForest) Kind() Kind { return KindForest }

// Size returns the number of trees.
func (f *RandomForest) Size() int { return len(f.trees) }

// Predict returns the class with the highest mean probability across trees.
func (f *RandomForest) Predict(v feature.Vector) int {
	sum := make([]float64, f.classes)
	for _, t := range f.trees {
		for c, p := range t.Distribution(v) {
			sum[c] += p
		}
	}
	return argmax(sum)
}

// trainForest grows p.Trees trees in parallel. Tree i draws its bootstrap
// sample and split candidates from PCG stream (p.Seed, i), so the result
// does not depend on scheduling.
func trainForest(ctx context.Context, x []feature.Vector, y []int, classes int, p ForestParams) (*RandomForest, error) {
	n := len(y)
	features := len(x[0])
	tp := p.Tree
	if tp.MaxFeatures == 0 {
		tp.MaxFeatures = max(1, int(math.Sqrt(float64(features))))
	}
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]*DecisionTree, p.Trees)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(p.Seed, uint64(i)))
			rows := make([]int, n)
			for j := range rows {
				rows[j] = rng.IntN(n)
			}
			trees[i] = growTree(x, y, rows, classes, tp, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &RandomForest{trees: trees, classes: classes}, nil
}
