package model

import (
	"math/rand/v2"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/feature"
)

// minGain is the smallest impurity decrease accepted for a split.
const minGain = 1e-12

// TreeNode is one node of a flattened binary tree. Internal nodes send a
// vector left when its Feature is 0 and right when it is 1. Leaves carry the
// class distribution of the training rows that reached them.
type TreeNode struct {
	Feature int       `json:"feature"`
	Left    int       `json:"left"`
	Right   int       `json:"right"`
	Class   int       `json:"class"`
	Dist    []float64 `json:"dist,omitempty"`
	Leaf    bool      `json:"leaf"`
}

// TreeParams bounds tree growth. MaxFeatures of 0 considers every feature
// at each split; a positive value samples that many per split from rng.
type TreeParams struct {
	MaxDepth        int
	MinSamplesSplit int
	MaxFeatures     int
}

// DecisionTree is a CART classifier over binary features using gini
// impurity. It is immutable once trained.
type DecisionTree struct {
	nodes    []TreeNode
	classes  int
	features int
}

// Kind implements Classifier.
func (t *DecisionTree) Kind() Kind { return KindTree }

// Depth returns the length of the longest root-to-leaf path.
func (t *DecisionTree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.nodes[i]
		if n.Leaf {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

// Nodes returns the number of nodes.
func (t *DecisionTree) Nodes() int { return len(t.nodes) }

// Predict returns the majority class of the leaf v lands in.
func (t *DecisionTree) Predict(v feature.Vector) int {
	return t.nodes[t.leaf(v)].Class
}

// Distribution returns the class distribution of the leaf v lands in. The
// slice is shared and must not be modified.
func (t *DecisionTree) Distribution(v feature.Vector) []float64 {
	return t.nodes[t.leaf(v)].Dist
}

func (t *DecisionTree) leaf(v feature.Vector) int {
	i := 0
	for !t.nodes[i].Leaf {
		n := t.nodes[i]
		if v[n.Feature] != 0 {
			i = n.Right
		} else {
			i = n.Left
		}
	}
	return i
}

// growTree fits a tree on the rows of x listed in rows. rows may repeat,
// as in a bootstrap sample. rng is only consulted when MaxFeatures > 0.
func growTree(x []feature.Vector, y []int, rows []int, classes int, p TreeParams, rng *rand.Rand) *DecisionTree {
	b := &treeBuilder{
		x:        x,
		y:        y,
		classes:  classes,
		features: len(x[rows[0]]),
		params:   p,
		rng:      rng,
	}
	b.build(rows, 0)
	return &DecisionTree{nodes: b.nodes, classes: classes, features: b.features}
}

type treeBuilder struct {
	x        []feature.Vector
	y        []int
	classes  int
	features int
	params   TreeParams
	rng      *rand.Rand
	nodes    []TreeNode
}

func (b *treeBuilder) build(rows []int, depth int) int {
	counts := make([]float64, b.classes)
	for _, r := range rows {
		counts[b.y[r]]++
	}

	id := len(b.nodes)
	b.nodes = append(b.nodes, TreeNode{Feature: -1, Left: -1, Right: -1, Class: argmax(counts)})

	if depth >= b.params.MaxDepth || len(rows) < b.params.MinSamplesSplit || isPure(counts) {
		b.makeLeaf(id, counts, len(rows))
		return id
	}

	f, ok := b.bestSplit(rows, counts)
	if !ok {
		b.makeLeaf(id, counts, len(rows))
		return id
	}

	var left, right []int
	for _, r := range rows {
		if b.x[r][f] != 0 {
			right = append(right, r)
		} else {
			left = append(left, r)
		}
	}

	l := b.build(left, depth+1)
	rt := b.build(right, depth+1)
	b.nodes[id].Feature = f
	b.nodes[id].Left = l
	b.nodes[id].Right = rt
	return id
}

func (b *treeBuilder) makeLeaf(id int, counts []float64, n int) {
	dist := make([]float64, len(counts))
	for c, k := range counts {
		dist[c] = k / float64(n)
	}
	b.nodes[id].Leaf = true
	b.nodes[id].Dist = dist
}

// bestSplit returns the feature whose split most reduces weighted gini
// impurity. Ties go to the lowest feature index.
// bestSplit examines the MaxFeatures candidates first, lowest index first.
// When none of them separates the rows it keeps drawing the remaining
// features in random order until one does, so a node only becomes a leaf
// early if no feature at all can split it.
func (b *treeBuilder) bestSplit(rows []int, counts []float64) (int, bool) {
	n := float64(len(rows))
	parent := gini(counts, n)

	bestFeature := -1
	bestImpurity := parent - minGain
	rightCounts := make([]float64, b.classes)
	leftCounts := make([]float64, b.classes)

	order, k := b.candidates()
	separable := false
	for i, f := range order {
		if i >= k && separable {
			break
		}
		clear(rightCounts)
		var nRight float64
		for _, r := range rows {
			if b.x[r][f] != 0 {
				rightCounts[b.y[r]]++
				nRight++
			}
		}
		nLeft := n - nRight
		if nRight == 0 || nLeft == 0 {
			continue
		}
		separable = true
		for c := range leftCounts {
			leftCounts[c] = counts[c] - rightCounts[c]
		}
		impurity := (nLeft*gini(leftCounts, nLeft) + nRight*gini(rightCounts, nRight)) / n
		if impurity < bestImpurity {
			bestImpurity = impurity
			bestFeature = f
		}
	}
	return bestFeature, bestFeature >= 0
}

// candidates returns every feature in examination order and how many of
// them form the sampled subset. The subset comes first, sorted.
func (b *treeBuilder) candidates() ([]int, int) {
	k := b.params.MaxFeatures
	if k <= 0 || k >= b.features || b.rng == nil {
		all := make([]int, b.features)
		for i := range all {
			all[i] = i
		}
		return all, b.features
	}
	order := b.rng.Perm(b.features)
	sort.Ints(order[:k])
	return order, k
}

func gini(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := c / n
		sum += p * p
	}
	return 1 - sum
}

func isPure(counts []float64) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

// argmax returns the index of the largest value, preferring the lowest index
// on ties.
func argmax(xs []float64) int {
	best := 0
	for i, x := range xs {
		if x > xs[best] {
			best = i
		}
	}
	return best
}
