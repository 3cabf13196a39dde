package model

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/feature"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/testutil"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/errors"
)

func testSpace() Space {
	vocab := catalog.DefaultVocabulary()
	return Space{
		Layout:   vocab.Fingerprint(),
		Features: vocab.Len(),
		Classes:  catalog.DefaultTaxonomy().Len(),
	}
}

func testConfig() config.ModelConfig {
	cfg := config.Default().Model
	cfg.ForestTrees = 12
	return cfg
}

func trainTestEnsemble(t testing.TB) *Ensemble {
	t.Helper()
	x, y := testutil.Dataset(4)
	e, err := Train(context.Background(), x, y, testSpace(), testConfig())
	require.NoError(t, err)
	return e
}

// ---------------------------------------------------------------------------
// Decision tree
// ---------------------------------------------------------------------------

func TestTreeSeparatesTwoClasses(t *testing.T) {
	x := []feature.Vector{{1, 0}, {1, 0}, {0, 1}, {0, 1}}
	y := []int{0, 0, 1, 1}
	tree := growTree(x, y, []int{0, 1, 2, 3}, 2, TreeParams{MaxDepth: 3, MinSamplesSplit: 2}, nil)

	assert.Equal(t, 0, tree.Predict(feature.Vector{1, 0}))
	assert.Equal(t, 1, tree.Predict(feature.Vector{0, 1}))
	assert.Equal(t, 1, tree.Depth())
	assert.Equal(t, 3, tree.Nodes())
}

func TestTreeTieBreaksToLowestFeatureAndClass(t *testing.T) {
	// Both features separate the classes equally well.
	x := []feature.Vector{{1, 1}, {0, 0}}
	y := []int{1, 0}
	tree := growTree(x, y, []int{0, 1}, 2, TreeParams{MaxDepth: 3, MinSamplesSplit: 2}, nil)
	assert.Equal(t, 0, tree.nodes[0].Feature)

	stump := growTree(x, y, []int{0, 1}, 2, TreeParams{MaxDepth: 0, MinSamplesSplit: 2}, nil)
	assert.Equal(t, 0, stump.Predict(feature.Vector{1, 1}))
	assert.Equal(t, []float64{0.5, 0.5}, stump.Distribution(feature.Vector{1, 1}))
}

func TestTreeRespectsMaxDepth(t *testing.T) {
	x, y := testutil.Dataset(2)
	rows := make([]int, len(y))
	for i := range rows {
		rows[i] = i
	}
	tree := growTree(x, y, rows, 41, TreeParams{MaxDepth: 5, MinSamplesSplit: 2}, nil)
	assert.LessOrEqual(t, tree.Depth(), 5)
	assert.LessOrEqual(t, tree.Nodes(), 63)
}

func TestTreeLooksPastSampledFeaturesForASplit(t *testing.T) {
	// Only the last of eight features varies, so a single sampled feature
	// is almost always constant.
	x := []feature.Vector{
		{1, 1, 0, 0, 1, 0, 1, 0},
		{1, 1, 0, 0, 1, 0, 1, 0},
		{1, 1, 0, 0, 1, 0, 1, 1},
		{1, 1, 0, 0, 1, 0, 1, 1},
	}
	y := []int{0, 0, 1, 1}
	for seed := range uint64(10) {
		rng := rand.New(rand.NewPCG(seed, 0))
		tree := growTree(x, y, []int{0, 1, 2, 3}, 2, TreeParams{MaxDepth: 3, MinSamplesSplit: 2, MaxFeatures: 1}, rng)
		assert.Equal(t, 3, tree.Nodes(), "seed %d", seed)
		assert.Equal(t, 0, tree.Predict(x[0]))
		assert.Equal(t, 1, tree.Predict(x[2]))
	}
}

func TestTreeDoesNotSplitIdenticalRows(t *testing.T) {
	x := []feature.Vector{{1, 0}, {1, 0}, {1, 0}}
	y := []int{2, 1, 1}
	tree := growTree(x, y, []int{0, 1, 2}, 3, TreeParams{MaxDepth: 5, MinSamplesSplit: 2}, nil)
	assert.Equal(t, 1, tree.Nodes())
	assert.Equal(t, 1, tree.Predict(feature.Vector{0, 0}))
}

// ---------------------------------------------------------------------------
// Naive Bayes
// ---------------------------------------------------------------------------

func TestBayesPrefersMatchingSignature(t *testing.T) {
	x, y := testutil.Dataset(4)
	nb := trainBayes(x, y, 41, 1.0)
	enc := feature.NewEncoder(catalog.DefaultVocabulary())

	for _, d := range []int{0, 7, 40} {
		assert.Equal(t, d, nb.Predict(enc.Encode(testutil.Signature(d))), "disease %d", d)
	}
}

func TestBayesIgnoresUnseenClasses(t *testing.T) {
	x := []feature.Vector{{1, 0}, {0, 1}}
	y := []int{1, 2}
	nb := trainBayes(x, y, 4, 1.0)
	for _, v := range []feature.Vector{{0, 0}, {1, 1}, {1, 0}, {0, 1}} {
		got := nb.Predict(v)
		assert.Contains(t, []int{1, 2}, got)
	}
}

// ---------------------------------------------------------------------------
// Ensemble
// ---------------------------------------------------------------------------

func TestTrainRejectsMismatchedRows(t *testing.T) {
	x, y := testutil.Dataset(1)
	_, err := Train(context.Background(), x, y[:len(y)-1], testSpace(), testConfig())
	assert.ErrorIs(t, err, apperrors.ErrCorpus)
}

func TestTrainRejectsLabelOutOfRange(t *testing.T) {
	x, y := testutil.Dataset(1)
	y[3] = 41
	_, err := Train(context.Background(), x, y, testSpace(), testConfig())
	assert.ErrorIs(t, err, apperrors.ErrCorpus)

	y[3] = -1
	_, err = Train(context.Background(), x, y, testSpace(), testConfig())
	assert.ErrorIs(t, err, apperrors.ErrCorpus)
}

func TestTrainRejectsEmpty(t *testing.T) {
	_, err := Train(context.Background(), nil, nil, testSpace(), testConfig())
	assert.ErrorIs(t, err, apperrors.ErrCorpus)
}

func TestTrainRejectsWrongWidth(t *testing.T) {
	x := []feature.Vector{{1, 0}}
	_, err := Train(context.Background(), x, []int{0}, testSpace(), testConfig())
	assert.ErrorIs(t, err, apperrors.ErrLayoutMismatch)
}

func TestTrainHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	x, y := testutil.Dataset(1)
	_, err := Train(ctx, x, y, testSpace(), testConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPredictionsStayInRange(t *testing.T) {
	e := trainTestEnsemble(t)
	enc := feature.NewEncoder(catalog.DefaultVocabulary())
	vocab := catalog.DefaultVocabulary()

	inputs := [][]string{nil, {"itching", "skin_rash"}, vocab.Names()}
	for _, name := range vocab.Names() {
		inputs = append(inputs, []string{name})
	}
	for _, in := range inputs {
		preds, err := e.Predict(enc.Encode(in))
		require.NoError(t, err)
		require.Len(t, preds, 3)
		for i, p := range preds {
			assert.Equal(t, Kinds[i], p.Model)
			assert.GreaterOrEqual(t, p.Index, 0)
			assert.Less(t, p.Index, 41)
		}
	}
}

func TestTrainingIsDeterministic(t *testing.T) {
	a := trainTestEnsemble(t)
	b := trainTestEnsemble(t)
	enc := feature.NewEncoder(catalog.DefaultVocabulary())

	for _, in := range [][]string{
		{"itching", "skin_rash"},
		{},
		{"cough", "high_fever", "chest_pain"},
		{"vomiting", "fatigue"},
	} {
		pa, err := a.Predict(enc.Encode(in))
		require.NoError(t, err)
		pb, err := b.Predict(enc.Encode(in))
		require.NoError(t, err)
		assert.Equal(t, pa, pb, "input %v", in)
	}
}

func TestForestIndependentOfWorkerCount(t *testing.T) {
	x, y := testutil.Dataset(3)
	params := ForestParams{
		Trees: 8,
		Tree:  TreeParams{MaxDepth: 5, MinSamplesSplit: 2},
		Seed:  42,
	}
	params.Workers = 1
	serial, err := trainForest(context.Background(), x, y, 41, params)
	require.NoError(t, err)
	params.Workers = 4
	parallel, err := trainForest(context.Background(), x, y, 41, params)
	require.NoError(t, err)

	assert.Equal(t, 8, serial.Size())
	for i := range serial.trees {
		assert.Equal(t, serial.trees[i].nodes, parallel.trees[i].nodes)
	}
}

func TestPredictRejectsWrongWidth(t *testing.T) {
	e := trainTestEnsemble(t)
	_, err := e.Predict(feature.Vector{1})
	assert.ErrorIs(t, err, apperrors.ErrLayoutMismatch)
}

func TestEvaluateRecordsAccuracy(t *testing.T) {
	e := trainTestEnsemble(t)
	x, y := testutil.Dataset(1)

	stats, err := e.Evaluate(x, y)
	require.NoError(t, err)
	require.Len(t, stats, 3)
	for i, s := range stats {
		assert.Equal(t, Kinds[i], s.Model)
		assert.Equal(t, 41, s.Evaluated)
		assert.GreaterOrEqual(t, s.Accuracy, 0.0)
		assert.LessOrEqual(t, s.Accuracy, 1.0)
	}
	assert.Equal(t, 1.0, stats[2].Accuracy)
	assert.Equal(t, testSpace().Layout, e.Layout())
}

func BenchmarkEnsemblePredict(b *testing.B) {
	e := trainTestEnsemble(b)
	v := feature.NewEncoder(catalog.DefaultVocabulary()).Encode([]string{"itching", "skin_rash"})
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Predict(v)
	}
}

// BenchmarkTrain measures fitting all three classifiers for growing corpora
// and forest sizes.
func BenchmarkTrain(b *testing.B) {
	for _, rows := range []int{4, 16, 64} {
		for _, trees := range []int{10, 50} {
			b.Run(fmt.Sprintf("rows_%d/trees_%d", rows, trees), func(b *testing.B) {
				x, y := testutil.Dataset(rows)
				cfg := config.Default().Model
				cfg.ForestTrees = trees
				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if _, err := Train(context.Background(), x, y, testSpace(), cfg); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}
