// Package model implements the three classifiers behind a triage prediction
// (a bounded-depth decision tree, a random forest of bounded-depth trees and
// a Bernoulli Naive Bayes model) and the Ensemble that trains and queries
// them together. Trained models are immutable and safe for concurrent use.
package model

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/feature"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/errors"
)

// Kind names a classifier variant.
type Kind string

const (
	KindTree   Kind = "decision_tree"
	KindForest Kind = "random_forest"
	KindBayes  Kind = "naive_bayes"
)

// Kinds lists the variants in the order the ensemble reports them.
var Kinds = []Kind{KindTree, KindForest, KindBayes}

// Classifier maps a feature vector to a class index in [0, M).
type Classifier interface {
	Kind() Kind
	Predict(v feature.Vector) int
}

// Space is the (feature layout, label space) pair a model is bound to.
type Space struct {
	Layout   string
	Features int
	Classes  int
}

// Prediction is one model's answer.
type Prediction struct {
	Model Kind
	Index int
}

// ModelStats describes how one classifier was trained and how it scored.
type ModelStats struct {
	Model         Kind          `json:"model"`
	TrainDuration time.Duration `json:"train_duration_ns"`
	Accuracy      float64       `json:"accuracy"`
	Evaluated     int           `json:"evaluated"`
}

// Ensemble owns the three trained classifiers.
type Ensemble struct {
	space  Space
	models []Classifier
	stats  []ModelStats
}

// Train fits all three classifiers on (x, y). It fails when the rows and
// labels disagree in count, when a row has the wrong width or when a label
// is outside [0, space.Classes).
func Train(ctx context.Context, x []feature.Vector, y []int, space Space, cfg config.ModelConfig) (*Ensemble, error) {
	if err := checkTrainingSet(x, y, space); err != nil {
		return nil, err
	}
	logger := slog.Default().With("component", "model-ensemble")

	rows := make([]int, len(y))
	for i := range rows {
		rows[i] = i
	}

	var (
		tree   *DecisionTree
		forest *RandomForest
		bayes  *BernoulliNB
		took   [3]time.Duration
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		tree = growTree(x, y, rows, space.Classes, TreeParams{
			MaxDepth:        cfg.TreeMaxDepth,
			MinSamplesSplit: cfg.MinSamplesSplit,
		}, nil)
		took[0] = time.Since(start)
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		f, err := trainForest(gctx, x, y, space.Classes, ForestParams{
			Trees: cfg.ForestTrees,
			Tree: TreeParams{
				MaxDepth:        cfg.ForestMaxDepth,
				MinSamplesSplit: cfg.MinSamplesSplit,
				MaxFeatures:     cfg.ForestMaxFeatures,
			},
			Seed:    cfg.Seed,
			Workers: cfg.TrainWorkers,
		})
		if err != nil {
			return fmt.Errorf("training random forest: %w", err)
		}
		forest = f
		took[1] = time.Since(start)
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		bayes = trainBayes(x, y, space.Classes, cfg.BayesAlpha)
		took[2] = time.Since(start)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e := &Ensemble{
		space:  space,
		models: []Classifier{tree, forest, bayes},
		stats:  make([]ModelStats, 3),
	}
	for i, m := range e.models {
		e.stats[i] = ModelStats{Model: m.Kind(), TrainDuration: took[i]}
		logger.Info("model trained", "model", m.Kind(), "duration", took[i], "rows", len(y))
	}
	return e, nil
}

func checkTrainingSet(x []feature.Vector, y []int, space Space) error {
	if len(x) != len(y) {
		return fmt.Errorf("%w: %d feature rows but %d labels", apperrors.ErrCorpus, len(x), len(y))
	}
	if len(y) == 0 {
		return fmt.Errorf("%w: training set is empty", apperrors.ErrCorpus)
	}
	if space.Classes < 1 || space.Features < 1 {
		return fmt.Errorf("%w: invalid model space %d features x %d classes",
			apperrors.ErrInvalidInput, space.Features, space.Classes)
	}
	for i, row := range x {
		if len(row) != space.Features {
			return fmt.Errorf("%w: row %d has %d features, want %d",
				apperrors.ErrLayoutMismatch, i, len(row), space.Features)
		}
	}
	for i, label := range y {
		if label < 0 || label >= space.Classes {
			return fmt.Errorf("%w: row %d has label %d outside [0, %d)",
				apperrors.ErrCorpus, i, label, space.Classes)
		}
	}
	return nil
}

// Space returns the feature layout and label space the ensemble was trained
// on.
func (e *Ensemble) Space() Space { return e.space }

// Layout returns the feature layout fingerprint.
func (e *Ensemble) Layout() string { return e.space.Layout }

// Models returns the classifiers in reporting order.
func (e *Ensemble) Models() []Classifier {
	return append([]Classifier(nil), e.models...)
}

// Predict queries every classifier with v and returns one Prediction per
// model, in decision tree, random forest, Naive Bayes order.
func (e *Ensemble) Predict(v feature.Vector) ([]Prediction, error) {
	if len(v) != e.space.Features {
		return nil, fmt.Errorf("%w: vector has %d features, want %d",
			apperrors.ErrLayoutMismatch, len(v), e.space.Features)
	}
	out := make([]Prediction, len(e.models))
	for i, m := range e.models {
		idx := m.Predict(v)
		if idx < 0 || idx >= e.space.Classes {
			return nil, fmt.Errorf("%w: %s predicted %d outside [0, %d)",
				apperrors.ErrInvariant, m.Kind(), idx, e.space.Classes)
		}
		out[i] = Prediction{Model: m.Kind(), Index: idx}
	}
	return out, nil
}

// Evaluate scores every classifier on a held-out set and records the
// accuracies. It must be called before the ensemble is shared.
func (e *Ensemble) Evaluate(x []feature.Vector, y []int) ([]ModelStats, error) {
	if err := checkTrainingSet(x, y, e.space); err != nil {
		return nil, fmt.Errorf("evaluation set: %w", err)
	}
	for i, m := range e.models {
		correct := 0
		for r, v := range x {
			if m.Predict(v) == y[r] {
				correct++
			}
		}
		e.stats[i].Accuracy = float64(correct) / float64(len(y))
		e.stats[i].Evaluated = len(y)
	}
	return e.Stats(), nil
}

// Stats returns per-model training and evaluation statistics.
func (e *Ensemble) Stats() []ModelStats {
	return append([]ModelStats(nil), e.stats...)
}
