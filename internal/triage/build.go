package triage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/knowledge"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/model"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/postgres"
)

// Deps are the optional infrastructure handles Build may use.
type Deps struct {
	// DB backs the postgres knowledge source.
	DB      *postgres.Client
	Options Options
}

// Build loads and cleans both corpora, trains the ensemble, scores it on
// the held-out corpus, loads the knowledge base and returns a ready Engine.
// Any failure here means the service must not start.
func Build(ctx context.Context, cfg *config.Config, deps Deps) (*Engine, error) {
	vocab := catalog.DefaultVocabulary()
	taxonomy := catalog.DefaultTaxonomy()

	cleaner := corpus.NewCleaner(vocab, taxonomy)
	train, trainReport, err := cleaner.Load(cfg.Corpus.TrainPath, corpusOptions(cfg.Corpus, true))
	if err != nil {
		return nil, fmt.Errorf("loading training corpus: %w", err)
	}
	test, testReport, err := cleaner.Load(cfg.Corpus.TestPath, corpusOptions(cfg.Corpus, false))
	if err != nil {
		return nil, fmt.Errorf("loading test corpus: %w", err)
	}

	return BuildFromDatasets(ctx, cfg, deps, train, test, trainReport, testReport)
}

// BuildFromDatasets is Build for corpora that are already cleaned.
func BuildFromDatasets(
	ctx context.Context,
	cfg *config.Config,
	deps Deps,
	train, test *corpus.Dataset,
	trainReport, testReport corpus.Report,
) (*Engine, error) {
	logger := slog.Default().With("component", "triage-build")
	vocab := catalog.DefaultVocabulary()
	taxonomy := catalog.DefaultTaxonomy()

	space := model.Space{Layout: vocab.Fingerprint(), Features: vocab.Len(), Classes: taxonomy.Len()}
	if train.Layout != space.Layout {
		return nil, fmt.Errorf("training corpus layout %s does not match vocabulary %s", train.Layout, space.Layout)
	}
	ensemble, err := model.Train(ctx, train.X, train.Y, space, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("training ensemble: %w", err)
	}
	if test != nil && test.Len() > 0 {
		stats, err := ensemble.Evaluate(test.X, test.Y)
		if err != nil {
			return nil, fmt.Errorf("evaluating ensemble: %w", err)
		}
		for _, s := range stats {
			logger.Info("held-out accuracy", "model", s.Model, "accuracy", s.Accuracy, "rows", s.Evaluated)
		}
	}

	kb, err := knowledge.Load(ctx, cfg.Knowledge, deps.DB)
	if err != nil {
		return nil, fmt.Errorf("loading knowledge base: %w", err)
	}
	knowledge.Check(kb, taxonomy)

	urgency, err := NewUrgencyPolicy(cfg.Triage)
	if err != nil {
		return nil, err
	}
	agg := NewAggregator(taxonomy, kb, urgency, cfg.Triage.DedupeCandidates)

	engine, err := NewEngine(vocab, taxonomy, ensemble, agg, cfg.Triage.Disclaimer,
		ModelInfo{Train: trainReport, Test: testReport}, deps.Options)
	if err != nil {
		return nil, err
	}
	publishStartupMetrics(engine, deps.Options)
	return engine, nil
}

func corpusOptions(cfg config.CorpusConfig, training bool) corpus.Options {
	opts := corpus.Options{
		LabelColumn:    cfg.LabelColumn,
		MissingMarkers: cfg.MissingMarkers,
		Seed:           cfg.Seed,
	}
	if training {
		opts.SampleThreshold = cfg.TrainSampleThreshold
		opts.SampleFraction = cfg.TrainSampleFraction
	} else {
		opts.SampleThreshold = cfg.TestSampleThreshold
		opts.SampleFraction = cfg.TestSampleFraction
	}
	return opts
}

func publishStartupMetrics(e *Engine, opts Options) {
	m := opts.Metrics
	if m == nil {
		return
	}
	info := e.Info()
	for _, s := range info.Models {
		m.ModelAccuracy.WithLabelValues(string(s.Model)).Set(s.Accuracy)
		m.ModelTrainSeconds.WithLabelValues(string(s.Model)).Set(s.TrainDuration.Seconds())
	}
	for source, rep := range map[string]corpus.Report{"train": info.Train, "test": info.Test} {
		m.CorpusRows.WithLabelValues(source, "read").Set(float64(rep.Rows))
		m.CorpusRows.WithLabelValues(source, "kept").Set(float64(rep.Kept))
		m.CorpusRows.WithLabelValues(source, "sampled").Set(float64(rep.Sampled))
	}
}
