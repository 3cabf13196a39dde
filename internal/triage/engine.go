package triage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/feature"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/model"
	apperrors "github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/tracing"
)

// Cache memoises candidate lists by feature layout and recognised symptom
// set. A cache that cannot reach its backend must fall back to compute.
type Cache interface {
	GetOrCompute(ctx context.Context, layout string, recognized []string,
		compute func() ([]Candidate, error)) ([]Candidate, bool, error)
}

// Options carries the optional collaborators of an Engine.
type Options struct {
	Cache    Cache
	Recorder analytics.Recorder
	Metrics  *metrics.Metrics
	Tracing  bool
}

// ModelInfo describes the trained ensemble for operators.
type ModelInfo struct {
	Layout   string             `json:"layout"`
	Features int                `json:"features"`
	Classes  int                `json:"classes"`
	Models   []model.ModelStats `json:"models"`
	Train    corpus.Report      `json:"train"`
	Test     corpus.Report      `json:"test"`
}

// Engine is the immutable request context shared by every prediction.
type Engine struct {
	vocab      *catalog.Vocabulary
	taxonomy   *catalog.Taxonomy
	encoder    *feature.Encoder
	ensemble   *model.Ensemble
	aggregator *Aggregator
	disclaimer string
	info       ModelInfo
	opts       Options
	logger     *slog.Logger
}

// NewEngine wires the components together. It refuses an encoder whose
// layout differs from the one the ensemble was trained on.
func NewEngine(
	vocab *catalog.Vocabulary,
	taxonomy *catalog.Taxonomy,
	ensemble *model.Ensemble,
	aggregator *Aggregator,
	disclaimer string,
	info ModelInfo,
	opts Options,
) (*Engine, error) {
	encoder := feature.NewEncoder(vocab)
	if encoder.Layout() != ensemble.Layout() {
		return nil, fmt.Errorf("%w: encoder %s, ensemble %s",
			apperrors.ErrLayoutMismatch, encoder.Layout(), ensemble.Layout())
	}
	space := ensemble.Space()
	if space.Features != encoder.Len() || space.Classes != taxonomy.Len() {
		return nil, fmt.Errorf("%w: ensemble is %dx%d, catalog is %dx%d",
			apperrors.ErrLayoutMismatch, space.Features, space.Classes, encoder.Len(), taxonomy.Len())
	}
	if disclaimer == "" {
		disclaimer = DefaultDisclaimer
	}
	info.Layout = space.Layout
	info.Features = space.Features
	info.Classes = space.Classes
	info.Models = ensemble.Stats()
	return &Engine{
		vocab:      vocab,
		taxonomy:   taxonomy,
		encoder:    encoder,
		ensemble:   ensemble,
		aggregator: aggregator,
		disclaimer: disclaimer,
		info:       info,
		opts:       opts,
		logger:     slog.Default().With("component", "triage-engine"),
	}, nil
}

// Vocabulary returns the symptom vocabulary.
func (e *Engine) Vocabulary() *catalog.Vocabulary { return e.vocab }

// Taxonomy returns the disease taxonomy.
func (e *Engine) Taxonomy() *catalog.Taxonomy { return e.taxonomy }

// Info returns the model description.
func (e *Engine) Info() ModelInfo { return e.info }

// Diagnose predicts candidate conditions for symptoms. An empty list is
// rejected with ErrNoSymptoms before any model runs; names outside the
// vocabulary are ignored, so a list of only unknown names still yields one
// candidate per model.
func (e *Engine) Diagnose(ctx context.Context, symptoms []string) (*Diagnosis, error) {
	start := time.Now()
	log := logger.FromContext(ctx).With("component", "triage-engine")

	if len(symptoms) == 0 {
		e.countOutcome("rejected")
		log.Warn("prediction rejected", "reason", apperrors.ErrNoSymptoms)
		return nil, apperrors.ErrNoSymptoms
	}

	var span *tracing.Span
	if e.opts.Tracing {
		ctx, span = tracing.StartSpan(ctx, "triage.diagnose", logger.RequestID(ctx))
		defer func() {
			span.End()
			span.Log()
		}()
	}

	_, resolveSpan := tracing.StartChildSpan(ctx, "encode")
	res := e.encoder.Resolve(symptoms)
	resolveSpan.SetAttr("recognized", len(res.Recognized))
	resolveSpan.SetAttr("unknown", len(res.Unknown))
	resolveSpan.End()

	compute := func() ([]Candidate, error) {
		_, predictSpan := tracing.StartChildSpan(ctx, "predict")
		defer predictSpan.End()
		preds, err := e.ensemble.Predict(e.encoder.Encode(res.Recognized))
		if err != nil {
			return nil, err
		}
		return e.aggregator.Aggregate(preds)
	}

	var (
		candidates []Candidate
		hit        bool
		err        error
	)
	if e.opts.Cache != nil {
		candidates, hit, err = e.opts.Cache.GetOrCompute(ctx, e.encoder.Layout(), res.Recognized, compute)
	} else {
		candidates, err = compute()
	}
	if err != nil {
		e.countOutcome("error")
		log.Error("prediction failed", "error", err)
		return nil, fmt.Errorf("diagnosing: %w", err)
	}

	d := &Diagnosis{
		Recognized: nonNil(res.Recognized),
		Unknown:    res.Unknown,
		Candidates: candidates,
		CacheHit:   hit,
		Disclaimer: e.disclaimer,
	}
	v := votes(candidates)
	elapsed := time.Since(start)
	event := analytics.NewPredictionEvent(logger.RequestID(ctx), d.Recognized, d.Unknown, v, hit, elapsed)
	d.Agreement = event.Agreement

	if span != nil {
		span.SetAttr("agreement", string(d.Agreement))
		span.SetAttr("cache_hit", hit)
	}
	e.observe(d, v, elapsed)
	if e.opts.Recorder != nil {
		e.opts.Recorder.Record(event)
	}
	log.Debug("prediction completed",
		"recognized", len(d.Recognized),
		"unknown", len(d.Unknown),
		"agreement", d.Agreement,
		"cache_hit", hit,
		"duration", elapsed,
	)
	return d, nil
}

func (e *Engine) countOutcome(outcome string) {
	if e.opts.Metrics != nil {
		e.opts.Metrics.PredictionsTotal.WithLabelValues(outcome).Inc()
	}
}

func (e *Engine) observe(d *Diagnosis, v []analytics.ModelVote, elapsed time.Duration) {
	m := e.opts.Metrics
	if m == nil {
		return
	}
	m.PredictionsTotal.WithLabelValues("ok").Inc()
	cacheStatus := "miss"
	if d.CacheHit {
		cacheStatus = "hit"
	}
	m.PredictionLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
	m.AgreementTotal.WithLabelValues(string(d.Agreement)).Inc()
	m.UnknownSymptoms.Add(float64(len(d.Unknown)))
	for _, vote := range v {
		m.ModelPredictions.WithLabelValues(vote.Model, vote.Disease).Inc()
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
