package triage

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/knowledge"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/model"
	apperrors "github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/errors"
)

// Aggregator turns per-model predictions into candidates. By default every
// model contributes its own candidate, so disagreement stays visible; with
// dedupe enabled identical diseases merge into one candidate that lists all
// the models that produced it.
type Aggregator struct {
	taxonomy *catalog.Taxonomy
	kb       knowledge.Base
	urgency  UrgencyPolicy
	dedupe   bool
}

// NewAggregator creates an Aggregator.
func NewAggregator(taxonomy *catalog.Taxonomy, kb knowledge.Base, urgency UrgencyPolicy, dedupe bool) *Aggregator {
	return &Aggregator{
		taxonomy: taxonomy,
		kb:       kb,
		urgency:  urgency,
		dedupe:   dedupe,
	}
}

// Aggregate resolves each prediction to a disease and joins it with the
// knowledge base. An index outside the taxonomy is an invariant violation;
// a disease without a knowledge entry gets empty fields. The result depends
// only on preds.
func (a *Aggregator) Aggregate(preds []model.Prediction) ([]Candidate, error) {
	out := make([]Candidate, 0, len(preds))
	position := make(map[string]int, len(preds))
	for _, p := range preds {
		name, err := a.taxonomy.Name(p.Index)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrInvariant, p.Model, err)
		}
		if a.dedupe {
			if i, seen := position[name]; seen {
				out[i].Models = append(out[i].Models, string(p.Model))
				continue
			}
			position[name] = len(out)
		}
		out = append(out, a.candidate(name, p.Model))
	}
	return out, nil
}

func (a *Aggregator) candidate(name string, producer model.Kind) Candidate {
	entry, _ := a.kb.Lookup(name)
	c := Candidate{
		Name:            name,
		Models:          []string{string(producer)},
		Description:     entry.Description,
		Recommendations: entry.Recommendations,
		Tests:           entry.Tests,
		Urgency:         a.urgency.Urgency(name),
	}
	if c.Recommendations == nil {
		c.Recommendations = []string{}
	}
	if c.Tests == nil {
		c.Tests = []string{}
	}
	return c
}
