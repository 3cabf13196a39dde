// Package corpus loads the tabular training and held-out sources, cleans
// their labels against the disease taxonomy and produces feature rows aligned
// to the symptom vocabulary. Every failure here is a startup error.
package corpus

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/feature"
	apperrors "github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/errors"
)

// Options controls label parsing and size bounding for one source.
type Options struct {
	LabelColumn     string
	MissingMarkers  []string
	Seed            uint64
	SampleThreshold int
	SampleFraction  float64
}

// Report summarises what cleaning did to one source.
type Report struct {
	Source        string         `json:"source"`
	Rows          int            `json:"rows"`
	MissingLabel  int            `json:"missing_label"`
	UnknownLabel  int            `json:"unknown_label"`
	Kept          int            `json:"kept"`
	Sampled       int            `json:"sampled"`
	UnknownLabels map[string]int `json:"unknown_labels,omitempty"`
}

// Cleaner turns raw tables into Datasets for one vocabulary and taxonomy.
type Cleaner struct {
	vocab    *catalog.Vocabulary
	taxonomy *catalog.Taxonomy
	logger   *slog.Logger
}

// NewCleaner creates a Cleaner.
func NewCleaner(vocab *catalog.Vocabulary, taxonomy *catalog.Taxonomy) *Cleaner {
	return &Cleaner{
		vocab:    vocab,
		taxonomy: taxonomy,
		logger:   slog.Default().With("component", "corpus-cleaner"),
	}
}

// Load reads path and cleans it.
func (c *Cleaner) Load(path string, opts Options) (*Dataset, Report, error) {
	t, err := ReadFile(path)
	if err != nil {
		return nil, Report{Source: path}, err
	}
	return c.Clean(t, opts)
}

// Clean validates the table schema, drops rows whose label is absent or not
// in the taxonomy, maps labels to indices, then shuffles and optionally
// subsamples the result. The returned Dataset is never empty.
func (c *Cleaner) Clean(t *Table, opts Options) (*Dataset, Report, error) {
	rep := Report{Source: t.Source, Rows: len(t.Rows)}

	labelCol, featureCols, err := c.resolveColumns(t.Header, opts.LabelColumn)
	if err != nil {
		return nil, rep, fmt.Errorf("%s: %w", t.Source, err)
	}

	missing := make(map[string]struct{}, len(opts.MissingMarkers))
	for _, m := range opts.MissingMarkers {
		missing[strings.ToLower(catalog.Normalize(m))] = struct{}{}
	}

	ds := &Dataset{Layout: c.vocab.Fingerprint()}
	for r, row := range t.Rows {
		label := catalog.Normalize(row[labelCol])
		if _, absent := missing[strings.ToLower(label)]; absent || label == "" {
			rep.MissingLabel++
			continue
		}
		idx, ok := c.taxonomy.Index(label)
		if !ok {
			rep.UnknownLabel++
			if rep.UnknownLabels == nil {
				rep.UnknownLabels = make(map[string]int)
			}
			rep.UnknownLabels[label]++
			continue
		}

		vec := make(feature.Vector, c.vocab.Len())
		for pos, col := range featureCols {
			bit, err := parseCell(row[col])
			if err != nil {
				return nil, rep, fmt.Errorf("%w: %s row %d column %q: %v",
					apperrors.ErrCorpus, t.Source, r+2, t.Header[col], err)
			}
			vec[pos] = bit
		}
		ds.X = append(ds.X, vec)
		ds.Y = append(ds.Y, idx)
	}
	rep.Kept = ds.Len()

	if err := ds.Validate(c.taxonomy.Len()); err != nil {
		return nil, rep, err
	}
	if ds.Len() == 0 {
		return nil, rep, fmt.Errorf("%w: %s has no rows with a known label", apperrors.ErrCorpus, t.Source)
	}

	ds.shuffle(opts.Seed)
	rep.Sampled = ds.sample(opts.Seed, opts.SampleThreshold, opts.SampleFraction)

	if rep.UnknownLabel > 0 {
		c.logger.Warn("dropped rows with labels outside the taxonomy",
			"source", t.Source,
			"rows", rep.UnknownLabel,
			"labels", sortedKeys(rep.UnknownLabels),
		)
	}
	c.logger.Info("corpus cleaned",
		"source", t.Source,
		"rows", rep.Rows,
		"missing_label", rep.MissingLabel,
		"unknown_label", rep.UnknownLabel,
		"kept", rep.Kept,
		"sampled", rep.Sampled,
	)
	return ds, rep, nil
}

// resolveColumns finds the label column and, for each vocabulary position,
// the table column feeding it. Headers are compared in identifier form.
func (c *Cleaner) resolveColumns(header []string, labelColumn string) (int, []int, error) {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		id := catalog.NormalizeIdentifier(h)
		if _, dup := byName[id]; !dup {
			byName[id] = i
		}
	}

	labelCol, ok := byName[catalog.NormalizeIdentifier(labelColumn)]
	if !ok {
		return 0, nil, fmt.Errorf("%w: label column %q not found", apperrors.ErrCorpus, labelColumn)
	}

	cols := make([]int, c.vocab.Len())
	var absent []string
	for pos, name := range c.vocab.Names() {
		col, ok := byName[name]
		if !ok {
			absent = append(absent, name)
			continue
		}
		cols[pos] = col
	}
	if len(absent) > 0 {
		return 0, nil, fmt.Errorf("%w: %d symptom columns missing: %s",
			apperrors.ErrCorpus, len(absent), strings.Join(absent, ", "))
	}
	return labelCol, cols, nil
}

func parseCell(cell string) (uint8, error) {
	cell = strings.TrimSpace(cell)
	f, err := cast.ToFloat64E(cell)
	if err != nil {
		b, berr := cast.ToBoolE(cell)
		if berr != nil {
			return 0, fmt.Errorf("value %q is not 0 or 1", cell)
		}
		if b {
			return 1, nil
		}
		return 0, nil
	}
	switch f {
	case 0:
		return 0, nil
	case 1:
		return 1, nil
	default:
		return 0, fmt.Errorf("value %q is not 0 or 1", cell)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
