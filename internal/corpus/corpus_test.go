package corpus

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/testutil"
	apperrors "github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/errors"
)

func defaultOptions() Options {
	return Options{
		LabelColumn:     "prognosis",
		MissingMarkers:  []string{"nan"},
		Seed:            42,
		SampleThreshold: 1 << 20,
		SampleFraction:  0.7,
	}
}

func newCleaner() *Cleaner {
	return NewCleaner(catalog.DefaultVocabulary(), catalog.DefaultTaxonomy())
}

// ---------------------------------------------------------------------------
// Table
// ---------------------------------------------------------------------------

func TestReadTableDedupesHeader(t *testing.T) {
	tbl, err := ReadTable(strings.NewReader("a,b,a,a\n1,0,1,0\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "a.1", "a.2"}, tbl.Header)
	assert.Equal(t, 2, tbl.Column("a.1"))
	assert.Equal(t, -1, tbl.Column("missing"))
}

func TestReadTableRejectsRaggedRows(t *testing.T) {
	_, err := ReadTable(strings.NewReader("a,b\n1,0\n1\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCorpus)
}

func TestReadTableRejectsEmpty(t *testing.T) {
	_, err := ReadTable(strings.NewReader(""))
	assert.ErrorIs(t, err, apperrors.ErrCorpus)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "Training.csv"))
	assert.ErrorIs(t, err, apperrors.ErrCorpus)
}

// ---------------------------------------------------------------------------
// Cleaning
// ---------------------------------------------------------------------------

func TestCleanDropsAbsentAndForeignLabels(t *testing.T) {
	raw := testutil.CSV(2,
		testutil.Row("", "itching"),
		testutil.Row("nan", "itching"),
		testutil.Row("  NaN ", "itching"),
		testutil.Row("Peptic ulcer diseae", "vomiting"),
		testutil.Row("  Fungal infection  ", "itching", "skin_rash"),
	)
	tbl, err := ReadTable(bytes.NewReader(raw))
	require.NoError(t, err)

	ds, rep, err := newCleaner().Clean(tbl, defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 41*2+5, rep.Rows)
	assert.Equal(t, 3, rep.MissingLabel)
	assert.Equal(t, 1, rep.UnknownLabel)
	assert.Equal(t, map[string]int{"Peptic ulcer diseae": 1}, rep.UnknownLabels)
	assert.Equal(t, 41*2+1, rep.Kept)
	assert.Equal(t, rep.Kept, ds.Len())
	require.NoError(t, ds.Validate(41))
	assert.Equal(t, catalog.DefaultVocabulary().Fingerprint(), ds.Layout)
}

func TestCleanRowsAlignToVocabulary(t *testing.T) {
	raw := testutil.CSV(0, testutil.Row("Allergy", "continuous_sneezing", "chills"))
	tbl, err := ReadTable(bytes.NewReader(raw))
	require.NoError(t, err)

	ds, _, err := newCleaner().Clean(tbl, defaultOptions())
	require.NoError(t, err)
	require.Equal(t, 1, ds.Len())
	assert.Equal(t, []int{3, 5}, ds.X[0].Active())
	assert.Equal(t, 1, ds.Y[0])
}

func TestCleanNormalisesHeaders(t *testing.T) {
	vocab, err := catalog.NewVocabulary([]string{"spotting_urination", "itching"})
	require.NoError(t, err)
	tax, err := catalog.NewTaxonomy([]string{"A", "B"})
	require.NoError(t, err)

	src := "itching,spotting_ urination,itching, prognosis \n1,0,0,A\n0,1.0,1,B\n"
	tbl, err := ReadTable(strings.NewReader(src))
	require.NoError(t, err)

	ds, _, err := NewCleaner(vocab, tax).Clean(tbl, defaultOptions())
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	for i, y := range ds.Y {
		switch y {
		case 0:
			assert.Equal(t, []int{1}, ds.X[i].Active())
		case 1:
			assert.Equal(t, []int{0}, ds.X[i].Active())
		}
	}
}

func TestCleanMissingSymptomColumnIsFatal(t *testing.T) {
	tbl, err := ReadTable(strings.NewReader("itching,prognosis\n1,Allergy\n"))
	require.NoError(t, err)

	_, _, err = newCleaner().Clean(tbl, defaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCorpus)
	assert.Contains(t, err.Error(), "skin_rash")
}

func TestCleanMissingLabelColumnIsFatal(t *testing.T) {
	opts := defaultOptions()
	opts.LabelColumn = "diagnosis"
	tbl, err := ReadTable(bytes.NewReader(testutil.CSV(1)))
	require.NoError(t, err)

	_, _, err = newCleaner().Clean(tbl, opts)
	assert.ErrorIs(t, err, apperrors.ErrCorpus)
}

func TestCleanNonBinaryCellIsFatal(t *testing.T) {
	row := testutil.Row("Allergy", "chills")
	row[0] = "2"
	tbl, err := ReadTable(bytes.NewReader(testutil.CSV(1, row)))
	require.NoError(t, err)

	_, _, err = newCleaner().Clean(tbl, defaultOptions())
	assert.ErrorIs(t, err, apperrors.ErrCorpus)
}

func TestCleanAllRowsDroppedIsFatal(t *testing.T) {
	tbl, err := ReadTable(bytes.NewReader(testutil.CSV(0, testutil.Row("nan"))))
	require.NoError(t, err)

	_, _, err = newCleaner().Clean(tbl, defaultOptions())
	assert.ErrorIs(t, err, apperrors.ErrCorpus)
}

// ---------------------------------------------------------------------------
// Shuffle and sample
// ---------------------------------------------------------------------------

func TestCleanIsDeterministic(t *testing.T) {
	raw := testutil.CSV(3)
	clean := func() *Dataset {
		tbl, err := ReadTable(bytes.NewReader(raw))
		require.NoError(t, err)
		ds, _, err := newCleaner().Clean(tbl, defaultOptions())
		require.NoError(t, err)
		return ds
	}
	a, b := clean(), clean()
	assert.Equal(t, a.Y, b.Y)
	assert.Equal(t, a.X, b.X)
}

func TestCleanShufflesSourceOrder(t *testing.T) {
	tbl, err := ReadTable(bytes.NewReader(testutil.CSV(3)))
	require.NoError(t, err)
	ds, _, err := newCleaner().Clean(tbl, defaultOptions())
	require.NoError(t, err)

	sorted := true
	for i := 1; i < ds.Len(); i++ {
		if ds.Y[i] < ds.Y[i-1] {
			sorted = false
			break
		}
	}
	assert.False(t, sorted, "rows should no longer be grouped by disease")
}

func TestCleanSamplesAboveThreshold(t *testing.T) {
	opts := defaultOptions()
	opts.SampleThreshold = 100
	opts.SampleFraction = 0.5

	tbl, err := ReadTable(bytes.NewReader(testutil.CSV(3)))
	require.NoError(t, err)
	ds, rep, err := newCleaner().Clean(tbl, opts)
	require.NoError(t, err)

	assert.Equal(t, 123, rep.Kept)
	assert.Equal(t, 62, rep.Sampled)
	assert.Equal(t, 62, ds.Len())
	require.NoError(t, ds.Validate(41))
}

func TestCleanDoesNotSampleAtThreshold(t *testing.T) {
	opts := defaultOptions()
	opts.SampleThreshold = 123
	opts.SampleFraction = 0.5

	tbl, err := ReadTable(bytes.NewReader(testutil.CSV(3)))
	require.NoError(t, err)
	ds, _, err := newCleaner().Clean(tbl, opts)
	require.NoError(t, err)
	assert.Equal(t, 123, ds.Len())
}

func TestLoadFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Training.csv")
	require.NoError(t, os.WriteFile(path, testutil.CSV(2), 0o644))

	ds, rep, err := newCleaner().Load(path, defaultOptions())
	require.NoError(t, err)
	assert.Equal(t, path, rep.Source)
	assert.Equal(t, 82, ds.Len())
}

func TestValidateCatchesMismatch(t *testing.T) {
	ds := &Dataset{X: nil, Y: []int{0}}
	assert.ErrorIs(t, ds.Validate(41), apperrors.ErrCorpus)

	x, _ := testutil.Dataset(1)
	ds = &Dataset{X: x[:1], Y: []int{41}}
	assert.ErrorIs(t, ds.Validate(41), apperrors.ErrInvariant)
}
