package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/config"
)

func TestEmbeddedCoversTaxonomy(t *testing.T) {
	base := Embedded()
	assert.Equal(t, 41, base.Len())

	cov := Check(base, catalog.DefaultTaxonomy())
	assert.True(t, cov.Complete(), "missing=%v foreign=%v", cov.Missing, cov.Foreign)
}

func TestEmbeddedEntryContent(t *testing.T) {
	e, ok := Embedded().Lookup("Fungal infection")
	require.True(t, ok)
	assert.Equal(t, "A fungal infection is caused by fungi that invade the skin, nails, or hair.", e.Description)
	assert.Equal(t, []string{
		"Use antifungal creams or ointments.",
		"Keep the affected area clean and dry.",
		"Consult a doctor if the infection persists.",
	}, e.Recommendations)
	assert.Len(t, e.Tests, 2)
}

func TestLookupMissingIsEmpty(t *testing.T) {
	s, err := NewStatic([]Entry{{Name: "Allergy", Description: "x"}})
	require.NoError(t, err)

	e, ok := s.Lookup("GERD")
	assert.False(t, ok)
	assert.Equal(t, "GERD", e.Name)
	assert.Empty(t, e.Description)
	assert.Empty(t, e.Recommendations)
	assert.Empty(t, e.Tests)
}

func TestLookupReturnsCopies(t *testing.T) {
	s, err := NewStatic([]Entry{{Name: "Allergy", Tests: []string{"a"}}})
	require.NoError(t, err)

	e, _ := s.Lookup("Allergy")
	e.Tests[0] = "mutated"
	again, _ := s.Lookup("Allergy")
	assert.Equal(t, []string{"a"}, again.Tests)
}

func TestNewStaticRejectsDuplicatesAndBlank(t *testing.T) {
	_, err := NewStatic([]Entry{{Name: "Acne"}, {Name: " Acne "}})
	assert.Error(t, err)

	_, err = NewStatic([]Entry{{Name: "  "}})
	assert.Error(t, err)
}

func TestCheckReportsGaps(t *testing.T) {
	tax, err := catalog.NewTaxonomy([]string{"A", "B", "C"})
	require.NoError(t, err)
	base, err := NewStatic([]Entry{{Name: "A"}, {Name: "Z"}, {Name: "Y"}})
	require.NoError(t, err)

	cov := Check(base, tax)
	assert.Equal(t, []string{"B", "C"}, cov.Missing)
	assert.Equal(t, []string{"Y", "Z"}, cov.Foreign)
	assert.False(t, cov.Complete())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.yaml")
	body := `diseases:
  - name: Allergy
    description: An immune response.
    recommendations: [Avoid allergens]
    tests: [Skin prick test]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	base, err := Load(context.Background(), config.KnowledgeConfig{Source: "file", Path: path}, nil)
	require.NoError(t, err)
	e, ok := base.Lookup("Allergy")
	require.True(t, ok)
	assert.Equal(t, "An immune response.", e.Description)
	assert.Equal(t, []string{"Skin prick test"}, e.Tests)
}

func TestLoadFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("diseases: {not: [a list"), 0o644))
	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadSources(t *testing.T) {
	base, err := Load(context.Background(), config.KnowledgeConfig{Source: "embedded"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 41, base.Len())

	_, err = Load(context.Background(), config.KnowledgeConfig{Source: "postgres", Table: "t"}, nil)
	assert.Error(t, err)

	_, err = Load(context.Background(), config.KnowledgeConfig{Source: "s3"}, nil)
	assert.Error(t, err)
}

func TestSelectQueryQuotesTable(t *testing.T) {
	assert.Equal(t,
		`SELECT name, description, recommendations, tests FROM "disease_knowledge" ORDER BY name`,
		selectQuery("disease_knowledge"))
}
